package authz

import (
	"fmt"

	"chwone-controlplane/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RoleLicenseAdmin may call every mutating license route.
const RoleLicenseAdmin = "license_admin"

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

var Module = fx.Module("authz", fx.Provide(NewEnforcer))

// NewEnforcer loads the model and policy files named in ACCESS_CONTROL, or
// falls back to the built-in model granting license_admin write access to
// /v1/*.
func NewEnforcer(cfg *config.Config) (casbin.IEnforcer, error) {
	if cfg.AccessControl.Model != "" && cfg.AccessControl.Policy != "" {
		e, err := casbin.NewEnforcer(cfg.AccessControl.Model, cfg.AccessControl.Policy)
		if err != nil {
			return nil, fmt.Errorf("load access control policy: %w", err)
		}
		zap.L().Info("access control policy loaded",
			zap.String("model", cfg.AccessControl.Model),
			zap.String("policy", cfg.AccessControl.Policy))
		return e, nil
	}

	return NewDefaultEnforcer()
}

func NewDefaultEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, fmt.Errorf("parse access control model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if _, err := e.AddPolicy(RoleLicenseAdmin, "/v1/*", "POST|PUT|PATCH|DELETE"); err != nil {
		return nil, fmt.Errorf("add default policy: %w", err)
	}
	return e, nil
}
