package secretmanager

import (
	"fmt"
	"os"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides an optional *vault.Client. Config loading overlays the
// database and redis credentials stored under secret/<APP_ENV>.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

const requestTimeout = 10 * time.Second

// ProvideVault returns nil when VAULT_ADDR is unset, leaving configuration
// untouched. Address, token and TLS settings come from the VAULT_* variables.
func ProvideVault() (*vault.Client, error) {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		zap.L().Info("[Vault] not configured, credentials come from config only")
		return nil, nil
	}

	client, err := vault.New(
		vault.WithEnvironment(),
		vault.WithRequestTimeout(requestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("vault client for %s: %w", addr, err)
	}

	if os.Getenv("VAULT_TOKEN") == "" {
		zap.L().Warn("[Vault] VAULT_TOKEN is empty, secret reads will be rejected", zap.String("addr", addr))
	}
	return client, nil
}
