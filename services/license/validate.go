package license

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"chwone-controlplane/pkg/errutil"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

type enumValue interface{ Valid() bool }

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			v, ok := fl.Field().Interface().(enumValue)
			return ok && v.Valid()
		})
	})
	return validate
}

// validationError turns validator output into a VALIDATION_FAILED error
// carrying one detail per offending field.
func validationError(msg string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errutil.ValidationFailed(msg, err)
	}
	details := make([]errutil.Detail, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if parts := strings.SplitN(field, ".", 2); len(parts) == 2 {
			field = parts[1]
		}
		details = append(details, errutil.Detail{
			Field:   field,
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return errutil.ValidationFailed(msg, nil, errutil.WithDetails(details...))
}

func fieldError(field, message string) error {
	return errutil.ValidationFailed("invalid license record", nil, errutil.WithDetails(errutil.Detail{
		Field:   field,
		Message: message,
	}))
}

// Validate checks the record shape and the seat invariants.
func (l *OrganizationLicense) Validate() error {
	if err := recordValidator().Struct(l); err != nil {
		return validationError("invalid license record", err)
	}
	if l.PricePerUserBase.IsNegative() {
		return fieldError("pricePerUserBase", "must not be negative")
	}
	if l.TotalMonthlyCost.IsNegative() {
		return fieldError("totalMonthlyCost", "must not be negative")
	}
	if len(l.ActiveUsers) > l.TotalLicensedUsers {
		return fieldError("activeUsers", "exceeds totalLicensedUsers")
	}

	seenUsers := make(map[string]struct{}, len(l.ActiveUsers))
	for _, u := range l.ActiveUsers {
		if _, dup := seenUsers[u]; dup {
			return fieldError("activeUsers", fmt.Sprintf("duplicate user %q", u))
		}
		seenUsers[u] = struct{}{}
	}

	seenTools := make(map[PlatformTool]struct{}, len(l.ToolLicenses))
	for _, t := range l.ToolLicenses {
		if _, dup := seenTools[t.Tool]; dup {
			return fieldError("toolLicenses", fmt.Sprintf("duplicate entry for %s", t.Tool))
		}
		seenTools[t.Tool] = struct{}{}
		if t.PricePerUser.IsNegative() {
			return fieldError("toolLicenses", fmt.Sprintf("%s pricePerUser must not be negative", t.Tool))
		}
		if t.IsEnabled && t.CurrentUsers > t.MaxUsers {
			return fieldError("toolLicenses", fmt.Sprintf("%s currentUsers exceeds maxUsers", t.Tool))
		}
	}
	return nil
}

func (l *LicenseUsageLog) Validate() error {
	if err := recordValidator().Struct(l); err != nil {
		return validationError("invalid usage log", err)
	}
	if l.SessionEnd != nil && l.SessionEnd.Before(l.SessionStart) {
		return errutil.ValidationFailed("invalid usage log", nil, errutil.WithDetails(errutil.Detail{
			Field:   "sessionEnd",
			Message: "before sessionStart",
		}))
	}
	return nil
}

func (l *LicenseChangeLog) Validate() error {
	if err := recordValidator().Struct(l); err != nil {
		return validationError("invalid change log", err)
	}
	return nil
}
