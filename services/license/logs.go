package license

import (
	"context"
	"strings"

	"chwone-controlplane/pkg/db/option"
	"chwone-controlplane/pkg/errutil"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var byTimestamp = []option.QueryOption{
	option.WithSortBy(option.QuerySortBy{SortBy: "timestamp", OrderBy: "desc", Allow: map[string]bool{"timestamp": true}}),
	option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
}

// LogUsage appends a usage record as given. The record is stamped with an
// ID and the current time; nothing else is read or changed.
func (s *Service) LogUsage(ctx context.Context, entry *LicenseUsageLog) error {
	ctx, span := tracer.Start(ctx, "license.LogUsage")
	defer span.End()

	if entry == nil {
		return errutil.ValidationFailed("usage entry is required", nil)
	}
	entry.ID = s.newID()
	entry.Timestamp = s.now()

	if err := s.usage.Create(ctx, entry); err != nil {
		logger(ctx).Error("failed to log usage", zap.Error(err),
			zap.String("license_id", entry.LicenseID), zap.String("tool", string(entry.Tool)))
		return storeError(err)
	}
	return nil
}

// GetUsageLogs returns the newest usage records of the license. A
// non-positive limit uses the configured default.
func (s *Service) GetUsageLogs(ctx context.Context, licenseID string, limit int) ([]*LicenseUsageLog, error) {
	ctx, span := tracer.Start(ctx, "license.GetUsageLogs")
	defer span.End()

	if strings.TrimSpace(licenseID) == "" {
		return nil, errutil.ValidationFailed("license id is required", nil)
	}
	if limit <= 0 {
		limit = s.cfg.UsageLogLimit
	}

	opts := append(append([]option.QueryOption{}, byTimestamp...), option.WithLimit(limit))
	rows, err := s.usage.Find(ctx, &LicenseUsageLog{LicenseID: licenseID}, opts...)
	if err != nil {
		logger(ctx).Error("failed to get usage logs", zap.Error(err), zap.String("license_id", licenseID))
		return nil, loadError(err)
	}
	return rows, nil
}

// GetChangeHistory returns the full audit trail of the license, newest first.
func (s *Service) GetChangeHistory(ctx context.Context, licenseID string) ([]*LicenseChangeLog, error) {
	ctx, span := tracer.Start(ctx, "license.GetChangeHistory")
	defer span.End()

	if strings.TrimSpace(licenseID) == "" {
		return nil, errutil.ValidationFailed("license id is required", nil)
	}

	rows, err := s.changes.Find(ctx, &LicenseChangeLog{LicenseID: licenseID}, byTimestamp...)
	if err != nil {
		logger(ctx).Error("failed to get change history", zap.Error(err), zap.String("license_id", licenseID))
		return nil, loadError(err)
	}
	return rows, nil
}

// logChange appends an audit entry inside tx. Every mutating operation calls
// it in the same transaction as the license write.
func (s *Service) logChange(ctx context.Context, tx *gorm.DB, l *OrganizationLicense, change *LicenseChangeLog) error {
	change.ID = s.newID()
	change.LicenseID = l.ID
	change.EntityID = l.EntityID
	change.Timestamp = s.now()
	if err := s.changes.WithTrx(tx).Create(ctx, change); err != nil {
		return storeError(err)
	}
	return nil
}
