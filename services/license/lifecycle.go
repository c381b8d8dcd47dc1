package license

import (
	"context"
	"fmt"
	"time"

	"chwone-controlplane/pkg/db/option"
	"chwone-controlplane/pkg/errutil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetTotalLicensedUsers changes the organization-wide seat cap. The cap may
// not drop below the number of seats in use. Setting the current value is
// a no-op.
func (s *Service) SetTotalLicensedUsers(ctx context.Context, licenseID string, total int, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.SetTotalLicensedUsers", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	if err := actor.validate(); err != nil {
		return err
	}
	if total < 0 {
		return errutil.ValidationFailed("totalLicensedUsers must not be negative", nil)
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		prev := l.TotalLicensedUsers
		if total == prev {
			return nil, errNoChange
		}
		if total < len(l.ActiveUsers) {
			return nil, errutil.ValidationFailed(
				fmt.Sprintf("%d seats are in use, cannot reduce to %d", len(l.ActiveUsers), total), nil)
		}

		l.TotalLicensedUsers = total
		s.touch(l, actor)

		change := ChangeUsersIncreased
		if total < prev {
			change = ChangeUsersDecreased
		}
		return &LicenseChangeLog{
			ChangeType:    change,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			PreviousValue: snapshot(map[string]int{"totalLicensedUsers": prev}),
			NewValue:      snapshot(map[string]int{"totalLicensedUsers": total}),
			Description:   fmt.Sprintf("Licensed users changed from %d to %d", prev, total),
		}, nil
	})
	if err != nil {
		logger(ctx).Error("failed to set licensed users", zap.Error(err), zap.String("license_id", licenseID))
	}
	return err
}

// transition moves a license between statuses, recording the change.
func (s *Service) transition(ctx context.Context, licenseID string, to Status, change ChangeType, reason string, actor Actor, allowed ...Status) error {
	if err := actor.validate(); err != nil {
		return err
	}

	return s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		from := l.Status
		if !statusIn(from, allowed) {
			return nil, errutil.UnprocessableEntity(
				fmt.Sprintf("license %s is %s and cannot become %s", l.ID, from, to), nil)
		}
		if to.Usable() {
			if l.Expired(s.now()) {
				return nil, errutil.UnprocessableEntity(
					fmt.Sprintf("license %s ended on %s, extend endDate first", l.ID, l.EndDate.Format(time.DateOnly)), nil)
			}
			if err := s.ensureNoOtherUsable(ctx, tx, l.EntityID, l.ID); err != nil {
				return nil, err
			}
		}

		l.Status = to
		s.touch(l, actor)

		desc := fmt.Sprintf("License %s", change)
		if reason != "" {
			desc = fmt.Sprintf("%s: %s", desc, reason)
		}
		return &LicenseChangeLog{
			ChangeType:    change,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			PreviousValue: snapshot(map[string]Status{"status": from}),
			NewValue:      snapshot(map[string]Status{"status": to}),
			Description:   desc,
		}, nil
	})
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Suspend stops tool access on an Active or Trial license.
func (s *Service) Suspend(ctx context.Context, licenseID, reason string, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.Suspend", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	err := s.transition(ctx, licenseID, StatusSuspended, ChangeSuspended, reason, actor, StatusActive, StatusTrial)
	if err != nil {
		logger(ctx).Error("failed to suspend license", zap.Error(err), zap.String("license_id", licenseID))
	}
	return err
}

// Reactivate returns a Suspended or Expired license to Active.
func (s *Service) Reactivate(ctx context.Context, licenseID string, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.Reactivate", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	err := s.transition(ctx, licenseID, StatusActive, ChangeReactivated, "", actor, StatusSuspended, StatusExpired)
	if err != nil {
		logger(ctx).Error("failed to reactivate license", zap.Error(err), zap.String("license_id", licenseID))
	}
	return err
}

// Cancel ends a license permanently.
func (s *Service) Cancel(ctx context.Context, licenseID, reason string, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.Cancel", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	err := s.transition(ctx, licenseID, StatusCancelled, ChangeCancelled, reason, actor,
		StatusActive, StatusTrial, StatusSuspended, StatusExpired)
	if err != nil {
		logger(ctx).Error("failed to cancel license", zap.Error(err), zap.String("license_id", licenseID))
	}
	return err
}

// ExpireLapsedLicenses moves Active and Trial licenses whose end date, or
// trial end date for trials, has passed to Expired. It returns how many
// licenses were expired.
func (s *Service) ExpireLapsedLicenses(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "license.ExpireLapsedLicenses")
	defer span.End()
	zapLog := logger(ctx)

	now := s.now()
	rows, err := s.licenses.Find(ctx, &OrganizationLicense{},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.IN, Value: []Status{StatusActive, StatusTrial}}),
	)
	if err != nil {
		return 0, loadError(err)
	}

	expired := 0
	for _, l := range rows {
		if !lapsed(l, now) {
			continue
		}
		err := s.mutate(ctx, l.ID, func(tx *gorm.DB, cur *OrganizationLicense) (*LicenseChangeLog, error) {
			if !cur.Status.Usable() || !lapsed(cur, now) {
				return nil, errNoChange
			}
			from := cur.Status
			cur.Status = StatusExpired
			s.touch(cur, SystemActor)
			return &LicenseChangeLog{
				ChangeType:    ChangeUpdated,
				ChangedBy:     SystemActor.ID,
				ChangedByName: SystemActor.Name,
				PreviousValue: snapshot(map[string]Status{"status": from}),
				NewValue:      snapshot(map[string]Status{"status": StatusExpired}),
				Description:   "License expired",
			}, nil
		})
		if err != nil {
			zapLog.Error("failed to expire license", zap.Error(err), zap.String("license_id", l.ID))
			return expired, err
		}
		expired++
	}

	zapLog.Info("license expiry sweep finished", zap.Int("expired", expired))
	return expired, nil
}

func lapsed(l *OrganizationLicense, now time.Time) bool {
	if l.Expired(now) {
		return true
	}
	return l.Status == StatusTrial && l.TrialEndDate != nil && l.TrialEndDate.Before(now)
}

// CloseStaleSessions ends sessions open for longer than maxAge, appending a
// usage record for each. It returns how many sessions were closed.
func (s *Service) CloseStaleSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := tracer.Start(ctx, "license.CloseStaleSessions")
	defer span.End()
	zapLog := logger(ctx)

	now := s.now()
	var stale []*ToolSession
	err := s.db.WithContext(ctx).
		Where("session_end IS NULL AND session_start < ?", now.Add(-maxAge)).
		Order("license_id").
		Find(&stale).Error
	if err != nil {
		return 0, storeError(err)
	}

	byLicense := make(map[string][]string)
	var order []string
	for _, sess := range stale {
		if _, ok := byLicense[sess.LicenseID]; !ok {
			order = append(order, sess.LicenseID)
		}
		byLicense[sess.LicenseID] = append(byLicense[sess.LicenseID], sess.ID)
	}

	closed := 0
	for _, licenseID := range order {
		ids := byLicense[licenseID]
		n := 0
		err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
			n = 0
			var open []*ToolSession
			if err := tx.WithContext(ctx).Where("id IN ? AND session_end IS NULL", ids).Find(&open).Error; err != nil {
				return nil, storeError(err)
			}
			for _, sess := range open {
				usage, err := s.closeSession(ctx, tx, l, sess, now)
				if err != nil {
					return nil, err
				}
				if usage != nil {
					n++
				}
			}
			if n == 0 {
				return nil, errNoChange
			}
			return nil, nil
		})
		if errutil.Is(err, errutil.StatusNotFound) {
			zapLog.Warn("stale sessions reference a missing license", zap.String("license_id", licenseID))
			continue
		}
		if err != nil {
			zapLog.Error("failed to close stale sessions", zap.Error(err), zap.String("license_id", licenseID))
			return closed, err
		}
		closed += n
	}

	zapLog.Info("stale session sweep finished", zap.Int("closed", closed))
	return closed, nil
}
