package license

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chwone-controlplane/pkg/errutil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Capacity reports organization-level seat usage.
type Capacity struct {
	CanAddUser   bool `json:"canAddUser"`
	CurrentUsers int  `json:"currentUsers"`
	MaxUsers     int  `json:"maxUsers"`
}

// CheckUserLimit reports seat usage. A missing license has no capacity.
func (s *Service) CheckUserLimit(ctx context.Context, licenseID string) (Capacity, error) {
	l, err := s.GetLicense(ctx, licenseID)
	if err != nil {
		return Capacity{}, err
	}
	if l == nil {
		return Capacity{}, nil
	}
	return Capacity{
		CanAddUser:   len(l.ActiveUsers) < l.TotalLicensedUsers,
		CurrentUsers: len(l.ActiveUsers),
		MaxUsers:     l.TotalLicensedUsers,
	}, nil
}

// AddActiveUser occupies a seat for userID. Adding a user already present
// is a no-op, even when the license is full.
func (s *Service) AddActiveUser(ctx context.Context, licenseID, userID string) error {
	ctx, span := tracer.Start(ctx, "license.AddActiveUser", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return errutil.ValidationFailed("user id is required", nil)
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		if l.HasActiveUser(userID) {
			return nil, errNoChange
		}
		if len(l.ActiveUsers) >= l.TotalLicensedUsers {
			return nil, errutil.LimitReached(
				fmt.Sprintf("license %s has no free seats (%d of %d used)", l.ID, len(l.ActiveUsers), l.TotalLicensedUsers), nil)
		}
		l.ActiveUsers = append(l.ActiveUsers, userID)
		return nil, nil
	})
	if err != nil {
		logger(ctx).Warn("failed to add active user", zap.Error(err),
			zap.String("license_id", licenseID), zap.String("user_id", userID))
	}
	return err
}

// RemoveActiveUser frees the user's seat and closes any sessions the user
// still has open on the license. Removing an absent user is a no-op.
func (s *Service) RemoveActiveUser(ctx context.Context, licenseID, userID string) error {
	ctx, span := tracer.Start(ctx, "license.RemoveActiveUser", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return errutil.ValidationFailed("user id is required", nil)
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		var open []*ToolSession
		if err := tx.WithContext(ctx).
			Where("license_id = ? AND user_id = ? AND session_end IS NULL", l.ID, userID).
			Find(&open).Error; err != nil {
			return nil, storeError(err)
		}

		if !l.HasActiveUser(userID) && len(open) == 0 {
			return nil, errNoChange
		}

		users := l.ActiveUsers[:0]
		for _, u := range l.ActiveUsers {
			if u != userID {
				users = append(users, u)
			}
		}
		l.ActiveUsers = users

		now := s.now()
		for _, sess := range open {
			if _, err := s.closeSession(ctx, tx, l, sess, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		logger(ctx).Warn("failed to remove active user", zap.Error(err),
			zap.String("license_id", licenseID), zap.String("user_id", userID))
	}
	return err
}

type StartSessionInput struct {
	LicenseID string       `json:"-"`
	Tool      PlatformTool `json:"tool"`
	UserID    string       `json:"userId"`
	UserName  string       `json:"userName"`
	IPAddress string       `json:"ipAddress,omitempty"`
	UserAgent string       `json:"userAgent,omitempty"`
}

// StartToolSession opens a session for the user on tool. The user takes an
// organization seat if they do not hold one, and the tool's currentUsers is
// incremented. A user with an open session on the same tool gets that
// session back.
func (s *Service) StartToolSession(ctx context.Context, in StartSessionInput) (*ToolSession, error) {
	ctx, span := tracer.Start(ctx, "license.StartToolSession", trace.WithAttributes(
		attribute.String("license.id", in.LicenseID),
		attribute.String("license.tool", string(in.Tool)),
	))
	defer span.End()

	if strings.TrimSpace(in.UserID) == "" {
		return nil, errutil.ValidationFailed("user id is required", nil)
	}
	if !in.Tool.Valid() {
		return nil, errutil.ValidationFailed(fmt.Sprintf("unknown tool %q", in.Tool), nil)
	}

	var session *ToolSession
	err := s.mutate(ctx, in.LicenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		var existing ToolSession
		res := tx.WithContext(ctx).
			Where("license_id = ? AND tool = ? AND user_id = ? AND session_end IS NULL", l.ID, in.Tool, in.UserID).
			Limit(1).Find(&existing)
		if res.Error != nil {
			return nil, storeError(res.Error)
		}
		if res.RowsAffected > 0 {
			session = &existing
			return nil, errNoChange
		}

		if !l.HasActiveUser(in.UserID) {
			if len(l.ActiveUsers) >= l.TotalLicensedUsers {
				return nil, errutil.LimitReached(fmt.Sprintf("license %s has no free seats", l.ID), nil)
			}
			l.ActiveUsers = append(l.ActiveUsers, in.UserID)
		}

		now := s.now()
		decision := EvaluateTool(l, in.Tool, now)
		s.metrics.decision(decision)
		switch decision.Reason {
		case ReasonGranted:
		case ReasonLimitReached:
			return nil, errutil.LimitReached(fmt.Sprintf("%s: %s", in.Tool, decision.Reason), nil)
		default:
			return nil, errutil.Forbidden(fmt.Sprintf("%s: %s", in.Tool, decision.Reason), nil)
		}

		session = &ToolSession{
			ID:           s.newID(),
			LicenseID:    l.ID,
			Tool:         in.Tool,
			UserID:       in.UserID,
			UserName:     in.UserName,
			IPAddress:    in.IPAddress,
			UserAgent:    in.UserAgent,
			SessionStart: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.sessions.WithTrx(tx).Create(ctx, session); err != nil {
			return nil, storeError(err)
		}
		l.FindTool(in.Tool).CurrentUsers++
		return nil, nil
	})
	if err != nil {
		logger(ctx).Warn("failed to start tool session", zap.Error(err),
			zap.String("license_id", in.LicenseID), zap.String("tool", string(in.Tool)), zap.String("user_id", in.UserID))
		return nil, err
	}
	return session, nil
}

// EndToolSession closes the session and appends its usage record. Ending a
// session that is already closed returns nil, nil.
func (s *Service) EndToolSession(ctx context.Context, licenseID, sessionID string) (*LicenseUsageLog, error) {
	ctx, span := tracer.Start(ctx, "license.EndToolSession", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	var usage *LicenseUsageLog
	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		sess, err := s.sessions.WithTrx(tx).FindOne(ctx, &ToolSession{ID: sessionID, LicenseID: l.ID})
		if err != nil {
			return nil, storeError(err)
		}
		if sess == nil {
			return nil, errutil.NotFound(fmt.Sprintf("session %s not found on license %s", sessionID, l.ID), nil)
		}
		if !sess.Open() {
			return nil, errNoChange
		}
		usage, err = s.closeSession(ctx, tx, l, sess, s.now())
		return nil, err
	})
	if err != nil {
		logger(ctx).Warn("failed to end tool session", zap.Error(err),
			zap.String("license_id", licenseID), zap.String("session_id", sessionID))
		return nil, err
	}
	return usage, nil
}

func (s *Service) countOpenSessions(ctx context.Context, tx *gorm.DB, licenseID string, tool PlatformTool) (int64, error) {
	var n int64
	err := tx.WithContext(ctx).Model(&ToolSession{}).
		Where("license_id = ? AND tool = ? AND session_end IS NULL", licenseID, tool).
		Count(&n).Error
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

// closeSession stamps the session end, releases the tool seat on l and
// appends the usage record. The caller saves l.
func (s *Service) closeSession(ctx context.Context, tx *gorm.DB, l *OrganizationLicense, sess *ToolSession, end time.Time) (*LicenseUsageLog, error) {
	if end.Before(sess.SessionStart) {
		end = sess.SessionStart
	}

	res := tx.WithContext(ctx).Model(&ToolSession{}).
		Where("id = ? AND session_end IS NULL", sess.ID).
		Updates(map[string]any{"session_end": end, "updated_at": end})
	if res.Error != nil {
		return nil, storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	sess.SessionEnd = &end

	if t := l.FindTool(sess.Tool); t != nil && t.CurrentUsers > 0 {
		t.CurrentUsers--
	}

	minutes := int(end.Sub(sess.SessionStart).Minutes())
	usage := &LicenseUsageLog{
		ID:              s.newID(),
		LicenseID:       l.ID,
		EntityID:        l.EntityID,
		EntityName:      l.EntityName,
		Tool:            sess.Tool,
		UserID:          sess.UserID,
		UserName:        sess.UserName,
		SessionStart:    sess.SessionStart,
		SessionEnd:      &end,
		DurationMinutes: &minutes,
		IPAddress:       sess.IPAddress,
		UserAgent:       sess.UserAgent,
		Timestamp:       end,
	}
	if err := s.usage.WithTrx(tx).Create(ctx, usage); err != nil {
		return nil, storeError(err)
	}
	return usage, nil
}
