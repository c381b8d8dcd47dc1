package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chwone-controlplane/pkg/config"
	"chwone-controlplane/pkg/db/option"
	"chwone-controlplane/pkg/db/pagination"
	"chwone-controlplane/pkg/errutil"
	"chwone-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("chwone-controlplane/services/license")

// Actor identifies who performs a mutation. Both fields are required; the
// display name is recorded verbatim in the change log.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemActor is recorded for changes made by background jobs.
var SystemActor = Actor{ID: "system", Name: "System"}

func (a Actor) validate() error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" {
		return errutil.ValidationFailed("actor id and name are required", nil)
	}
	return nil
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	cfg  config.LicensingConfig

	licenses repository.Repository[OrganizationLicense]
	usage    repository.Repository[LicenseUsageLog]
	changes  repository.Repository[LicenseChangeLog]
	sessions repository.Repository[ToolSession]
	jobs     repository.Repository[Job]

	metrics *Metrics
	now     func() time.Time
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Config  *config.Config
	Metrics *Metrics `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	cfg := config.LicensingConfig{
		IncludeTrialInEntityLookup: true,
		UsageLogLimit:              100,
		MaxUpdateRetries:           3,
		ExpirySweepHour:            1,
	}
	if p.Config != nil {
		cfg = p.Config.Licensing
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		cfg:      cfg,
		licenses: repository.ProvideStore[OrganizationLicense](p.DB),
		usage:    repository.ProvideStore[LicenseUsageLog](p.DB),
		changes:  repository.ProvideStore[LicenseChangeLog](p.DB),
		sessions: repository.ProvideStore[ToolSession](p.DB),
		jobs:     repository.ProvideStore[Job](p.DB),
		metrics:  p.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

var (
	errNoChange        = errors.New("license unchanged")
	errVersionConflict = errors.New("license version changed concurrently")
)

// storeError maps a persistence failure onto SERVICE_UNAVAILABLE. Errors that
// already carry a status pass through.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errutil.StatusOf(err) != errutil.StatusUnknown {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errutil.New(errutil.StatusTimeout, "license store call cancelled", errutil.WithErr(err))
	}
	return errutil.ServiceUnavailable("license store unavailable", err)
}

// loadError maps a failed read. A stored record that fails validation is a
// server-side fault, not a bad request.
func loadError(err error) error {
	if errutil.Is(err, errutil.StatusValidationFailed) {
		return errutil.Internal("malformed license record", err)
	}
	return storeError(err)
}

func (s *Service) newID() string {
	return s.node.Generate().String()
}

func snapshot(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// mutation edits a locked license in place and describes the change to log.
// Returning errNoChange skips the write.
type mutation func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error)

// mutate runs fn as a read-modify-write inside a transaction: the row is
// selected FOR UPDATE and written back only if its version is unchanged.
// The change-log row, when fn returns one, is written in the same
// transaction. Lost version races are retried.
func (s *Service) mutate(ctx context.Context, licenseID string, fn mutation) error {
	if strings.TrimSpace(licenseID) == "" {
		return errutil.ValidationFailed("license id is required", nil)
	}

	attempts := s.cfg.MaxUpdateRetries
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		var change *LicenseChangeLog
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			l, err := s.licenses.WithTrx(tx).FindOne(ctx, &OrganizationLicense{ID: licenseID}, option.WithLockingUpdate())
			if err != nil {
				return loadError(err)
			}
			if l == nil {
				return errutil.NotFound(fmt.Sprintf("license %s not found", licenseID), nil)
			}

			prev := l.Version
			change, err = fn(tx, l)
			if err != nil {
				return err
			}

			if err := s.saveVersioned(tx, l, prev); err != nil {
				return err
			}

			if change != nil {
				return s.logChange(ctx, tx, l, change)
			}
			return nil
		})

		if errors.Is(err, errVersionConflict) {
			logger(ctx).Warn("license version conflict, retrying",
				zap.String("license_id", licenseID), zap.Int("attempt", i+1))
			continue
		}
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err == nil && change != nil {
			s.metrics.mutation(change.ChangeType)
		}
		return err
	}

	return errutil.Conflict("license was modified concurrently, retry the request", err)
}

// saveVersioned writes every column of l guarded by the version it was read at.
func (s *Service) saveVersioned(tx *gorm.DB, l *OrganizationLicense, prev int64) error {
	l.Version = prev + 1
	res := tx.Model(l).Where("version = ?", prev).Select("*").Updates(l)
	if res.Error != nil {
		l.Version = prev
		return storeError(res.Error)
	}
	if res.RowsAffected == 0 {
		l.Version = prev
		return errVersionConflict
	}
	return nil
}

func (s *Service) touch(l *OrganizationLicense, actor Actor) {
	now := s.now()
	l.LastModifiedBy = actor.ID
	l.LastModifiedAt = &now
}

// usableStatuses are the statuses getLicenseByEntity matches.
func (s *Service) usableStatuses() []Status {
	if s.cfg.IncludeTrialInEntityLookup {
		return []Status{StatusActive, StatusTrial}
	}
	return []Status{StatusActive}
}

// ensureNoOtherUsable rejects a second Active/Trial license for an entity.
func (s *Service) ensureNoOtherUsable(ctx context.Context, tx *gorm.DB, entityID, exceptID string) error {
	var n int64
	q := tx.WithContext(ctx).Model(&OrganizationLicense{}).
		Where("entity_id = ? AND status IN ?", entityID, []Status{StatusActive, StatusTrial})
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return storeError(err)
	}
	if n > 0 {
		return errutil.Conflict(fmt.Sprintf("entity %s already has an active or trial license", entityID), nil)
	}
	return nil
}

type ToolGrant struct {
	Tool     PlatformTool `json:"tool" binding:"required"`
	MaxUsers int          `json:"maxUsers"`
	// PricePerUser overrides the list price when set.
	PricePerUser *decimal.Decimal `json:"pricePerUser,omitempty"`
	Disabled     bool             `json:"disabled,omitempty"`
}

type CreateLicenseInput struct {
	EntityType         EntityType      `json:"entityType"`
	EntityID           string          `json:"entityId"`
	EntityName         string          `json:"entityName"`
	MedicaidRegion     *MedicaidRegion `json:"medicaidRegion,omitempty"`
	Status             Status          `json:"status"`
	ToolLicenses       []ToolGrant     `json:"toolLicenses"`
	TotalLicensedUsers int             `json:"totalLicensedUsers"`
	ActiveUsers        []string        `json:"activeUsers"`
	BillingCycle       BillingCycle    `json:"billingCycle"`
	PricePerUserBase   decimal.Decimal `json:"pricePerUserBase"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            *time.Time      `json:"endDate,omitempty"`
	TrialEndDate       *time.Time      `json:"trialEndDate,omitempty"`
	NextBillingDate    *time.Time      `json:"nextBillingDate,omitempty"`
	PaymentMethod      *PaymentMethod  `json:"paymentMethod,omitempty"`
	Notes              string          `json:"notes,omitempty"`
}

// CreateLicense persists a new license and its "created" change-log entry,
// returning the generated ID.
func (s *Service) CreateLicense(ctx context.Context, in CreateLicenseInput, actor Actor) (string, error) {
	ctx, span := tracer.Start(ctx, "license.CreateLicense")
	defer span.End()
	zapLog := logger(ctx)

	if err := actor.validate(); err != nil {
		return "", err
	}

	now := s.now()
	l := &OrganizationLicense{
		ID:                 s.newID(),
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
		EntityType:         in.EntityType,
		EntityID:           in.EntityID,
		EntityName:         in.EntityName,
		MedicaidRegion:     in.MedicaidRegion,
		Status:             in.Status,
		TotalLicensedUsers: in.TotalLicensedUsers,
		ActiveUsers:        dedupe(in.ActiveUsers),
		BillingCycle:       in.BillingCycle,
		PricePerUserBase:   in.PricePerUserBase,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		TrialEndDate:       in.TrialEndDate,
		NextBillingDate:    in.NextBillingDate,
		PaymentMethod:      in.PaymentMethod,
		GrantedBy:          actor.ID,
		GrantedAt:          now,
		Notes:              in.Notes,
	}
	if l.StartDate.IsZero() {
		l.StartDate = now
	}

	tools := make(datatypes.JSONSlice[ToolLicense], 0, len(in.ToolLicenses))
	for _, g := range in.ToolLicenses {
		price := DefaultToolPrice(g.Tool)
		if g.PricePerUser != nil {
			price = *g.PricePerUser
		}
		t := ToolLicense{
			Tool:         g.Tool,
			IsEnabled:    !g.Disabled,
			MaxUsers:     g.MaxUsers,
			PricePerUser: price,
		}
		if t.IsEnabled {
			t.EnabledAt = &now
		} else {
			t.DisabledAt = &now
		}
		tools = append(tools, t)
	}
	l.ToolLicenses = tools
	l.TotalMonthlyCost = ComputeCost(tools, l.BillingCycle)

	if err := l.Validate(); err != nil {
		return "", err
	}

	span.SetAttributes(attribute.String("license.id", l.ID), attribute.String("license.entity_id", l.EntityID))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if l.Status.Usable() {
			if err := s.ensureNoOtherUsable(ctx, tx, l.EntityID, ""); err != nil {
				return err
			}
		}
		if err := s.licenses.WithTrx(tx).Create(ctx, l); err != nil {
			return storeError(err)
		}
		return s.logChange(ctx, tx, l, &LicenseChangeLog{
			ChangeType:    ChangeCreated,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			NewValue:      snapshot(l),
			Description:   fmt.Sprintf("License created for %s", l.EntityName),
		})
	})
	if err != nil {
		zapLog.Error("failed to create license", zap.Error(err), zap.String("entity_id", in.EntityID))
		return "", err
	}

	s.metrics.mutation(ChangeCreated)
	zapLog.Info("license created",
		zap.String("license_id", l.ID),
		zap.String("entity_id", l.EntityID),
		zap.String("status", l.Status.String()),
	)
	return l.ID, nil
}

// GetLicense returns nil, nil when the license does not exist.
func (s *Service) GetLicense(ctx context.Context, licenseID string) (*OrganizationLicense, error) {
	ctx, span := tracer.Start(ctx, "license.GetLicense")
	defer span.End()

	if strings.TrimSpace(licenseID) == "" {
		return nil, nil
	}
	l, err := s.licenses.FindOne(ctx, &OrganizationLicense{ID: licenseID})
	if err != nil {
		logger(ctx).Error("failed to get license", zap.Error(err), zap.String("license_id", licenseID))
		return nil, loadError(err)
	}
	return l, nil
}

// GetLicenseByEntity returns the most recently created usable license of the
// entity, or nil, nil.
func (s *Service) GetLicenseByEntity(ctx context.Context, entityID string) (*OrganizationLicense, error) {
	ctx, span := tracer.Start(ctx, "license.GetLicenseByEntity")
	defer span.End()

	if strings.TrimSpace(entityID) == "" {
		return nil, nil
	}
	rows, err := s.licenses.Find(ctx, &OrganizationLicense{EntityID: entityID},
		option.ApplyOperator(option.Condition{Field: "status", Operator: option.IN, Value: s.usableStatuses()}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(1),
	)
	if err != nil {
		logger(ctx).Error("failed to get license by entity", zap.Error(err), zap.String("entity_id", entityID))
		return nil, loadError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// newestLicense returns the entity's most recent license of any status.
func (s *Service) newestLicense(ctx context.Context, entityID string) (*OrganizationLicense, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, nil
	}
	rows, err := s.licenses.Find(ctx, &OrganizationLicense{EntityID: entityID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(1),
	)
	if err != nil {
		logger(ctx).Error("failed to get newest license by entity", zap.Error(err), zap.String("entity_id", entityID))
		return nil, loadError(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListLicenses pages through all licenses, newest first.
func (s *Service) ListLicenses(ctx context.Context, p pagination.Pagination) ([]*OrganizationLicense, *pagination.PageInfo, error) {
	ctx, span := tracer.Start(ctx, "license.ListLicenses")
	defer span.End()

	cursor, err := pagination.DecodeCursor(p.Cursor)
	if err != nil {
		return nil, nil, errutil.ValidationFailed("invalid cursor", err)
	}

	limit := p.Limit
	if limit <= 0 || limit > 250 {
		limit = 10
	}

	rows, err := s.licenses.Find(ctx, &OrganizationLicense{},
		option.WithCursor(cursor),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: map[string]bool{"id": true}}),
		option.WithLimit(limit+1),
	)
	if err != nil {
		logger(ctx).Error("failed to list licenses", zap.Error(err))
		return nil, nil, loadError(err)
	}

	page, info, err := pagination.BuildCursorPageInfo(rows, limit, func(l *OrganizationLicense) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339Nano), ID: l.ID}
	})
	if err != nil {
		return nil, nil, errutil.Internal("failed to build page cursor", err)
	}
	return page, info, nil
}

// LicenseUpdate is a partial update; nil fields are left untouched. Tool
// grants and seat counts have dedicated operations.
type LicenseUpdate struct {
	EntityType       *EntityType      `json:"entityType,omitempty"`
	EntityName       *string          `json:"entityName,omitempty"`
	MedicaidRegion   *MedicaidRegion  `json:"medicaidRegion,omitempty"`
	Status           *Status          `json:"status,omitempty"`
	BillingCycle     *BillingCycle    `json:"billingCycle,omitempty"`
	PricePerUserBase *decimal.Decimal `json:"pricePerUserBase,omitempty"`
	StartDate        *time.Time       `json:"startDate,omitempty"`
	EndDate          *time.Time       `json:"endDate,omitempty"`
	TrialEndDate     *time.Time       `json:"trialEndDate,omitempty"`
	NextBillingDate  *time.Time       `json:"nextBillingDate,omitempty"`
	PaymentMethod    *PaymentMethod   `json:"paymentMethod,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

func (u LicenseUpdate) apply(l *OrganizationLicense) {
	if u.EntityType != nil {
		l.EntityType = *u.EntityType
	}
	if u.EntityName != nil {
		l.EntityName = *u.EntityName
	}
	if u.MedicaidRegion != nil {
		l.MedicaidRegion = u.MedicaidRegion
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.BillingCycle != nil {
		l.BillingCycle = *u.BillingCycle
	}
	if u.PricePerUserBase != nil {
		l.PricePerUserBase = *u.PricePerUserBase
	}
	if u.StartDate != nil {
		l.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		l.EndDate = u.EndDate
	}
	if u.TrialEndDate != nil {
		l.TrialEndDate = u.TrialEndDate
	}
	if u.NextBillingDate != nil {
		l.NextBillingDate = u.NextBillingDate
	}
	if u.PaymentMethod != nil {
		l.PaymentMethod = u.PaymentMethod
	}
	if u.Notes != nil {
		l.Notes = *u.Notes
	}
}

// UpdateLicense applies a partial update and appends one "updated" entry
// with before and after snapshots.
func (s *Service) UpdateLicense(ctx context.Context, licenseID string, upd LicenseUpdate, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.UpdateLicense", trace.WithAttributes(attribute.String("license.id", licenseID)))
	defer span.End()

	if err := actor.validate(); err != nil {
		return err
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		before := snapshot(l)
		wasUsable := l.Status.Usable()

		upd.apply(l)
		if upd.Status != nil && !wasUsable && l.Status.Usable() {
			if err := s.ensureNoOtherUsable(ctx, tx, l.EntityID, l.ID); err != nil {
				return nil, err
			}
		}
		l.TotalMonthlyCost = ComputeCost(l.ToolLicenses, l.BillingCycle)
		s.touch(l, actor)

		return &LicenseChangeLog{
			ChangeType:    ChangeUpdated,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			PreviousValue: before,
			NewValue:      snapshot(l),
			Description:   "License updated",
		}, nil
	})
	if err != nil {
		logger(ctx).Error("failed to update license", zap.Error(err), zap.String("license_id", licenseID))
	}
	return err
}

// GrantToolAccess enables tool with maxUsers seats at the list price,
// replacing any previous entry for the tool.
func (s *Service) GrantToolAccess(ctx context.Context, licenseID string, tool PlatformTool, maxUsers int, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.GrantToolAccess", trace.WithAttributes(
		attribute.String("license.id", licenseID),
		attribute.String("license.tool", string(tool)),
	))
	defer span.End()

	if err := actor.validate(); err != nil {
		return err
	}
	if !tool.Valid() {
		return errutil.ValidationFailed(fmt.Sprintf("unknown tool %q", tool), nil)
	}
	if maxUsers <= 0 {
		return errutil.ValidationFailed("maxUsers must be positive", nil)
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		open, err := s.countOpenSessions(ctx, tx, l.ID, tool)
		if err != nil {
			return nil, err
		}
		if open > int64(maxUsers) {
			return nil, errutil.ValidationFailed(
				fmt.Sprintf("%s has %d open sessions, more than maxUsers %d", tool, open, maxUsers), nil)
		}

		now := s.now()
		entry := ToolLicense{
			Tool:         tool,
			IsEnabled:    true,
			MaxUsers:     maxUsers,
			CurrentUsers: int(open),
			PricePerUser: DefaultToolPrice(tool),
			EnabledAt:    &now,
		}

		var previous any
		if existing := l.FindTool(tool); existing != nil {
			previous = *existing
			*existing = entry
		} else {
			l.ToolLicenses = append(l.ToolLicenses, entry)
		}
		l.TotalMonthlyCost = ComputeCost(l.ToolLicenses, l.BillingCycle)
		s.touch(l, actor)

		return &LicenseChangeLog{
			ChangeType:    ChangeToolAdded,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			PreviousValue: snapshot(previous),
			NewValue:      snapshot(entry),
			Description:   fmt.Sprintf("Granted access to %s for %d users", tool, maxUsers),
		}, nil
	})
	if err != nil {
		logger(ctx).Error("failed to grant tool access", zap.Error(err),
			zap.String("license_id", licenseID), zap.String("tool", string(tool)))
	}
	return err
}

// RevokeToolAccess disables the tool entry, keeping it for history.
func (s *Service) RevokeToolAccess(ctx context.Context, licenseID string, tool PlatformTool, actor Actor) error {
	ctx, span := tracer.Start(ctx, "license.RevokeToolAccess", trace.WithAttributes(
		attribute.String("license.id", licenseID),
		attribute.String("license.tool", string(tool)),
	))
	defer span.End()

	if err := actor.validate(); err != nil {
		return err
	}
	if !tool.Valid() {
		return errutil.ValidationFailed(fmt.Sprintf("unknown tool %q", tool), nil)
	}

	err := s.mutate(ctx, licenseID, func(tx *gorm.DB, l *OrganizationLicense) (*LicenseChangeLog, error) {
		entry := l.FindTool(tool)
		if entry == nil {
			return nil, errutil.NotFound(fmt.Sprintf("%s is not granted on license %s", tool, licenseID), nil)
		}

		previous := *entry
		now := s.now()
		entry.IsEnabled = false
		entry.DisabledAt = &now
		l.TotalMonthlyCost = ComputeCost(l.ToolLicenses, l.BillingCycle)
		s.touch(l, actor)

		return &LicenseChangeLog{
			ChangeType:    ChangeToolRemoved,
			ChangedBy:     actor.ID,
			ChangedByName: actor.Name,
			PreviousValue: snapshot(previous),
			NewValue:      snapshot(*entry),
			Description:   fmt.Sprintf("Revoked access to %s", tool),
		}, nil
	})
	if err != nil {
		logger(ctx).Error("failed to revoke tool access", zap.Error(err),
			zap.String("license_id", licenseID), zap.String("tool", string(tool)))
	}
	return err
}

// GetUserToolAccess evaluates every tool for the user against the
// organization's usable license. It is recomputed on every call.
func (s *Service) GetUserToolAccess(ctx context.Context, userID, organizationID string) (*UserToolAccess, error) {
	ctx, span := tracer.Start(ctx, "license.GetUserToolAccess", trace.WithAttributes(
		attribute.String("license.organization_id", organizationID),
	))
	defer span.End()

	l, err := s.GetLicenseByEntity(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		// An expired, suspended or cancelled license still explains the denial.
		if l, err = s.newestLicense(ctx, organizationID); err != nil {
			return nil, err
		}
	}

	access := Evaluate(userID, organizationID, l, s.now())
	for _, t := range access.AvailableTools {
		s.metrics.decision(t)
	}
	return access, nil
}

func dedupe(in []string) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
