package license

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chwone-controlplane/pkg/config"
	"chwone-controlplane/pkg/db/option"
	"chwone-controlplane/pkg/errutil"
	"chwone-controlplane/pkg/repository"
	"chwone-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var admin = Actor{ID: "admin-1", Name: "Grace Admin"}

// clock is a settable time source for the service.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()

	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Licensing = config.LicensingConfig{
		IncludeTrialInEntityLookup: true,
		UsageLogLimit:              100,
		MaxUpdateRetries:           3,
		ExpirySweepHour:            1,
	}

	svc := NewService(ServiceParams{DB: db, Node: node, Config: cfg})
	c := newClock()
	svc.now = c.Now
	return svc, c
}

func activeInput(entityID string, seats int) CreateLicenseInput {
	return CreateLicenseInput{
		EntityType:         NonprofitOrganization,
		EntityID:           entityID,
		EntityName:         "Harbor Health Workers",
		Status:             StatusActive,
		TotalLicensedUsers: seats,
		BillingCycle:       Monthly,
	}
}

func mustCreate(t *testing.T, svc *Service, in CreateLicenseInput) *OrganizationLicense {
	t.Helper()
	id, err := svc.CreateLicense(context.Background(), in, admin)
	require.NoError(t, err)
	l, err := svc.GetLicense(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func mustGet(t *testing.T, svc *Service, id string) *OrganizationLicense {
	t.Helper()
	l, err := svc.GetLicense(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func requireStatus(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()
	require.Error(t, err)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %T: %v", err, err)
	require.Equal(t, want, be.Status(), be.Error())
}

func changeTypes(t *testing.T, svc *Service, id string) []ChangeType {
	t.Helper()
	history, err := svc.GetChangeHistory(context.Background(), id)
	require.NoError(t, err)
	out := make([]ChangeType, 0, len(history))
	for _, h := range history {
		out = append(out, h.ChangeType)
	}
	return out
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, resourceID string, resource any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	batchUpdateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}
