package license

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordDecisionsAndMutations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	svc, _ := newTestService(t)
	svc.metrics = m
	ctx := context.Background()

	l := mustCreate(t, svc, activeInput("org-1", 3))
	require.NoError(t, svc.GrantToolAccess(ctx, l.ID, Forms, 1, admin))
	_, err = svc.GetUserToolAccess(ctx, "user-1", "org-1")
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues(string(ChangeCreated))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues(string(ChangeToolAdded))))
	require.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(string(Forms), "true", ReasonGranted)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues(string(Grants), "false", ReasonNotLicensed)))

	// A no-op mutation is not counted.
	require.NoError(t, svc.SetTotalLicensedUsers(ctx, l.ID, 3, admin))
	require.Equal(t, 0.0, testutil.ToFloat64(m.mutations.WithLabelValues(string(ChangeUsersIncreased))))
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.decision(ToolAccess{Tool: Forms})
		m.mutation(ChangeCreated)
	})
}
