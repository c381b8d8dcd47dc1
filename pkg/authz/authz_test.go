package authz

import (
	"testing"

	"chwone-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	e, err := NewEnforcer(&config.Config{})
	require.NoError(t, err)

	ok, err := e.Enforce(RoleLicenseAdmin, "/v1/licenses/1/tools", "POST")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Enforce(RoleLicenseAdmin, "/v1/licenses/1", "PATCH")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Enforce("viewer", "/v1/licenses", "POST")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.Enforce("", "/v1/licenses", "POST")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.Enforce(RoleLicenseAdmin, "/internal/reset", "POST")
	require.NoError(t, err)
	require.False(t, ok)
}
