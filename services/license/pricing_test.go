package license

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeCost(t *testing.T) {
	tools := []ToolLicense{
		{Tool: Forms, IsEnabled: true, MaxUsers: 3, PricePerUser: decimal.NewFromInt(10)},
		{Tool: Datasets, IsEnabled: true, MaxUsers: 2, PricePerUser: decimal.NewFromInt(15)},
		{Tool: Reports, IsEnabled: false, MaxUsers: 50, PricePerUser: decimal.NewFromInt(12)},
	}

	require.True(t, decimal.NewFromInt(60).Equal(MonthlyToolCost(tools)))
	require.True(t, decimal.NewFromInt(60).Equal(ComputeCost(tools, Monthly)))
	require.True(t, decimal.NewFromInt(180).Equal(ComputeCost(tools, Quarterly)))
	require.True(t, decimal.NewFromInt(720).Equal(ComputeCost(tools, Annual)))
	require.True(t, decimal.NewFromInt(60).Equal(ComputeCost(tools, BillingCycle("Weekly"))))
}

func TestComputeCostOrderIndependent(t *testing.T) {
	a := []ToolLicense{
		{Tool: Forms, IsEnabled: true, MaxUsers: 7, PricePerUser: decimal.RequireFromString("9.99")},
		{Tool: Grants, IsEnabled: true, MaxUsers: 3, PricePerUser: decimal.RequireFromString("18.5")},
		{Tool: Referrals, IsEnabled: true, MaxUsers: 11, PricePerUser: decimal.RequireFromString("0.1")},
	}
	b := []ToolLicense{a[2], a[0], a[1]}

	require.True(t, ComputeCost(a, Annual).Equal(ComputeCost(b, Annual)))
	require.Equal(t, "379.59", ComputeCost(a, Quarterly).StringFixed(2))
}

func TestComputeCostEmpty(t *testing.T) {
	require.True(t, ComputeCost(nil, Annual).IsZero())
}

func TestDefaultToolPrice(t *testing.T) {
	require.True(t, decimal.NewFromInt(20).Equal(DefaultToolPrice(AIAssistant)))
	require.True(t, decimal.NewFromInt(8).Equal(DefaultToolPrice(Referrals)))
	require.True(t, DefaultToolPrice(PlatformTool("Chat")).IsZero())

	for _, tool := range AllTools {
		require.True(t, DefaultToolPrice(tool).IsPositive(), tool)
	}
}

func TestGetPricingTier(t *testing.T) {
	tests := []struct {
		users int
		want  string
	}{
		{0, "tier_1"},
		{1, "tier_1"},
		{10, "tier_1"},
		{11, "tier_2"},
		{50, "tier_2"},
		{51, "tier_3"},
		{200, "tier_3"},
		{201, "tier_4"},
		{5000, "tier_4"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, GetPricingTier(tt.users).ID, "users=%d", tt.users)
	}
}

func TestEstimateCost(t *testing.T) {
	est := EstimateCost(20, Annual)

	require.Equal(t, "tier_2", est.Tier.ID)
	require.True(t, decimal.NewFromInt(900).Equal(est.MonthlyCost))
	require.True(t, decimal.NewFromInt(10800).Equal(est.CycleCost))
}
