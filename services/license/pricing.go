package license

import (
	"github.com/shopspring/decimal"
)

// ToolPricing is the default monthly price per user for each tool.
var ToolPricing = map[PlatformTool]decimal.Decimal{
	Forms:       decimal.NewFromInt(10),
	Datasets:    decimal.NewFromInt(15),
	Reports:     decimal.NewFromInt(12),
	AIAssistant: decimal.NewFromInt(20),
	Grants:      decimal.NewFromInt(18),
	Referrals:   decimal.NewFromInt(8),
	Projects:    decimal.NewFromInt(10),
	Dashboards:  decimal.NewFromInt(15),
}

// DefaultToolPrice returns the list price for tool, zero for unknown tools.
func DefaultToolPrice(tool PlatformTool) decimal.Decimal {
	if p, ok := ToolPricing[tool]; ok {
		return p
	}
	return decimal.Zero
}

type PricingTier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	MinUsers     int             `json:"minUsers"`
	MaxUsers     int             `json:"maxUsers"`
	PricePerUser decimal.Decimal `json:"pricePerUser"`
	Discount     int             `json:"discount,omitempty"`
	Description  string          `json:"description,omitempty"`
}

var DefaultPricingTiers = []PricingTier{
	{ID: "tier_1", Name: "Small Organization", MinUsers: 1, MaxUsers: 10, PricePerUser: decimal.NewFromInt(50), Description: "1-10 users"},
	{ID: "tier_2", Name: "Medium Organization", MinUsers: 11, MaxUsers: 50, PricePerUser: decimal.NewFromInt(45), Discount: 10, Description: "11-50 users (10% discount)"},
	{ID: "tier_3", Name: "Large Organization", MinUsers: 51, MaxUsers: 200, PricePerUser: decimal.NewFromInt(40), Discount: 20, Description: "51-200 users (20% discount)"},
	{ID: "tier_4", Name: "Enterprise", MinUsers: 201, MaxUsers: 999999, PricePerUser: decimal.NewFromInt(35), Discount: 30, Description: "201+ users (30% discount)"},
}

// GetPricingTier returns the tier whose bracket contains userCount, falling
// back to the first tier.
func GetPricingTier(userCount int) PricingTier {
	for _, tier := range DefaultPricingTiers {
		if userCount >= tier.MinUsers && userCount <= tier.MaxUsers {
			return tier
		}
	}
	return DefaultPricingTiers[0]
}

// CycleMultiplier is the number of months billed per cycle. Unknown cycles
// bill monthly.
func CycleMultiplier(cycle BillingCycle) int64 {
	switch cycle {
	case Annual:
		return 12
	case Quarterly:
		return 3
	default:
		return 1
	}
}

// MonthlyToolCost sums maxUsers x pricePerUser over enabled tools.
func MonthlyToolCost(tools []ToolLicense) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tools {
		if !t.IsEnabled {
			continue
		}
		total = total.Add(t.PricePerUser.Mul(decimal.NewFromInt(int64(t.MaxUsers))))
	}
	return total
}

// ComputeCost is the billed amount for one cycle: the monthly tool cost
// scaled by the cycle multiplier. It is the value stored as totalMonthlyCost.
func ComputeCost(tools []ToolLicense, cycle BillingCycle) decimal.Decimal {
	return MonthlyToolCost(tools).Mul(decimal.NewFromInt(CycleMultiplier(cycle)))
}

type Estimate struct {
	Users        int             `json:"users"`
	BillingCycle BillingCycle    `json:"billingCycle"`
	Tier         PricingTier     `json:"tier"`
	MonthlyCost  decimal.Decimal `json:"monthlyCost"`
	CycleCost    decimal.Decimal `json:"cycleCost"`
}

// EstimateCost prices a seat count on the tier table. Display only, never
// used by access evaluation.
func EstimateCost(users int, cycle BillingCycle) Estimate {
	tier := GetPricingTier(users)
	monthly := tier.PricePerUser.Mul(decimal.NewFromInt(int64(users)))
	return Estimate{
		Users:        users,
		BillingCycle: cycle,
		Tier:         tier,
		MonthlyCost:  monthly,
		CycleCost:    monthly.Mul(decimal.NewFromInt(CycleMultiplier(cycle))),
	}
}
