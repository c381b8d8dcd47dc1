package license

import "time"

const (
	ReasonNoActiveLicense = "No active license"
	ReasonNotLicensed     = "Tool not licensed"
	ReasonInactive        = "License expired or inactive"
	ReasonLimitReached    = "User limit reached"
	ReasonGranted         = "Access granted"

	unknownOrganization = "Unknown"
)

type ToolAccess struct {
	Tool      PlatformTool `json:"tool"`
	HasAccess bool         `json:"hasAccess"`
	Reason    string       `json:"reason"`
}

// UserToolAccess is computed on every read and never stored.
type UserToolAccess struct {
	UserID           string       `json:"userId"`
	OrganizationID   string       `json:"organizationId"`
	OrganizationName string       `json:"organizationName"`
	OrganizationType EntityType   `json:"organizationType"`
	AvailableTools   []ToolAccess `json:"availableTools"`
	LicenseStatus    Status       `json:"licenseStatus"`
	LicenseExpiresAt *time.Time   `json:"licenseExpiresAt,omitempty"`
	ComputedAt       time.Time    `json:"computedAt"`
}

// Tool returns the decision for tool.
func (a *UserToolAccess) Tool(tool PlatformTool) (ToolAccess, bool) {
	for _, t := range a.AvailableTools {
		if t.Tool == tool {
			return t, true
		}
	}
	return ToolAccess{}, false
}

// HasToolAccess reports whether access lists tool as allowed.
func HasToolAccess(access *UserToolAccess, tool PlatformTool) bool {
	if access == nil {
		return false
	}
	t, ok := access.Tool(tool)
	return ok && t.HasAccess
}

// EvaluateTool applies the access rules for one tool, in order: tool entry,
// license status and end date, tool seat cap.
func EvaluateTool(l *OrganizationLicense, tool PlatformTool, now time.Time) ToolAccess {
	entry := l.FindTool(tool)
	switch {
	case entry == nil || !entry.IsEnabled:
		return ToolAccess{Tool: tool, Reason: ReasonNotLicensed}
	case !l.Status.Usable() || l.Expired(now):
		return ToolAccess{Tool: tool, Reason: ReasonInactive}
	case entry.CurrentUsers >= entry.MaxUsers:
		return ToolAccess{Tool: tool, Reason: ReasonLimitReached}
	default:
		return ToolAccess{Tool: tool, HasAccess: true, Reason: ReasonGranted}
	}
}

// Evaluate computes the decision for every tool. A nil license denies all
// tools and reports the license as Expired.
func Evaluate(userID, organizationID string, l *OrganizationLicense, now time.Time) *UserToolAccess {
	out := &UserToolAccess{
		UserID:         userID,
		OrganizationID: organizationID,
		AvailableTools: make([]ToolAccess, 0, len(AllTools)),
		ComputedAt:     now,
	}

	if l == nil {
		out.OrganizationName = unknownOrganization
		out.OrganizationType = NonprofitOrganization
		out.LicenseStatus = StatusExpired
		for _, tool := range AllTools {
			out.AvailableTools = append(out.AvailableTools, ToolAccess{Tool: tool, Reason: ReasonNoActiveLicense})
		}
		return out
	}

	out.OrganizationName = l.EntityName
	out.OrganizationType = l.EntityType
	out.LicenseStatus = l.Status
	out.LicenseExpiresAt = l.EndDate
	for _, tool := range AllTools {
		out.AvailableTools = append(out.AvailableTools, EvaluateTool(l, tool, now))
	}
	return out
}
