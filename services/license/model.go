package license

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlatformTool string

const (
	Forms       PlatformTool = "Forms"
	Datasets    PlatformTool = "Datasets"
	Reports     PlatformTool = "Reports"
	AIAssistant PlatformTool = "AI Assistant"
	Grants      PlatformTool = "Grants"
	Referrals   PlatformTool = "Referrals"
	Projects    PlatformTool = "Projects"
	Dashboards  PlatformTool = "Dashboards"
)

// AllTools lists every licensable tool in display order.
var AllTools = []PlatformTool{Forms, Datasets, Reports, AIAssistant, Grants, Referrals, Projects, Dashboards}

func (t PlatformTool) String() string {
	switch t {
	case Forms, Datasets, Reports, AIAssistant, Grants, Referrals, Projects, Dashboards:
		return string(t)
	default:
		return ""
	}
}

func (t PlatformTool) Valid() bool { return t.String() != "" }

type EntityType string

const (
	NonprofitOrganization EntityType = "Nonprofit Organization"
	CHWAssociation        EntityType = "CHW Association"
	MedicaidRegionEntity  EntityType = "Medicaid Region"
)

func (t EntityType) String() string {
	switch t {
	case NonprofitOrganization, CHWAssociation, MedicaidRegionEntity:
		return string(t)
	default:
		return ""
	}
}

func (t EntityType) Valid() bool { return t.String() != "" }

type Status string

const (
	StatusActive    Status = "Active"
	StatusTrial     Status = "Trial"
	StatusExpired   Status = "Expired"
	StatusSuspended Status = "Suspended"
	StatusCancelled Status = "Cancelled"
)

func (s Status) String() string {
	switch s {
	case StatusActive, StatusTrial, StatusExpired, StatusSuspended, StatusCancelled:
		return string(s)
	default:
		return ""
	}
}

func (s Status) Valid() bool { return s.String() != "" }

// Usable reports whether tools may be used under this status.
func (s Status) Usable() bool { return s == StatusActive || s == StatusTrial }

type BillingCycle string

const (
	Monthly   BillingCycle = "Monthly"
	Quarterly BillingCycle = "Quarterly"
	Annual    BillingCycle = "Annual"
)

func (c BillingCycle) String() string {
	switch c {
	case Monthly, Quarterly, Annual:
		return string(c)
	default:
		return ""
	}
}

func (c BillingCycle) Valid() bool { return c.String() != "" }

type MedicaidRegion string

const (
	Region1   MedicaidRegion = "Region 1"
	Region2   MedicaidRegion = "Region 2"
	Region3   MedicaidRegion = "Region 3"
	Region4   MedicaidRegion = "Region 4"
	Region5   MedicaidRegion = "Region 5"
	Region6   MedicaidRegion = "Region 6"
	Statewide MedicaidRegion = "Statewide"
)

func (r MedicaidRegion) String() string {
	switch r {
	case Region1, Region2, Region3, Region4, Region5, Region6, Statewide:
		return string(r)
	default:
		return ""
	}
}

func (r MedicaidRegion) Valid() bool { return r.String() != "" }

type ChangeType string

const (
	ChangeCreated        ChangeType = "created"
	ChangeUpdated        ChangeType = "updated"
	ChangeToolAdded      ChangeType = "tool_added"
	ChangeToolRemoved    ChangeType = "tool_removed"
	ChangeUsersIncreased ChangeType = "users_increased"
	ChangeUsersDecreased ChangeType = "users_decreased"
	ChangeSuspended      ChangeType = "suspended"
	ChangeReactivated    ChangeType = "reactivated"
	ChangeCancelled      ChangeType = "cancelled"
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreated, ChangeUpdated, ChangeToolAdded, ChangeToolRemoved,
		ChangeUsersIncreased, ChangeUsersDecreased, ChangeSuspended, ChangeReactivated, ChangeCancelled:
		return string(c)
	default:
		return ""
	}
}

func (c ChangeType) Valid() bool { return c.String() != "" }

type PaymentType string

const (
	PaymentCreditCard    PaymentType = "credit_card"
	PaymentInvoice       PaymentType = "invoice"
	PaymentPurchaseOrder PaymentType = "purchase_order"
)

func (p PaymentType) String() string {
	switch p {
	case PaymentCreditCard, PaymentInvoice, PaymentPurchaseOrder:
		return string(p)
	default:
		return ""
	}
}

func (p PaymentType) Valid() bool { return p.String() != "" }

type PaymentMethod struct {
	Type         PaymentType `json:"type" validate:"enum"`
	LastFour     string      `json:"lastFour,omitempty" validate:"omitempty,len=4,numeric"`
	BillingEmail string      `json:"billingEmail,omitempty" validate:"omitempty,email"`
}

// ToolLicense is one per-tool grant embedded in a license.
type ToolLicense struct {
	Tool         PlatformTool    `json:"tool" validate:"enum"`
	IsEnabled    bool            `json:"isEnabled"`
	MaxUsers     int             `json:"maxUsers" validate:"gte=0"`
	CurrentUsers int             `json:"currentUsers" validate:"gte=0"`
	PricePerUser decimal.Decimal `json:"pricePerUser"`
	EnabledAt    *time.Time      `json:"enabledAt,omitempty"`
	DisabledAt   *time.Time      `json:"disabledAt,omitempty"`
}

type OrganizationLicense struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
	Version   int64     `gorm:"column:version;not null;default:1" json:"version"`

	EntityType     EntityType      `gorm:"column:entity_type;type:varchar(40);not null" json:"entityType" validate:"enum"`
	EntityID       string          `gorm:"column:entity_id;type:varchar(64);index:idx_license_entity_status;not null" json:"entityId" validate:"required"`
	EntityName     string          `gorm:"column:entity_name;not null" json:"entityName" validate:"required"`
	MedicaidRegion *MedicaidRegion `gorm:"column:medicaid_region;type:varchar(20)" json:"medicaidRegion,omitempty" validate:"omitempty,enum"`
	Status         Status          `gorm:"column:status;type:varchar(20);index:idx_license_entity_status;not null" json:"status" validate:"enum"`

	ToolLicenses datatypes.JSONSlice[ToolLicense] `gorm:"column:tool_licenses" json:"toolLicenses" validate:"dive"`

	TotalLicensedUsers int                         `gorm:"column:total_licensed_users;not null" json:"totalLicensedUsers" validate:"gte=0"`
	ActiveUsers        datatypes.JSONSlice[string] `gorm:"column:active_users" json:"activeUsers" validate:"dive,required"`

	BillingCycle     BillingCycle    `gorm:"column:billing_cycle;type:varchar(20);not null" json:"billingCycle" validate:"enum"`
	PricePerUserBase decimal.Decimal `gorm:"column:price_per_user_base;type:decimal(12,2)" json:"pricePerUserBase"`
	TotalMonthlyCost decimal.Decimal `gorm:"column:total_monthly_cost;type:decimal(14,2)" json:"totalMonthlyCost"`

	StartDate       time.Time  `gorm:"column:start_date;not null" json:"startDate"`
	EndDate         *time.Time `gorm:"column:end_date" json:"endDate,omitempty"`
	TrialEndDate    *time.Time `gorm:"column:trial_end_date" json:"trialEndDate,omitempty"`
	NextBillingDate *time.Time `gorm:"column:next_billing_date" json:"nextBillingDate,omitempty"`

	PaymentMethod *PaymentMethod `gorm:"column:payment_method;serializer:json" json:"paymentMethod,omitempty" validate:"omitempty"`

	GrantedBy      string     `gorm:"column:granted_by;not null" json:"grantedBy" validate:"required"`
	GrantedAt      time.Time  `gorm:"column:granted_at" json:"grantedAt"`
	LastModifiedBy string     `gorm:"column:last_modified_by" json:"lastModifiedBy,omitempty"`
	LastModifiedAt *time.Time `gorm:"column:last_modified_at" json:"lastModifiedAt,omitempty"`

	Notes string `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (OrganizationLicense) TableName() string { return "organization_licenses" }

// FindTool returns the entry for tool, or nil.
func (l *OrganizationLicense) FindTool(tool PlatformTool) *ToolLicense {
	for i := range l.ToolLicenses {
		if l.ToolLicenses[i].Tool == tool {
			return &l.ToolLicenses[i]
		}
	}
	return nil
}

func (l *OrganizationLicense) HasActiveUser(userID string) bool {
	for _, u := range l.ActiveUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// Expired reports whether the license has an end date before now.
func (l *OrganizationLicense) Expired(now time.Time) bool {
	return l.EndDate != nil && l.EndDate.Before(now)
}

func (l *OrganizationLicense) BeforeSave(tx *gorm.DB) error {
	if l.ToolLicenses == nil {
		l.ToolLicenses = datatypes.JSONSlice[ToolLicense]{}
	}
	if l.ActiveUsers == nil {
		l.ActiveUsers = datatypes.JSONSlice[string]{}
	}
	return l.Validate()
}

func (l *OrganizationLicense) AfterFind(tx *gorm.DB) error {
	return l.Validate()
}

type LicenseUsageLog struct {
	ID              string       `gorm:"column:id;primaryKey" json:"id"`
	LicenseID       string       `gorm:"column:license_id;type:varchar(64);index:idx_usage_license_ts;not null" json:"licenseId" validate:"required"`
	EntityID        string       `gorm:"column:entity_id;type:varchar(64);not null" json:"entityId" validate:"required"`
	EntityName      string       `gorm:"column:entity_name" json:"entityName"`
	Tool            PlatformTool `gorm:"column:tool;type:varchar(20);not null" json:"tool" validate:"enum"`
	UserID          string       `gorm:"column:user_id;type:varchar(64);not null" json:"userId" validate:"required"`
	UserName        string       `gorm:"column:user_name" json:"userName"`
	SessionStart    time.Time    `gorm:"column:session_start;not null" json:"sessionStart" validate:"required"`
	SessionEnd      *time.Time   `gorm:"column:session_end" json:"sessionEnd,omitempty"`
	DurationMinutes *int         `gorm:"column:duration_minutes" json:"durationMinutes,omitempty" validate:"omitempty,gte=0"`
	IPAddress       string       `gorm:"column:ip_address;type:varchar(64)" json:"ipAddress,omitempty"`
	UserAgent       string       `gorm:"column:user_agent" json:"userAgent,omitempty"`
	Timestamp       time.Time    `gorm:"column:timestamp;index:idx_usage_license_ts;not null" json:"timestamp"`
}

func (LicenseUsageLog) TableName() string { return "license_usage_logs" }

func (l *LicenseUsageLog) BeforeSave(tx *gorm.DB) error { return l.Validate() }

func (l *LicenseUsageLog) AfterFind(tx *gorm.DB) error { return l.Validate() }

type LicenseChangeLog struct {
	ID            string         `gorm:"column:id;primaryKey" json:"id"`
	LicenseID     string         `gorm:"column:license_id;type:varchar(64);index:idx_change_license_ts;not null" json:"licenseId" validate:"required"`
	EntityID      string         `gorm:"column:entity_id;type:varchar(64);not null" json:"entityId" validate:"required"`
	ChangeType    ChangeType     `gorm:"column:change_type;type:varchar(20);not null" json:"changeType" validate:"enum"`
	ChangedBy     string         `gorm:"column:changed_by;not null" json:"changedBy" validate:"required"`
	ChangedByName string         `gorm:"column:changed_by_name;not null" json:"changedByName" validate:"required"`
	PreviousValue datatypes.JSON `gorm:"column:previous_value" json:"previousValue,omitempty"`
	NewValue      datatypes.JSON `gorm:"column:new_value" json:"newValue,omitempty"`
	Description   string         `gorm:"column:description;type:text" json:"description"`
	Timestamp     time.Time      `gorm:"column:timestamp;index:idx_change_license_ts;not null" json:"timestamp"`
}

func (LicenseChangeLog) TableName() string { return "license_change_logs" }

func (l *LicenseChangeLog) BeforeSave(tx *gorm.DB) error { return l.Validate() }

func (l *LicenseChangeLog) AfterFind(tx *gorm.DB) error { return l.Validate() }

// ToolSession is an open or closed use of one tool by one user. Open
// sessions are what ToolLicense.CurrentUsers counts.
type ToolSession struct {
	ID           string       `gorm:"column:id;primaryKey" json:"id"`
	LicenseID    string       `gorm:"column:license_id;type:varchar(64);index:idx_session_open;not null" json:"licenseId"`
	Tool         PlatformTool `gorm:"column:tool;type:varchar(20);index:idx_session_open;not null" json:"tool"`
	UserID       string       `gorm:"column:user_id;type:varchar(64);not null" json:"userId"`
	UserName     string       `gorm:"column:user_name" json:"userName"`
	IPAddress    string       `gorm:"column:ip_address;type:varchar(64)" json:"ipAddress,omitempty"`
	UserAgent    string       `gorm:"column:user_agent" json:"userAgent,omitempty"`
	SessionStart time.Time    `gorm:"column:session_start;index;not null" json:"sessionStart"`
	SessionEnd   *time.Time   `gorm:"column:session_end;index:idx_session_open" json:"sessionEnd,omitempty"`
	CreatedAt    time.Time    `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"column:updated_at" json:"updatedAt"`
}

func (ToolSession) TableName() string { return "license_tool_sessions" }

func (s *ToolSession) Open() bool { return s.SessionEnd == nil }

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// Job is an execution record of a background license task.
type Job struct {
	ID          string            `gorm:"column:id;primaryKey" json:"id"`
	TaskType    string            `gorm:"column:task_type;type:varchar(100);index;not null" json:"taskType"`
	Status      JobStatus         `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"`
	ErrorMsg    string            `gorm:"column:error_msg;type:text" json:"errorMsg,omitempty"`
	StartedAt   *time.Time        `gorm:"column:started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time        `gorm:"column:completed_at" json:"completedAt,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Job) TableName() string { return "license_jobs" }

// Models lists every table owned by this package, for migrations.
func Models() []any {
	return []any{
		&OrganizationLicense{},
		&LicenseUsageLog{},
		&LicenseChangeLog{},
		&ToolSession{},
		&Job{},
	}
}
