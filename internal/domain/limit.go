package domain

// Limit value types.
const (
	LimitValueInt    = "int"
	LimitValueString = "string"
)

// GlobalRegion is the region key for limits that do not vary by region.
const GlobalRegion = "global"

// Well-known limit names consulted by the service layer.
const (
	LimitCreateAccount      = "create_account"
	LimitPolicyVersions     = "max_managed_policy_versions"
	LimitAccessKeysPerUser  = "max_access_keys_per_user"
	LimitMaxSessionDuration = "max_session_duration_seconds"

	LimitServiceIAM           = "iam"
	LimitServiceSTS           = "sts"
	LimitServiceOrganizations = "organizations"
)

// LimitDefinition is a named quota with a default and bounds.
type LimitDefinition struct {
	ID            int64
	ServiceName   string
	LimitName     string
	Description   string
	ValueType     string // LimitValueInt or LimitValueString
	DefaultInt    *int
	DefaultString *string
	MinValue      *int
	MaxValue      *int
}

// AccountLimit overrides a limit for one account in one region.
type AccountLimit struct {
	AccountID   string
	LimitID     int64
	Region      string
	IntValue    *int
	StringValue *string
}

// PutAccountLimitRequest sets an override.
type PutAccountLimitRequest struct {
	Region   string // defaults to GlobalRegion
	IntValue *int
}

// Validate checks that the request is well-formed.
func (r *PutAccountLimitRequest) Validate() error {
	if r.Region == "" {
		r.Region = GlobalRegion
	}
	if r.IntValue == nil {
		return ErrValidation("int value is required")
	}
	return nil
}
