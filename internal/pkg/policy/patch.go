package policy

import "fmt"

// Interval bounds for scheduled refresh, in hours (1h to one week).
const (
	MinRefreshIntervalHours = 1
	MaxRefreshIntervalHours = 168
)

// PlanPolicyPatch is an explicit per-field optional update. A nil field means
// "leave unchanged" (plan policy) or "inherit" (workspace override). This
// replaces COALESCE-style partial-update SQL with a typed structure applied
// by the policy layer.
type PlanPolicyPatch struct {
	AccountsLimit               *int  `json:"accounts_limit,omitempty"`
	AllowScheduledRefresh       *bool `json:"allow_scheduled_refresh,omitempty"`
	AllowOAuth                  *bool `json:"allow_oauth,omitempty"`
	DefaultRefreshIntervalHours *int  `json:"default_refresh_interval_hours,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PlanPolicyPatch) IsEmpty() bool {
	return p.AccountsLimit == nil &&
		p.AllowScheduledRefresh == nil &&
		p.AllowOAuth == nil &&
		p.DefaultRefreshIntervalHours == nil
}

// Validate rejects out-of-range values with explicit messages.
func (p PlanPolicyPatch) Validate() error {
	if p.IsEmpty() {
		return fmt.Errorf("patch contains no fields")
	}
	if p.AccountsLimit != nil && *p.AccountsLimit < 0 {
		return fmt.Errorf("accounts_limit must be >= 0, got %d", *p.AccountsLimit)
	}
	if p.DefaultRefreshIntervalHours != nil {
		v := *p.DefaultRefreshIntervalHours
		if v < MinRefreshIntervalHours || v > MaxRefreshIntervalHours {
			return fmt.Errorf("default_refresh_interval_hours must be between %d and %d, got %d",
				MinRefreshIntervalHours, MaxRefreshIntervalHours, v)
		}
	}
	return nil
}
