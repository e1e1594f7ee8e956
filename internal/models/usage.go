package models

import "time"

// Billable actions tracked per period.
const (
	ActionGeneratePost = "generate_post"
	ActionRegenerate   = "regenerate"
	ActionDiscovery    = "discovery"
)

// UsageCounter tracks how many times an action ran in the current billing
// period. Best-effort: an allow decision is not a reservation.
type UsageCounter struct {
	OwnerID     string    `json:"owner_id"`
	Action      string    `json:"action"`
	PeriodStart time.Time `json:"period_start"`
	Count       int       `json:"count"`
}

// UsageDecision is the result of a limit check.
type UsageDecision struct {
	Allowed bool   `json:"allowed"`
	Plan    string `json:"plan"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}
