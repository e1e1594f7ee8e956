package pipeline

import (
	"context"

	"github.com/voicedraft/voicedraft/internal/models"
)

// UsageLimiter is the usage-limit collaborator: a binary allow/deny gate
// plus a counter. An allow decision is not a reservation; callers re-check
// inside the job before final commit.
type UsageLimiter interface {
	CheckAllowed(ctx context.Context, ownerID, action string) (*models.UsageDecision, error)
	Increment(ctx context.Context, ownerID, action string, amount int) error
}

// UsageStore is the persistence behind PlanLimiter.
type UsageStore interface {
	GetCount(ctx context.Context, ownerID, action string) (int, error)
	Increment(ctx context.Context, ownerID, action string, amount int) error
}

// PlanLimiter enforces fixed per-period limits for a single plan.
type PlanLimiter struct {
	store  UsageStore
	plan   string
	limits map[string]int
}

// DefaultLimits are the per-month allowances on the standard plan.
func DefaultLimits() map[string]int {
	return map[string]int{
		models.ActionGeneratePost: 60,
		models.ActionRegenerate:   120,
		models.ActionDiscovery:    30,
	}
}

func NewPlanLimiter(store UsageStore, plan string, limits map[string]int) *PlanLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &PlanLimiter{store: store, plan: plan, limits: limits}
}

func (l *PlanLimiter) CheckAllowed(ctx context.Context, ownerID, action string) (*models.UsageDecision, error) {
	limit, known := l.limits[action]
	if !known {
		return &models.UsageDecision{Allowed: true, Plan: l.plan}, nil
	}

	used, err := l.store.GetCount(ctx, ownerID, action)
	if err != nil {
		return nil, err
	}
	return &models.UsageDecision{
		Allowed: used < limit,
		Plan:    l.plan,
		Used:    used,
		Limit:   limit,
	}, nil
}

func (l *PlanLimiter) Increment(ctx context.Context, ownerID, action string, amount int) error {
	return l.store.Increment(ctx, ownerID, action, amount)
}
