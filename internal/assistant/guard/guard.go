// Package guard gates assistant intents on plan entitlement, monthly usage
// quota and row ownership. All checks run before any store mutation.
package guard

import (
	"context"
	"fmt"
	"time"

	"gigline/internal/assistant/intent"
	"gigline/internal/config"
	"gigline/internal/domain"
	"gigline/internal/repo"
)

// EntitlementDeniedError means the user's plan tier does not include the
// assistant at all, regardless of quota.
type EntitlementDeniedError struct {
	Plan     string
	Required string
}

func (e EntitlementDeniedError) Error() string {
	return fmt.Sprintf("plan %s does not include the assistant; upgrade to %s", e.Plan, e.Required)
}

// QuotaExceededError means the monthly action ceiling was reached.
type QuotaExceededError struct {
	Used  int
	Limit int
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly action limit reached (%d/%d)", e.Used, e.Limit)
}

// Remaining is always zero or negative headroom expressed as zero; kept as
// a method so callers can surface "0 remaining" without recomputing.
func (e QuotaExceededError) Remaining() int {
	if e.Limit > e.Used {
		return e.Limit - e.Used
	}
	return 0
}

// PermissionDeniedError means a non-administrator tried to act on a
// resource owned by someone else.
type PermissionDeniedError struct {
	Resource intent.Resource
}

func (e PermissionDeniedError) Error() string {
	return fmt.Sprintf("you can only modify your own %ss", e.Resource)
}

// Decision is the outcome of an allowed authorization check.
type Decision struct {
	Remaining int
	// Warning is set when usage crossed 90% of the ceiling; the reply
	// channel carries it alongside the normal response text.
	Warning string
}

type Guard struct {
	Repo   repo.Repo
	Config *config.Config
	Now    func() time.Time
}

func New(r repo.Repo, cfg *config.Config) Guard {
	return Guard{Repo: r, Config: cfg, Now: time.Now}
}

func (g Guard) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Authorize checks entitlement, then quota, then ownership permission.
// ownerID is the owner of the targeted row as supplied by the caller; the
// guard does not re-derive it.
func (g Guard) Authorize(ctx context.Context, user domain.User, in intent.Intent, ownerID string) (Decision, error) {
	if user.Plan != g.Config.Assistant.EntitledPlan {
		return Decision{}, EntitlementDeniedError{Plan: user.Plan, Required: g.Config.Assistant.EntitledPlan}
	}

	plan, ok := g.Config.Plans[user.Plan]
	if !ok {
		return Decision{}, EntitlementDeniedError{Plan: user.Plan, Required: g.Config.Assistant.EntitledPlan}
	}
	used, err := g.Repo.MonthlyUsage(ctx, user.ID, g.now())
	if err != nil {
		return Decision{}, fmt.Errorf("usage lookup: %w", err)
	}
	if used >= plan.MonthlyActions {
		return Decision{}, QuotaExceededError{Used: used, Limit: plan.MonthlyActions}
	}

	if (in.Operation == intent.OpUpdate || in.Operation == intent.OpDelete) && !user.IsAdmin() {
		if ownerID != "" && ownerID != user.ID {
			return Decision{}, PermissionDeniedError{Resource: in.Resource}
		}
	}

	d := Decision{Remaining: plan.MonthlyActions - used}
	if used*10 >= plan.MonthlyActions*9 {
		d.Warning = fmt.Sprintf("you have used %d of your %d monthly actions", used, plan.MonthlyActions)
	}
	return d, nil
}
