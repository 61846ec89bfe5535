package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/lllypuk/querydeck/internal/domain/errs"
	"github.com/lllypuk/querydeck/internal/domain/uuid"
)

// DefaultRevisionLimit is the retained-revision ceiling applied when the plan
// does not set one.
const DefaultRevisionLimit = 10

// Quota is a fully resolved set of plan ceilings. MaxQueryCount defaults to
// zero, so a user without an explicit plan cannot create items at all.
type Quota struct {
	MaxQueryCount int
	RevisionLimit int
}

// QuotaPolicy resolves effective quotas from the external plan provider.
// All defaulting lives here and nowhere else.
//
// Known limitation, kept on purpose: quotas are always evaluated against the
// acting user's own plan, even when they mutate items inside a workspace they
// are merely a team member of. The workspace owner's plan would be the
// correct reference; changing that is tracked as an open product issue.
type QuotaPolicy struct {
	plans PlanProvider
}

// NewQuotaPolicy creates a QuotaPolicy backed by plans.
func NewQuotaPolicy(plans PlanProvider) *QuotaPolicy {
	return &QuotaPolicy{plans: plans}
}

// Resolve returns the effective quota for userID. A missing user or missing
// plan resolves to the defaults rather than an error.
func (p *QuotaPolicy) Resolve(ctx context.Context, userID uuid.UUID) (Quota, error) {
	quota := Quota{
		MaxQueryCount: 0,
		RevisionLimit: DefaultRevisionLimit,
	}

	plan, err := p.plans.GetPlan(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return quota, nil
		}
		return Quota{}, fmt.Errorf("resolve plan for user %s: %w", userID, err)
	}

	if plan == nil {
		return quota, nil
	}

	if plan.MaxQueryCount != nil {
		quota.MaxQueryCount = *plan.MaxQueryCount
	}
	if plan.QueryRevisionLimit != nil {
		quota.RevisionLimit = *plan.QueryRevisionLimit
	}

	return quota, nil
}
