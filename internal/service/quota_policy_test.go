package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/querydeck/internal/domain/uuid"
	"github.com/lllypuk/querydeck/internal/service"
)

func TestQuotaPolicy_Resolve_UnknownUser(t *testing.T) {
	store := newMemStore()
	policy := service.NewQuotaPolicy(store)

	quota, err := policy.Resolve(context.Background(), uuid.NewUUID())

	require.NoError(t, err)
	assert.Equal(t, 0, quota.MaxQueryCount, "no plan means creation is blocked")
	assert.Equal(t, service.DefaultRevisionLimit, quota.RevisionLimit)
}

func TestQuotaPolicy_Resolve_NoPlanAssigned(t *testing.T) {
	f := newFixture(t)
	policy := service.NewQuotaPolicy(f.store)

	// member user exists but has no plan
	quota, err := policy.Resolve(context.Background(), f.member)

	require.NoError(t, err)
	assert.Equal(t, 0, quota.MaxQueryCount)
	assert.Equal(t, service.DefaultRevisionLimit, quota.RevisionLimit)
}

func TestQuotaPolicy_Resolve_PartialPlan(t *testing.T) {
	f := newFixture(t)
	f.setPlan(t, f.member, intPtr(25), nil)
	policy := service.NewQuotaPolicy(f.store)

	quota, err := policy.Resolve(context.Background(), f.member)

	require.NoError(t, err)
	assert.Equal(t, 25, quota.MaxQueryCount)
	assert.Equal(t, service.DefaultRevisionLimit, quota.RevisionLimit, "unset field falls back to default")
}

func TestQuotaPolicy_Resolve_FullPlan(t *testing.T) {
	f := newFixture(t)
	f.setPlan(t, f.member, intPtr(3), intPtr(2))
	policy := service.NewQuotaPolicy(f.store)

	quota, err := policy.Resolve(context.Background(), f.member)

	require.NoError(t, err)
	assert.Equal(t, service.Quota{MaxQueryCount: 3, RevisionLimit: 2}, quota)
}

func TestQuotaPolicy_Resolve_ProviderError(t *testing.T) {
	store := newMemStore()
	store.planErr = errors.New("identity service down")
	policy := service.NewQuotaPolicy(store)

	_, err := policy.Resolve(context.Background(), uuid.NewUUID())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity service down")
}
