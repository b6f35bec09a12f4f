package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/free99/internal/model"
)

func TestListingRepository_CreateKeepsTagOrderAndLogsEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("l1", "u1", 0, "lamp", "desk", "cheap")))

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lamp", "desk", "cheap"}, got.TagNames())
	assert.Equal(t, model.ListingStatusActive, got.Status)
	assert.Nil(t, got.ClaimedByUserID)

	events, err := repo.ListEvents(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventListingCreated, events[0].EventType)
	assert.Equal(t, "u1", events[0].ActorID)
}

func TestListingRepository_CreateKeepsFalseBooleans(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	ctx := context.Background()

	l := newListing("l1", "u1", 0)
	l.PickupOnly = false
	l.DeliveryAvailable = true
	require.NoError(t, repo.Create(ctx, l))
	assert.False(t, l.PickupOnly)

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.False(t, got.PickupOnly)
	assert.True(t, got.DeliveryAvailable)

	require.NoError(t, repo.Create(ctx, newListing("l2", "u1", time.Minute)))
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].PickupOnly)
	assert.False(t, all[0].DeliveryAvailable)
	assert.False(t, all[1].PickupOnly)
	assert.True(t, all[1].DeliveryAvailable)
}

func TestListingRepository_GetByIDMissing(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListingRepository_ListOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newListing("a", "u1", 0)))
	require.NoError(t, repo.Create(ctx, newListing("c", "u2", time.Minute)))
	// same timestamp as "c": tie broken by id DESC
	require.NoError(t, repo.Create(ctx, newListing("d", "u1", time.Minute)))
	require.NoError(t, repo.Create(ctx, newListing("b", "u1", 2*time.Minute)))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c", "a"}, listingIDs(all))

	mine, err := repo.ListByPoster(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a"}, listingIDs(mine))

	require.NoError(t, repo.Claim(ctx, "a", "u3", baseTime.Add(time.Hour)))
	require.NoError(t, repo.Claim(ctx, "c", "u3", baseTime.Add(time.Hour)))
	claimed, err := repo.ListByClaimant(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, listingIDs(claimed))
}

func TestListingRepository_ClaimSetsStateAtomically(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newListing("l1", "u1", 0)))

	require.NoError(t, repo.Claim(ctx, "l1", "u2", baseTime.Add(time.Minute)))

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedByUserID)
	assert.Equal(t, "u2", *got.ClaimedByUserID)

	claims, err := repo.ClaimsForListings(ctx, []string{"l1"})
	require.NoError(t, err)
	require.Len(t, claims["l1"], 1)
	assert.Equal(t, model.ClaimStatusAccepted, claims["l1"][0].Status)

	events, err := repo.ListEvents(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventListingClaimed, events[1].EventType)
	assert.Equal(t, "u2", events[1].ActorID)
}

func TestListingRepository_SecondClaimConflictsWithoutMutation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newListing("l1", "u1", 0)))
	require.NoError(t, repo.Claim(ctx, "l1", "u2", baseTime))

	err := repo.Claim(ctx, "l1", "u3", baseTime.Add(time.Second))
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.ErrorIs(t, err, ErrConflict)

	// the winner retrying hits the same conflict, not a unique-index error
	assert.ErrorIs(t, repo.Claim(ctx, "l1", "u2", baseTime.Add(time.Second)), ErrConflict)

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "u2", *got.ClaimedByUserID)

	counts, err := repo.ClaimCounts(ctx, []string{"l1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["l1"])
}

func TestListingRepository_ClaimClosedListing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	l := newListing("l1", "u1", 0)
	require.NoError(t, repo.Create(ctx, l))
	require.NoError(t, db.Model(&model.Listing{}).Where("id = ?", "l1").Update("status", model.ListingStatusClosed).Error)

	assert.ErrorIs(t, repo.Claim(ctx, "l1", "u2", baseTime), ErrConflict)

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClosed, got.Status)
	assert.Nil(t, got.ClaimedByUserID)
}

func TestListingRepository_ClaimMissingListing(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t))
	assert.ErrorIs(t, repo.Claim(context.Background(), "ghost", "u2", baseTime), ErrNotFound)
}

func TestListingRepository_ConcurrentClaimsExactlyOneWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newListing("l1", "poster", 0)))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Claim(ctx, "l1", fmt.Sprintf("claimant-%02d", i), baseTime.Add(time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)

	var accepted int64
	require.NoError(t, db.Model(&model.Claim{}).
		Where("listing_id = ? AND status = ?", "l1", model.ClaimStatusAccepted).
		Count(&accepted).Error)
	assert.Equal(t, int64(1), accepted)

	got, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusClaimed, got.Status)
	require.NotNil(t, got.ClaimedByUserID)
}

func TestListingRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newListing("l1", "u1", 0, "a", "b")))
	require.NoError(t, repo.Create(ctx, newListing("l2", "u1", 0, "keep")))
	require.NoError(t, repo.Claim(ctx, "l1", "u2", baseTime))

	lid := "l1"
	key := model.ListingKey("l1", "u1", "u2")
	threads := NewThreadRepository(db)
	require.NoError(t, threads.CreateWithParticipants(ctx, &model.Thread{
		ID: "t1", ListingID: &lid, DedupKey: &key, CreatedAt: baseTime, LastMessageAt: baseTime,
	}, []string{"u1", "u2"}))

	require.NoError(t, repo.Delete(ctx, "l1"))

	_, err := repo.GetByID(ctx, "l1")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, m := range []interface{}{&model.ListingTag{}, &model.Claim{}, &model.ListingEvent{}} {
		var cnt int64
		require.NoError(t, db.Model(m).Where("listing_id = ?", "l1").Count(&cnt).Error)
		assert.Zero(t, cnt)
	}

	th, err := threads.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, th.ListingID)

	other, err := repo.GetByID(ctx, "l2")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, other.TagNames())

	assert.ErrorIs(t, repo.Delete(ctx, "l1"), ErrNotFound)
}

func listingIDs(ls []*model.Listing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}
