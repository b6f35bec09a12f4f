package service

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

func findItem(items []*FeedItem, id string) *FeedItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func TestClaimScenario(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", "Ada", true)
	env.addUser(t, "u2", "Grace", true)
	env.addUser(t, "u3", "Linus", true)

	l := env.addListing(t, "u1", "lamp")
	assert.Equal(t, "Ada", l.PostedBy)
	assert.Equal(t, []string{"furniture", "dorm"}, l.Tags)

	feed, err := env.listings.ListFeed(ctx)
	require.NoError(t, err)
	item := findItem(feed, l.ID)
	require.NotNil(t, item)
	assert.Equal(t, int64(0), item.ClaimCount)
	assert.False(t, item.Claimed)
	assert.Equal(t, model.ListingStatusActive, item.Status)

	require.NoError(t, env.listings.Claim(ctx, l.ID, "u2"))

	feed, err = env.listings.ListFeed(ctx)
	require.NoError(t, err)
	item = findItem(feed, l.ID)
	assert.True(t, item.Claimed)
	assert.Equal(t, int64(1), item.ClaimCount)
	assert.Equal(t, model.ListingStatusClaimed, item.Status)

	err = env.listings.Claim(ctx, l.ID, "u3")
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	got, err := env.listingRepo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClaimedByUserID)
	assert.Equal(t, "u2", *got.ClaimedByUserID)
	assert.Equal(t, int64(1), env.count(t, &model.Claim{}, "listing_id = ?", l.ID))

	mine, err := env.listings.ListMyClaims(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, l.ID, mine[0].ID)

	none, err := env.listings.ListMyClaims(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClaim_ConcurrentExactlyOneWins(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "poster", "Poster", true)
	const n = 12
	for i := 0; i < n; i++ {
		env.addUser(t, fmt.Sprintf("c%02d", i), fmt.Sprintf("Claimant %d", i), true)
	}
	l := env.addListing(t, "poster", "desk")

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = env.listings.Claim(ctx, l.ID, fmt.Sprintf("c%02d", i))
		}(i)
	}
	close(start)
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, int64(1), env.count(t, &model.Claim{}, "listing_id = ? AND status = ?", l.ID, model.ClaimStatusAccepted))

	// status == claimed 当且仅当 claimed_by_user_id 非空
	assert.Zero(t, env.count(t, &model.Listing{}, "status = ? AND claimed_by_user_id IS NULL", model.ListingStatusClaimed))
	assert.Zero(t, env.count(t, &model.Listing{}, "status <> ? AND claimed_by_user_id IS NOT NULL", model.ListingStatusClaimed))
}

func TestClaim_Rejections(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", "Ada", true)
	env.addUser(t, "u2", "Grace", true)
	l := env.addListing(t, "u1", "kettle")

	err := env.listings.Claim(ctx, l.ID, "u1")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrClaimOwnListing)

	assert.ErrorIs(t, env.listings.Claim(ctx, "missing", "u2"), ErrNotFound)
	assert.ErrorIs(t, env.listings.Claim(ctx, l.ID, "ghost"), ErrNotFound)

	got, err := env.listings.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.Claimed)
	assert.Equal(t, int64(0), got.ClaimCount)
}

func TestCreateListing_PosterChecks(t *testing.T) {
	env := newEnv(t, func(o *Options) { o.RequireVerified = true })
	ctx := context.Background()
	env.addUser(t, "verified", "Ada", true)
	env.addUser(t, "fresh", "Grace", false)

	_, err := env.listings.CreateListing(ctx, "ghost", CreateListingInput{Title: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.listings.CreateListing(ctx, "fresh", CreateListingInput{Title: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.listings.CreateListing(ctx, "verified", CreateListingInput{Title: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	l := env.addListing(t, "verified", "chair")
	assert.ErrorIs(t, env.listings.Claim(ctx, l.ID, "fresh"), ErrForbidden)
	assert.Zero(t, env.count(t, &model.Claim{}, ""))
}

func TestListFeed_OrderAndUnknownPoster(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", "Ada", true)

	first := env.addListing(t, "u1", "first")
	second := env.addListing(t, "u1", "second")

	orphan := &model.Listing{
		ID:        "orphan",
		Title:     "orphan",
		PosterID:  "deleted-user",
		Status:    model.ListingStatusActive,
		CreatedAt: env.clock.Now(),
	}
	require.NoError(t, env.listingRepo.Create(ctx, orphan))

	feed, err := env.listings.ListFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, []string{"orphan", second.ID, first.ID}, []string{feed[0].ID, feed[1].ID, feed[2].ID})
	assert.Equal(t, UnknownPoster, feed[0].PostedBy)
	assert.Equal(t, "Ada", feed[1].PostedBy)
	assert.Empty(t, feed[0].Tags)

	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].CreatedAt.After(feed[i-1].CreatedAt))
	}
}

func TestListMyPostings_ClaimantRoster(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "poster", "Poster", true)
	env.addUser(t, "u2", "Grace", true)
	env.addUser(t, "u3", "Linus", true)
	env.addUser(t, "other", "Other", true)

	older := env.addListing(t, "poster", "older")
	l := env.addListing(t, "poster", "newer")
	env.addListing(t, "other", "not mine")

	base := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	for i, c := range []model.Claim{
		{ListingID: l.ID, ClaimantID: "u2", Status: model.ClaimStatusPending, CreatedAt: base},
		{ListingID: l.ID, ClaimantID: "vanished", Status: model.ClaimStatusPending, CreatedAt: base.Add(time.Minute)},
		{ListingID: l.ID, ClaimantID: "u3", Status: model.ClaimStatusPending, CreatedAt: base.Add(2 * time.Minute)},
	} {
		c := c
		require.NoError(t, env.db.Create(&c).Error, "claim %d", i)
	}

	posts, err := env.listings.ListMyPostings(ctx, "poster")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, l.ID, posts[0].ID)
	assert.Equal(t, older.ID, posts[1].ID)

	roster := posts[0].Claimants
	require.Len(t, roster, 2, "claimant without a user record is skipped")
	assert.Equal(t, "u3", roster[0].UserID)
	assert.Equal(t, "Linus", roster[0].FullName)
	assert.Equal(t, "Linus Hall", roster[0].ResidenceHall)
	assert.Equal(t, "lobby", roster[0].PickupPreference)
	assert.True(t, roster[0].ClaimedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "u2", roster[1].UserID)
	assert.Equal(t, int64(3), posts[0].ClaimCount)

	assert.NotNil(t, posts[1].Claimants)
	assert.Empty(t, posts[1].Claimants)
}

func TestListEventsAndDelete_PosterOnly(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.addUser(t, "u1", "Ada", true)
	env.addUser(t, "u2", "Grace", true)
	l := env.addListing(t, "u1", "bike")
	require.NoError(t, env.listings.Claim(ctx, l.ID, "u2"))

	_, err := env.listings.ListEvents(ctx, l.ID, "u2")
	assert.ErrorIs(t, err, ErrNotFound)

	events, err := env.listings.ListEvents(ctx, l.ID, "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventListingCreated, events[0].EventType)
	assert.Equal(t, model.EventListingClaimed, events[1].EventType)
	assert.Equal(t, "u2", events[1].ActorID)

	assert.ErrorIs(t, env.listings.DeleteListing(ctx, l.ID, "u2"), ErrNotFound)
	require.NoError(t, env.listings.DeleteListing(ctx, l.ID, "u1"))

	_, err = env.listings.GetListing(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, env.count(t, &model.Claim{}, "listing_id = ?", l.ID))
	assert.Zero(t, env.count(t, &model.ListingTag{}, "listing_id = ?", l.ID))
}
