package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/free99/internal/cache"
	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/pkg/database"
)

// fakeClock 每次读取后前进 step，保证时间戳严格递增
type fakeClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendVerificationCode(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testEnv struct {
	db       *gorm.DB
	clock    *fakeClock
	sender   *captureSender
	tokens   *TokenIssuer
	profiles *cache.ProfileCache

	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	threadRepo  repository.ThreadRepository

	users    UserService
	listings ListingService
	messages MessageService
}

func newEnv(t *testing.T, tweak ...func(*Options)) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := &fakeClock{t: time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC), step: time.Second}
	opts := Options{
		AllowedEmailDomain:      ".edu",
		VerificationTTL:         15 * time.Minute,
		MaxVerificationAttempts: 5,
		Now:                     clock.Now,
	}
	for _, fn := range tweak {
		fn(&opts)
	}

	env := &testEnv{
		db:          db,
		clock:       clock,
		sender:      &captureSender{codes: map[string]string{}},
		tokens:      NewTokenIssuer("test-secret", time.Hour),
		userRepo:    repository.NewUserRepository(db),
		listingRepo: repository.NewListingRepository(db),
		threadRepo:  repository.NewThreadRepository(db),
	}
	env.profiles = cache.NewProfileCache(env.userRepo, rdb, time.Minute)
	env.users = NewUserService(env.userRepo, env.tokens, env.sender, opts)
	env.listings = NewListingService(env.listingRepo, env.userRepo, env.profiles, opts)
	env.messages = NewMessageService(env.threadRepo, repository.NewMessageRepository(db), env.listingRepo, env.userRepo, opts)
	return env
}

func (e *testEnv) addUser(t *testing.T, id, name string, verified bool) *model.User {
	t.Helper()
	u := &model.User{
		ID:               id,
		FullName:         name,
		Email:            id + "@campus.edu",
		ResidenceHall:    name + " Hall",
		PickupPreference: "lobby",
		IsVerified:       verified,
	}
	require.NoError(t, e.userRepo.Create(context.Background(), u))
	return u
}

func (e *testEnv) addListing(t *testing.T, posterID, title string) *FeedItem {
	t.Helper()
	item, err := e.listings.CreateListing(context.Background(), posterID, CreateListingInput{
		Title:         title,
		Description:   "free to a good home",
		ImageURL:      "https://img.example/" + title,
		Tags:          []string{"furniture", " dorm ", ""},
		ResidenceHall: "North",
		Condition:     "good",
		PickupOnly:    true,
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) count(t *testing.T, m interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
