package repository

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/pkg/database"
)

func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

var baseTime = time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

func seedUser(t testing.TB, db *gorm.DB, id string) *model.User {
	t.Helper()
	u := &model.User{
		ID:               id,
		FullName:         "User " + id,
		Email:            id + "@campus.edu",
		ResidenceHall:    "North",
		PickupPreference: "lobby",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func newListing(id, posterID string, offset time.Duration, tags ...string) *model.Listing {
	l := &model.Listing{
		ID:            id,
		Title:         fmt.Sprintf("Item %s", id),
		Description:   "desc",
		ImageURL:      "https://img.example/" + id,
		PosterID:      posterID,
		ResidenceHall: "North",
		Condition:     "good",
		PickupOnly:    true,
		Status:        model.ListingStatusActive,
		CreatedAt:     baseTime.Add(offset),
	}
	for _, tag := range tags {
		l.Tags = append(l.Tags, model.ListingTag{Tag: tag})
	}
	return l
}
