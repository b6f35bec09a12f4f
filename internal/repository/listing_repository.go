package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/free99/internal/model"
)

// ListingRepository 物品、标签、认领与审计事件的存储
type ListingRepository interface {
	// Create 事务内写入 listing、标签与 listing_created 事件
	Create(ctx context.Context, l *model.Listing) error

	GetByID(ctx context.Context, id string) (*model.Listing, error)

	// ListAll / ListByPoster / ListByClaimant 均按 created_at DESC, id DESC
	ListAll(ctx context.Context) ([]*model.Listing, error)
	ListByPoster(ctx context.Context, posterID string) ([]*model.Listing, error)
	ListByClaimant(ctx context.Context, userID string) ([]*model.Listing, error)

	// Claim 原子地把 active 的 listing 置为 claimed，见 claim.go
	Claim(ctx context.Context, listingID, claimantID string, at time.Time) error

	ClaimCounts(ctx context.Context, listingIDs []string) (map[string]int64, error)
	ClaimsForListings(ctx context.Context, listingIDs []string) (map[string][]*model.Claim, error)
	ListEvents(ctx context.Context, listingID string) ([]*model.ListingEvent, error)

	// Delete 级联删除标签、认领、事件，并解除会话的 listing 关联
	Delete(ctx context.Context, id string) error
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository { return &listingRepository{db: db} }

func preloadTags(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *listingRepository) Create(ctx context.Context, l *model.Listing) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags := l.Tags
		l.Tags = nil
		if err := tx.Create(l).Error; err != nil {
			return err
		}
		for i := range tags {
			tags[i].ListingID = l.ID
			tags[i].Position = i
		}
		if len(tags) > 0 {
			if err := tx.Create(&tags).Error; err != nil {
				return err
			}
		}
		l.Tags = tags
		ev := &model.ListingEvent{
			ListingID: l.ID,
			ActorID:   l.PosterID,
			EventType: model.EventListingCreated,
			CreatedAt: l.CreatedAt,
		}
		return tx.Create(ev).Error
	})
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	err := r.db.WithContext(ctx).
		Preload("Tags", preloadTags).
		Where("id = ?", id).
		First(&l).Error
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *listingRepository) list(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]*model.Listing, error) {
	var res []*model.Listing
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Tags", preloadTags).
		Order("created_at DESC, id DESC").
		Find(&res).Error
	return res, err
}

func (r *listingRepository) ListAll(ctx context.Context) ([]*model.Listing, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB { return db })
}

func (r *listingRepository) ListByPoster(ctx context.Context, posterID string) ([]*model.Listing, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("poster_id = ?", posterID) })
}

func (r *listingRepository) ListByClaimant(ctx context.Context, userID string) ([]*model.Listing, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB { return db.Where("claimed_by_user_id = ?", userID) })
}

func (r *listingRepository) ClaimCounts(ctx context.Context, listingIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ListingID string
		Cnt       int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Claim{}).
		Select("listing_id, COUNT(*) AS cnt").
		Where("listing_id IN ?", listingIDs).
		Group("listing_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ListingID] = row.Cnt
	}
	return out, nil
}

// ClaimsForListings 每个 listing 的认领记录，最新在前
func (r *listingRepository) ClaimsForListings(ctx context.Context, listingIDs []string) (map[string][]*model.Claim, error) {
	out := make(map[string][]*model.Claim, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}
	var claims []*model.Claim
	err := r.db.WithContext(ctx).
		Where("listing_id IN ?", listingIDs).
		Order("created_at DESC, id DESC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	for _, c := range claims {
		out[c.ListingID] = append(out[c.ListingID], c)
	}
	return out, nil
}

func (r *listingRepository) ListEvents(ctx context.Context, listingID string) ([]*model.ListingEvent, error) {
	var res []*model.ListingEvent
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at ASC, id ASC").
		Find(&res).Error
	return res, err
}

func (r *listingRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&model.ListingTag{}, &model.Claim{}, &model.ListingEvent{}} {
			if err := tx.Where("listing_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&model.Thread{}).
			Where("listing_id = ?", id).
			Update("listing_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Listing{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
