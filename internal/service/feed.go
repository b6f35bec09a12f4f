package service

import (
	"context"
	"time"

	"github.com/d60-Lab/free99/internal/model"
)

// UnknownPoster 发布者记录缺失时展示的名字
const UnknownPoster = "Unknown"

// FeedItem 列表视图中的一条 listing
type FeedItem struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	ImageURL          string              `json:"image_url"`
	PostedBy          string              `json:"posted_by"`
	PosterID          string              `json:"poster_id"`
	Tags              []string            `json:"tags"`
	ResidenceHall     string              `json:"residence_hall"`
	Condition         string              `json:"condition"`
	DeliveryAvailable bool                `json:"delivery_available"`
	PickupOnly        bool                `json:"pickup_only"`
	Status            model.ListingStatus `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
	ClaimCount        int64               `json:"claim_count"`
	Claimed           bool                `json:"claimed"`
}

// PostingItem "我的发布"中的一条，附带认领人名单（最近的认领在前）
type PostingItem struct {
	*FeedItem
	Claimants []Claimant `json:"claimants"`
}

type Claimant struct {
	UserID           string    `json:"user_id"`
	FullName         string    `json:"full_name"`
	ResidenceHall    string    `json:"residence_hall"`
	PickupPreference string    `json:"pickup_preference"`
	ClaimedAt        time.Time `json:"claimed_at"`
}

// ListFeed 全部 listing，created_at DESC, id DESC
func (s *listingService) ListFeed(ctx context.Context) ([]*FeedItem, error) {
	ls, err := s.listings.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.plainItems(ctx, ls)
}

func (s *listingService) ListMyClaims(ctx context.Context, userID string) ([]*FeedItem, error) {
	ls, err := s.listings.ListByClaimant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.plainItems(ctx, ls)
}

func (s *listingService) ListMyPostings(ctx context.Context, userID string) ([]*PostingItem, error) {
	ls, err := s.listings.ListByPoster(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.feedItems(ctx, ls, true)
}

// feedItems 批量补齐发布者名字、认领数，以及可选的认领人名单。
// 悬空的用户引用不报错：发布者回退为 UnknownPoster，认领人直接跳过。
func (s *listingService) feedItems(ctx context.Context, ls []*model.Listing, withClaimants bool) ([]*PostingItem, error) {
	out := make([]*PostingItem, 0, len(ls))
	if len(ls) == 0 {
		return out, nil
	}

	ids := make([]string, len(ls))
	userIDs := make([]string, 0, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
		userIDs = append(userIDs, l.PosterID)
	}

	counts, err := s.listings.ClaimCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	var claims map[string][]*model.Claim
	if withClaimants {
		if claims, err = s.listings.ClaimsForListings(ctx, ids); err != nil {
			return nil, err
		}
		for _, cs := range claims {
			for _, c := range cs {
				userIDs = append(userIDs, c.ClaimantID)
			}
		}
	}
	profiles, err := s.profiles.Profiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, l := range ls {
		item := &PostingItem{FeedItem: &FeedItem{
			ID:                l.ID,
			Title:             l.Title,
			Description:       l.Description,
			ImageURL:          l.ImageURL,
			PostedBy:          UnknownPoster,
			PosterID:          l.PosterID,
			Tags:              l.TagNames(),
			ResidenceHall:     l.ResidenceHall,
			Condition:         l.Condition,
			DeliveryAvailable: l.DeliveryAvailable,
			PickupOnly:        l.PickupOnly,
			Status:            l.Status,
			CreatedAt:         l.CreatedAt,
			ClaimCount:        counts[l.ID],
			Claimed:           l.ClaimedByUserID != nil,
		}}
		if p, ok := profiles[l.PosterID]; ok {
			item.PostedBy = p.FullName
		}
		if withClaimants {
			item.Claimants = make([]Claimant, 0, len(claims[l.ID]))
			for _, c := range claims[l.ID] {
				p, ok := profiles[c.ClaimantID]
				if !ok {
					continue
				}
				item.Claimants = append(item.Claimants, Claimant{
					UserID:           p.ID,
					FullName:         p.FullName,
					ResidenceHall:    p.ResidenceHall,
					PickupPreference: p.PickupPreference,
					ClaimedAt:        c.CreatedAt,
				})
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *listingService) plainItems(ctx context.Context, ls []*model.Listing) ([]*FeedItem, error) {
	items, err := s.feedItems(ctx, ls, false)
	if err != nil {
		return nil, err
	}
	out := make([]*FeedItem, len(items))
	for i, it := range items {
		out[i] = it.FeedItem
	}
	return out, nil
}
