package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/pkg/logger"
)

type CreateListingInput struct {
	Title             string
	Description       string
	ImageURL          string
	Tags              []string
	ResidenceHall     string
	Condition         string
	DeliveryAvailable bool
	PickupOnly        bool
}

// ListingService 物品发布、认领与各类列表视图
type ListingService interface {
	CreateListing(ctx context.Context, posterID string, in CreateListingInput) (*FeedItem, error)
	GetListing(ctx context.Context, id string) (*FeedItem, error)
	DeleteListing(ctx context.Context, id, requesterID string) error

	// Claim 同一 listing 并发认领时只有一个成功，其余返回 ErrAlreadyClaimed
	Claim(ctx context.Context, listingID, claimantID string) error
	ListEvents(ctx context.Context, listingID, requesterID string) ([]*model.ListingEvent, error)

	ListFeed(ctx context.Context) ([]*FeedItem, error)
	ListMyClaims(ctx context.Context, userID string) ([]*FeedItem, error)
	ListMyPostings(ctx context.Context, userID string) ([]*PostingItem, error)
}

type listingService struct {
	listings repository.ListingRepository
	users    repository.UserRepository
	profiles ProfileSource
	opts     Options
}

func NewListingService(listings repository.ListingRepository, users repository.UserRepository, profiles ProfileSource, opts Options) ListingService {
	return &listingService{listings: listings, users: users, profiles: profiles, opts: opts}
}

func (s *listingService) CreateListing(ctx context.Context, posterID string, in CreateListingInput) (*FeedItem, error) {
	if _, err := requireUser(ctx, s.users, s.opts, posterID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid(errors.New("title is required"))
	}

	l := &model.Listing{
		ID:                uuid.New().String(),
		Title:             strings.TrimSpace(in.Title),
		Description:       in.Description,
		ImageURL:          strings.TrimSpace(in.ImageURL),
		PosterID:          posterID,
		ResidenceHall:     in.ResidenceHall,
		Condition:         in.Condition,
		DeliveryAvailable: in.DeliveryAvailable,
		PickupOnly:        in.PickupOnly,
		Status:            model.ListingStatusActive,
		CreatedAt:         s.opts.now(),
	}
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t != "" {
			l.Tags = append(l.Tags, model.ListingTag{Tag: t})
		}
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	logger.Info("listing created", zap.String("listing_id", l.ID), zap.String("poster_id", posterID))

	items, err := s.plainItems(ctx, []*model.Listing{l})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

func (s *listingService) GetListing(ctx context.Context, id string) (*FeedItem, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.plainItems(ctx, []*model.Listing{l})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// DeleteListing 只有发布者可以删除；其他人看到的是 ErrNotFound
func (s *listingService) DeleteListing(ctx context.Context, id, requesterID string) error {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if l.PosterID != requesterID {
		return ErrNotFound
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("listing deleted", zap.String("listing_id", id))
	return nil
}

func (s *listingService) Claim(ctx context.Context, listingID, claimantID string) (err error) {
	ctx, span := tracer.Start(ctx, "ListingService.Claim", trace.WithAttributes(
		attribute.String("listing.id", listingID),
		attribute.String("claimant.id", claimantID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := requireUser(ctx, s.users, s.opts, claimantID); err != nil {
		return err
	}
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if l.PosterID == claimantID {
		return invalid(ErrClaimOwnListing)
	}
	if err := s.listings.Claim(ctx, listingID, claimantID, s.opts.now()); err != nil {
		if errors.Is(err, ErrConflict) {
			logger.Debug("claim rejected", zap.String("listing_id", listingID), zap.String("claimant_id", claimantID))
		}
		return err
	}
	logger.Info("listing claimed", zap.String("listing_id", listingID), zap.String("claimant_id", claimantID))
	return nil
}

// ListEvents 审计日志只对发布者可见
func (s *listingService) ListEvents(ctx context.Context, listingID, requesterID string) ([]*model.ListingEvent, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.PosterID != requesterID {
		return nil, ErrNotFound
	}
	return s.listings.ListEvents(ctx, listingID)
}
