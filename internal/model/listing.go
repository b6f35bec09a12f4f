package model

import "time"

// ListingStatus 物品状态
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusClaimed ListingStatus = "claimed"
	ListingStatusClosed  ListingStatus = "closed"
)

// ClaimStatus 认领记录状态；当前流程只产生 accepted
type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusAccepted  ClaimStatus = "accepted"
	ClaimStatusRejected  ClaimStatus = "rejected"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

const (
	EventListingCreated = "listing_created"
	EventListingClaimed = "listing_claimed"
)

// Listing 发布的物品。ClaimedByUserID != nil 当且仅当 Status == claimed
type Listing struct {
	ID                string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title             string        `json:"title" gorm:"type:varchar(200);not null"`
	Description       string        `json:"description" gorm:"type:text;not null"`
	ImageURL          string        `json:"image_url" gorm:"type:varchar(500);not null"`
	PosterID          string        `json:"poster_id" gorm:"type:varchar(36);index;not null"`
	ResidenceHall     string        `json:"residence_hall" gorm:"type:varchar(120);not null"`
	Condition         string        `json:"condition" gorm:"type:varchar(80);not null"`
	DeliveryAvailable bool          `json:"delivery_available" gorm:"not null;default:false"`
	PickupOnly        bool          `json:"pickup_only" gorm:"not null"`
	Status            ListingStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'active'"`
	ClaimedByUserID   *string       `json:"claimed_by_user_id" gorm:"type:varchar(36);index"`
	CreatedAt         time.Time     `json:"created_at" gorm:"index"`

	Tags   []ListingTag   `json:"-" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	Claims []Claim        `json:"-" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
	Events []ListingEvent `json:"-" gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE"`
}

func (Listing) TableName() string { return "listings" }

// TagNames 按 Position 顺序返回标签
func (l *Listing) TagNames() []string {
	out := make([]string, len(l.Tags))
	for i, t := range l.Tags {
		out[i] = t.Tag
	}
	return out
}

type ListingTag struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	ListingID string `gorm:"type:varchar(36);index;not null"`
	Position  int    `gorm:"not null"`
	Tag       string `gorm:"type:varchar(80);not null"`
}

func (ListingTag) TableName() string { return "listing_tags" }

// Claim 认领记录；(listing_id, claimant_id) 唯一，只追加
type Claim struct {
	ID         int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	ListingID  string      `json:"listing_id" gorm:"type:varchar(36);not null;index;uniqueIndex:uq_claim_listing_claimant"`
	ClaimantID string      `json:"claimant_id" gorm:"type:varchar(36);not null;index;uniqueIndex:uq_claim_listing_claimant"`
	Status     ClaimStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt  time.Time   `json:"created_at" gorm:"index"`
}

func (Claim) TableName() string { return "claims" }

// ListingEvent 审计日志，只追加
type ListingEvent struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ListingID string    `json:"listing_id" gorm:"type:varchar(36);index;not null"`
	ActorID   string    `json:"actor_id" gorm:"type:varchar(36);index;not null"`
	EventType string    `json:"event_type" gorm:"type:varchar(80);not null"`
	Payload   *string   `json:"payload,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (ListingEvent) TableName() string { return "listing_events" }
