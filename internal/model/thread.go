package model

import (
	"sort"
	"strings"
	"time"
)

// Thread 会话。DedupKey 对同一参与者集合（及可选 listing）唯一
type Thread struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ListingID     *string   `json:"listing_id" gorm:"type:varchar(36);index"`
	DedupKey      *string   `json:"-" gorm:"type:varchar(200);uniqueIndex:ux_thread_dedup"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"index;not null"`

	Participants []ThreadParticipant `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
	Messages     []Message           `json:"-" gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE"`
}

func (Thread) TableName() string { return "threads" }

// ThreadParticipant (thread_id, user_id) 唯一
type ThreadParticipant struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	ThreadID   string     `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_thread_user"`
	UserID     string     `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_thread_user"`
	LastReadAt *time.Time
	Muted      bool `gorm:"not null;default:false"`
}

func (ThreadParticipant) TableName() string { return "thread_participants" }

// Message DeletedAt 非空即软删除
type Message struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ThreadID  string     `json:"thread_id" gorm:"type:varchar(36);index;not null"`
	SenderID  string     `json:"sender_id" gorm:"type:varchar(36);index;not null"`
	Text      string     `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	DeletedAt *time.Time `json:"-"`
}

func (Message) TableName() string { return "messages" }

// DirectKey 两人私聊的去重键，与参数顺序无关
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// ListingKey listing 会话的去重键
func ListingKey(listingID, a, b string) string {
	return "listing:" + listingID + ":" + DirectKey(a, b)
}
