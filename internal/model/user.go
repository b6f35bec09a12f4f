package model

import "time"

// User 校园用户；注册时未验证，提交正确验证码后置为已验证
type User struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FullName         string    `json:"full_name" gorm:"type:varchar(120);not null"`
	Email            string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	ResidenceHall    string    `json:"residence_hall" gorm:"type:varchar(120);not null"`
	PickupPreference string    `json:"pickup_preference" gorm:"type:varchar(120);not null"`
	IsVerified       bool      `json:"is_verified" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// VerificationToken 邮箱验证码（只存哈希）
type VerificationToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	CodeHash  string    `gorm:"type:varchar(255);not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Attempts  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index"`
}

func (VerificationToken) TableName() string { return "verification_tokens" }

// UserProfile is the display subset of a user shown next to listings and claims.
type UserProfile struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	ResidenceHall    string `json:"residence_hall"`
	PickupPreference string `json:"pickup_preference"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:               u.ID,
		FullName:         u.FullName,
		ResidenceHall:    u.ResidenceHall,
		PickupPreference: u.PickupPreference,
	}
}
