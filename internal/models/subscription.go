package models

import (
	"time"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPaused    = "paused"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

type Subscription struct {
	BaseModel

	UserID       uint    `gorm:"not null;index"`
	Keyword      string  `gorm:"not null;size:200"`
	Status       string  `gorm:"not null;default:active;index"` // "active", "paused", "cancelled", "expired"
	CostPerMonth float64 `gorm:"type:decimal(5,2);not null;default:0"`
	ExpiresAt    *time.Time

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}

// IsExpired reports whether now is past the expiration. A nil ExpiresAt never expires.
func (s *Subscription) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
