package models

import "gorm.io/gorm"

// User is owned by the account service. Only the fields the checker reads are mapped.
type User struct {
	gorm.Model

	Name  string `gorm:"not null"`
	Email string `gorm:"uniqueIndex;not null"`

	// Relationships
	Monitors      []Monitor      `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
