package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxNotificationSubjectLength is the Subject column size in runes
const MaxNotificationSubjectLength = 255

const (
	NotificationKeywordFound         = "keyword_found"
	NotificationCheckFailed          = "check_failed"
	NotificationSubscriptionExpiring = "subscription_expiring"
	NotificationSubscriptionExpired  = "subscription_expired"
	NotificationPaymentFailed        = "payment_failed"
)

const (
	DeliveryEmail = "email"
	DeliverySMS   = "sms"
	DeliveryBoth  = "both"
)

const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusBounced = "bounced"
)

type Notification struct {
	BaseModel

	MonitorID      *uint  `gorm:"index"`
	UserID         uint   `gorm:"not null;index"`
	Type           string `gorm:"not null;size:30"`
	DeliveryMethod string `gorm:"not null;size:10"`
	Status         string `gorm:"not null;default:pending;index"`
	Subject        string `gorm:"size:255"`
	Message        string
	RecipientEmail string
	RecipientPhone string
	ErrorMessage   string
	ExternalID     string         `gorm:"size:100"`
	DeliveryLog    datatypes.JSON `gorm:"type:jsonb"` // Per-channel outcome of the delivery attempt
	SentAt         *time.Time

	// Relationships
	Monitor *Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:SET NULL" json:"-"`
	User    User     `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
