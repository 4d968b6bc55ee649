package models

import (
	"time"
)

const (
	MaxPageTitleLength   = 255
	MaxPageExcerptLength = 1000
)

// CheckResult is the append-only audit row written for every check attempt
type CheckResult struct {
	BaseModel

	MonitorID      uint      `gorm:"not null;index"`
	CheckedAt      time.Time `gorm:"not null;index"`
	KeywordFound   bool      `gorm:"not null;default:false"`
	PageTitle      string    `gorm:"size:255"`
	PageExcerpt    string    `gorm:"size:1000"`
	HTTPStatus     *int
	ErrorMessage   string
	ResponseTimeMS *int

	// Relationships
	Monitor Monitor `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}

// Failed reports whether the attempt ended in an error. ErrorMessage wins over HTTPStatus.
func (c *CheckResult) Failed() bool {
	return c.ErrorMessage != ""
}
