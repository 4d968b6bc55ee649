package models

import (
	"time"
)

const (
	MonitorStatusActive  = "active"
	MonitorStatusPaused  = "paused"
	MonitorStatusStopped = "stopped"
	MonitorStatusError   = "error"
)

type Monitor struct {
	BaseModel

	UserID            uint       `gorm:"not null;index"` // Foreign key to the owning User
	URL               string     `gorm:"not null;size:2048"`
	Keyword           string     `gorm:"not null;size:200"`
	Status            string     `gorm:"not null;default:active;index"` // "active", "paused", "stopped", "error"
	CheckIntervalDays int        `gorm:"not null;default:1"`            // Whole days between checks, 0 checks every run
	LastCheckedTime   *time.Time `gorm:"index"`
	LastFoundTime     *time.Time
	AlertEmail        bool       `gorm:"not null;default:true"`
	AlertSMS          bool       `gorm:"not null;default:false"`
	Notes             string

	// Relationships
	User         User          `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	CheckResults []CheckResult `gorm:"foreignKey:MonitorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the monitor may be picked up by a batch
func (m *Monitor) IsActive() bool {
	return m.Status == MonitorStatusActive
}

// MarkChecked stamps the check time, and the found time when the keyword matched
func (m *Monitor) MarkChecked(now time.Time, found bool) {
	checkedAt := now
	m.LastCheckedTime = &checkedAt

	if found {
		foundAt := now
		m.LastFoundTime = &foundAt
	}
}
