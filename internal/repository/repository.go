package repository

import (
	"context"
	"errors"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// MonitorFilter narrows a monitor listing. Zero IDs match everything.
type MonitorFilter struct {
	MonitorID uint
	UserID    uint
	Statuses  []string
}

// Matches reports whether m passes the filter
func (f MonitorFilter) Matches(m *models.Monitor) bool {
	if f.MonitorID != 0 && m.ID != f.MonitorID {
		return false
	}

	if f.UserID != 0 && m.UserID != f.UserID {
		return false
	}

	if len(f.Statuses) == 0 {
		return true
	}

	for _, status := range f.Statuses {
		if m.Status == status {
			return true
		}
	}

	return false
}

type MonitorRepository interface {
	ListMonitors(ctx context.Context, filter MonitorFilter) ([]models.Monitor, error)
	GetUserMonitor(ctx context.Context, monitorID, userID uint) (*models.Monitor, error)
	SaveMonitor(ctx context.Context, monitor *models.Monitor) error
}

type CheckResultRepository interface {
	CreateCheckResult(ctx context.Context, result *models.CheckResult) error
	ListCheckResults(ctx context.Context, monitorID uint, limit int) ([]models.CheckResult, error)
	DeleteCheckResultsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SubscriptionRepository interface {
	// GetActiveSubscription returns the newest active subscription of the user, or nil when there is none
	GetActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, subscription *models.Subscription) error
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	SaveNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

// Repository is everything the check engine and the audit API read and write
type Repository interface {
	MonitorRepository
	CheckResultRepository
	SubscriptionRepository
	NotificationRepository
	UserRepository
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repository backed by GORM
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListMonitors(ctx context.Context, filter MonitorFilter) ([]models.Monitor, error) {
	query := r.db.WithContext(ctx).Model(&models.Monitor{})

	if filter.MonitorID != 0 {
		query = query.Where("id = ?", filter.MonitorID)
	}

	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var monitors []models.Monitor

	if err := query.Order("id ASC").Find(&monitors).Error; err != nil {
		return nil, err
	}

	return monitors, nil
}

func (r *gormRepository) GetUserMonitor(ctx context.Context, monitorID, userID uint) (*models.Monitor, error) {
	var monitor models.Monitor

	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", monitorID, userID).First(&monitor).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &monitor, nil
}

func (r *gormRepository) SaveMonitor(ctx context.Context, monitor *models.Monitor) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(monitor).Error
}

func (r *gormRepository) CreateCheckResult(ctx context.Context, result *models.CheckResult) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(result).Error
}

func (r *gormRepository) ListCheckResults(ctx context.Context, monitorID uint, limit int) ([]models.CheckResult, error) {
	var results []models.CheckResult

	err := r.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("checked_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	return results, nil
}

// DeleteCheckResultsBefore hard deletes results older than cutoff
func (r *gormRepository) DeleteCheckResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Unscoped().Where("checked_at < ?", cutoff).Delete(&models.CheckResult{})

	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) GetActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	var subscription models.Subscription

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("created_at DESC, id DESC").
		First(&subscription).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &subscription, nil
}

func (r *gormRepository) SaveSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(subscription).Error
}

func (r *gormRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(notification).Error
}

func (r *gormRepository) SaveNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(notification).Error
}

func (r *gormRepository) ListNotifications(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error

	if err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *gormRepository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).First(&user, userID).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}
