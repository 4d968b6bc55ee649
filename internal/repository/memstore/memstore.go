// Package memstore is an in-memory repository.Repository used by tests and dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	nextID        uint
	users         map[uint]models.User
	monitors      map[uint]models.Monitor
	checkResults  map[uint]models.CheckResult
	subscriptions map[uint]models.Subscription
	notifications map[uint]models.Notification
}

var _ repository.Repository = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{
		users:         make(map[uint]models.User),
		monitors:      make(map[uint]models.Monitor),
		checkResults:  make(map[uint]models.CheckResult),
		subscriptions: make(map[uint]models.Subscription),
		notifications: make(map[uint]models.Notification),
	}
}

func (s *Store) assignID(id *uint, createdAt *time.Time) {
	if *id == 0 {
		s.nextID++
		*id = s.nextID
	} else if *id > s.nextID {
		s.nextID = *id
	}

	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
}

// AddUser seeds a user and returns its ID
func (s *Store) AddUser(user models.User) uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&user.ID, &user.CreatedAt)
	s.users[user.ID] = user

	return user.ID
}

// AddMonitor seeds a monitor and returns its ID
func (s *Store) AddMonitor(monitor models.Monitor) uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&monitor.ID, &monitor.CreatedAt)
	s.monitors[monitor.ID] = monitor

	return monitor.ID
}

// AddSubscription seeds a subscription and returns its ID
func (s *Store) AddSubscription(subscription models.Subscription) uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&subscription.ID, &subscription.CreatedAt)
	s.subscriptions[subscription.ID] = subscription

	return subscription.ID
}

// Monitor returns a copy of the stored monitor
func (s *Store) Monitor(id uint) (models.Monitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monitor, ok := s.monitors[id]
	return monitor, ok
}

// Subscription returns a copy of the stored subscription
func (s *Store) Subscription(id uint) (models.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subscription, ok := s.subscriptions[id]
	return subscription, ok
}

// CheckResults returns every stored result of a monitor, oldest first
func (s *Store) CheckResults(monitorID uint) []models.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.CheckResult

	for _, result := range s.checkResults {
		if result.MonitorID == monitorID {
			results = append(results, result)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	return results
}

// Notifications returns every stored notification, oldest first
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notifications := make([]models.Notification, 0, len(s.notifications))

	for _, notification := range s.notifications {
		notifications = append(notifications, notification)
	}

	sort.Slice(notifications, func(i, j int) bool { return notifications[i].ID < notifications[j].ID })

	return notifications
}

func (s *Store) ListMonitors(_ context.Context, filter repository.MonitorFilter) ([]models.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var monitors []models.Monitor

	for _, monitor := range s.monitors {
		if filter.Matches(&monitor) {
			monitors = append(monitors, monitor)
		}
	}

	sort.Slice(monitors, func(i, j int) bool { return monitors[i].ID < monitors[j].ID })

	return monitors, nil
}

func (s *Store) GetUserMonitor(_ context.Context, monitorID, userID uint) (*models.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	monitor, ok := s.monitors[monitorID]

	if !ok || monitor.UserID != userID {
		return nil, repository.ErrNotFound
	}

	return &monitor, nil
}

func (s *Store) SaveMonitor(_ context.Context, monitor *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&monitor.ID, &monitor.CreatedAt)
	monitor.UpdatedAt = time.Now()
	s.monitors[monitor.ID] = *monitor

	return nil
}

func (s *Store) CreateCheckResult(_ context.Context, result *models.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&result.ID, &result.CreatedAt)
	s.checkResults[result.ID] = *result

	return nil
}

func (s *Store) ListCheckResults(_ context.Context, monitorID uint, limit int) ([]models.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []models.CheckResult

	for _, result := range s.checkResults {
		if result.MonitorID == monitorID {
			results = append(results, result)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CheckedAt.Equal(results[j].CheckedAt) {
			return results[i].CheckedAt.After(results[j].CheckedAt)
		}
		return results[i].ID > results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (s *Store) DeleteCheckResultsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64

	for id, result := range s.checkResults {
		if result.CheckedAt.Before(cutoff) {
			delete(s.checkResults, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *Store) GetActiveSubscription(_ context.Context, userID uint) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *models.Subscription

	for _, subscription := range s.subscriptions {
		if subscription.UserID != userID || subscription.Status != models.SubscriptionStatusActive {
			continue
		}

		if newest == nil ||
			subscription.CreatedAt.After(newest.CreatedAt) ||
			(subscription.CreatedAt.Equal(newest.CreatedAt) && subscription.ID > newest.ID) {
			found := subscription
			newest = &found
		}
	}

	return newest, nil
}

func (s *Store) SaveSubscription(_ context.Context, subscription *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&subscription.ID, &subscription.CreatedAt)
	subscription.UpdatedAt = time.Now()
	s.subscriptions[subscription.ID] = *subscription

	return nil
}

func (s *Store) CreateNotification(_ context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&notification.ID, &notification.CreatedAt)
	s.notifications[notification.ID] = *notification

	return nil
}

func (s *Store) SaveNotification(_ context.Context, notification *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignID(&notification.ID, &notification.CreatedAt)
	notification.UpdatedAt = time.Now()
	s.notifications[notification.ID] = *notification

	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID uint, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var notifications []models.Notification

	for _, notification := range s.notifications {
		if notification.UserID == userID {
			notifications = append(notifications, notification)
		}
	}

	sort.Slice(notifications, func(i, j int) bool { return notifications[i].ID > notifications[j].ID })

	if limit > 0 && len(notifications) > limit {
		notifications = notifications[:limit]
	}

	return notifications, nil
}

func (s *Store) GetUser(_ context.Context, userID uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return &user, nil
}
