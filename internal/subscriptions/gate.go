package subscriptions

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/services"
	"github.com/rs/zerolog/log"
)

const DefaultWarningDays = 7

type Decision int

const (
	// DecisionProceed lets the check run
	DecisionProceed Decision = iota
	// DecisionSkip means the user has no active subscription. Nothing was changed.
	DecisionSkip
	// DecisionExpired means the subscription just expired and the monitor was paused
	DecisionExpired
	// DecisionExpiringSoon lets the check run after a warning
	DecisionExpiringSoon
)

func (d Decision) String() string {
	switch d {
	case DecisionProceed:
		return "proceed"
	case DecisionSkip:
		return "skip"
	case DecisionExpired:
		return "expired"
	case DecisionExpiringSoon:
		return "expiring_soon"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// AllowsCheck reports whether the monitor should still be fetched
func (d Decision) AllowsCheck() bool {
	return d == DecisionProceed || d == DecisionExpiringSoon
}

// WholeDays floors a duration to whole days, so -1h is -1 and 36h is 1
func WholeDays(d time.Duration) int {
	return int(math.Floor(d.Hours() / 24))
}

// Notifier is the part of the notification dispatcher the gate needs
type Notifier interface {
	Dispatch(ctx context.Context, ev services.Event) (*models.Notification, error)
	RecordExpired(ctx context.Context, ev services.Event) (*models.Notification, error)
}

// Verdict is the outcome of evaluating one monitor
type Verdict struct {
	Decision     Decision
	Subscription *models.Subscription
	Warning      *models.Notification
}

// Warned reports whether an expiry warning went out for this monitor
func (v Verdict) Warned() bool {
	return v.Warning != nil && v.Warning.Status == models.NotificationStatusSent
}

// Gate decides per monitor whether its owner's subscription allows checking.
// A Gate lives for one batch: a subscription is warned at most once per Gate.
type Gate struct {
	subscriptions repository.SubscriptionRepository
	monitors      repository.MonitorRepository
	notifier      Notifier
	warningDays   int
	warned        map[uint]bool
}

func NewGate(subscriptions repository.SubscriptionRepository, monitors repository.MonitorRepository, notifier Notifier, warningDays int) *Gate {
	return &Gate{
		subscriptions: subscriptions,
		monitors:      monitors,
		notifier:      notifier,
		warningDays:   warningDays,
		warned:        make(map[uint]bool),
	}
}

// Evaluate runs the ordered subscription checks for monitor. The first matching rule wins:
// no active subscription skips, an expired one pauses the monitor, one expiring in exactly
// warningDays whole days warns and proceeds.
func (g *Gate) Evaluate(ctx context.Context, monitor *models.Monitor, user *models.User, now time.Time) (Verdict, error) {
	subscription, err := g.subscriptions.GetActiveSubscription(ctx, monitor.UserID)

	if err != nil {
		return Verdict{}, fmt.Errorf("lookup subscription for user %d: %w", monitor.UserID, err)
	}

	if subscription == nil {
		log.Warn().Uint("monitor_id", monitor.ID).Uint("user_id", monitor.UserID).Msg("No active subscription, skipping monitor")
		return Verdict{Decision: DecisionSkip}, nil
	}

	verdict := Verdict{Decision: DecisionProceed, Subscription: subscription}

	if subscription.IsExpired(now) {
		return g.expire(ctx, monitor, user, subscription, now)
	}

	if subscription.ExpiresAt != nil && WholeDays(subscription.ExpiresAt.Sub(now)) == g.warningDays {
		verdict.Decision = DecisionExpiringSoon

		if g.warned[subscription.ID] {
			return verdict, nil
		}

		g.warned[subscription.ID] = true

		log.Info().
			Uint("subscription_id", subscription.ID).
			Int("days", g.warningDays).
			Msg("Subscription expiring soon, sending warning")

		notification, err := g.notifier.Dispatch(ctx, services.Event{
			Type:         models.NotificationSubscriptionExpiring,
			User:         user,
			Subscription: subscription,
			At:           now,
		})

		if err != nil {
			log.Error().Err(err).Uint("subscription_id", subscription.ID).Msg("Failed to record expiry warning")
		}

		verdict.Warning = notification
	}

	return verdict, nil
}

func (g *Gate) expire(ctx context.Context, monitor *models.Monitor, user *models.User, subscription *models.Subscription, now time.Time) (Verdict, error) {
	log.Info().
		Uint("monitor_id", monitor.ID).
		Uint("subscription_id", subscription.ID).
		Time("expires_at", *subscription.ExpiresAt).
		Msg("Subscription expired, pausing monitor")

	monitor.Status = models.MonitorStatusPaused

	if err := g.monitors.SaveMonitor(ctx, monitor); err != nil {
		return Verdict{}, fmt.Errorf("pause monitor %d: %w", monitor.ID, err)
	}

	subscription.Status = models.SubscriptionStatusExpired

	if err := g.subscriptions.SaveSubscription(ctx, subscription); err != nil {
		return Verdict{}, fmt.Errorf("expire subscription %d: %w", subscription.ID, err)
	}

	if _, err := g.notifier.RecordExpired(ctx, services.Event{
		User:         user,
		Monitor:      monitor,
		Subscription: subscription,
		At:           now,
	}); err != nil {
		log.Error().Err(err).Uint("monitor_id", monitor.ID).Msg("Failed to record expiry notice")
	}

	return Verdict{Decision: DecisionExpired, Subscription: subscription}, nil
}
