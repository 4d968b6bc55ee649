package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/rs/zerolog/log"
)

var errNoDeliverableChannel = errors.New("no deliverable channel: phone number unavailable")

// Dispatcher turns events into Notification rows and makes exactly one delivery attempt per channel
type Dispatcher struct {
	store        repository.NotificationRepository
	email        Channel
	sms          Channel
	resolvePhone func(*models.User) string
	now          func() time.Time
}

func NewDispatcher(store repository.NotificationRepository, mailer Mailer) *Dispatcher {
	return &Dispatcher{
		store:        store,
		email:        NewEmailChannel(mailer),
		sms:          NewSMSChannel(),
		resolvePhone: ResolvePhone,
		now:          time.Now,
	}
}

// Dispatch records and delivers ev. It returns nil without recording anything when the
// monitor has no alert channel configured. The error is only set when persistence fails.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (*models.Notification, error) {
	if ev.User == nil {
		return nil, errors.New("dispatch: event has no user")
	}

	if ev.isMonitorEvent() && ev.Monitor == nil {
		return nil, errors.New("dispatch: monitor event has no monitor")
	}

	if ev.At.IsZero() {
		ev.At = d.now()
	}

	wantEmail, wantSMS := true, true

	if ev.isMonitorEvent() {
		wantEmail, wantSMS = ev.Monitor.AlertEmail, ev.Monitor.AlertSMS
	}

	phone := d.resolvePhone(ev.User)

	if !ev.isMonitorEvent() && phone == "" {
		wantSMS = false
	}

	if !wantEmail && !wantSMS {
		return nil, nil
	}

	notification := d.newNotification(ev, wantEmail, wantSMS, phone)

	if err := d.store.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}

	var channels []Channel

	if wantEmail {
		channels = append(channels, d.email)
	}

	if wantSMS && phone != "" {
		channels = append(channels, d.sms)
	}

	outcomes := make([]DeliveryOutcome, 0, len(channels))

	for _, channel := range channels {
		outcomes = append(outcomes, channel.Deliver(ctx, notification))
	}

	d.settle(notification, outcomes)

	if err := d.store.SaveNotification(ctx, notification); err != nil {
		return notification, err
	}

	logEvent := log.Info()
	if notification.Status == models.NotificationStatusFailed {
		logEvent = log.Warn().Str("error", notification.ErrorMessage)
	}

	logEvent.
		Uint("notification_id", notification.ID).
		Uint("user_id", notification.UserID).
		Str("type", notification.Type).
		Str("status", notification.Status).
		Msg("Notification dispatched")

	return notification, nil
}

// RecordExpired stores a subscription_expired notice as sent, then makes a best-effort
// email attempt whose failure is only logged.
func (d *Dispatcher) RecordExpired(ctx context.Context, ev Event) (*models.Notification, error) {
	if ev.User == nil {
		return nil, errors.New("record expired: event has no user")
	}

	ev.Type = models.NotificationSubscriptionExpired

	if ev.At.IsZero() {
		ev.At = d.now()
	}

	notification := d.newNotification(ev, true, false, "")
	notification.Status = models.NotificationStatusSent

	sentAt := ev.At
	notification.SentAt = &sentAt

	if err := d.store.CreateNotification(ctx, notification); err != nil {
		return nil, err
	}

	outcome := d.email.Deliver(ctx, notification)
	notification.DeliveryLog = encodeOutcomes([]DeliveryOutcome{outcome})

	if !outcome.Delivered {
		log.Warn().
			Uint("notification_id", notification.ID).
			Uint("user_id", notification.UserID).
			Str("error", outcome.Error).
			Msg("Expiry notice email failed")
	}

	if err := d.store.SaveNotification(ctx, notification); err != nil {
		log.Error().Err(err).Uint("notification_id", notification.ID).Msg("Failed to store expiry notice delivery log")
	}

	return notification, nil
}

func (d *Dispatcher) newNotification(ev Event, wantEmail, wantSMS bool, phone string) *models.Notification {
	subject, body := render(ev)

	method := models.DeliveryEmail

	switch {
	case wantEmail && wantSMS:
		method = models.DeliveryBoth
	case wantSMS:
		method = models.DeliverySMS
	}

	notification := &models.Notification{
		UserID:         ev.User.ID,
		Type:           ev.Type,
		DeliveryMethod: method,
		Status:         models.NotificationStatusPending,
		Subject:        subject,
		Message:        body,
	}

	if ev.Monitor != nil {
		monitorID := ev.Monitor.ID
		notification.MonitorID = &monitorID
	}

	if wantEmail {
		notification.RecipientEmail = ev.User.Email
	}

	if wantSMS {
		notification.RecipientPhone = phone
	}

	return notification
}

// settle applies the pending -> sent | failed transition
func (d *Dispatcher) settle(notification *models.Notification, outcomes []DeliveryOutcome) {
	notification.DeliveryLog = encodeOutcomes(outcomes)

	if len(outcomes) == 0 {
		notification.Status = models.NotificationStatusFailed
		notification.ErrorMessage = errNoDeliverableChannel.Error()
		return
	}

	var failures []string

	for _, outcome := range outcomes {
		if !outcome.Delivered {
			failures = append(failures, outcome.Channel+": "+outcome.Error)
		}
	}

	if len(failures) > 0 {
		notification.Status = models.NotificationStatusFailed
		notification.ErrorMessage = strings.Join(failures, "; ")
		return
	}

	sentAt := d.now()
	notification.Status = models.NotificationStatusSent
	notification.SentAt = &sentAt
}

func encodeOutcomes(outcomes []DeliveryOutcome) []byte {
	byChannel := make(map[string]DeliveryOutcome, len(outcomes))

	for _, outcome := range outcomes {
		byChannel[outcome.Channel] = outcome
	}

	encoded, err := json.Marshal(byChannel)

	if err != nil {
		return nil
	}

	return encoded
}
