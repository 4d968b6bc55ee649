package services

import (
	"context"
	"errors"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
)

var (
	ErrSMSUnavailable = errors.New("sms delivery is not available")
	ErrNoRecipient    = errors.New("no recipient address")
)

// DeliveryOutcome is the result of one delivery attempt on one channel
type DeliveryOutcome struct {
	Channel   string    `json:"channel"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Channel delivers a rendered notification. Implementations are EmailChannel and SMSChannel.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, notification *models.Notification) DeliveryOutcome
}

type EmailChannel struct {
	mailer Mailer
	now    func() time.Time
}

func NewEmailChannel(mailer Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer, now: time.Now}
}

func (c *EmailChannel) Name() string {
	return models.DeliveryEmail
}

func (c *EmailChannel) Deliver(ctx context.Context, notification *models.Notification) DeliveryOutcome {
	outcome := DeliveryOutcome{Channel: c.Name()}

	err := ErrNoRecipient

	if notification.RecipientEmail != "" {
		err = c.mailer.SendMail(ctx, notification.RecipientEmail, notification.Subject, notification.Message)
	}

	outcome.At = c.now()

	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Delivered = true
	return outcome
}

// SMSChannel has no provider behind it and reports every attempt as unavailable
type SMSChannel struct {
	now func() time.Time
}

func NewSMSChannel() *SMSChannel {
	return &SMSChannel{now: time.Now}
}

func (c *SMSChannel) Name() string {
	return models.DeliverySMS
}

func (c *SMSChannel) Deliver(_ context.Context, _ *models.Notification) DeliveryOutcome {
	return DeliveryOutcome{
		Channel: c.Name(),
		Error:   ErrSMSUnavailable.Error(),
		At:      c.now(),
	}
}

// ResolvePhone looks up a phone number for SMS alerts. Users carry no phone number yet.
func ResolvePhone(_ *models.User) string {
	return ""
}
