package services

import (
	"fmt"
	"time"

	"github.com/monocle-dev/keywatch/internal/models"
	"github.com/monocle-dev/keywatch/internal/monitors"
)

const (
	timestampLayout = "2006-01-02 15:04:05 UTC"
	signature       = "\n---\nKeywatch Web Monitoring"
)

// Event is a check or subscription outcome that should reach the user
type Event struct {
	Type         string
	User         *models.User
	Monitor      *models.Monitor
	Subscription *models.Subscription
	PageTitle    string
	PageExcerpt  string
	ErrorMessage string
	At           time.Time
}

func (e Event) isMonitorEvent() bool {
	return e.Type == models.NotificationKeywordFound || e.Type == models.NotificationCheckFailed
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

// render builds the subject and body for ev. The subject always fits the Subject column.
func render(ev Event) (string, string) {
	subject, body := compose(ev)
	return monitors.TruncateRunes(subject, models.MaxNotificationSubjectLength), body
}

func compose(ev Event) (string, string) {
	at := ev.At.UTC().Format(timestampLayout)

	switch ev.Type {
	case models.NotificationKeywordFound:
		subject := fmt.Sprintf("Alert: '%s' found on %s", ev.Monitor.Keyword, ev.Monitor.URL)
		body := fmt.Sprintf("Keyword Alert\n=============\n\n"+
			"Your monitored keyword '%s' has been found on:\n%s\n\n"+
			"Title: %s\nFound: %s\n\nExcerpt:\n%s\n",
			ev.Monitor.Keyword, ev.Monitor.URL, orNA(ev.PageTitle), at, orNA(ev.PageExcerpt))
		return subject, body + signature

	case models.NotificationCheckFailed:
		subject := fmt.Sprintf("Check failed: %s", ev.Monitor.URL)
		body := fmt.Sprintf("Check Failure\n=============\n\n"+
			"We could not check %s for '%s' at %s.\n\nError: %s\n\n"+
			"The monitor has been marked as errored.\n",
			ev.Monitor.URL, ev.Monitor.Keyword, at, orNA(ev.ErrorMessage))
		return subject, body + signature

	case models.NotificationSubscriptionExpiring:
		keyword, expires, days := subscriptionDetails(ev)
		subject := fmt.Sprintf("Your Keywatch Subscription Expiring Soon: %s", keyword)
		body := fmt.Sprintf("Subscription Expiring\n=====================\n\n"+
			"Your subscription for '%s' expires on %s (%d days remaining).\n"+
			"Renew before then to keep your monitors running.\n",
			keyword, expires, days)
		return subject, body + signature

	case models.NotificationSubscriptionExpired:
		target := ""
		if ev.Monitor != nil {
			target = ev.Monitor.URL
		}
		subject := fmt.Sprintf("Subscription Expired: %s", target)
		body := fmt.Sprintf("Your subscription for monitoring %s has expired. Please renew to continue monitoring.\n", target)
		return subject, body + signature
	}

	return ev.Type, ev.Type + signature
}

func subscriptionDetails(ev Event) (string, string, int) {
	if ev.Subscription == nil {
		return "", "N/A", 0
	}

	if ev.Subscription.ExpiresAt == nil {
		return ev.Subscription.Keyword, "never", 0
	}

	days := int(ev.Subscription.ExpiresAt.Sub(ev.At).Hours() / 24)

	return ev.Subscription.Keyword, ev.Subscription.ExpiresAt.UTC().Format(timestampLayout), days
}
