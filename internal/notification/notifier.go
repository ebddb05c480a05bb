// Package notification delivers recent-signal alerts to external channels
// (log, Telegram, webhooks).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Ticker  string     `json:"ticker,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert builds the alert for a buy or sell that landed within the
// last few bars of a ticker's series.
func SignalAlert(ticker, policy, side string, date time.Time, barsAgo int, confidence float64) Alert {
	when := "on the last bar"
	if barsAgo == 1 {
		when = "1 bar ago"
	} else if barsAgo > 1 {
		when = fmt.Sprintf("%d bars ago", barsAgo)
	}
	return Alert{
		Level:  AlertInfo,
		Ticker: ticker,
		Title:  fmt.Sprintf("%s %s signal", ticker, side),
		Message: fmt.Sprintf("%s issued a %s on %s (%s), confidence %.0f",
			policy, side, date.Format("2006-01-02"), when, confidence),
	}
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
