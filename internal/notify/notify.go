// Package notify delivers limit alerts. Every alert is recorded in the
// notification log and optionally pushed to external services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

// Message is one alert.
type Message struct {
	Channel   string
	Title     string
	Body      string
	DedupeKey string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Recorder appends messages to the notification log.
type Recorder struct {
	store storage.NotificationStore
	now   func() time.Time
}

// NewRecorder creates a recorder backed by store.
func NewRecorder(store storage.NotificationStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) Notify(ctx context.Context, msg Message) error {
	_, err := r.store.Add(ctx, storage.NotificationRecord{
		Title:     msg.Title,
		Message:   msg.Body,
		Timestamp: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// Shoutrrr pushes messages to shoutrrr service URLs.
type Shoutrrr struct {
	sender *router.ServiceRouter
}

// NewShoutrrr builds a sender for urls. Invalid URLs fail here rather than
// on first delivery.
func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("create shoutrrr sender: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: sender}, nil
}

func (s *Shoutrrr) Notify(_ context.Context, msg Message) error {
	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}

	var errs []error
	for _, err := range s.sender.Send(msg.Body, &params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("push notification: %w", errors.Join(errs...))
	}
	return nil
}

// Fanout delivers to every notifier, even when an earlier one fails.
type Fanout struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewFanout combines notifiers. Nil entries are skipped.
func NewFanout(logger zerolog.Logger, notifiers ...Notifier) *Fanout {
	kept := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &Fanout{
		notifiers: kept,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify returns the joined delivery errors after logging each one.
func (f *Fanout) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			f.logger.Warn().
				Err(err).
				Str("channel", msg.Channel).
				Str("dedupe_key", msg.DedupeKey).
				Msg("Notification delivery failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
