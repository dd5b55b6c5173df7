// Package notify delivers operator alerts (unresolved markets, voided events,
// failed settlements) to chat channels. Alerts are filtered by event type and
// repeated alerts are suppressed for a cooldown window.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Config selects the senders to build. Empty credentials leave a sender out.
type Config struct {
	TelegramToken     string
	TelegramChatID    string
	DiscordWebhookURL string
	Events            []string
	Cooldown          time.Duration
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards events whose type is in the allowed set; NotifyAll bypasses the
// filter.
type Notifier struct {
	senders  []Sender
	events   map[string]bool // allowed event types
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time // event+title -> last delivery
}

// New builds a Notifier from cfg.
func New(cfg Config, logger *slog.Logger) *Notifier {
	var senders []Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, NewDiscordSender(cfg.DiscordWebhookURL))
	}
	n := NewNotifier(senders, cfg.Events, logger)
	n.cooldown = cfg.Cooldown
	return n
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends a notification to all senders if the event type is allowed and
// the same alert was not sent within the cooldown.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notifier: event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	if n.suppressed(event + "\x00" + title + "\x00" + message) {
		n.logger.DebugContext(ctx, "notifier: duplicate alert suppressed",
			slog.String("event", event),
		)
		return nil
	}
	return n.dispatch(ctx, fmt.Sprintf("[%s] %s", event, title), message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) suppressed(key string) bool {
	if n.cooldown <= 0 {
		return false
	}
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return true
	}
	n.lastSent[key] = now
	for k, t := range n.lastSent {
		if now.Sub(t) >= n.cooldown {
			delete(n.lastSent, k)
		}
	}
	return false
}

// dispatch sends to every sender. A single sender failure does not prevent
// delivery to the remaining senders; failures are joined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notifier: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notifier: notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
