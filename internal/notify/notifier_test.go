package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingSender struct {
	name string
	err  error
	sent []string
}

func (s *recordingSender) Send(_ context.Context, title, message string) error {
	s.sent = append(s.sent, title+"|"+message)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func TestNotifyFiltersEvents(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, []string{"event_voided", " "}, discard())

	require.NoError(t, n.Notify(context.Background(), "bet_settled", "Bet", "ignored"))
	require.NoError(t, n.Notify(context.Background(), "event_voided", "Event voided", "7_0_national_all"))
	require.NoError(t, n.NotifyAll(context.Background(), "Startup", "hello"))

	assert.Equal(t, []string{"[event_voided] Event voided|7_0_national_all", "Startup|hello"}, rec.sent)
}

func TestNotifyCooldown(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{rec}, nil, discard())
	n.cooldown = time.Minute
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, "unresolved_leg", "Unresolved", "bet 1"))
	require.NoError(t, n.Notify(ctx, "unresolved_leg", "Unresolved", "bet 1"))
	require.NoError(t, n.Notify(ctx, "unresolved_leg", "Unresolved", "bet 2"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, n.Notify(ctx, "unresolved_leg", "Unresolved", "bet 1"))

	assert.Len(t, rec.sent, 3)
}

func TestDispatchJoinsFailures(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.sent, 1, "later senders still receive the alert")
}

func TestNewSkipsUnconfiguredSenders(t *testing.T) {
	assert.False(t, New(Config{TelegramToken: "tok"}, discard()).Enabled())
	assert.True(t, New(Config{DiscordWebhookURL: "https://discord.example/hook"}, discard()).Enabled())
}

func TestDiscordSender(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "Title", strings.Repeat("x", 3000)))
	content, _ := body["content"].(string)
	assert.True(t, strings.HasPrefix(content, "**Title**\n"))
	assert.Len(t, content, maxDiscordContent)
}

func TestTelegramSender(t *testing.T) {
	var (
		path string
		body map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["chat_id"] == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body_with_*markdown*"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "Title\nbody_with_*markdown*", body["text"])

	s.chatID = "bad"
	err := s.Send(context.Background(), "Title", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}
