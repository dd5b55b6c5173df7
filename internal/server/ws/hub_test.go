package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// chanBus is a SignalBus whose subscriptions are plain channels.
type chanBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
	sub  sync.WaitGroup
}

func newChanBus() *chanBus {
	b := &chanBus{subs: map[string]chan []byte{}}
	b.sub.Add(len(Channels))
	return b
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 8)
	b.subs[channel] = ch
	b.sub.Done()
	return ch, nil
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	ch <- payload
	return nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHubRelaysFilteredEvents(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "server"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	bus.sub.Wait()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?events=7_0_national_all"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readEnvelope(t, conn)
	assert.Equal(t, "hello", hello.Type)

	// Wait until the hub has registered the client.
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 3*time.Second, 10*time.Millisecond)

	ctxPub := context.Background()
	require.NoError(t, bus.Publish(ctxPub, domain.ChannelOddsUpdate, []byte(`{"event_id":"8_0_national_all","market":"Match Winner"}`)))
	require.NoError(t, bus.Publish(ctxPub, domain.ChannelOddsUpdate, []byte(`{"event_id":"7_0_national_all","market":"Match Winner"}`)))

	got := readEnvelope(t, conn)
	assert.Equal(t, domain.ChannelOddsUpdate, got.Type)
	assert.Contains(t, string(got.Payload), "7_0_national_all")
}

func TestWants(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelBetSettled: true}, events: map[string]bool{}}
	assert.True(t, c.wants(domain.ChannelBetSettled, ""))
	assert.False(t, c.wants(domain.ChannelOddsUpdate, "1_0_national_all"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelOddsUpdate}, Events: []string{"1_0_national_all"}})
	assert.True(t, c.wants(domain.ChannelOddsUpdate, "1_0_national_all"))
	assert.False(t, c.wants(domain.ChannelOddsUpdate, "2_0_national_all"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Events: []string{"1_0_national_all"}})
	assert.True(t, c.wants(domain.ChannelOddsUpdate, "2_0_national_all"), "no filter means every event")
}

func TestFrameRejectsNonJSON(t *testing.T) {
	_, err := frame(domain.ChannelOddsUpdate, []byte("not json"))
	assert.Error(t, err)
}
