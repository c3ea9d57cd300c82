package discord

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/nhassan/fieldops/internal/notify"
)

// mockSession implements the session interface for testing.
type mockSession struct {
	mu       sync.Mutex
	opened   bool
	closed   bool
	sent     []*discordgo.MessageSend
	channels []string
	sendErr  error
	failures int // number of times to fail before succeeding
}

func (m *mockSession) Open() error  { m.opened = true; return nil }
func (m *mockSession) Close() error { m.closed = true; return nil }

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nil, m.sendErr
	}
	m.sent = append(m.sent, data)
	m.channels = append(m.channels, channelID)
	return &discordgo.Message{}, nil
}

func (m *mockSession) AddHandler(handler interface{}) func() { return func() {} }

func newConnected(t *testing.T, sess *mockSession, channelID string) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{Session: sess, ChannelID: channelID})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

func TestNew_RequiresTokenWithoutSession(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestSend_RequiresConnect(t *testing.T) {
	a, err := New(AdapterOpts{Session: &mockSession{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error before Connect")
	}
}

func TestSend_UsesDefaultChannel(t *testing.T) {
	sess := &mockSession{}
	a := newConnected(t, sess, "chan-1")

	msg := notify.OutboundMessage{
		Events: []notify.FormattedEvent{{
			Title:    "Request #42 scheduled",
			Body:     "Plumbing",
			Color:    "#36a64f",
			Severity: "success",
			Fields:   []notify.Field{{Name: "Unit", Value: "B-12", Short: true}},
		}},
	}
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sess.sent) != 1 || sess.channels[0] != "chan-1" {
		t.Fatalf("sent = %d, channel = %v", len(sess.sent), sess.channels)
	}
	embed := sess.sent[0].Embeds[0]
	if embed.Title != "Request #42 scheduled" {
		t.Fatalf("embed title = %q", embed.Title)
	}
	if embed.Color != 0x36a64f {
		t.Fatalf("embed color = %#x, want 0x36a64f", embed.Color)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Fatalf("embed fields = %+v", embed.Fields)
	}
}

func TestSend_ExplicitChannelWins(t *testing.T) {
	sess := &mockSession{}
	a := newConnected(t, sess, "default-chan")

	msg := notify.OutboundMessage{ChannelID: "other-chan", Text: "hi"}
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sess.channels[0] != "other-chan" {
		t.Fatalf("channel = %q, want other-chan", sess.channels[0])
	}
}

func TestSend_NoChannelIsAnError(t *testing.T) {
	a := newConnected(t, &mockSession{}, "")
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	sess := &mockSession{
		failures: 2,
		sendErr: &discordgo.RESTError{
			Response: &http.Response{StatusCode: 429},
		},
	}
	a := newConnected(t, sess, "chan-1")
	a.baseBackoff = 0 // no waiting in tests

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if len(sess.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sess.sent))
	}
}

func TestClose_Idempotent(t *testing.T) {
	sess := &mockSession{}
	a := newConnected(t, sess, "chan-1")
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !sess.closed {
		t.Fatal("underlying session not closed")
	}
}

func TestParseHexColor(t *testing.T) {
	if got := parseHexColor("#36a64f"); got != 0x36a64f {
		t.Fatalf("parseHexColor = %#x, want 0x36a64f", got)
	}
	if got := parseHexColor("FF0000"); got != 0xff0000 {
		t.Fatalf("parseHexColor = %#x, want 0xff0000", got)
	}
}
