package slack

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/nhassan/fieldops/internal/notify"
)

// mockClient implements the slackClient interface for testing.
type mockClient struct {
	mu       sync.Mutex
	authErr  error
	posted   []string // channel IDs
	postErr  error
	failures int // rate-limit failures before succeeding
}

func (m *mockClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return &slackapi.AuthTestResponse{UserID: "bot-user"}, nil
}

func (m *mockClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posted = append(m.posted, channelID)
	return channelID, "ts", nil
}

func newConnected(t *testing.T, client *mockClient, channelID string) *Adapter {
	t.Helper()
	a, err := New(AdapterOpts{Client: client, ChannelID: channelID})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return a
}

func TestNew_RequiresTokenWithoutClient(t *testing.T) {
	if _, err := New(AdapterOpts{}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestConnect_AuthFailure(t *testing.T) {
	a, err := New(AdapterOpts{Client: &mockClient{authErr: fmt.Errorf("invalid_auth")}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error from failed auth test")
	}
}

func TestSend_RequiresConnect(t *testing.T) {
	a, err := New(AdapterOpts{Client: &mockClient{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error before Connect")
	}
}

func TestSend_UsesDefaultChannel(t *testing.T) {
	client := &mockClient{}
	a := newConnected(t, client, "C123")

	msg := notify.OutboundMessage{
		Events: []notify.FormattedEvent{{Title: "New request #7", Color: "#2196f3"}},
	}
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(client.posted) != 1 || client.posted[0] != "C123" {
		t.Fatalf("posted = %v", client.posted)
	}
}

func TestSend_NoChannelIsAnError(t *testing.T) {
	a := newConnected(t, &mockClient{}, "")
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error for missing channel")
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	client := &mockClient{failures: 2}
	a := newConnected(t, client, "C123")

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if len(client.posted) != 1 {
		t.Fatalf("posted = %d, want 1", len(client.posted))
	}
}

func TestSend_NonRateLimitErrorNotRetried(t *testing.T) {
	client := &mockClient{postErr: fmt.Errorf("channel_not_found")}
	a := newConnected(t, client, "C123")

	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if len(client.posted) != 0 {
		t.Fatalf("posted = %d, want 0", len(client.posted))
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(notify.FormattedEvent{
		Title: "Request #42 completed",
		Body:  "Plumbing",
		Color: "#36a64f",
		Fields: []notify.Field{
			{Name: "Unit", Value: "B-12", Short: true},
		},
	})
	if att.Title != "Request #42 completed" || att.Color != "#36a64f" {
		t.Fatalf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Unit" {
		t.Fatalf("fields = %+v", att.Fields)
	}
}

func TestClose_SendAfterCloseFails(t *testing.T) {
	a := newConnected(t, &mockClient{}, "C123")
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Send(context.Background(), notify.OutboundMessage{Text: "hi"}); err == nil {
		t.Fatal("expected error after Close")
	}
}
