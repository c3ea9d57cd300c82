package notify

import (
	"strings"
	"testing"
	"time"
)

func TestFormatRequestEvent_StatusChange(t *testing.T) {
	evt := FormatRequestEvent(DetectedEvent{
		Type:      EventStatusChange,
		Timestamp: time.Now(),
		RequestID: 42,
		OldStatus: "pending",
		NewStatus: "scheduled",
		Service:   "Plumbing",
		Unit:      "B-12",
	})
	if evt.Title != "Request #42 scheduled" {
		t.Fatalf("title = %q", evt.Title)
	}
	if !strings.Contains(evt.Body, "pending to scheduled") {
		t.Fatalf("body = %q", evt.Body)
	}
	if evt.Color != ColorInfo {
		t.Fatalf("color = %q, want %q", evt.Color, ColorInfo)
	}
	if len(evt.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(evt.Fields))
	}
}

func TestFormatRequestEvent_Created(t *testing.T) {
	evt := FormatRequestEvent(DetectedEvent{
		Type:      EventRequestCreated,
		RequestID: 7,
		NewStatus: "pending",
		Service:   "Electrical",
	})
	if evt.Title != "New request #7" {
		t.Fatalf("title = %q", evt.Title)
	}
	if !strings.Contains(evt.Body, "Electrical") {
		t.Fatalf("body = %q", evt.Body)
	}
}

func TestFormatRequestEvent_DoneIsSuccess(t *testing.T) {
	evt := FormatRequestEvent(DetectedEvent{
		Type:      EventStatusChange,
		RequestID: 3,
		OldStatus: "scheduled",
		NewStatus: "done",
	})
	if evt.Severity != "success" || evt.Color != ColorSuccess {
		t.Fatalf("severity = %q, color = %q", evt.Severity, evt.Color)
	}
}

func TestFormatChatEvent(t *testing.T) {
	evt := FormatChatEvent(DetectedEvent{
		Type:       EventChatMessage,
		RequestID:  42,
		SenderName: "Nadia",
		Text:       "any update?",
	})
	if evt.Title != "New message on request #42" {
		t.Fatalf("title = %q", evt.Title)
	}
	if evt.Body != "Nadia: any update?" {
		t.Fatalf("body = %q", evt.Body)
	}
}

func TestFormatDigest(t *testing.T) {
	evt := FormatDigest(StatusDigest{Pending: 2, Scheduled: 1, Done: 5})
	if !strings.Contains(evt.Body, "2 pending") || !strings.Contains(evt.Body, "1 scheduled") {
		t.Fatalf("body = %q", evt.Body)
	}
	if evt.Severity != "warning" {
		t.Fatalf("severity = %q, want warning (pending work)", evt.Severity)
	}
}

func TestFormatEvent_RoutesByType(t *testing.T) {
	chat := FormatEvent(DetectedEvent{Type: EventChatMessage, RequestID: 1, Text: "hi"})
	if !strings.Contains(chat.Title, "message") {
		t.Fatalf("chat title = %q", chat.Title)
	}
	digest := FormatEvent(DetectedEvent{Type: EventDigest, Title: "Digest", Body: "counts"})
	if digest.Title != "Digest" || digest.Body != "counts" {
		t.Fatalf("digest = %+v", digest)
	}
}

func TestSeverityColor_UnknownDefaultsToInfo(t *testing.T) {
	if c := severityColor("bogus"); c != ColorInfo {
		t.Fatalf("color = %q, want %q", c, ColorInfo)
	}
}
