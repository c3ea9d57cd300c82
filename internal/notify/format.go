package notify

import (
	"fmt"
	"strings"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// statusVerb returns a human-friendly verb for a request status transition.
func statusVerb(newStatus string) string {
	switch newStatus {
	case "pending":
		return "submitted"
	case "scheduled":
		return "scheduled"
	case "done":
		return "completed"
	case "rejected":
		return "rejected"
	default:
		return newStatus
	}
}

// statusSeverity returns the appropriate severity for a request status.
func statusSeverity(newStatus string) string {
	switch newStatus {
	case "done":
		return "success"
	case "rejected":
		return "warning"
	default:
		return "info"
	}
}

// FormatRequestEvent formats a request-created or status-change event.
func FormatRequestEvent(event DetectedEvent) FormattedEvent {
	verb := statusVerb(event.NewStatus)
	severity := statusSeverity(event.NewStatus)

	title := fmt.Sprintf("Request #%d %s", event.RequestID, verb)
	if event.Type == EventRequestCreated {
		title = fmt.Sprintf("New request #%d", event.RequestID)
		severity = "info"
	}

	var bodyParts []string
	if event.Service != "" {
		bodyParts = append(bodyParts, event.Service)
	}
	if event.OldStatus != "" {
		bodyParts = append(bodyParts, fmt.Sprintf("%s to %s", event.OldStatus, event.NewStatus))
	}
	body := strings.Join(bodyParts, "\n")

	fields := []Field{
		{Name: "Request", Value: fmt.Sprintf("#%d", event.RequestID), Short: true},
		{Name: "Status", Value: event.NewStatus, Short: true},
	}
	if event.Unit != "" {
		fields = append(fields, Field{Name: "Unit", Value: event.Unit, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatChatEvent formats a new-chat-message event.
func FormatChatEvent(event DetectedEvent) FormattedEvent {
	title := fmt.Sprintf("New message on request #%d", event.RequestID)

	body := event.Text
	if event.SenderName != "" {
		body = fmt.Sprintf("%s: %s", event.SenderName, event.Text)
	}

	fields := []Field{
		{Name: "Request", Value: fmt.Sprintf("#%d", event.RequestID), Short: true},
	}
	if event.SenderName != "" {
		fields = append(fields, Field{Name: "From", Value: event.SenderName, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: "info",
		Color:    ColorInfo,
		Fields:   fields,
	}
}

// FormatDigest formats a status-count digest.
func FormatDigest(d StatusDigest) FormattedEvent {
	title := "Service desk digest"
	body := fmt.Sprintf("%d pending, %d scheduled, %d done, %d rejected",
		d.Pending, d.Scheduled, d.Done, d.Rejected)

	severity := "info"
	if d.Pending > 0 {
		severity = "warning"
	}

	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields: []Field{
			{Name: "Pending", Value: fmt.Sprintf("%d", d.Pending), Short: true},
			{Name: "Scheduled", Value: fmt.Sprintf("%d", d.Scheduled), Short: true},
		},
	}
}

// FormatEvent routes a detected event to the right formatter.
func FormatEvent(event DetectedEvent) FormattedEvent {
	switch event.Type {
	case EventRequestCreated, EventStatusChange:
		return FormatRequestEvent(event)
	case EventChatMessage:
		return FormatChatEvent(event)
	case EventDigest:
		return FormattedEvent{
			Title:    event.Title,
			Body:     event.Body,
			Severity: "info",
			Color:    ColorInfo,
		}
	default:
		return FormattedEvent{
			Title:    string(event.Type),
			Severity: "info",
			Color:    ColorInfo,
		}
	}
}
