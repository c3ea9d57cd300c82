package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhassan/fieldops/internal/models"
)

// ChatService covers the chat-message collection. The polling
// synchronizer in the chat package consumes it.
type ChatService struct {
	c *Client
}

// Messages returns a request's conversation, oldest first. The backend
// orders by creation time and breaks ties by arrival.
func (s *ChatService) Messages(ctx context.Context, requestID int) ([]models.ChatMessage, error) {
	q := url.Values{}
	setFilterEq(q, "request", strconv.Itoa(requestID))
	setSort(q, "date_created")
	setFields(q, "request.id", "sender.*", "*")

	var out []models.ChatMessage
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/chat_messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send posts one message to a request's conversation. The sender is
// filled server-side from the access token.
func (s *ChatService) Send(ctx context.Context, requestID int, text string) (*models.ChatMessage, error) {
	payload := map[string]interface{}{
		"request": requestID,
		"message": text,
	}
	var out models.ChatMessage
	if err := s.c.doJSON(ctx, http.MethodPost, "/items/chat_messages", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
