package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhassan/fieldops/internal/models"
)

// RequestsService covers the service-request collection.
type RequestsService struct {
	c *Client
}

// FileRelation links an uploaded file to a request, in the backend's
// many-to-many relation shape.
type FileRelation struct {
	FileID string `json:"directus_files_id"`
}

// CreateRequestInput is the payload for a new service request.
type CreateRequestInput struct {
	Service           int            `json:"service"`
	Profile           int            `json:"profile"`
	AdditionalDetails string         `json:"additional_details"`
	Files             []FileRelation `json:"files"`
	PreferedDate      string         `json:"prefered_date"`
	PreferedTimeSlot  string         `json:"prefered_time_slot"`
}

// Create submits a new service request for a customer profile.
func (s *RequestsService) Create(ctx context.Context, in CreateRequestInput) (*models.ServiceRequest, error) {
	var out models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodPost, "/items/request", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByProfile returns a customer's own requests, newest first.
func (s *RequestsService) ListByProfile(ctx context.Context, profileID int) ([]models.ServiceRequest, error) {
	q := url.Values{}
	setFilterEq(q, "profile", strconv.Itoa(profileID))
	setSort(q, "-date_created")
	setFields(q, "id", "service.title", "status", "date_updated")

	var out []models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/request", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll returns every request with its requesting profile, newest
// first. Supervisors use this for the assignment queue.
func (s *RequestsService) ListAll(ctx context.Context) ([]models.ServiceRequest, error) {
	q := url.Values{}
	setSort(q, "-date_created")
	setFields(q, "id", "status", "prefered_time_slot", "prefered_date", "profile.*", "profile.user.*")

	var out []models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/request", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one request with its attachments and requester, or nil
// when the id does not exist.
func (s *RequestsService) Get(ctx context.Context, id int) (*models.ServiceRequest, error) {
	q := url.Values{}
	setFilterEq(q, "id", strconv.Itoa(id))
	setFields(q, "*", "files.directus_files_id.*", "service.title", "profile.*", "profile.user.first_name", "profile.user.last_name")

	var out []models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/request", q, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// UpdateStatus moves a request through its lifecycle, optionally linking
// the booking that scheduled it.
func (s *RequestsService) UpdateStatus(ctx context.Context, id int, status string, bookingID int) (*models.ServiceRequest, error) {
	payload := map[string]interface{}{"status": status}
	if bookingID != 0 {
		payload["booking"] = bookingID
	}
	var out models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodPatch, "/items/request/"+strconv.Itoa(id), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LastCompletedUnreviewed returns the customer's most recent finished
// request that still awaits a review, or nil when there is none.
func (s *RequestsService) LastCompletedUnreviewed(ctx context.Context, profileID int) (*models.ServiceRequest, error) {
	q := url.Values{}
	setFilterEq(q, "profile", strconv.Itoa(profileID))
	setFilterEq(q, "status", models.StatusDone)
	setFilterEq(q, "is_reviewed", "false")
	setSort(q, "-date_created")
	q.Set("limit", "1")
	setFields(q, "id", "service.title", "date_created", "is_reviewed")

	var out []models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/request", q, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// SubmitReview records a rating and comment and marks the request reviewed.
func (s *RequestsService) SubmitReview(ctx context.Context, id, rating int, comment string) (*models.ServiceRequest, error) {
	payload := map[string]interface{}{
		"review_rating":  rating,
		"review_comment": comment,
		"is_reviewed":    true,
	}
	var out models.ServiceRequest
	if err := s.c.doJSON(ctx, http.MethodPatch, "/items/request/"+strconv.Itoa(id), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
