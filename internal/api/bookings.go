package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhassan/fieldops/internal/models"
)

// BookingsService covers the booking collection.
type BookingsService struct {
	c *Client
}

// CreateBookingInput is the payload for scheduling a technician visit.
type CreateBookingInput struct {
	Request    int    `json:"request"`
	Technician int    `json:"technician"`
	TimeSlot   string `json:"time_slot"`
	Date       string `json:"date"`
}

// Create schedules a technician against a request.
func (s *BookingsService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	var out models.Booking
	if err := s.c.doJSON(ctx, http.MethodPost, "/items/booking", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListForTechnician returns a technician's bookings whose requests are
// still scheduled, with the requester details needed for the visit.
func (s *BookingsService) ListForTechnician(ctx context.Context, technicianID int) ([]models.Booking, error) {
	q := url.Values{}
	setFilterEq(q, "technician", strconv.Itoa(technicianID))
	setFilterEq(q, "request.status", models.StatusScheduled)
	setFields(q, "id", "time_slot", "date", "technician_notes", "request.*", "technician.id",
		"request.service.title", "request.profile.*", "request.profile.user.first_name")

	var out []models.Booking
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/booking", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateNotes records the technician's close-out notes on a booking.
func (s *BookingsService) UpdateNotes(ctx context.Context, bookingID int, notes string) (*models.Booking, error) {
	payload := map[string]string{"technician_notes": notes}
	var out models.Booking
	if err := s.c.doJSON(ctx, http.MethodPatch, "/items/booking/"+strconv.Itoa(bookingID), nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
