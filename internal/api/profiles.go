package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nhassan/fieldops/internal/models"
)

// ProfilesService covers the profile collection.
type ProfilesService struct {
	c *Client
}

// Technicians returns every technician profile, for assignment pickers.
func (s *ProfilesService) Technicians(ctx context.Context) ([]models.Profile, error) {
	q := url.Values{}
	setFilterEq(q, "profile_type", "technician")
	setFields(q, "id", "user.first_name")

	var out []models.Profile
	if err := s.c.doJSON(ctx, http.MethodGet, "/items/profile", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
