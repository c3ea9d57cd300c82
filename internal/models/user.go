// Package models holds the wire-level data types exchanged with the
// field-service backend's item API.
package models

// Role is a backend directory role ("customer", "supervisor", "technician").
type Role struct {
	Name string `json:"name"`
}

// User is the authenticated identity as the backend reports it, plus the
// profile fields the client flattens in at login time.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	MobileNumber   string `json:"mobile_number"`
	Unit           string `json:"unit"`
	Role           Role   `json:"role"`
	ProfileID      int    `json:"profile_id"`
	HasPrevRequest bool   `json:"has_prev_request"`
}

// Profile is a backend profile item linking a directory user to the
// field-service domain (customers, supervisors and technicians all have one).
type Profile struct {
	ID           int    `json:"id"`
	ProfileType  string `json:"profile_type"`
	Unit         string `json:"unit"`
	MobileNumber string `json:"mobile_number"`
	User         User   `json:"user"`
}
