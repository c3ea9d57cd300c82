package models

import "time"

// Request statuses as stored by the backend.
const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusDone      = "done"
	StatusRejected  = "rejected"
)

// Service is a bookable service category (plumbing, electrical, ...).
type Service struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// RequestFile wraps an attachment relation on a service request. The
// backend stores many-to-many file links as {directus_files_id: <file>}.
type RequestFile struct {
	File FileInfo `json:"directus_files_id"`
}

// FileInfo is the file metadata the backend returns for an attachment.
type FileInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Filename string `json:"filename_download"`
}

// ServiceRequest is a customer's request for service. The preferred-date
// field names carry the backend's spelling; they are part of the wire format.
type ServiceRequest struct {
	ID                int           `json:"id"`
	Status            string        `json:"status"`
	AdditionalDetails string        `json:"additional_details"`
	PreferedDate      string        `json:"prefered_date"`
	PreferedTimeSlot  string        `json:"prefered_time_slot"`
	Service           Service       `json:"service"`
	Profile           Profile       `json:"profile"`
	Files             []RequestFile `json:"files"`
	Booking           int           `json:"booking,omitempty"`
	IsReviewed        bool          `json:"is_reviewed"`
	ReviewRating      int           `json:"review_rating,omitempty"`
	ReviewComment     string        `json:"review_comment,omitempty"`
	DateCreated       time.Time     `json:"date_created"`
	DateUpdated       *time.Time    `json:"date_updated"`
}
