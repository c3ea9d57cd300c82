package models

import "time"

// Booking assigns a technician and a time slot to a service request.
type Booking struct {
	ID              int            `json:"id"`
	TimeSlot        string         `json:"time_slot"`
	Date            string         `json:"date"`
	TechnicianNotes string         `json:"technician_notes"`
	Technician      Profile        `json:"technician"`
	Request         ServiceRequest `json:"request"`
	DateCreated     time.Time      `json:"date_created"`
}
