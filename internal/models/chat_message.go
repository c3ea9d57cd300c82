package models

import "time"

// ChatMessage is one line in a service request's conversation as the
// backend returns it. The sender is filled server-side from the access
// token, so a send payload only carries the request id and text.
type ChatMessage struct {
	ID          int       `json:"id"`
	Message     string    `json:"message"`
	Sender      User      `json:"sender"`
	Request     RequestRef `json:"request"`
	DateCreated time.Time `json:"date_created"`
}

// RequestRef is the shallow request relation embedded in a chat message.
type RequestRef struct {
	ID int `json:"id"`
}
