package models

import "github.com/google/uuid"

// Actor is the user issuing a command. It is always passed explicitly.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}
