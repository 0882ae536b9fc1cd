// Package types holds the shared data model for the chat backend.
package types

import "time"

// Character is the persisted persona profile. Read-only during a request.
type Character struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         string    `json:"age"`
	Gender      string    `json:"gender"`
	Birthday    string    `json:"birthday"`
	Appearance  string    `json:"appearance"`
	Personality string    `json:"personality"`
	Scenario    string    `json:"scenario"`
	Goal        string    `json:"goal"`
	Other       string    `json:"other"`
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
