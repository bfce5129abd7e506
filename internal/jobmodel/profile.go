package jobmodel

import "time"

// Profile is a named, reusable Settings bundle an operator can save and
// apply at start time (SPEC_FULL.md §4).
type Profile struct {
	Name      string    `json:"name"`
	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
}
