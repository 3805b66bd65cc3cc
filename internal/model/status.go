package model

import (
	"encoding/json"
	"strings"
)

// Status is the closed participant status variant.
//
// Two vocabularies meet at the boundary: the backend-native
// active/suspended/left/deleted and the legacy dashboard terms frozen/banned.
// Parse accepts both; ToDisplay and ToBackend render one or the other.
type Status int

const (
	StatusUnknown Status = iota
	StatusActive
	StatusSuspended
	StatusLeft
	StatusDeleted
)

// ParseStatus maps either vocabulary, case-insensitively, to a Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive
	case "suspended", "frozen":
		return StatusSuspended
	case "left":
		return StatusLeft
	case "deleted", "banned":
		return StatusDeleted
	default:
		return StatusUnknown
	}
}

// ToDisplay renders the dashboard vocabulary.
func (s Status) ToDisplay() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "frozen"
	case StatusLeft:
		return "left"
	case StatusDeleted:
		return "banned"
	default:
		return "unknown"
	}
}

// ToBackend renders the backend-native vocabulary.
func (s Status) ToBackend() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusLeft:
		return "left"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

func (s Status) String() string {
	return s.ToBackend()
}

// MarshalJSON encodes the backend-native term.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToBackend())
}

// UnmarshalJSON accepts either vocabulary.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}
