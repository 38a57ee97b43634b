package suppression

import (
	"strings"
	"time"
)

// Reason states why an address must not receive mail.
type Reason string

const (
	ReasonBounce      Reason = "bounce"
	ReasonComplaint   Reason = "complaint"
	ReasonUnsubscribe Reason = "unsubscribe"
	ReasonManual      Reason = "manual"
)

// Valid reports whether the reason is one of the known values.
func (r Reason) Valid() bool {
	switch r {
	case ReasonBounce, ReasonComplaint, ReasonUnsubscribe, ReasonManual:
		return true
	}
	return false
}

// Entry is one suppressed address. Upserts keep the latest reason as current
// and push the previous one into History, so nothing is ever lost.
type Entry struct {
	Address  string            `json:"address"`
	Reason   Reason            `json:"reason"`
	AddedAt  time.Time         `json:"added_at"`
	Metadata map[string]string `json:"metadata,omitempty"`
	History  []HistoryItem     `json:"history,omitempty"`
}

// HistoryItem records a superseded suppression reason.
type HistoryItem struct {
	Reason  Reason    `json:"reason"`
	AddedAt time.Time `json:"added_at"`
}

// CanonicalAddress normalizes an email address for case-insensitive matching.
func CanonicalAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
