package domain

import "time"

type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict records a detected overlap between two bookings sharing a
// resource. Resolved conflicts are retained for audit and never deleted.
type Conflict struct {
	ID              string         `json:"id"`
	OrgID           string         `json:"org_id"`
	BookingA        string         `json:"booking_a"`
	BookingB        string         `json:"booking_b"`
	Resource        string         `json:"resource"`
	Status          ConflictStatus `json:"status"`
	Resolution      string         `json:"resolution,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	DetectedAt      time.Time      `json:"detected_at"`
}
