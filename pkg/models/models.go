// Package models contains domain models for the bandhanheal backend.
package models

// SessionMode is how a therapy session is delivered.
type SessionMode string

const (
	ModeOnline  SessionMode = "Online"
	ModeOffline SessionMode = "Offline"
	ModeHybrid  SessionMode = "Hybrid" // profile preference only, never a booking mode
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	StatusUpcoming  BookingStatus = "Upcoming"
	StatusCompleted BookingStatus = "Completed"
	StatusCancelled BookingStatus = "Cancelled"
)

// Terminal reports whether no further status transition is defined.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	return s == StatusUpcoming || s == StatusCompleted || s == StatusCancelled
}

// User is an account record. PasswordHash never leaves the auth package.
type User struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	RelationshipStatus string `json:"relationshipStatus,omitempty"`
	PasswordHash       string `json:"-"`
	CreatedAt          string `json:"createdAt"`
	CreatedAtEpoch     int64  `json:"createdAtEpoch"`
}

// Profile is the singleton intake record for a user. Writes are full-replace.
type Profile struct {
	UserID        string      `json:"userId"`
	Name          string      `json:"name"`
	PartnerName   string      `json:"partnerName,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	Issues        []string    `json:"issues"`
	PreferredMode SessionMode `json:"preferredMode"`
	Budget        string      `json:"budget,omitempty"`
	Location      string      `json:"location,omitempty"`
	UpdatedAt     string      `json:"updatedAt"`
}

// Booking is a scheduled therapy session. Immutable after creation except for
// Status, UpdatedAt and Version.
type Booking struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	TherapistID    string        `json:"therapistId"`
	TherapistName  string        `json:"therapistName"`
	Date           string        `json:"date"`
	Time           string        `json:"time"`
	Mode           SessionMode   `json:"mode"`
	Status         BookingStatus `json:"status"`
	ClinicAddress  string        `json:"clinicAddress,omitempty"`
	SessionLink    string        `json:"sessionLink,omitempty"`
	CreatedAt      string        `json:"createdAt"`
	CreatedAtEpoch int64         `json:"createdAtEpoch"`
	UpdatedAt      string        `json:"updatedAt,omitempty"`
	Version        int64         `json:"version"`
}

// SessionNote holds post-session notes for one booking. The booking is not
// required to exist; a later note for the same booking replaces the earlier.
type SessionNote struct {
	UserID         string   `json:"userId"`
	BookingID      string   `json:"bookingId"`
	Notes          string   `json:"notes"`
	ActionItems    []string `json:"actionItems"`
	CreatedAt      string   `json:"createdAt"`
	CreatedAtEpoch int64    `json:"createdAtEpoch"`
}

// Mood and satisfaction ratings are integers on a 1-10 scale.
const (
	RatingMin = 1
	RatingMax = 10
)

// ProgressEntry is one check-in per (user, week). Re-submitting a week
// overwrites the earlier entry.
type ProgressEntry struct {
	UserID         string `json:"userId"`
	Week           string `json:"week"`
	Mood           int    `json:"mood"`
	Satisfaction   int    `json:"satisfaction"`
	Notes          string `json:"notes"`
	CreatedAt      string `json:"createdAt"`
	CreatedAtEpoch int64  `json:"createdAtEpoch"`
}
