package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/bandhanheal/backend/internal/kv"
	"github.com/bandhanheal/backend/pkg/models"
)

// Service performs all record operations for authenticated users. It holds no
// state of its own; everything lives in the kv store.
type Service struct {
	store kv.Store
	now   func() time.Time
}

// NewService creates a record service over the given store.
func NewService(store kv.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ProfileInput carries the full-replace payload for UpsertProfile.
type ProfileInput struct {
	Name          string
	PartnerName   string
	Phone         string
	Issues        []string
	PreferredMode models.SessionMode
	Budget        string
	Location      string
}

// BookingInput carries the creation payload for CreateBooking.
type BookingInput struct {
	TherapistID   string
	TherapistName string
	Date          string
	Time          string
	Mode          models.SessionMode
	ClinicAddress string
	SessionLink   string
}

// NoteInput carries the payload for CreateSessionNote.
type NoteInput struct {
	BookingID   string
	Notes       string
	ActionItems []string
}

// ProgressInput carries the payload for UpsertProgressEntry.
type ProgressInput struct {
	Week         string
	Mood         int
	Satisfaction int
	Notes        string
}

// UpsertProfile replaces the caller's profile wholesale and returns the stored
// representation. Creating and updating are the same write.
func (s *Service) UpsertProfile(ctx context.Context, userID string, in ProfileInput) (*models.Profile, error) {
	if in.Name == "" {
		return nil, invalidField("name", "required")
	}
	switch in.PreferredMode {
	case models.ModeOnline, models.ModeOffline, models.ModeHybrid:
	default:
		return nil, invalidField("preferredMode", "must be Online, Offline or Hybrid")
	}

	profile := &models.Profile{
		UserID:        userID,
		Name:          in.Name,
		PartnerName:   in.PartnerName,
		Phone:         in.Phone,
		Issues:        dedupe(in.Issues),
		PreferredMode: in.PreferredMode,
		Budget:        in.Budget,
		Location:      in.Location,
		UpdatedAt:     s.now().UTC().Format(time.RFC3339),
	}

	if err := s.put(ctx, profileKey(userID), profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetProfile returns the caller's profile, or ErrNotFound.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.get(ctx, profileKey(userID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateBooking validates the mode-dependent fields, assigns a fresh id and
// stores the booking as Upcoming.
func (s *Service) CreateBooking(ctx context.Context, userID string, in BookingInput) (*models.Booking, error) {
	if in.TherapistID == "" {
		return nil, invalidField("therapistId", "required")
	}
	if in.Date == "" {
		return nil, invalidField("date", "required")
	}
	if in.Time == "" {
		return nil, invalidField("time", "required")
	}
	switch in.Mode {
	case models.ModeOnline:
		if in.SessionLink == "" {
			return nil, invalidField("sessionLink", "required for Online bookings")
		}
	case models.ModeOffline:
		if in.ClinicAddress == "" {
			return nil, invalidField("clinicAddress", "required for Offline bookings")
		}
	default:
		return nil, invalidField("mode", "must be Online or Offline")
	}

	now := s.now().UTC()
	booking := &models.Booking{
		ID:             uuid.NewString(),
		UserID:         userID,
		TherapistID:    in.TherapistID,
		TherapistName:  in.TherapistName,
		Date:           in.Date,
		Time:           in.Time,
		Mode:           in.Mode,
		Status:         models.StatusUpcoming,
		ClinicAddress:  in.ClinicAddress,
		SessionLink:    in.SessionLink,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
		Version:        1,
	}

	if err := s.put(ctx, bookingKey(userID, booking.ID), booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// ListBookings returns every booking owned by the caller, oldest first.
func (s *Service) ListBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	entries, err := s.store.ScanPrefix(ctx, bookingPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	bookings := make([]models.Booking, 0, len(entries))
	for _, e := range entries {
		var b models.Booking
		if err := json.Unmarshal(e.Value, &b); err != nil {
			return nil, fmt.Errorf("decode %q: %w", e.Key, err)
		}
		bookings = append(bookings, b)
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].CreatedAtEpoch != bookings[j].CreatedAtEpoch {
			return bookings[i].CreatedAtEpoch < bookings[j].CreatedAtEpoch
		}
		return bookings[i].ID < bookings[j].ID
	})
	return bookings, nil
}

// UpdateBookingStatus transitions a booking from Upcoming to a terminal
// status. The write is a compare-and-swap over the bytes read, so a concurrent
// update surfaces as ErrConflict instead of a silent lost update.
func (s *Service) UpdateBookingStatus(ctx context.Context, userID, bookingID string, status models.BookingStatus) (*models.Booking, error) {
	if !status.Valid() || status == models.StatusUpcoming {
		return nil, invalidField("status", "must be Completed or Cancelled")
	}

	key := bookingKey(userID, bookingID)
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch booking: %w", err)
	}

	var booking models.Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	if booking.UserID != userID {
		return nil, ErrForbidden
	}
	if booking.Status.Terminal() {
		return nil, ErrConflict
	}

	booking.Status = status
	booking.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	booking.Version++

	next, err := json.Marshal(&booking)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", key, err)
	}
	swapped, err := s.store.SetIfMatch(ctx, key, raw, next)
	if err != nil {
		return nil, fmt.Errorf("write booking: %w", err)
	}
	if !swapped {
		return nil, ErrConflict
	}
	return &booking, nil
}

// CreateSessionNote stores the note for one booking. The booking is not
// checked for existence, and a later note for the same booking replaces the
// earlier one; both are the product's current behavior.
func (s *Service) CreateSessionNote(ctx context.Context, userID string, in NoteInput) (*models.SessionNote, error) {
	if in.BookingID == "" {
		return nil, invalidField("bookingId", "required")
	}

	now := s.now().UTC()
	note := &models.SessionNote{
		UserID:         userID,
		BookingID:      in.BookingID,
		Notes:          in.Notes,
		ActionItems:    in.ActionItems,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
	}

	if err := s.put(ctx, noteKey(userID, in.BookingID), note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListSessionNotes returns every session note owned by the caller, oldest
// first.
func (s *Service) ListSessionNotes(ctx context.Context, userID string) ([]models.SessionNote, error) {
	entries, err := s.store.ScanPrefix(ctx, notePrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	notes := make([]models.SessionNote, 0, len(entries))
	for _, e := range entries {
		var n models.SessionNote
		if err := json.Unmarshal(e.Value, &n); err != nil {
			return nil, fmt.Errorf("decode %q: %w", e.Key, err)
		}
		notes = append(notes, n)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].CreatedAtEpoch != notes[j].CreatedAtEpoch {
			return notes[i].CreatedAtEpoch < notes[j].CreatedAtEpoch
		}
		return notes[i].BookingID < notes[j].BookingID
	})
	return notes, nil
}

// UpsertProgressEntry writes the caller's check-in for one week; the week
// label is the key, so the write is idempotent and last-write-wins.
func (s *Service) UpsertProgressEntry(ctx context.Context, userID string, in ProgressInput) (*models.ProgressEntry, error) {
	if in.Week == "" {
		return nil, invalidField("week", "required")
	}
	if in.Mood < models.RatingMin || in.Mood > models.RatingMax {
		return nil, invalidField("mood", fmt.Sprintf("must be between %d and %d", models.RatingMin, models.RatingMax))
	}
	if in.Satisfaction < models.RatingMin || in.Satisfaction > models.RatingMax {
		return nil, invalidField("satisfaction", fmt.Sprintf("must be between %d and %d", models.RatingMin, models.RatingMax))
	}

	now := s.now().UTC()
	entry := &models.ProgressEntry{
		UserID:         userID,
		Week:           in.Week,
		Mood:           in.Mood,
		Satisfaction:   in.Satisfaction,
		Notes:          in.Notes,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
	}

	if err := s.put(ctx, progressKey(userID, in.Week), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListProgressEntries returns every progress entry owned by the caller,
// oldest first.
func (s *Service) ListProgressEntries(ctx context.Context, userID string) ([]models.ProgressEntry, error) {
	entries, err := s.store.ScanPrefix(ctx, progressPrefix(userID))
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	out := make([]models.ProgressEntry, 0, len(entries))
	for _, e := range entries {
		var p models.ProgressEntry
		if err := json.Unmarshal(e.Value, &p); err != nil {
			return nil, fmt.Errorf("decode %q: %w", e.Key, err)
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAtEpoch != out[j].CreatedAtEpoch {
			return out[i].CreatedAtEpoch < out[j].CreatedAtEpoch
		}
		return out[i].Week < out[j].Week
	})
	return out, nil
}

// get fetches and decodes one record, translating kv.ErrNotFound.
func (s *Service) get(ctx context.Context, key string, dst any) error {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// put encodes and writes one record.
func (s *Service) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := s.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// dedupe removes duplicate tags while preserving first-seen order.
func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
