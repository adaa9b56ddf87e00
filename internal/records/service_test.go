package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/bandhanheal/backend/internal/kv"
	"github.com/bandhanheal/backend/pkg/models"
)

// ServiceSuite exercises the record service against the in-memory store.
type ServiceSuite struct {
	suite.Suite
	store *kv.Memory
	svc   *Service
	ctx   context.Context
	clock time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.store = kv.NewMemory()
	s.svc = NewService(s.store)
	s.ctx = context.Background()

	// Deterministic, advancing clock so creation order is reflected in epochs.
	s.clock = time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) validBooking() BookingInput {
	return BookingInput{
		TherapistID:   "th-1",
		TherapistName: "Dr. Mehta",
		Date:          "2025-12-05",
		Time:          "10:00 AM",
		Mode:          models.ModeOnline,
		SessionLink:   "https://x/y",
	}
}

func (s *ServiceSuite) TestUpsertProfileIdempotent() {
	in := ProfileInput{
		Name:          "Asha",
		PartnerName:   "Ravi",
		Issues:        []string{"communication", "trust", "communication"},
		PreferredMode: models.ModeHybrid,
	}

	first, err := s.svc.UpsertProfile(s.ctx, "u1", in)
	s.Require().NoError(err)
	s.Equal([]string{"communication", "trust"}, first.Issues)

	second, err := s.svc.UpsertProfile(s.ctx, "u1", in)
	s.Require().NoError(err)

	// Still exactly one stored profile, equal to the latest input.
	got, err := s.svc.GetProfile(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(second.UpdatedAt, got.UpdatedAt)
	s.Equal("Asha", got.Name)
	s.Equal("u1", got.UserID)
}

func (s *ServiceSuite) TestUpsertProfileValidation() {
	_, err := s.svc.UpsertProfile(s.ctx, "u1", ProfileInput{PreferredMode: models.ModeOnline})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("name", verr.Field)

	_, err = s.svc.UpsertProfile(s.ctx, "u1", ProfileInput{Name: "A", PreferredMode: "Carrier Pigeon"})
	s.Require().ErrorAs(err, &verr)
	s.Equal("preferredMode", verr.Field)
}

func (s *ServiceSuite) TestGetProfileMissing() {
	_, err := s.svc.GetProfile(s.ctx, "nobody")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestCreateBookingModeInvariant() {
	online := s.validBooking()
	online.SessionLink = ""
	_, err := s.svc.CreateBooking(s.ctx, "u1", online)
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("sessionLink", verr.Field)

	offline := s.validBooking()
	offline.Mode = models.ModeOffline
	offline.SessionLink = ""
	_, err = s.svc.CreateBooking(s.ctx, "u1", offline)
	s.Require().ErrorAs(err, &verr)
	s.Equal("clinicAddress", verr.Field)

	// Hybrid is a profile preference, never a booking mode.
	hybrid := s.validBooking()
	hybrid.Mode = models.ModeHybrid
	_, err = s.svc.CreateBooking(s.ctx, "u1", hybrid)
	s.Require().ErrorAs(err, &verr)
	s.Equal("mode", verr.Field)
}

func (s *ServiceSuite) TestCreateBookingRoundTrip() {
	created, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.Equal(models.StatusUpcoming, created.Status)

	bookings, err := s.svc.ListBookings(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(bookings, 1)
	s.Equal(created.ID, bookings[0].ID)
	s.Equal("https://x/y", bookings[0].SessionLink)
	s.Equal("2025-12-05", bookings[0].Date)
	s.Equal("10:00 AM", bookings[0].Time)
}

func (s *ServiceSuite) TestListBookingsOrderedByCreation() {
	first, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)
	second, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)

	bookings, err := s.svc.ListBookings(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(bookings, 2)
	s.Equal(first.ID, bookings[0].ID)
	s.Equal(second.ID, bookings[1].ID)
}

func (s *ServiceSuite) TestBookingIsolation() {
	created, err := s.svc.CreateBooking(s.ctx, "userA", s.validBooking())
	s.Require().NoError(err)

	// B cannot see A's booking in a listing.
	bookings, err := s.svc.ListBookings(s.ctx, "userB")
	s.Require().NoError(err)
	s.Empty(bookings)

	// B cannot mutate A's booking even with the exact id: B's derived key
	// does not exist.
	_, err = s.svc.UpdateBookingStatus(s.ctx, "userB", created.ID, models.StatusCancelled)
	s.ErrorIs(err, ErrNotFound)

	// A's booking is untouched.
	mine, err := s.svc.ListBookings(s.ctx, "userA")
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(models.StatusUpcoming, mine[0].Status)
}

func (s *ServiceSuite) TestUpdateBookingStatus() {
	created, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)

	updated, err := s.svc.UpdateBookingStatus(s.ctx, "u1", created.ID, models.StatusCompleted)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, updated.Status)
	s.NotEmpty(updated.UpdatedAt)
	s.Equal(created.Version+1, updated.Version)
}

func (s *ServiceSuite) TestStatusMonotonicity() {
	created, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)

	_, err = s.svc.UpdateBookingStatus(s.ctx, "u1", created.ID, models.StatusCompleted)
	s.Require().NoError(err)

	// Terminal states admit no further transition.
	_, err = s.svc.UpdateBookingStatus(s.ctx, "u1", created.ID, models.StatusCancelled)
	s.ErrorIs(err, ErrConflict)

	// Going back to Upcoming is not even a valid target.
	_, err = s.svc.UpdateBookingStatus(s.ctx, "u1", created.ID, models.StatusUpcoming)
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *ServiceSuite) TestUpdateBookingStatusUnknownBooking() {
	_, err := s.svc.UpdateBookingStatus(s.ctx, "u1", "ghost", models.StatusCompleted)
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestUpdateBookingStatusWriteRace() {
	created, err := s.svc.CreateBooking(s.ctx, "u1", s.validBooking())
	s.Require().NoError(err)

	// Simulate a concurrent writer landing between our read and write by
	// touching the stored bytes directly.
	key := bookingKey("u1", created.ID)
	raw, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Set(s.ctx, key, append(raw, ' ')))

	svc2 := NewService(racingStore{Memory: s.store, key: key, original: raw})
	_, err = svc2.UpdateBookingStatus(s.ctx, "u1", created.ID, models.StatusCompleted)
	s.ErrorIs(err, ErrConflict)
}

func (s *ServiceSuite) TestSessionNotes() {
	note, err := s.svc.CreateSessionNote(s.ctx, "u1", NoteInput{
		BookingID:   "b-1",
		Notes:       "Good first session",
		ActionItems: []string{"daily check-in", "gratitude journal"},
	})
	s.Require().NoError(err)
	s.Equal("u1", note.UserID)

	// A second note for the same booking replaces the first.
	_, err = s.svc.CreateSessionNote(s.ctx, "u1", NoteInput{BookingID: "b-1", Notes: "Revised"})
	s.Require().NoError(err)

	notes, err := s.svc.ListSessionNotes(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(notes, 1)
	s.Equal("Revised", notes[0].Notes)
}

func (s *ServiceSuite) TestSessionNoteRequiresBookingID() {
	_, err := s.svc.CreateSessionNote(s.ctx, "u1", NoteInput{Notes: "orphan"})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("bookingId", verr.Field)
}

func (s *ServiceSuite) TestProgressIdempotence() {
	_, err := s.svc.UpsertProgressEntry(s.ctx, "u1", ProgressInput{Week: "Week 1", Mood: 5, Satisfaction: 4})
	s.Require().NoError(err)
	_, err = s.svc.UpsertProgressEntry(s.ctx, "u1", ProgressInput{Week: "Week 1", Mood: 8, Satisfaction: 7})
	s.Require().NoError(err)

	entries, err := s.svc.ListProgressEntries(s.ctx, "u1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(8, entries[0].Mood)
	s.Equal(7, entries[0].Satisfaction)
}

func (s *ServiceSuite) TestProgressRatingBounds() {
	var verr *ValidationError

	_, err := s.svc.UpsertProgressEntry(s.ctx, "u1", ProgressInput{Week: "Week 1", Mood: 0, Satisfaction: 5})
	s.Require().ErrorAs(err, &verr)
	s.Equal("mood", verr.Field)

	_, err = s.svc.UpsertProgressEntry(s.ctx, "u1", ProgressInput{Week: "Week 1", Mood: 5, Satisfaction: 11})
	s.Require().ErrorAs(err, &verr)
	s.Equal("satisfaction", verr.Field)
}

func (s *ServiceSuite) TestProgressIsolation() {
	_, err := s.svc.UpsertProgressEntry(s.ctx, "userA", ProgressInput{Week: "Week 1", Mood: 6, Satisfaction: 6})
	s.Require().NoError(err)

	entries, err := s.svc.ListProgressEntries(s.ctx, "userB")
	s.Require().NoError(err)
	s.Empty(entries)
}

// racingStore replays the pre-race bytes on Get so the subsequent
// compare-and-swap sees a stale expectation.
type racingStore struct {
	*kv.Memory
	key      string
	original []byte
}

func (r racingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == r.key {
		out := make([]byte, len(r.original))
		copy(out, r.original)
		return out, nil
	}
	return r.Memory.Get(ctx, key)
}
