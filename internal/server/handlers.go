package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bandhanheal/backend/internal/auth"
	"github.com/bandhanheal/backend/internal/records"
	"github.com/bandhanheal/backend/pkg/models"
)

// userView is the account shape returned by signup and login.
type userView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "BandhanHeal server is running",
	})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

type signupRequest struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	Name               string `json:"name"`
	RelationshipStatus string `json:"relationshipStatus"`
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch {
	case req.Email == "":
		writeError(w, http.StatusBadRequest, "email is required")
		return
	case req.Password == "":
		writeError(w, http.StatusBadRequest, "password is required")
		return
	case req.Name == "":
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := s.auth.Signup(r.Context(), req.Email, req.Password, req.Name, req.RelationshipStatus)
	if errors.Is(err, auth.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "An account already exists for this email")
		return
	}
	if err != nil {
		writeServiceError(w, err, "signup")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userView{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeServiceError(w, err, "login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"accessToken": token,
		"user":        userView{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}

type profileRequest struct {
	Name          string   `json:"name"`
	PartnerName   string   `json:"partnerName"`
	Phone         string   `json:"phone"`
	Issues        []string `json:"issues"`
	PreferredMode string   `json:"preferredMode"`
	Budget        string   `json:"budget"`
	Location      string   `json:"location"`
}

func (s *Service) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.records.UpsertProfile(r.Context(), callerID(r), records.ProfileInput{
		Name:          req.Name,
		PartnerName:   req.PartnerName,
		Phone:         req.Phone,
		Issues:        req.Issues,
		PreferredMode: models.SessionMode(req.PreferredMode),
		Budget:        req.Budget,
		Location:      req.Location,
	})
	if err != nil {
		writeServiceError(w, err, "profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile saved successfully",
	})
}

func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.records.GetProfile(r.Context(), callerID(r))
	if errors.Is(err, records.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		writeServiceError(w, err, "profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"profile": profile,
	})
}

type bookingRequest struct {
	TherapistID   string `json:"therapistId"`
	TherapistName string `json:"therapistName"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Mode          string `json:"mode"`
	ClinicAddress string `json:"clinicAddress"`
	SessionLink   string `json:"sessionLink"`
}

func (s *Service) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := s.records.CreateBooking(r.Context(), callerID(r), records.BookingInput{
		TherapistID:   req.TherapistID,
		TherapistName: req.TherapistName,
		Date:          req.Date,
		Time:          req.Time,
		Mode:          models.SessionMode(req.Mode),
		ClinicAddress: req.ClinicAddress,
		SessionLink:   req.SessionLink,
	})
	if err != nil {
		writeServiceError(w, err, "booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Booking saved successfully",
		"bookingId": booking.ID,
	})
}

func (s *Service) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.records.ListBookings(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, err, "bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"bookings": bookings,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Service) handleUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bookingID := chi.URLParam(r, "id")
	_, err := s.records.UpdateBookingStatus(r.Context(), callerID(r), bookingID, models.BookingStatus(req.Status))
	if errors.Is(err, records.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		writeServiceError(w, err, "booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Booking status updated",
	})
}

type noteRequest struct {
	BookingID   string   `json:"bookingId"`
	Notes       string   `json:"notes"`
	ActionItems []string `json:"actionItems"`
}

func (s *Service) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.records.CreateSessionNote(r.Context(), callerID(r), records.NoteInput{
		BookingID:   req.BookingID,
		Notes:       req.Notes,
		ActionItems: req.ActionItems,
	})
	if err != nil {
		writeServiceError(w, err, "notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Notes saved successfully",
	})
}

func (s *Service) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.records.ListSessionNotes(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, err, "notes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"notes":   notes,
	})
}

type progressRequest struct {
	Week         string `json:"week"`
	Mood         int    `json:"mood"`
	Satisfaction int    `json:"satisfaction"`
	Notes        string `json:"notes"`
}

func (s *Service) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := s.records.UpsertProgressEntry(r.Context(), callerID(r), records.ProgressInput{
		Week:         req.Week,
		Mood:         req.Mood,
		Satisfaction: req.Satisfaction,
		Notes:        req.Notes,
	})
	if err != nil {
		writeServiceError(w, err, "progress")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Progress saved successfully",
	})
}

func (s *Service) handleListProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.records.ListProgressEntries(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, err, "progress")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"progress": progress,
	})
}
