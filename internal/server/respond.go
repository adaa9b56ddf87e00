package server

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/bandhanheal/backend/internal/records"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a record-service failure onto the HTTP taxonomy.
// Internal failures are logged in full but never echoed to the client.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	var verr *records.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, records.ErrNotFound):
		writeError(w, http.StatusNotFound, op+" not found")
	case errors.Is(err, records.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, records.ErrConflict):
		writeError(w, http.StatusConflict, "Conflicting update, please retry")
	default:
		log.Error().Err(err).Str("op", op).Msg("internal failure")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody parses a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
