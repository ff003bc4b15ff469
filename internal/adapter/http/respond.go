package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, message, code string, status int) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusFor maps an error kind to an HTTP status and a stable code string
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientShares):
		return http.StatusBadRequest, "insufficient_shares"
	case errors.Is(err, domain.ErrInsufficientCash):
		return http.StatusBadRequest, "insufficient_cash"
	case errors.Is(err, domain.ErrMissingFXRate):
		return http.StatusBadRequest, "missing_fx_rate"
	case errors.Is(err, domain.ErrMissingPrice):
		return http.StatusBadRequest, "missing_price"
	case errors.Is(err, domain.ErrSettlementCurrencyMismatch):
		return http.StatusBadRequest, "settlement_currency_mismatch"
	case errors.Is(err, domain.ErrInvalidRatio):
		return http.StatusBadRequest, "invalid_ratio"
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError logs err and writes it as a JSON error body
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", r.URL.Path, "error", err)
		sendJSONError(w, "internal server error", code, status)
		return
	}
	log.Warn("Request rejected", "path", r.URL.Path, "code", code, "error", err)
	sendJSONError(w, err.Error(), code, status)
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// decodeJSON reads a single JSON object, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", name)
	}
	return id, nil
}

func parseID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, badRequest("%s is required", field)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, badRequest("invalid %s", field)
	}
	return id, nil
}

func parseOptionalID(field, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseID(field, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, badRequest("%s is required", field)
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, badRequest("invalid %s, want YYYY-MM-DD", field)
	}
	return d, nil
}

func parseOptionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseBool(field, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, badRequest("invalid %s", field)
	}
	return b, nil
}

// dateRange reads the optional inclusive from/to query parameters
func dateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	from, err := parseOptionalDate("from", q.Get("from"))
	if err != nil {
		return domain.DateRange{}, err
	}
	to, err := parseOptionalDate("to", q.Get("to"))
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.DateRange{From: from, Until: to}, nil
}
