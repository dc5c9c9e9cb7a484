package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fluxo/internal/core"
	"fluxo/internal/log"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInputValidation):
		return http.StatusBadRequest, "input_validation"
	case errors.Is(err, core.ErrOutOfRange):
		return http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, core.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "source_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	writeErrorStatus(w, r, status, kind, err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

// parsePeriod reads the {year} and {month} route variables.
func parsePeriod(vars map[string]string) (month, year int, err error) {
	year, err = strconv.Atoi(strings.TrimSpace(vars["year"]))
	if err != nil {
		return 0, 0, &core.InputValidationError{Field: "year", Reason: "must be an integer"}
	}
	month, err = strconv.Atoi(strings.TrimSpace(vars["month"]))
	if err != nil {
		return 0, 0, &core.InputValidationError{Field: "month", Reason: "must be an integer"}
	}
	return month, year, nil
}

// sanitizeName keeps identifier-like names used for entities and screens.
func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, s)
}
