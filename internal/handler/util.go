package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/middleware"
	"github.com/academy-platform/dashboard-messaging/internal/service"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response in the {"detail": ...} shape the
// messaging client parses.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{
		"detail": detail,
	})
}

// writeServiceError maps a service error to its HTTP status.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		ctx := r.Context()
		log.WithRequest(middleware.GetCorrelationID(ctx), middleware.GetUserID(ctx), string(middleware.GetRole(ctx))).
			Error("unexpected service error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parsePage reads skip and limit. Missing values take the defaults; values
// that are present must be valid.
func parsePage(r *http.Request) (int, int, error) {
	skip, limit := 0, defaultLimit
	q := r.URL.Query()

	if s := q.Get("skip"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("skip must be a non-negative integer")
		}
		skip = parsed
	}

	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > maxLimit {
			return 0, 0, errors.New("limit must be between 1 and 100")
		}
		limit = parsed
	}

	return skip, limit, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
