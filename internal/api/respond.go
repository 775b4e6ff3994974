package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/negros-cram/brrs/internal/model"
	"github.com/negros-cram/brrs/internal/store"
)

// Pagination bounds for list endpoints.
const (
	defaultLimit = 100
	maxLimit     = 1000
)

// requestError is a query or path error that maps to 400.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError maps err to a status code. Store and internal errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{RequestID: middleware.GetReqID(r.Context())}
	status := http.StatusInternalServerError
	var re *requestError
	switch {
	case errors.As(err, &re):
		status = http.StatusBadRequest
		body.Error = re.msg
	case eris.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		body.Error = "not found"
	default:
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", body.RequestID),
			zap.Error(err),
		)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// queryInt parses an optional integer; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryBool parses an optional boolean; absent means nil.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &v, nil
}

func queryRiskLevel(r *http.Request) (model.RiskLevel, error) {
	raw := r.URL.Query().Get("risk_level")
	if raw == "" {
		return "", nil
	}
	l, ok := model.ParseRiskLevel(raw)
	if !ok {
		return "", badRequest("invalid risk_level %q", raw)
	}
	return l, nil
}

func queryHazard(r *http.Request) (model.HazardType, error) {
	raw := r.URL.Query().Get("hazard_type")
	if raw == "" {
		return "", nil
	}
	h, err := model.ParseHazardType(raw)
	if err != nil {
		return "", badRequest("invalid hazard_type %q", raw)
	}
	return h, nil
}

// page reads limit and offset, capping the limit.
func page(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(r, "offset"); err != nil {
		return 0, 0, err
	}
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	return limit, offset, nil
}

// orEmpty keeps list responses as JSON arrays rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
