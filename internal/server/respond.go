package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/tableside/internal/auth"
	"github.com/wolfeidau/tableside/internal/menu"
	"github.com/wolfeidau/tableside/internal/order"
	"github.com/wolfeidau/tableside/internal/realtime"
	"github.com/wolfeidau/tableside/internal/store"
	"github.com/wolfeidau/tableside/internal/tenant"
)

var errBadRequest = errors.New("bad request")

type tenantScope struct {
	TenantID  uuid.UUID
	Principal *auth.Principal
}

// ErrorBody is the JSON envelope of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code. Unclassified errors are logged and
// reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		message = "internal error"
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func classify(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, tenant.ErrTenantContextRequired),
		errors.Is(err, tenant.ErrCrossTenant),
		errors.Is(err, auth.ErrPermissionDenied),
		errors.Is(err, realtime.ErrJoinForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, store.ErrTenantNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrMenuItemNotFound),
		errors.Is(err, store.ErrCategoryNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, order.ErrInvalidRequest),
		errors.Is(err, menu.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, store.ErrOrderConflict),
		errors.Is(err, store.ErrTenantAlreadyExists):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal"
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: malformed body: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errBadRequest, name)
	}
	return id, nil
}
