package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"restaurant-pos/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain taxonomy onto HTTP. Domain conflicts are 409,
// capacity rejections 422, persistence failures 503 so callers know to retry.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		code = http.StatusInternalServerError
		tag  = "internal_error"
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code, tag = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidRequest):
		code, tag = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrNoCapacity):
		code, tag = http.StatusUnprocessableEntity, "no_capacity"
	case errors.Is(err, domain.ErrTableUnavailable):
		code, tag = http.StatusConflict, "table_unavailable"
	case errors.Is(err, domain.ErrOrderClosed):
		code, tag = http.StatusConflict, "order_closed"
	case errors.Is(err, domain.ErrOrderAlreadySettled):
		code, tag = http.StatusConflict, "order_already_settled"
	case errors.Is(err, domain.ErrOrderNotCancellable):
		code, tag = http.StatusConflict, "order_not_cancellable"
	case errors.Is(err, domain.ErrAssignmentConflict):
		code, tag = http.StatusConflict, "assignment_conflict"
	case errors.Is(err, domain.ErrAlreadySeated):
		code, tag = http.StatusConflict, "already_seated"
	case errors.Is(err, domain.ErrPersistence):
		code, tag = http.StatusServiceUnavailable, "persistence_failure"
	default:
		h.log.WithError(err).Error("unhandled_error")
	}
	writeJSON(w, code, errorBody{Error: tag, Message: err.Error()})
}
