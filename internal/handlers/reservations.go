package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"restaurant-pos/internal/domain"
)

func (h *Handler) requestReservation(w http.ResponseWriter, r *http.Request) {
	var req domain.RequestReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid JSON body"})
		return
	}
	if req.PartySize < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "party_size must be at least 1"})
		return
	}
	if req.ContactName == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "contact_name is required"})
		return
	}
	if req.Start.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "start is required"})
		return
	}
	if req.DurationMins <= 0 {
		req.DurationMins = int(h.defaultDuration.Minutes())
	}

	resp, err := h.coord.RequestReservation(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	resID, ok := reservationIDParam(w, r)
	if !ok {
		return
	}
	res, err := h.coord.GetReservation(resID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) seatReservation(w http.ResponseWriter, r *http.Request) {
	resID, ok := reservationIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.coord.SeatReservation(r.Context(), resID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	resID, ok := reservationIDParam(w, r)
	if !ok {
		return
	}
	if err := h.coord.CancelReservation(r.Context(), resID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func reservationIDParam(w http.ResponseWriter, r *http.Request) (domain.ReservationID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid reservation id"})
		return uuid.Nil, false
	}
	return id, true
}
