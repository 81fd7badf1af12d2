package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"restaurant-pos/internal/domain"
)

func (h *Handler) openOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OpenOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid JSON body"})
		return
	}
	if req.TableID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "table_id is required"})
		return
	}

	resp, err := h.coord.OpenOrder(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) continueOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req domain.ContinueOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid JSON body"})
		return
	}
	if len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "at least one line is required"})
		return
	}

	resp, err := h.coord.ContinueOrder(r.Context(), orderID, req.Lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.coord.CompleteOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) settleOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.coord.SettleOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	resp, err := h.coord.CancelOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	order, err := h.coord.GetOrder(orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var f domain.OrderFilter
	if v := r.URL.Query().Get("table"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid table filter"})
			return
		}
		f.TableID = id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		f.Status = domain.OrderStatus(v)
	}
	writeJSON(w, http.StatusOK, h.coord.ListOrders(f))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (domain.OrderID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid order id"})
		return 0, false
	}
	return id, true
}
