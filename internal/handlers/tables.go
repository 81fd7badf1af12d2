package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Tables())
}

func (h *Handler) tableCleaned(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tableID"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid table id"})
		return
	}
	if err := h.coord.MarkTableCleaned(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "free"})
}
