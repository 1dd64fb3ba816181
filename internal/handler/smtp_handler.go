package handler

import (
	"encoding/json"
	"net/http"

	"github.com/quillsend/quillsend-backend/internal/service"
)

func (h *Handler) saveSMTP(w http.ResponseWriter, r *http.Request) {
	var in service.SMTPInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.smtp.Save(r.Context(), userID(r), in); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// getSMTP returns the masked settings; the password never appears in a
// response, only whether one is set.
func (h *Handler) getSMTP(w http.ResponseWriter, r *http.Request) {
	view, err := h.smtp.Get(r.Context(), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, "no smtp configuration saved")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) testSMTP(w http.ResponseWriter, r *http.Request) {
	if err := h.smtp.Test(r.Context(), userID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
