package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillsend/quillsend-backend/internal/service"
)

func (h *Handler) addRecipient(w http.ResponseWriter, r *http.Request) {
	var in service.RecipientInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	recipient, err := h.recipients.Add(r.Context(), userID(r), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipient)
}

func (h *Handler) listRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.recipients.List(r.Context(), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipients)
}

func (h *Handler) bulkImportRecipients(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Recipients []service.RecipientInput `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	imported, err := h.recipients.BulkImport(r.Context(), userID(r), in.Recipients)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": imported})
}

func (h *Handler) deleteRecipient(w http.ResponseWriter, r *http.Request) {
	if err := h.recipients.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
