// Package handler exposes the HTTP API: campaign CRUD and dispatch
// triggers, recipient list management, transport settings and the
// scheduler sweep endpoint.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillsend/quillsend-backend/internal/mail"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/service"
)

// userHeader carries the caller identity. Authentication itself happens
// upstream; the API trusts this header.
const userHeader = "X-User-ID"

// Healthchecker reports backing store connectivity.
type Healthchecker interface {
	Healthcheck(ctx context.Context) error
}

// QuotaReader reads a user's send counter for one UTC day.
type QuotaReader interface {
	Used(ctx context.Context, userID, day string) (int, error)
}

// Handler wires the services into a chi router.
type Handler struct {
	campaigns  *service.CampaignService
	recipients *service.RecipientService
	smtp       *service.SMTPService
	quota      QuotaReader
	health     Healthchecker
	logger     *slog.Logger
}

func New(campaigns *service.CampaignService, recipients *service.RecipientService, smtp *service.SMTPService, quota QuotaReader, health Healthchecker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		campaigns:  campaigns,
		recipients: recipients,
		smtp:       smtp,
		quota:      quota,
		health:     health,
		logger:     logger,
	}
}

// Router builds the HTTP routing table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.healthcheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/api/cron/process-campaigns", h.processDue)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/api/campaigns", func(r chi.Router) {
			r.Post("/", h.createCampaign)
			r.Get("/", h.listCampaigns)
			r.Get("/{id}", h.getCampaign)
			r.Delete("/{id}", h.deleteCampaign)
			r.Post("/{id}/duplicate", h.duplicateCampaign)
			r.Post("/{id}/send", h.sendCampaign)
		})

		r.Route("/api/recipients", func(r chi.Router) {
			r.Post("/", h.addRecipient)
			r.Get("/", h.listRecipients)
			r.Post("/bulk", h.bulkImportRecipients)
			r.Delete("/{id}", h.deleteRecipient)
		})

		r.Route("/api/smtp-config", func(r chi.Router) {
			r.Post("/", h.saveSMTP)
			r.Get("/", h.getSMTP)
			r.Post("/test", h.testSMTP)
		})

		r.Get("/api/quota", h.quotaUsage)
	})

	return r
}

type ctxKey int

const userIDKey ctxKey = 0

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+userHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// respondError maps service errors to HTTP status codes.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoRecipients),
		errors.Is(err, service.ErrNoTransportConfig),
		errors.Is(err, model.ErrInvalidCampaign),
		errors.Is(err, model.ErrInvalidRecipient),
		errors.Is(err, model.ErrInvalidSMTPSettings),
		errors.Is(err, mail.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mail.ErrVerifyFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) healthcheck(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Healthcheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// quotaUsage reports how much of today's quota the caller has consumed.
func (h *Handler) quotaUsage(w http.ResponseWriter, r *http.Request) {
	day := model.QuotaDay(time.Now())
	used, err := h.quota.Used(r.Context(), userID(r), day)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"day": day, "used": used})
}

func (h *Handler) processDue(w http.ResponseWriter, r *http.Request) {
	started, err := h.campaigns.StartDue(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"started": started})
}
