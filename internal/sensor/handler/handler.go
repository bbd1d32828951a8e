// Package handler exposes sensor ingestion and fleet endpoints.
package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/sensor/models"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

// HeaderIngestKey authenticates field devices posting readings.
const HeaderIngestKey = "X-Sensor-Key"

type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Sensor, error)
	RecordReading(ctx context.Context, req *models.ReadingRequest) (*models.Reading, error)
	LatestReadings(ctx context.Context, code string, limit int) ([]models.Reading, error)
	Get(ctx context.Context, code string) (*models.Sensor, error)
	List(ctx context.Context) ([]*models.Sensor, error)
	ListAvailable(ctx context.Context) ([]*models.Sensor, error)
}

type Handler struct {
	svc         Service
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
	ingestKey   string
}

// New wires the handler. An empty ingestKey leaves reading ingestion open.
func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler, ingestKey string) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth, ingestKey: ingestKey}
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.requireIngestKey).Post("/sensors/readings", h.handleRecordReading)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/sensors/{code}", h.handleGet)
		r.Get("/sensors/{code}/readings", h.handleReadings)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(h.logger, requestcontext.RoleOfficial))
			r.Get("/sensors", h.handleList)
			r.Get("/sensors/available", h.handleListAvailable)
			r.Post("/sensors", h.handleRegister)
		})
	})
}

func (h *Handler) requireIngestKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.ingestKey != "" {
			got := r.Header.Get(HeaderIngestKey)
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.ingestKey)) != 1 {
				h.writeError(r.Context(), w, dErrors.New(dErrors.CodeUnauthorized, "invalid sensor key"), "record reading")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleRecordReading(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.ReadingRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "record reading")
		return
	}
	reading, err := h.svc.RecordReading(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "record reading")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reading)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[models.RegisterRequest](r.Body)
	if err != nil {
		h.writeError(r.Context(), w, err, "register sensor")
		return
	}
	sensor, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(r.Context(), w, err, "register sensor")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sensor)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sensor, err := h.svc.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(r.Context(), w, err, "get sensor")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sensor)
}

func (h *Handler) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(r.Context(), w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"), "list readings")
			return
		}
		limit = n
	}
	readings, err := h.svc.LatestReadings(r.Context(), chi.URLParam(r, "code"), limit)
	if err != nil {
		h.writeError(r.Context(), w, err, "list readings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "list sensors")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sensors": sensors})
}

func (h *Handler) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.svc.ListAvailable(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err, "list available sensors")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sensors": sensors})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
