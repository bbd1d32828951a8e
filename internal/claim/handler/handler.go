// Package handler exposes claim filing and claim history endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"farmshield/internal/claim/models"
	"farmshield/internal/imagestore"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/httputil"
	"farmshield/pkg/platform/middleware/auth"
	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
)

// MaxEvidenceImages caps the photos accepted in one filing.
const MaxEvidenceImages = 10

type Service interface {
	File(ctx context.Context, farmerID id.FarmerID, req *models.FileRequest) (*models.Claim, error)
	Get(ctx context.Context, farmerID id.FarmerID, claimID id.ClaimID) (*models.Claim, error)
	ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Claim, error)
}

type Handler struct {
	svc           Service
	logger        *slog.Logger
	requireAuth   func(http.Handler) http.Handler
	maxImageBytes int64
}

func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler, maxImageBytes int64) *Handler {
	return &Handler{svc: svc, logger: logger, requireAuth: requireAuth, maxImageBytes: maxImageBytes}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(auth.RequireRole(h.logger, requestcontext.RoleFarmer))
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", h.handleFile)
			r.Get("/", h.handleList)
			r.Get("/{claimID}", h.handleGet)
		})
	})
}

// handleFile accepts multipart form data: policy_id, latitude, longitude,
// one or more images, and optionally image_latitude/image_longitude repeated
// once per image in upload order. Images without their own coordinates take
// the filing location.
func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	req, err := h.parseFileRequest(w, r)
	if err != nil {
		h.writeError(r.Context(), w, err, "file claim")
		return
	}
	claim, err := h.svc.File(r.Context(), farmerID, req)
	if err != nil {
		h.writeError(r.Context(), w, err, "file claim")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.ToClaimResponse(claim))
}

func (h *Handler) parseFileRequest(w http.ResponseWriter, r *http.Request) (*models.FileRequest, error) {
	files, err := imagestore.ParseForm(w, r, "images", h.maxImageBytes*MaxEvidenceImages+(1<<20))
	if err != nil {
		return nil, err
	}
	if len(files) > MaxEvidenceImages {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "too many images, the limit is "+strconv.Itoa(MaxEvidenceImages))
	}
	form := r.MultipartForm.Value
	req := &models.FileRequest{PolicyID: first(form["policy_id"])}
	if req.Latitude, err = optionalFloat(first(form["latitude"]), "latitude"); err != nil {
		return nil, err
	}
	if req.Longitude, err = optionalFloat(first(form["longitude"]), "longitude"); err != nil {
		return nil, err
	}

	lats, lons := form["image_latitude"], form["image_longitude"]
	if len(lats) != len(lons) || (len(lats) > 0 && len(lats) != len(files)) {
		return nil, dErrors.New(dErrors.CodeValidation, "image_latitude and image_longitude must be given once per image")
	}
	req.Images = make([]models.EvidenceImage, len(files))
	for i, fh := range files {
		file, err := imagestore.FromMultipart(fh, h.maxImageBytes)
		if err != nil {
			return nil, err
		}
		img := models.EvidenceImage{File: file}
		switch {
		case len(lats) > 0:
			lat, err := optionalFloat(lats[i], "image_latitude")
			if err != nil {
				return nil, err
			}
			lon, err := optionalFloat(lons[i], "image_longitude")
			if err != nil {
				return nil, err
			}
			if lat == nil || lon == nil {
				return nil, dErrors.New(dErrors.CodeValidation, "image coordinates must not be empty")
			}
			img.Latitude, img.Longitude = *lat, *lon
		case req.Latitude != nil && req.Longitude != nil:
			img.Latitude, img.Longitude = *req.Latitude, *req.Longitude
		}
		req.Images[i] = img
	}
	return req, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	claims, err := h.svc.ListByFarmer(r.Context(), farmerID)
	if err != nil {
		h.writeError(r.Context(), w, err, "list claims")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"claims": models.ToClaimResponses(claims)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	farmerID, ok := h.farmerID(w, r)
	if !ok {
		return
	}
	claimID, err := id.ParseClaimID(chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(r.Context(), w, err, "get claim")
		return
	}
	claim, err := h.svc.Get(r.Context(), farmerID, claimID)
	if err != nil {
		h.writeError(r.Context(), w, err, "get claim")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToClaimResponse(claim))
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func optionalFloat(raw, field string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be a number")
	}
	return &v, nil
}

func (h *Handler) farmerID(w http.ResponseWriter, r *http.Request) (id.FarmerID, bool) {
	farmerID, ok := requestcontext.Principal(r.Context()).FarmerID()
	if !ok {
		h.logger.ErrorContext(r.Context(), "farmer principal missing from context",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.FarmerID{}, false
	}
	return farmerID, true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err, "request_id", request.GetRequestID(ctx))
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "error", err, "request_id", request.GetRequestID(ctx))
	}
	httputil.WriteError(w, err)
}
