package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustmecro/trust-service/internal/service"
	"github.com/trustmecro/trust-service/pkg/httputil"
)

// IdempotencyKeyHeader carries the client's key for moderator transitions.
const IdempotencyKeyHeader = "Idempotency-Key"

// ModerationHandler handles HTTP requests for moderator endpoints.
type ModerationHandler struct {
	service ModerationService
	logger  *slog.Logger
}

// NewModerationHandler creates a new moderation HTTP handler.
func NewModerationHandler(svc ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{
		service: svc,
		logger:  logger,
	}
}

// Flagged handles GET /api/v1/moderation/flagged
func (h *ModerationHandler) Flagged(w http.ResponseWriter, r *http.Request) {
	queue, err := h.service.Flagged(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, queue)
}

// ApproveReview handles POST /api/v1/moderation/reviews/{id}/approve
func (h *ModerationHandler) ApproveReview(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.service.ApproveReview)
}

// DismissReview handles POST /api/v1/moderation/reviews/{id}/dismiss
func (h *ModerationHandler) DismissReview(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.service.DismissReview)
}

// ApproveProduct handles POST /api/v1/moderation/products/{id}/approve
func (h *ModerationHandler) ApproveProduct(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.service.ApproveProduct)
}

// DismissProduct handles POST /api/v1/moderation/products/{id}/dismiss
func (h *ModerationHandler) DismissProduct(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.service.DismissProduct)
}

type transition func(ctx context.Context, key, id string) (*service.Outcome, error)

func (h *ModerationHandler) apply(w http.ResponseWriter, r *http.Request, fn transition) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	out, err := fn(r.Context(), r.Header.Get(IdempotencyKeyHeader), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.Header().Set(IdempotencyKeyHeader, out.IdempotencyKey)
	httputil.WriteData(w, http.StatusOK, out)
}
