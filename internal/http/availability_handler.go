package http

import (
	"context"
	"net/http"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"go.uber.org/zap"
)

// AvailabilityService previews stock without reserving it
type AvailabilityService interface {
	CheckProduct(ctx context.Context, productID int64, quantity int) (domain.AvailabilityResult, error)
	CheckBatch(ctx context.Context, items []domain.LineItem) (domain.BatchResult, error)
	InvalidateRecipe(ctx context.Context, productID int64) error
}

type AvailabilityHandler struct {
	service AvailabilityService
	logger  *zap.Logger
}

func NewAvailabilityHandler(service AvailabilityService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, logger: logger}
}

type CheckProductRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type LineItemsRequestDTO struct {
	Items []domain.LineItem `json:"items"`
}

// POST /api/v1/availability
func (h *AvailabilityHandler) CheckProduct(w http.ResponseWriter, r *http.Request) {
	var req CheckProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	result, err := h.service.CheckProduct(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// POST /api/v1/availability/batch
func (h *AvailabilityHandler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	var req LineItemsRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CheckBatch(r.Context(), req.Items)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// DELETE /api/v1/recipes/{product_id}/cache
func (h *AvailabilityHandler) InvalidateRecipe(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r, "product_id")
	if !ok {
		return
	}

	if err := h.service.InvalidateRecipe(r.Context(), productID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
