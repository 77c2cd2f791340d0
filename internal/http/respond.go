package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StockErrorResponse is the conflict body naming the component that ran out
type StockErrorResponse struct {
	Kind        string `json:"kind"`
	ComponentID int64  `json:"component_id"`
	Component   string `json:"component"`
	Required    int    `json:"required"`
	Available   int    `json:"available"`
	Message     string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts errors of the inventory services into HTTP responses
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		respondJSON(w, http.StatusConflict, StockErrorResponse{
			Kind:        "insufficient_stock",
			ComponentID: stockErr.ComponentID,
			Component:   stockErr.Component,
			Required:    stockErr.Required,
			Available:   stockErr.Available,
			Message:     stockErr.Error(),
		})
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrNoLineItems):
		respondError(w, http.StatusBadRequest, "no_line_items", err.Error())
	case errors.Is(err, domain.ErrInvalidRecipe):
		respondError(w, http.StatusUnprocessableEntity, "invalid_recipe", err.Error())
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, domain.ErrNegativeStock):
		respondError(w, http.StatusConflict, "negative_stock", err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// idParam reads a positive integer URL parameter, answering 400 when it is not one
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		respondError(w, http.StatusBadRequest, "missing_"+name, name+" is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
