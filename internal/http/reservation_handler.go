package http

import (
	"context"
	"net/http"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/reservation"
	"go.uber.org/zap"
)

// ReservationService is the order-facing side of the reservation ledger
type ReservationService interface {
	CreateReservations(ctx context.Context, orderID int64, items []domain.LineItem) (reservation.CreateResult, error)
	ReleaseReservations(ctx context.Context, orderID int64) (int, error)
	ConvertToDeductions(ctx context.Context, orderID int64) (int, error)
	GetReservations(ctx context.Context, orderID int64) ([]domain.Reservation, error)
}

type ReservationHandler struct {
	service ReservationService
	logger  *zap.Logger
}

func NewReservationHandler(service ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, logger: logger}
}

type CreateReservationsResponseDTO struct {
	OrderID      int64                `json:"order_id"`
	Reservations []domain.Reservation `json:"reservations"`
	Warnings     []string             `json:"warnings"`
}

type OrderCountResponseDTO struct {
	OrderID   int64 `json:"order_id"`
	Released  *int  `json:"released,omitempty"`
	Converted *int  `json:"converted,omitempty"`
}

// GET /api/v1/orders/{order_id}/reservations
func (h *ReservationHandler) GetReservations(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "order_id")
	if !ok {
		return
	}

	rows, err := h.service.GetReservations(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// POST /api/v1/orders/{order_id}/reservations
func (h *ReservationHandler) CreateReservations(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "order_id")
	if !ok {
		return
	}
	var req LineItemsRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CreateReservations(r.Context(), orderID, req.Items)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	respondJSON(w, http.StatusCreated, CreateReservationsResponseDTO{
		OrderID:      orderID,
		Reservations: result.Reservations,
		Warnings:     warnings,
	})
}

// DELETE /api/v1/orders/{order_id}/reservations
func (h *ReservationHandler) ReleaseReservations(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "order_id")
	if !ok {
		return
	}

	released, err := h.service.ReleaseReservations(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderCountResponseDTO{OrderID: orderID, Released: &released})
}

// POST /api/v1/orders/{order_id}/reservations/convert
func (h *ReservationHandler) ConvertToDeductions(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(w, r, "order_id")
	if !ok {
		return
	}

	converted, err := h.service.ConvertToDeductions(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderCountResponseDTO{OrderID: orderID, Converted: &converted})
}
