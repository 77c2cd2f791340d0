package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"go.uber.org/zap"
)

type WarehouseService interface {
	ReceiveStock(ctx context.Context, itemID int64, quantity int) (domain.StockInfo, error)
	Stock(ctx context.Context, ids []int64) ([]domain.StockInfo, error)
	LowStock(ctx context.Context) ([]domain.StockInfo, error)
}

type WarehouseHandler struct {
	service WarehouseService
	logger  *zap.Logger
}

func NewWarehouseHandler(service WarehouseService, logger *zap.Logger) *WarehouseHandler {
	return &WarehouseHandler{service: service, logger: logger}
}

type StockDTO struct {
	WarehouseItemID int64  `json:"warehouse_item_id"`
	Name            string `json:"name"`
	OnHand          int    `json:"on_hand"`
	Reserved        int    `json:"reserved"`
	Free            int    `json:"free"`
	MinQuantity     int    `json:"min_quantity"`
}

type ReceiveStockRequestDTO struct {
	Quantity int `json:"quantity"`
}

func convertStock(s domain.StockInfo) StockDTO {
	return StockDTO{
		WarehouseItemID: s.WarehouseItemID,
		Name:            s.Name,
		OnHand:          s.OnHand,
		Reserved:        s.Reserved,
		Free:            s.Free(),
		MinQuantity:     s.MinQuantity,
	}
}

func convertStockList(list []domain.StockInfo) []StockDTO {
	dtos := make([]StockDTO, 0, len(list))
	for _, s := range list {
		dtos = append(dtos, convertStock(s))
	}
	return dtos
}

// GET /api/v1/warehouse/stock?ids=1,2
func (h *WarehouseHandler) Stock(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				respondError(w, http.StatusBadRequest, "invalid_ids", "ids must be a comma separated list of positive integers")
				return
			}
			ids = append(ids, id)
		}
	}

	stock, err := h.service.Stock(r.Context(), ids)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, convertStockList(stock))
}

// GET /api/v1/warehouse/low-stock
func (h *WarehouseHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.LowStock(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, convertStockList(stock))
}

// POST /api/v1/warehouse/items/{item_id}/receive
func (h *WarehouseHandler) ReceiveStock(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(w, r, "item_id")
	if !ok {
		return
	}
	var req ReceiveStockRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	info, err := h.service.ReceiveStock(r.Context(), itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, convertStock(info))
}
