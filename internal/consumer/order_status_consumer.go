package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	actionRelease = "release"
	actionConvert = "convert"
	actionIgnore  = "ignore"
	actionInvalid = "invalid"
	actionFailed  = "failed"
)

// OrderStatusEvent is published by the order subsystem on every status change
type OrderStatusEvent struct {
	OrderID        int64              `json:"order_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status"`
}

// Reservations is the part of the reservation manager driven by order events
type Reservations interface {
	ReleaseReservations(ctx context.Context, orderID int64) (int, error)
	ConvertToDeductions(ctx context.Context, orderID int64) (int, error)
}

// StatusRecorder remembers the latest known status of an order
type StatusRecorder interface {
	Set(orderID int64, status domain.OrderStatus)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Consumer struct {
	reservations Reservations
	recorder     StatusRecorder
	reader       *kafka.Reader
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewConsumer creates a consumer of order status events. recorder may be nil.
func NewConsumer(cfg Config, reservations Reservations, recorder StatusRecorder, m *metrics.Metrics, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reservations: reservations,
		recorder:     recorder,
		reader:       reader,
		metrics:      m,
		logger:       logger,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading message", zap.Error(err))
		return
	}

	action, err := c.handle(ctx, m.Value)
	c.metrics.OrderEvent(action)
	if err != nil {
		c.logger.Error("order status event not applied",
			zap.String("action", action),
			zap.Int64("offset", m.Offset),
			zap.Error(err))
	}
}

// handle applies one event and reports what it did with it
func (c *Consumer) handle(ctx context.Context, value []byte) (string, error) {
	var event OrderStatusEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return actionInvalid, fmt.Errorf("parse event: %w", err)
	}
	if event.OrderID <= 0 || event.Status == "" {
		return actionInvalid, fmt.Errorf("event without order id or status: %s", value)
	}

	if c.recorder != nil {
		c.recorder.Set(event.OrderID, event.Status)
	}

	switch {
	case event.Status == domain.OrderStatusCancelled:
		n, err := c.reservations.ReleaseReservations(ctx, event.OrderID)
		if err != nil {
			return actionFailed, fmt.Errorf("release order %d: %w", event.OrderID, err)
		}
		c.logger.Info("order cancelled, reservations released",
			zap.Int64("order_id", event.OrderID), zap.Int("rows", n))
		return actionRelease, nil

	case event.Status.IsFulfillmentTransition(event.PreviousStatus):
		n, err := c.reservations.ConvertToDeductions(ctx, event.OrderID)
		if err != nil {
			return actionFailed, fmt.Errorf("convert order %d: %w", event.OrderID, err)
		}
		c.logger.Info("order assembled, reservations converted",
			zap.Int64("order_id", event.OrderID), zap.Int("rows", n))
		return actionConvert, nil
	}
	return actionIgnore, nil
}
