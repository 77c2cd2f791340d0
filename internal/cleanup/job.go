package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/metrics"
	"github.com/alekenov/figma-product-catalog-sub002/internal/orderstatus"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"go.uber.org/zap"
)

// Releaser drops every reservation of an order once still confirms it under lock
type Releaser interface {
	ReleaseIf(ctx context.Context, orderID int64, still func(context.Context) (bool, error)) (int, error)
}

// Job releases reservations of orders that were abandoned before payment
type Job struct {
	store    store.Store
	releaser Releaser
	orders   orderstatus.Source
	interval time.Duration
	maxAge   time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewJob(s store.Store, releaser Releaser, orders orderstatus.Source, interval, maxAge time.Duration, m *metrics.Metrics, logger *zap.Logger) *Job {
	return &Job{
		store:    s,
		releaser: releaser,
		orders:   orders,
		interval: interval,
		maxAge:   maxAge,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("reservation cleanup started",
		zap.Duration("interval", j.interval),
		zap.Duration("max_age", j.maxAge))
	for {
		select {
		case <-ticker.C:
			if _, err := j.Sweep(ctx, j.maxAge); err != nil && ctx.Err() == nil {
				j.logger.Error("reservation cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			j.logger.Info("reservation cleanup stopped")
			return
		}
	}
}

// Sweep releases reservations older than maxAge whose order still awaits
// payment and returns how many reservation rows it released. Orders that
// moved on, disappeared or could not be looked up keep their reservations.
//
// The status is checked again after the order's components are locked.
// A payment landing after that second check still loses its reservations;
// the order subsystem owns that window.
func (j *Job) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := j.now().Add(-maxAge)

	var orders []int64
	err := j.store.View(ctx, func(r store.Reader) error {
		var err error
		orders, err = r.StaleOrders(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, domain.NewStorageError("find stale reservations", err)
	}

	released := 0
	for _, orderID := range orders {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		if !j.awaitingPayment(ctx, orderID) {
			continue
		}

		n, err := j.releaser.ReleaseIf(ctx, orderID, func(ctx context.Context) (bool, error) {
			return j.awaitingPayment(ctx, orderID), nil
		})
		if err != nil {
			return released, fmt.Errorf("release order %d: %w", orderID, err)
		}
		released += n
	}

	j.metrics.AddCleanupReleased(released)
	if released > 0 {
		j.logger.Info("released stale reservations",
			zap.Int("rows", released),
			zap.Int("orders_checked", len(orders)))
	}
	return released, nil
}

func (j *Job) awaitingPayment(ctx context.Context, orderID int64) bool {
	status, err := j.orders.Status(ctx, orderID)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		j.logger.Debug("stale reservation without order", zap.Int64("order_id", orderID))
		return false
	case err != nil:
		j.logger.Warn("order status lookup failed", zap.Int64("order_id", orderID), zap.Error(err))
		return false
	}
	return status.IsAwaitingPayment()
}
