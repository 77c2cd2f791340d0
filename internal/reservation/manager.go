package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/metrics"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "bouquet-inventory/reservation"

// CreateResult is what a successful CreateReservations call committed
type CreateResult struct {
	Reservations []domain.Reservation  `json:"reservations"`
	Warnings     []string              `json:"warnings"`
	Outcomes     []domain.ClaimOutcome `json:"-"`
}

// Manager owns every mutation of the reservation ledger
type Manager struct {
	store   store.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewManager(s store.Store, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		store:   s,
		metrics: m,
		logger:  logger,
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
}

// demand is the component quantity an order needs, split by how strictly it is needed
type demand struct {
	itemID   int64
	required int
	optional int
}

// CreateReservations reserves every component the line items need, or nothing.
//
// Demand is summed per component across lines. Components are locked in
// ascending ID order, free stock is re-read under the lock and required
// demand is claimed first. Optional demand takes what is left or is skipped.
func (m *Manager) CreateReservations(ctx context.Context, orderID int64, items []domain.LineItem) (CreateResult, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "reservation.create", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int("order.lines", len(items)),
	))
	defer span.End()

	if err := validateItems(items); err != nil {
		m.finish(span, "create", start, err)
		return CreateResult{}, err
	}

	var result CreateResult
	err := m.store.Update(ctx, func(tx store.Tx) error {
		needs, warnings, err := aggregateDemand(ctx, tx, items)
		if err != nil {
			return err
		}
		result = CreateResult{Warnings: warnings}
		if len(needs) == 0 {
			return nil
		}

		ids := make([]int64, len(needs))
		for i, d := range needs {
			ids[i] = d.itemID
		}
		locked, err := tx.LockItems(ctx, ids)
		if err != nil {
			return err
		}
		reserved, err := tx.ReservedTotals(ctx, ids)
		if err != nil {
			return err
		}

		claims := make(map[int64]int, len(needs))
		for _, d := range needs {
			item := locked[d.itemID]
			outcomes := claim(d, item, item.Quantity-reserved[d.itemID])
			for _, o := range outcomes {
				switch o := o.(type) {
				case domain.Failed:
					return &domain.InsufficientStockError{
						ComponentID: o.ItemID,
						Component:   o.Name,
						Required:    o.Required,
						Available:   o.Available,
					}
				case domain.Skipped:
					result.Warnings = append(result.Warnings, fmt.Sprintf(
						"optional %s skipped: required %d, available %d", o.Name, o.Required, o.Available))
				case domain.Claimed:
					claims[o.ItemID] += o.Quantity
				}
			}
			result.Outcomes = append(result.Outcomes, outcomes...)
		}

		now := time.Now()
		rows := make([]domain.Reservation, 0, len(claims))
		for _, id := range ids {
			if claims[id] == 0 {
				continue
			}
			rows = append(rows, domain.Reservation{
				ID:               uuid.New().String(),
				OrderID:          orderID,
				WarehouseItemID:  id,
				ReservedQuantity: claims[id],
				CreatedAt:        now,
			})
		}
		if len(rows) > 0 {
			if err := tx.InsertReservations(ctx, rows); err != nil {
				return err
			}
		}

		result.Reservations, err = tx.ReservationsForOrder(ctx, orderID)
		return err
	})
	if err != nil {
		err = domain.NewStorageError("create reservations", err)
		m.finish(span, "create", start, err)
		if errors.Is(err, domain.ErrInsufficientStock) {
			m.logger.Info("reservation rejected", zap.Int64("order_id", orderID), zap.Error(err))
		} else {
			m.logger.Error("reservation failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return CreateResult{}, err
	}

	units := 0
	for _, o := range result.Outcomes {
		if c, ok := o.(domain.Claimed); ok {
			units += c.Quantity
		}
	}
	m.metrics.AddReserved(units)
	m.finish(span, "create", start, nil)
	m.logger.Info("reservations created",
		zap.Int64("order_id", orderID),
		zap.Int("components", len(result.Reservations)),
		zap.Int("units", units),
		zap.Int("warnings", len(result.Warnings)))
	if result.Reservations == nil {
		result.Reservations = []domain.Reservation{}
	}
	return result, nil
}

// ReleaseReservations drops every reservation of an order. Releasing an order
// without reservations succeeds with 0.
func (m *Manager) ReleaseReservations(ctx context.Context, orderID int64) (int, error) {
	return m.release(ctx, orderID, nil)
}

// ReleaseIf releases like ReleaseReservations, but only when still reports
// true once the components of the order are locked.
func (m *Manager) ReleaseIf(ctx context.Context, orderID int64, still func(context.Context) (bool, error)) (int, error) {
	return m.release(ctx, orderID, still)
}

func (m *Manager) release(ctx context.Context, orderID int64, still func(context.Context) (bool, error)) (int, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "reservation.release", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var released int
	err := m.store.Update(ctx, func(tx store.Tx) error {
		rows, err := tx.ReservationsForOrder(ctx, orderID)
		if err != nil || len(rows) == 0 {
			return err
		}

		// same locks as convert, so the two never interleave on one order
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.WarehouseItemID
		}
		if _, err := tx.LockItems(ctx, ids); err != nil {
			return err
		}

		if still != nil {
			ok, err := still(ctx)
			if err != nil || !ok {
				return err
			}
		}

		released, err = tx.DeleteReservations(ctx, orderID)
		return err
	})
	if err != nil {
		err = domain.NewStorageError("release reservations", err)
		m.finish(span, "release", start, err)
		m.logger.Error("release failed", zap.Int64("order_id", orderID), zap.Error(err))
		return 0, err
	}

	span.SetAttributes(attribute.Int("reservations.released", released))
	m.finish(span, "release", start, nil)
	if released > 0 {
		m.logger.Info("reservations released", zap.Int64("order_id", orderID), zap.Int("rows", released))
	}
	return released, nil
}

// ConvertToDeductions turns the reservations of an order into permanent
// stock deductions and removes them. Callers run it once per order, when it
// moves from ACCEPTED to ASSEMBLED.
func (m *Manager) ConvertToDeductions(ctx context.Context, orderID int64) (int, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "reservation.convert", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var converted, units int
	err := m.store.Update(ctx, func(tx store.Tx) error {
		rows, err := tx.ReservationsForOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.WarehouseItemID
		}
		if _, err := tx.LockItems(ctx, ids); err != nil {
			return err
		}
		// a concurrent release or convert may have won the lock
		if rows, err = tx.ReservationsForOrder(ctx, orderID); err != nil {
			return err
		}

		// rows are ordered by item ID, so deductions follow the lock order
		for _, r := range rows {
			if err := tx.AdjustQuantity(ctx, r.WarehouseItemID, -r.ReservedQuantity); err != nil {
				return fmt.Errorf("deduct item %d: %w", r.WarehouseItemID, err)
			}
			units += r.ReservedQuantity
		}

		converted, err = tx.DeleteReservations(ctx, orderID)
		return err
	})
	if err != nil {
		err = domain.NewStorageError("convert reservations", err)
		m.finish(span, "convert", start, err)
		m.logger.Error("conversion failed", zap.Int64("order_id", orderID), zap.Error(err))
		return 0, err
	}

	m.metrics.AddConverted(units)
	m.finish(span, "convert", start, nil)
	if converted > 0 {
		m.logger.Info("reservations converted",
			zap.Int64("order_id", orderID),
			zap.Int("rows", converted),
			zap.Int("units", units))
	}
	return converted, nil
}

// GetReservations lists the active reservations of an order
func (m *Manager) GetReservations(ctx context.Context, orderID int64) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := m.store.View(ctx, func(r store.Reader) error {
		var err error
		rows, err = r.ReservationsForOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, domain.NewStorageError("get reservations", err)
	}
	if rows == nil {
		rows = []domain.Reservation{}
	}
	return rows, nil
}

func (m *Manager) finish(span trace.Span, op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, domain.ErrInsufficientStock):
		result = "insufficient"
		span.SetStatus(codes.Error, err.Error())
	default:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	m.metrics.ObserveOperation(op, result, start)
}

func validateItems(items []domain.LineItem) error {
	if len(items) == 0 {
		return domain.ErrNoLineItems
	}
	for _, it := range items {
		if it.Quantity <= 0 || it.Quantity > domain.MaxUnits {
			return fmt.Errorf("product %d: %w", it.ProductID, domain.ErrInvalidQuantity)
		}
	}
	return nil
}

// aggregateDemand expands every line through its recipe and sums demand per
// component, ordered by component ID.
func aggregateDemand(ctx context.Context, r store.Reader, items []domain.LineItem) ([]demand, []string, error) {
	byItem := make(map[int64]*demand)
	var warnings []string
	noted := make(map[int64]bool)

	for _, it := range items {
		lines, err := r.RecipeFor(ctx, it.ProductID)
		if err != nil {
			return nil, nil, fmt.Errorf("load recipe for product %d: %w", it.ProductID, err)
		}
		if len(lines) == 0 {
			if !noted[it.ProductID] {
				noted[it.ProductID] = true
				warnings = append(warnings, fmt.Sprintf("product %d has no recipe; nothing reserved for it", it.ProductID))
			}
			continue
		}
		for _, line := range lines {
			if line.Quantity <= 0 {
				return nil, nil, fmt.Errorf("product %d, item %d: %w", it.ProductID, line.WarehouseItemID, domain.ErrInvalidRecipe)
			}
			d, ok := byItem[line.WarehouseItemID]
			if !ok {
				d = &demand{itemID: line.WarehouseItemID}
				byItem[line.WarehouseItemID] = d
			}
			units, err := domain.LineDemand(line.Quantity, it.Quantity)
			if err != nil {
				return nil, nil, fmt.Errorf("product %d, item %d: %w", it.ProductID, line.WarehouseItemID, err)
			}
			total := &d.required
			if line.IsOptional {
				total = &d.optional
			}
			if *total, err = domain.AddUnits(*total, units); err != nil {
				return nil, nil, fmt.Errorf("item %d: %w", line.WarehouseItemID, err)
			}
		}
	}

	needs := make([]demand, 0, len(byItem))
	for _, d := range byItem {
		needs = append(needs, *d)
	}
	sort.Slice(needs, func(i, j int) bool { return needs[i].itemID < needs[j].itemID })
	return needs, warnings, nil
}

// claim decides what one component contributes given its live free quantity.
// A missing warehouse item has nothing free.
func claim(d demand, item domain.WarehouseItem, free int) []domain.ClaimOutcome {
	name := domain.ComponentName(item, d.itemID)
	free = max(free, 0)

	var outcomes []domain.ClaimOutcome
	if d.required > 0 {
		if d.required > free {
			return []domain.ClaimOutcome{domain.Failed{ItemID: d.itemID, Name: name, Required: d.required, Available: free}}
		}
		outcomes = append(outcomes, domain.Claimed{ItemID: d.itemID, Name: name, Quantity: d.required})
		free -= d.required
	}
	if d.optional > 0 {
		if d.optional > free {
			outcomes = append(outcomes, domain.Skipped{ItemID: d.itemID, Name: name, Required: d.optional, Available: free})
		} else {
			outcomes = append(outcomes, domain.Claimed{ItemID: d.itemID, Name: name, Quantity: d.optional})
		}
	}
	return outcomes
}
