package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alekenov/figma-product-catalog-sub002/internal/domain"
	"github.com/alekenov/figma-product-catalog-sub002/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const pgErrCheckViolation = "23514"

// Repository is the Postgres implementation of store.Store
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ store.Store = (*Repository)(nil)

func NewRepository(cred *Credentials, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	logger.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	return &Repository{db: db, logger: logger}, nil
}

// DB exposes the pool for collaborators sharing the database
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// View runs fn in a read-only repeatable-read transaction so every read
// sees the same snapshot.
func (r *Repository) View(ctx context.Context, fn func(store.Reader) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Update runs fn in a read-committed transaction. Stock consistency comes
// from the row locks taken by LockItems, not from the isolation level.
func (r *Repository) Update(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type pgTx struct {
	tx *sql.Tx
}

const itemColumns = `id, name, quantity, min_quantity, cost_price, retail_price, updated_at`

func (t *pgTx) RecipeFor(ctx context.Context, productID int64) ([]domain.RecipeLine, error) {
	query := `SELECT product_id, warehouse_item_id, quantity, is_optional
	          FROM product_recipes WHERE product_id = $1 ORDER BY warehouse_item_id`

	rows, err := t.tx.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query recipe: %w", err)
	}
	defer rows.Close()

	var lines []domain.RecipeLine
	for rows.Next() {
		var l domain.RecipeLine
		if err := rows.Scan(&l.ProductID, &l.WarehouseItemID, &l.Quantity, &l.IsOptional); err != nil {
			return nil, fmt.Errorf("scan recipe row: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (t *pgTx) Items(ctx context.Context, ids []int64) (map[int64]domain.WarehouseItem, error) {
	query := `SELECT ` + itemColumns + ` FROM warehouse_items WHERE id = ANY($1)`
	return t.queryItems(ctx, query, pq.Array(ids))
}

func (t *pgTx) AllItems(ctx context.Context) ([]domain.WarehouseItem, error) {
	query := `SELECT ` + itemColumns + ` FROM warehouse_items ORDER BY id`

	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query warehouse items: %w", err)
	}
	defer rows.Close()

	var items []domain.WarehouseItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (t *pgTx) ReservedTotals(ctx context.Context, ids []int64) (map[int64]int, error) {
	query := `SELECT warehouse_item_id, SUM(reserved_quantity) FROM order_reservations GROUP BY warehouse_item_id`
	args := []any{}
	if len(ids) > 0 {
		query = `SELECT warehouse_item_id, SUM(reserved_quantity) FROM order_reservations
		         WHERE warehouse_item_id = ANY($1) GROUP BY warehouse_item_id`
		args = append(args, pq.Array(ids))
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reserved totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int)
	for rows.Next() {
		var id int64
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scan reserved total: %w", err)
		}
		totals[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return totals, nil
}

func (t *pgTx) ReservationsForOrder(ctx context.Context, orderID int64) ([]domain.Reservation, error) {
	query := `SELECT id, order_id, warehouse_item_id, reserved_quantity, created_at
	          FROM order_reservations WHERE order_id = $1 ORDER BY warehouse_item_id`

	rows, err := t.tx.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query reservations by order id: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.OrderID, &res.WarehouseItemID, &res.ReservedQuantity, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reservations, nil
}

func (t *pgTx) StaleOrders(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `SELECT DISTINCT order_id FROM order_reservations WHERE created_at < $1 ORDER BY order_id`

	rows, err := t.tx.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}
	defer rows.Close()

	var orders []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		orders = append(orders, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// LockItems takes row locks in ascending id order so two transactions
// touching overlapping components cannot deadlock.
func (t *pgTx) LockItems(ctx context.Context, ids []int64) (map[int64]domain.WarehouseItem, error) {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	query := `SELECT ` + itemColumns + ` FROM warehouse_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	return t.queryItems(ctx, query, pq.Array(sorted))
}

func (t *pgTx) InsertReservations(ctx context.Context, reservations []domain.Reservation) error {
	query := `INSERT INTO order_reservations (id, order_id, warehouse_item_id, reserved_quantity, created_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (order_id, warehouse_item_id)
	          DO UPDATE SET reserved_quantity = order_reservations.reserved_quantity + EXCLUDED.reserved_quantity`

	for _, res := range reservations {
		createdAt := res.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := t.tx.ExecContext(ctx, query,
			res.ID,
			res.OrderID,
			res.WarehouseItemID,
			res.ReservedQuantity,
			createdAt); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
	}
	return nil
}

func (t *pgTx) DeleteReservations(ctx context.Context, orderID int64) (int, error) {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM order_reservations WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, fmt.Errorf("delete reservations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (t *pgTx) AdjustQuantity(ctx context.Context, itemID int64, delta int) error {
	query := `UPDATE warehouse_items SET quantity = quantity + $2, updated_at = NOW()
	          WHERE id = $1 AND quantity + $2 >= 0`

	result, err := t.tx.ExecContext(ctx, query, itemID, delta)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgErrCheckViolation {
			return domain.ErrNegativeStock
		}
		return fmt.Errorf("update quantity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM warehouse_items WHERE id = $1)`, itemID).Scan(&exists); err != nil {
		return fmt.Errorf("check item exists: %w", err)
	}
	if !exists {
		return domain.ErrItemNotFound
	}
	return domain.ErrNegativeStock
}

func (t *pgTx) queryItems(ctx context.Context, query string, args ...any) (map[int64]domain.WarehouseItem, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query warehouse items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]domain.WarehouseItem)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func scanItem(rows *sql.Rows) (domain.WarehouseItem, error) {
	var item domain.WarehouseItem
	if err := rows.Scan(
		&item.ID,
		&item.Name,
		&item.Quantity,
		&item.MinQuantity,
		&item.CostPrice,
		&item.RetailPrice,
		&item.UpdatedAt,
	); err != nil {
		return item, fmt.Errorf("scan warehouse item: %w", err)
	}
	return item, nil
}
