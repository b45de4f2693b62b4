package fulfillment

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-chris/shield-field/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists work orders and their line items.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]WorkOrder, error)
	Get(ctx context.Context, id int64) (WorkOrder, error)
	Create(ctx context.Context, order WorkOrder, lines []WorkOrderLine) (WorkOrder, error)

	ListLines(ctx context.Context, orderID int64) ([]WorkOrderLine, error)
	CreateLines(ctx context.Context, orderID int64, lines []WorkOrderLine) error
	UpdateLine(ctx context.Context, line WorkOrderLine) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]WorkOrder, error) {
	q := psql.Select("id", "status", "technician_id",
		"COALESCE(customer_ref, '') AS customer_ref",
		"COALESCE(note, '') AS note", "created_at", "updated_at").
		From("work_order").
		OrderBy("id DESC")
	if filters.Status != "" {
		q = q.Where(sq.Eq{"status": filters.Status})
	}
	if filters.TechnicianID != "" {
		q = q.Where(sq.Eq{"technician_id": filters.TechnicianID})
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	q = q.Limit(uint64(limit))
	if filters.Offset > 0 {
		q = q.Offset(uint64(filters.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("fulfillment: build list query: %w", err)
	}
	var orders []WorkOrder
	if err := pgxscan.Select(ctx, r.pool, &orders, sql, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) Get(ctx context.Context, id int64) (WorkOrder, error) {
	var order WorkOrder
	err := pgxscan.Get(ctx, r.pool, &order,
		`SELECT id, status, technician_id, COALESCE(customer_ref, '') AS customer_ref,
		        COALESCE(note, '') AS note, created_at, updated_at
		 FROM work_order WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkOrder{}, fmt.Errorf("fulfillment: work order %d: %w", id, shared.ErrNotFound)
		}
		return WorkOrder{}, err
	}
	return order, nil
}

func (r *repository) Create(ctx context.Context, order WorkOrder, lines []WorkOrderLine) (WorkOrder, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO work_order (status, technician_id, customer_ref, note, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			order.Status, order.TechnicianID, order.CustomerRef, order.Note).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, order.ID, lines)
	})
	if err != nil {
		return WorkOrder{}, err
	}
	return order, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []WorkOrderLine) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO work_order_line_item (work_order_id, product_id, quantity, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
			orderID, line.ProductID, line.Quantity, line.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListLines(ctx context.Context, orderID int64) ([]WorkOrderLine, error) {
	var lines []WorkOrderLine
	err := pgxscan.Select(ctx, r.pool, &lines,
		`SELECT id, work_order_id, product_id, quantity, status, created_at, updated_at
		 FROM work_order_line_item WHERE work_order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) CreateLines(ctx context.Context, orderID int64, lines []WorkOrderLine) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertLines(ctx, tx, orderID, lines)
	})
}

func (r *repository) UpdateLine(ctx context.Context, line WorkOrderLine) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE work_order_line_item SET quantity = $1, status = $2, updated_at = NOW()
		 WHERE id = $3 AND work_order_id = $4`,
		line.Quantity, line.Status, line.ID, line.WorkOrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fulfillment: line %d on work order %d: %w", line.ID, line.WorkOrderID, shared.ErrNotFound)
	}
	return nil
}
