package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-chris/shield-field/internal/shared"
)

// Repository persists warehouses in PostgreSQL.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Warehouse, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	GetByTechnician(ctx context.Context, technicianID string) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, warehouse Warehouse) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const warehouseColumns = "id, name, role, active, keep_stocked, account_id, technician_id, ship_to, created_at, updated_at"

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Warehouse, error) {
	q := psql.Select("id", "name", "role", "active", "keep_stocked", "account_id", "technician_id", "ship_to", "created_at", "updated_at").
		From("warehouse").
		OrderBy("name ASC")
	if filters.Role != "" {
		q = q.Where(sq.Eq{"role": filters.Role})
	}
	if filters.Active != nil {
		q = q.Where(sq.Eq{"active": *filters.Active})
	}
	if filters.AccountID != "" {
		q = q.Where(sq.Eq{"account_id": filters.AccountID})
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
		return nil, fmt.Errorf("directory: build list query: %w", err)
	}
	var warehouses []Warehouse
	if err := pgxscan.Select(ctx, r.pool, &warehouses, sql, args...); err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := pgxscan.Get(ctx, r.pool, &w,
		`SELECT `+warehouseColumns+` FROM warehouse WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("directory: warehouse %d: %w", id, shared.ErrNotFound)
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) GetByTechnician(ctx context.Context, technicianID string) (Warehouse, error) {
	var w Warehouse
	err := pgxscan.Get(ctx, r.pool, &w,
		`SELECT `+warehouseColumns+` FROM warehouse WHERE technician_id = $1`, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("directory: warehouse for technician %s: %w", technicianID, shared.ErrNotFound)
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO warehouse (name, role, active, keep_stocked, account_id, technician_id, ship_to, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		warehouse.Name, warehouse.Role, warehouse.Active, warehouse.KeepStocked,
		warehouse.AccountID, warehouse.TechnicianID, warehouse.ShipTo, now).
		Scan(&warehouse.ID)
	if err != nil {
		return Warehouse{}, err
	}
	warehouse.CreatedAt = now
	warehouse.UpdatedAt = now
	return warehouse, nil
}

func (r *repository) Update(ctx context.Context, id int64, warehouse Warehouse) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE warehouse SET name = $1, role = $2, active = $3, keep_stocked = $4,
		 account_id = $5, technician_id = $6, ship_to = $7, updated_at = NOW() WHERE id = $8`,
		warehouse.Name, warehouse.Role, warehouse.Active, warehouse.KeepStocked,
		warehouse.AccountID, warehouse.TechnicianID, warehouse.ShipTo, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("directory: warehouse %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
