package catalog

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

// Repository persists products in PostgreSQL.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, error) {
	q := psql.Select("id", "COALESCE(external_id, '') AS external_id", "name", "created_at", "updated_at").
		From("product").
		OrderBy("name ASC")
	if filters.ExternalID != "" {
		q = q.Where(sq.Eq{"external_id": filters.ExternalID})
	}
	if filters.Search != "" {
		q = q.Where(sq.ILike{"name": "%" + filters.Search + "%"})
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
		return nil, fmt.Errorf("catalog: build list query: %w", err)
	}
	var products []Product
	if err := pgxscan.Select(ctx, r.pool, &products, sql, args...); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, COALESCE(external_id, ''), name, created_at, updated_at FROM product WHERE id = $1`, id).
		Scan(&p.ID, &p.ExternalID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("catalog: product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO product (external_id, name, created_at, updated_at) VALUES (NULLIF($1, ''), $2, $3, $3) RETURNING id`,
		product.ExternalID, product.Name, now).
		Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE product SET external_id = NULLIF($1, ''), name = $2, updated_at = NOW() WHERE id = $3`,
		product.ExternalID, product.Name, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
