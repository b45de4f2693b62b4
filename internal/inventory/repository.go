package inventory

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/platform/db"
	"github.com/ss-chris/shield-field/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists positions and the transaction ledger in PostgreSQL and
// exposes the transactional surface the engines run in.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx implements RepositoryPort.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const positionColumns = "id, warehouse_id, product_id, on_hand, desired, can_be_ordered, created_at, updated_at"

func (r *Repository) GetPosition(ctx context.Context, warehouseID, productID int64) (Position, error) {
	var pos Position
	err := pgxscan.Get(ctx, r.pool, &pos,
		`SELECT `+positionColumns+` FROM position WHERE warehouse_id = $1 AND product_id = $2`,
		warehouseID, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Position{}, fmt.Errorf("inventory: position warehouse=%d product=%d: %w",
				warehouseID, productID, shared.ErrNotFound)
		}
		return Position{}, err
	}
	return pos, nil
}

func (r *Repository) ListPositions(ctx context.Context, filters PositionFilters) ([]Position, error) {
	q := psql.Select("id", "warehouse_id", "product_id", "on_hand", "desired", "can_be_ordered", "created_at", "updated_at").
		From("position").
		OrderBy("warehouse_id ASC", "product_id ASC")
	if filters.WarehouseID > 0 {
		q = q.Where(sq.Eq{"warehouse_id": filters.WarehouseID})
	}
	if filters.ProductID > 0 {
		q = q.Where(sq.Eq{"product_id": filters.ProductID})
	}
	if filters.CanBeOrdered != nil {
		q = q.Where(sq.Eq{"can_be_ordered": *filters.CanBeOrdered})
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	q = q.Limit(uint64(limit))
	if filters.Offset > 0 {
		q = q.Offset(uint64(filters.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("inventory: build position query: %w", err)
	}
	var positions []Position
	if err := pgxscan.Select(ctx, r.pool, &positions, sql, args...); err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *Repository) CreatePosition(ctx context.Context, pos Position) (Position, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO position (warehouse_id, product_id, on_hand, desired, can_be_ordered, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		pos.WarehouseID, pos.ProductID, pos.OnHand, pos.Desired, pos.CanBeOrdered).
		Scan(&pos.ID, &pos.CreatedAt, &pos.UpdatedAt)
	if err != nil {
		return Position{}, err
	}
	return pos, nil
}

func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]TransactionEntry, error) {
	q := psql.Select("id", "type", "quantity", "product_id",
		"COALESCE(source_warehouse_id, 0) AS source_warehouse_id",
		"COALESCE(destination_warehouse_id, 0) AS destination_warehouse_id",
		"COALESCE(source_order_id, 0) AS source_order_id",
		"COALESCE(destination_order_id, 0) AS destination_order_id",
		"created_at").
		From("inventory_transaction").
		OrderBy("id ASC")
	if filter.ProductID > 0 {
		q = q.Where(sq.Eq{"product_id": filter.ProductID})
	}
	if filter.WarehouseID > 0 {
		q = q.Where(sq.Or{
			sq.Eq{"source_warehouse_id": filter.WarehouseID},
			sq.Eq{"destination_warehouse_id": filter.WarehouseID},
		})
	}
	if filter.PurchaseOrderID > 0 {
		q = q.Where(sq.Or{
			sq.Eq{"source_order_id": filter.PurchaseOrderID},
			sq.Eq{"destination_order_id": filter.PurchaseOrderID},
		})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	q = q.Limit(uint64(limit))

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("inventory: build ledger query: %w", err)
	}
	var entries []TransactionEntry
	if err := pgxscan.Select(ctx, r.pool, &entries, sql, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// txRepository implements TxRepository on top of a live transaction.
type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (SettlementOrder, error) {
	var (
		order  SettlementOrder
		source pgtype.Int8
		dest   pgtype.Int8
	)
	err := t.tx.QueryRow(ctx,
		`SELECT id, kind, status, source_warehouse_id, destination_warehouse_id
		 FROM purchase_order WHERE id = $1 FOR UPDATE`, id).
		Scan(&order.ID, &order.Kind, &order.Status, &source, &dest)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SettlementOrder{}, fmt.Errorf("inventory: purchase order %d: %w", id, shared.ErrNotFound)
		}
		return SettlementOrder{}, err
	}
	order.SourceWarehouseID = source.Int64
	order.DestinationWarehouseID = dest.Int64
	return order, nil
}

func (t *txRepository) ListSettlementLines(ctx context.Context, orderID int64) ([]SettlementLine, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, product_id, quantity_ordered, quantity_received
		 FROM purchase_order_line_item WHERE purchase_order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []SettlementLine
	for rows.Next() {
		var line SettlementLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.QuantityOrdered, &line.QuantityReceived); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepository) SetPurchaseOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchase_order SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory: purchase order %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// EnsureProducts verifies every product id has a catalog row. A dangling id
// is reported as not found instead of surfacing later as a constraint error.
func (t *txRepository) EnsureProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id FROM product WHERE id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		if !found[id] {
			return fmt.Errorf("inventory: product %d: %w", id, shared.ErrNotFound)
		}
	}
	return nil
}

func (t *txRepository) GetWorkOrderForUpdate(ctx context.Context, id int64) (ConsumptionOrder, error) {
	var order ConsumptionOrder
	err := t.tx.QueryRow(ctx,
		`SELECT id, status, technician_id FROM work_order WHERE id = $1 FOR UPDATE`, id).
		Scan(&order.ID, &order.Status, &order.TechnicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsumptionOrder{}, fmt.Errorf("inventory: work order %d: %w", id, shared.ErrNotFound)
		}
		return ConsumptionOrder{}, err
	}
	return order, nil
}

func (t *txRepository) ListConsumptionLines(ctx context.Context, orderID int64) ([]ConsumptionLine, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, product_id, quantity, status
		 FROM work_order_line_item WHERE work_order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ConsumptionLine
	for rows.Next() {
		var line ConsumptionLine
		if err := rows.Scan(&line.ID, &line.ProductID, &line.Quantity, &line.Status); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepository) SetWorkOrderStatus(ctx context.Context, id int64, status string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE work_order SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory: work order %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) GetWarehouse(ctx context.Context, id int64) (directory.Warehouse, error) {
	var w directory.Warehouse
	err := pgxscan.Get(ctx, t.tx, &w,
		`SELECT id, name, role, active, keep_stocked, account_id, technician_id, ship_to, created_at, updated_at
		 FROM warehouse WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Warehouse{}, fmt.Errorf("inventory: warehouse %d: %w", id, shared.ErrNotFound)
		}
		return directory.Warehouse{}, err
	}
	return w, nil
}

func (t *txRepository) GetWarehouseByTechnician(ctx context.Context, technicianID string) (directory.Warehouse, error) {
	var w directory.Warehouse
	err := pgxscan.Get(ctx, t.tx, &w,
		`SELECT id, name, role, active, keep_stocked, account_id, technician_id, ship_to, created_at, updated_at
		 FROM warehouse WHERE technician_id = $1`, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Warehouse{}, fmt.Errorf("inventory: warehouse for technician %s: %w",
				technicianID, shared.ErrNotFound)
		}
		return directory.Warehouse{}, err
	}
	return w, nil
}

// ListPositionsForUpdate locks and returns the positions for the given keys.
// Keys with no row are simply absent from the result. Keys are deduplicated
// and locked in ascending order to keep concurrent settlements deadlock free.
func (t *txRepository) ListPositionsForUpdate(ctx context.Context, keys []positionKey) (map[positionKey]Position, error) {
	positions := make(map[positionKey]Position, len(keys))
	if len(keys) == 0 {
		return positions, nil
	}

	seen := make(map[positionKey]bool, len(keys))
	or := sq.Or{}
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		or = append(or, sq.Eq{"warehouse_id": key.warehouseID, "product_id": key.productID})
	}

	sql, args, err := psql.Select("id", "warehouse_id", "product_id", "on_hand", "desired", "can_be_ordered", "created_at", "updated_at").
		From("position").
		Where(or).
		OrderBy("warehouse_id ASC", "product_id ASC").
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("inventory: build position lock query: %w", err)
	}

	var rows []Position
	if err := pgxscan.Select(ctx, t.tx, &rows, sql, args...); err != nil {
		return nil, err
	}
	for _, pos := range rows {
		positions[positionKey{pos.WarehouseID, pos.ProductID}] = pos
	}
	return positions, nil
}

// ApplyWriteSet lands every effect of one engine run inside the transaction.
func (t *txRepository) ApplyWriteSet(ctx context.Context, ws WriteSet) error {
	for _, create := range ws.Creates {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO position (warehouse_id, product_id, on_hand, desired, can_be_ordered, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
			create.WarehouseID, create.ProductID, create.OnHand, create.Desired, create.CanBeOrdered)
		if err != nil {
			return fmt.Errorf("create position warehouse=%d product=%d: %w", create.WarehouseID, create.ProductID, err)
		}
	}
	for _, update := range ws.Updates {
		tag, err := t.tx.Exec(ctx,
			`UPDATE position SET on_hand = on_hand + $1, updated_at = NOW() WHERE id = $2`,
			update.Delta, update.PositionID)
		if err != nil {
			return fmt.Errorf("update position %d: %w", update.PositionID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update position %d: %w", update.PositionID, shared.ErrNotFound)
		}
	}
	for _, entry := range ws.Entries {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO inventory_transaction
			 (type, quantity, product_id, source_warehouse_id, destination_warehouse_id, source_order_id, destination_order_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
			entry.Type, entry.Quantity, entry.ProductID,
			pgtype.Int8{Int64: entry.SourceWarehouseID, Valid: entry.SourceWarehouseID != 0},
			pgtype.Int8{Int64: entry.DestinationWarehouseID, Valid: entry.DestinationWarehouseID != 0},
			pgtype.Int8{Int64: entry.SourceOrderID, Valid: entry.SourceOrderID != 0},
			pgtype.Int8{Int64: entry.DestinationOrderID, Valid: entry.DestinationOrderID != 0})
		if err != nil {
			return fmt.Errorf("append ledger entry product=%d: %w", entry.ProductID, err)
		}
	}
	return nil
}

// WithPlanTx implements PlannerStore. The plan runs at ReadCommitted: after
// LockDestination waits out a concurrent planner, the in-flight line read
// gets a snapshot that includes the orders that planner committed, so the
// same deficit is never ordered twice.
func (r *Repository) WithPlanTx(ctx context.Context, fn func(ctx context.Context, tx PlanTx) error) error {
	return db.WithReadCommittedTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &planTx{tx: tx})
	})
}

type planTx struct {
	tx pgx.Tx
}

// plannerLockClass namespaces advisory locks taken per destination warehouse.
const plannerLockClass = 4471

func (t *planTx) LockDestination(ctx context.Context, warehouseID int64) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, plannerLockClass, warehouseID)
	return err
}

func (t *planTx) ListOrderablePositions(ctx context.Context) ([]OrderablePosition, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT warehouse_id, product_id, on_hand, desired
		 FROM position
		 WHERE can_be_ordered
		 ORDER BY warehouse_id ASC, product_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []OrderablePosition
	for rows.Next() {
		var pos OrderablePosition
		if err := rows.Scan(&pos.WarehouseID, &pos.ProductID, &pos.OnHand, &pos.Desired); err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func (t *planTx) ListOpenOrderLines(ctx context.Context) ([]OpenOrderLine, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT po.destination_warehouse_id, li.product_id, li.quantity_ordered
		 FROM purchase_order_line_item li
		 JOIN purchase_order po ON po.id = li.purchase_order_id
		 WHERE po.status IN ($1, $2) AND po.destination_warehouse_id IS NOT NULL`,
		OrderStatusOpen, OrderStatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OpenOrderLine
	for rows.Next() {
		var line OpenOrderLine
		if err := rows.Scan(&line.DestinationWarehouseID, &line.ProductID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *planTx) InsertPlannedOrder(ctx context.Context, order PlannedOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchase_order (kind, status, source_warehouse_id, destination_warehouse_id, created_at, updated_at)
		 VALUES ('system', $1, $2, $3, NOW(), NOW()) RETURNING id`,
		OrderStatusOpen,
		pgtype.Int8{Int64: order.SourceWarehouseID, Valid: order.SourceWarehouseID != 0},
		order.DestinationWarehouseID).
		Scan(&id)
	return id, err
}

func (t *planTx) InsertPlannedLines(ctx context.Context, orderID int64, lines []PlannedLine) error {
	for _, line := range lines {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO purchase_order_line_item
			 (purchase_order_id, product_id, quantity_ordered, quantity_received, status, created_at, updated_at)
			 VALUES ($1, $2, $3, 0, 'created', NOW(), NOW())`,
			orderID, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
	}
	return nil
}
