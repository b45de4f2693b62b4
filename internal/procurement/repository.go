package procurement

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ss-chris/shield-field/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists purchase orders, line items and shipments.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error)
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	Create(ctx context.Context, order PurchaseOrder, lines []LineItem) (PurchaseOrder, error)

	ListLineItems(ctx context.Context, orderID int64) ([]LineItem, error)
	CreateLineItems(ctx context.Context, orderID int64, lines []LineItem) error
	UpdateLineItem(ctx context.Context, line LineItem) error

	ListShipments(ctx context.Context, orderID int64) ([]Shipment, error)
	CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error)
	SetShipmentStatus(ctx context.Context, id int64, status ShipmentStatus, carrierMessage string) error
	AddTrackingEvent(ctx context.Context, event TrackingEvent) (TrackingEvent, error)
	ListTrackingEvents(ctx context.Context, shipmentID int64) ([]TrackingEvent, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, kind, status,
	COALESCE(parent_purchase_order_id, 0) AS parent_purchase_order_id,
	COALESCE(source_warehouse_id, 0) AS source_warehouse_id,
	COALESCE(destination_warehouse_id, 0) AS destination_warehouse_id,
	COALESCE(shipping_method, '') AS shipping_method,
	COALESCE(note, '') AS note, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	q := psql.Select("id", "kind", "status",
		"COALESCE(parent_purchase_order_id, 0) AS parent_purchase_order_id",
		"COALESCE(source_warehouse_id, 0) AS source_warehouse_id",
		"COALESCE(destination_warehouse_id, 0) AS destination_warehouse_id",
		"COALESCE(shipping_method, '') AS shipping_method",
		"COALESCE(note, '') AS note", "created_at", "updated_at").
		From("purchase_order").
		OrderBy("id DESC")
	if filters.Status != "" {
		q = q.Where(sq.Eq{"status": filters.Status})
	}
	if filters.Kind != "" {
		q = q.Where(sq.Eq{"kind": filters.Kind})
	}
	if filters.ParentPurchaseOrderID > 0 {
		q = q.Where(sq.Eq{"parent_purchase_order_id": filters.ParentPurchaseOrderID})
	}
	if filters.DestinationWarehouseID > 0 {
		q = q.Where(sq.Eq{"destination_warehouse_id": filters.DestinationWarehouseID})
	}
	if filters.SourceWarehouseID > 0 {
		q = q.Where(sq.Eq{"source_warehouse_id": filters.SourceWarehouseID})
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
		return nil, fmt.Errorf("procurement: build list query: %w", err)
	}
	var orders []PurchaseOrder
	if err := pgxscan.Select(ctx, r.pool, &orders, sql, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	var order PurchaseOrder
	err := pgxscan.Get(ctx, r.pool, &order,
		`SELECT `+orderColumns+` FROM purchase_order WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("procurement: purchase order %d: %w", id, shared.ErrNotFound)
		}
		return PurchaseOrder{}, err
	}
	return order, nil
}

func (r *repository) Create(ctx context.Context, order PurchaseOrder, lines []LineItem) (PurchaseOrder, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO purchase_order
			 (kind, status, parent_purchase_order_id, source_warehouse_id, destination_warehouse_id, shipping_method, note, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			order.Kind, order.Status,
			pgtype.Int8{Int64: order.ParentPurchaseOrderID, Valid: order.ParentPurchaseOrderID != 0},
			pgtype.Int8{Int64: order.SourceWarehouseID, Valid: order.SourceWarehouseID != 0},
			pgtype.Int8{Int64: order.DestinationWarehouseID, Valid: order.DestinationWarehouseID != 0},
			order.ShippingMethod, order.Note).
			Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return err
		}
		return insertLineItems(ctx, tx, order.ID, lines)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

func insertLineItems(ctx context.Context, tx pgx.Tx, orderID int64, lines []LineItem) error {
	for _, line := range lines {
		status := line.Status
		if status == "" {
			status = LineStatusCreated
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO purchase_order_line_item
			 (purchase_order_id, product_id, quantity_ordered, quantity_received, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
			orderID, line.ProductID, line.QuantityOrdered, line.QuantityReceived, status)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ListLineItems(ctx context.Context, orderID int64) ([]LineItem, error) {
	var lines []LineItem
	err := pgxscan.Select(ctx, r.pool, &lines,
		`SELECT id, purchase_order_id, product_id, quantity_ordered, quantity_received, status, created_at, updated_at
		 FROM purchase_order_line_item WHERE purchase_order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) CreateLineItems(ctx context.Context, orderID int64, lines []LineItem) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertLineItems(ctx, tx, orderID, lines)
	})
}

func (r *repository) UpdateLineItem(ctx context.Context, line LineItem) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_order_line_item
		 SET quantity_ordered = $1, quantity_received = $2, status = $3, updated_at = NOW()
		 WHERE id = $4 AND purchase_order_id = $5`,
		line.QuantityOrdered, line.QuantityReceived, line.Status, line.ID, line.PurchaseOrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: line item %d on order %d: %w", line.ID, line.PurchaseOrderID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) ListShipments(ctx context.Context, orderID int64) ([]Shipment, error) {
	var shipments []Shipment
	err := pgxscan.Select(ctx, r.pool, &shipments,
		`SELECT id, purchase_order_id, COALESCE(carrier, '') AS carrier,
		        COALESCE(tracking_number, '') AS tracking_number, status,
		        COALESCE(last_carrier_message, '') AS last_carrier_message,
		        shipment_date, estimated_delivery_date, delivery_date, created_at, updated_at
		 FROM shipment WHERE purchase_order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error) {
	if shipment.Status == "" {
		shipment.Status = ShipmentPending
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shipment (purchase_order_id, carrier, tracking_number, status, estimated_delivery_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		shipment.PurchaseOrderID, shipment.Carrier, shipment.TrackingNumber, shipment.Status,
		shipment.EstimatedDeliveryDate).
		Scan(&shipment.ID, &shipment.CreatedAt, &shipment.UpdatedAt)
	if err != nil {
		return Shipment{}, err
	}
	return shipment, nil
}

// SetShipmentStatus advances a shipment, keeping the last carrier message and
// stamping the shipment and delivery dates the first time each state is hit.
func (r *repository) SetShipmentStatus(ctx context.Context, id int64, status ShipmentStatus, carrierMessage string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE shipment SET status = $1,
		        last_carrier_message = COALESCE(NULLIF($2, ''), last_carrier_message),
		        shipment_date = CASE WHEN $1 = 'onroute' THEN COALESCE(shipment_date, NOW()) ELSE shipment_date END,
		        delivery_date = CASE WHEN $1 = 'delivered' THEN COALESCE(delivery_date, NOW()) ELSE delivery_date END,
		        updated_at = NOW()
		 WHERE id = $3`, status, carrierMessage, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: shipment %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) AddTrackingEvent(ctx context.Context, event TrackingEvent) (TrackingEvent, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shipment_tracking_event (shipment_id, status, detail, occurred_at)
		 VALUES ($1, $2, $3, COALESCE(NULLIF($4, '0001-01-01 00:00:00+00'::timestamptz), NOW()))
		 RETURNING id, occurred_at`,
		event.ShipmentID, event.Status, event.Detail, event.OccurredAt).
		Scan(&event.ID, &event.OccurredAt)
	if err != nil {
		return TrackingEvent{}, err
	}
	return event, nil
}

func (r *repository) ListTrackingEvents(ctx context.Context, shipmentID int64) ([]TrackingEvent, error) {
	var events []TrackingEvent
	err := pgxscan.Select(ctx, r.pool, &events,
		`SELECT id, shipment_id, status, COALESCE(detail, '') AS detail, occurred_at
		 FROM shipment_tracking_event WHERE shipment_id = $1 ORDER BY occurred_at ASC, id ASC`, shipmentID)
	if err != nil {
		return nil, err
	}
	return events, nil
}
