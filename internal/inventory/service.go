package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/observability"
	"github.com/ss-chris/shield-field/internal/shared"
)

// RepositoryPort is the storage surface the inventory service depends on.
// WithTx runs fn inside one repeatable-read transaction; the TxRepository it
// hands out is only valid for the duration of the call.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetPosition(ctx context.Context, warehouseID, productID int64) (Position, error)
	ListPositions(ctx context.Context, filters PositionFilters) ([]Position, error)
	CreatePosition(ctx context.Context, pos Position) (Position, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]TransactionEntry, error)
}

// TxRepository is the transactional slice of storage the engines run
// against. Reads that feed a write-set take row locks so concurrent
// settlements against the same positions serialize.
type TxRepository interface {
	GetPurchaseOrderForUpdate(ctx context.Context, id int64) (SettlementOrder, error)
	ListSettlementLines(ctx context.Context, orderID int64) ([]SettlementLine, error)
	SetPurchaseOrderStatus(ctx context.Context, id int64, status OrderStatus) error
	EnsureProducts(ctx context.Context, ids []int64) error

	GetWorkOrderForUpdate(ctx context.Context, id int64) (ConsumptionOrder, error)
	ListConsumptionLines(ctx context.Context, orderID int64) ([]ConsumptionLine, error)
	SetWorkOrderStatus(ctx context.Context, id int64, status string) error

	GetWarehouse(ctx context.Context, id int64) (directory.Warehouse, error)
	GetWarehouseByTechnician(ctx context.Context, technicianID string) (directory.Warehouse, error)
	ListPositionsForUpdate(ctx context.Context, keys []positionKey) (map[positionKey]Position, error)

	ApplyWriteSet(ctx context.Context, ws WriteSet) error
}

// Service owns the position store, the transaction ledger and the two engines
// that feed them.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	audit   *shared.AuditLogger
	metrics *observability.Metrics
}

// NewService builds Service. Audit and metrics may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, audit *shared.AuditLogger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, audit: audit, metrics: metrics}
}

func (s *Service) GetPosition(ctx context.Context, warehouseID, productID int64) (Position, error) {
	return s.repo.GetPosition(ctx, warehouseID, productID)
}

func (s *Service) ListPositions(ctx context.Context, filters PositionFilters) ([]Position, error) {
	return s.repo.ListPositions(ctx, filters)
}

// CreatePosition registers a stocked level explicitly, ahead of any movement.
func (s *Service) CreatePosition(ctx context.Context, pos Position) (Position, error) {
	if pos.WarehouseID <= 0 || pos.ProductID <= 0 {
		return Position{}, errors.New("inventory: position requires warehouse and product")
	}
	if pos.Desired < 0 {
		return Position{}, errors.New("inventory: desired quantity must not be negative")
	}
	return s.repo.CreatePosition(ctx, pos)
}

func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]TransactionEntry, error) {
	return s.repo.ListEntries(ctx, filter)
}

// SettlementSummary reports one settlement attempt.
type SettlementSummary struct {
	OrderID        int64        `json:"order_id"`
	Status         OrderStatus  `json:"status"`
	Movement       MovementType `json:"movement,omitempty"`
	Entries        int          `json:"entries"`
	AlreadySettled bool         `json:"already_settled"`
}

// SettlePurchaseOrder drives a purchase order to the requested status. Only
// the transition into complete produces ledger effects; approving or
// declining is a plain status write guarded by the transition table. The
// status change and the full write-set land in one transaction, and settling
// an already complete order is a no-op so retries are safe.
func (s *Service) SettlePurchaseOrder(ctx context.Context, orderID int64, next OrderStatus) (SettlementSummary, error) {
	if !next.Valid() {
		return SettlementSummary{}, fmt.Errorf("inventory: unknown order status %q: %w", next, shared.ErrInvalidState)
	}

	var (
		summary   SettlementSummary
		anomalies []shared.Anomaly
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetPurchaseOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		summary = SettlementSummary{OrderID: order.ID, Status: order.Status}

		if order.Status == next {
			summary.AlreadySettled = next == OrderStatusComplete
			return nil
		}
		if !order.Status.CanTransition(next) {
			return fmt.Errorf("inventory: purchase order %d cannot move %s -> %s: %w",
				order.ID, order.Status, next, shared.ErrInvalidState)
		}

		if next != OrderStatusComplete {
			if err := tx.SetPurchaseOrderStatus(ctx, order.ID, next); err != nil {
				return err
			}
			summary.Status = next
			return nil
		}

		if order.SourceWarehouseID == 0 {
			return fmt.Errorf("inventory: purchase order %d has no source warehouse: %w",
				order.ID, shared.ErrInvalidState)
		}
		source, err := tx.GetWarehouse(ctx, order.SourceWarehouseID)
		if err != nil {
			return err
		}
		destination, err := tx.GetWarehouse(ctx, order.DestinationWarehouseID)
		if err != nil {
			return err
		}
		lines, err := tx.ListSettlementLines(ctx, order.ID)
		if err != nil {
			return err
		}

		productIDs := make([]int64, 0, len(lines))
		keys := make([]positionKey, 0, 2*len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
			keys = append(keys, positionKey{destination.ID, line.ProductID})
			keys = append(keys, positionKey{source.ID, line.ProductID})
		}
		if err := tx.EnsureProducts(ctx, productIDs); err != nil {
			return err
		}
		positions, err := tx.ListPositionsForUpdate(ctx, keys)
		if err != nil {
			return err
		}

		ws, movement, err := buildSettlement(settlementInput{
			order:       order,
			lines:       lines,
			source:      source,
			destination: destination,
			positions:   positions,
		})
		if err != nil {
			return err
		}

		if err := tx.SetPurchaseOrderStatus(ctx, order.ID, next); err != nil {
			return err
		}
		if err := tx.ApplyWriteSet(ctx, ws); err != nil {
			return shared.NewStorageError("settle purchase order", err)
		}

		summary.Status = next
		summary.Movement = movement
		summary.Entries = len(ws.Entries)
		anomalies = ws.Anomalies
		return nil
	})
	if err != nil {
		return SettlementSummary{}, err
	}

	s.reportAnomalies(ctx, anomalies)
	if summary.Movement != "" {
		s.metrics.ObserveSettlement(string(summary.Movement), summary.Entries)
		s.recordAudit(ctx, "settle", "purchase_order", summary.OrderID, map[string]any{
			"movement": summary.Movement,
			"entries":  summary.Entries,
		})
	}
	return summary, nil
}

// ConsumptionSummary reports one consumption attempt.
type ConsumptionSummary struct {
	OrderID         int64  `json:"order_id"`
	Status          string `json:"status"`
	Entries         int    `json:"entries"`
	AlreadyConsumed bool   `json:"already_consumed"`
}

// ConsumeWorkOrder drives a work order to the requested status. The
// transition into completed debits the technician's truck for every
// consumable line; any other status is a plain write. Re-completing a
// completed order is a no-op.
func (s *Service) ConsumeWorkOrder(ctx context.Context, orderID int64, next string) (ConsumptionSummary, error) {
	switch next {
	case WorkStatusPending, WorkStatusAssigned, WorkStatusInProgress, WorkStatusCompleted, WorkStatusCancelled:
	default:
		return ConsumptionSummary{}, fmt.Errorf("inventory: unknown work order status %q: %w", next, shared.ErrInvalidState)
	}

	var (
		summary   ConsumptionSummary
		anomalies []shared.Anomaly
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetWorkOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		summary = ConsumptionSummary{OrderID: order.ID, Status: order.Status}

		if order.Status == next {
			summary.AlreadyConsumed = next == WorkStatusCompleted
			return nil
		}

		if next != WorkStatusCompleted {
			if err := tx.SetWorkOrderStatus(ctx, order.ID, next); err != nil {
				return err
			}
			summary.Status = next
			return nil
		}

		truck, err := tx.GetWarehouseByTechnician(ctx, order.TechnicianID)
		if err != nil {
			return err
		}
		lines, err := tx.ListConsumptionLines(ctx, order.ID)
		if err != nil {
			return err
		}

		keys := make([]positionKey, 0, len(lines))
		for _, line := range lines {
			keys = append(keys, positionKey{truck.ID, line.ProductID})
		}
		positions, err := tx.ListPositionsForUpdate(ctx, keys)
		if err != nil {
			return err
		}

		ws := buildConsumption(consumptionInput{
			order:     order,
			lines:     lines,
			truck:     truck.ID,
			positions: positions,
		})

		if err := tx.SetWorkOrderStatus(ctx, order.ID, next); err != nil {
			return err
		}
		if err := tx.ApplyWriteSet(ctx, ws); err != nil {
			return shared.NewStorageError("consume work order", err)
		}

		summary.Status = next
		summary.Entries = len(ws.Entries)
		anomalies = ws.Anomalies
		return nil
	})
	if err != nil {
		return ConsumptionSummary{}, err
	}

	s.reportAnomalies(ctx, anomalies)
	if summary.Status == WorkStatusCompleted && !summary.AlreadyConsumed {
		s.metrics.ObserveEntries(string(MovementConsumption), summary.Entries)
		s.recordAudit(ctx, "consume", "work_order", summary.OrderID, map[string]any{
			"entries": summary.Entries,
		})
	}
	return summary, nil
}

func (s *Service) reportAnomalies(ctx context.Context, anomalies []shared.Anomaly) {
	for _, a := range anomalies {
		s.metrics.ObserveAnomaly(string(a.Kind))
		s.logger.WarnContext(ctx, "integrity anomaly",
			slog.String("kind", string(a.Kind)),
			slog.Int64("warehouse_id", a.WarehouseID),
			slog.Int64("product_id", a.ProductID),
			slog.Int64("order_id", a.OrderID),
			slog.String("detail", a.Detail))
	}
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
