package procurement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/shared"
)

// SettlementPort is the slice of the inventory service procurement delegates
// status changes to. Every status write goes through it so the ledger and the
// order row can never disagree.
type SettlementPort interface {
	SettlePurchaseOrder(ctx context.Context, orderID int64, next inventory.OrderStatus) (inventory.SettlementSummary, error)
}

// Service orchestrates purchase order flows.
type Service struct {
	logger     *slog.Logger
	repo       Repository
	settlement SettlementPort
}

// NewService constructs procurement service.
func NewService(logger *slog.Logger, repo Repository, settlement SettlementPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, settlement: settlement}
}

// CreateOrderInput describes a manual purchase order.
type CreateOrderInput struct {
	ParentPurchaseOrderID  int64
	SourceWarehouseID      int64
	DestinationWarehouseID int64
	ShippingMethod         string
	Note                   string
	Lines                  []LineInput
}

// LineInput is one requested product line.
type LineInput struct {
	ProductID int64
	Quantity  int
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, []LineItem, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := s.repo.ListLineItems(ctx, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return order, lines, nil
}

// Create raises a manual purchase order in the open state.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.DestinationWarehouseID <= 0 {
		return PurchaseOrder{}, fmt.Errorf("procurement: destination warehouse required: %w", shared.ErrInvalidState)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("procurement: at least one line required: %w", shared.ErrInvalidState)
	}
	lines := make([]LineItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("procurement: line requires product and positive quantity: %w", shared.ErrInvalidState)
		}
		lines = append(lines, LineItem{
			ProductID:       line.ProductID,
			QuantityOrdered: line.Quantity,
			Status:          LineStatusCreated,
		})
	}
	if input.ParentPurchaseOrderID != 0 {
		if _, err := s.repo.Get(ctx, input.ParentPurchaseOrderID); err != nil {
			return PurchaseOrder{}, fmt.Errorf("procurement: parent order %d: %w", input.ParentPurchaseOrderID, err)
		}
	}
	order := PurchaseOrder{
		Kind:                   KindManual,
		Status:                 inventory.OrderStatusOpen,
		ParentPurchaseOrderID:  input.ParentPurchaseOrderID,
		SourceWarehouseID:      input.SourceWarehouseID,
		DestinationWarehouseID: input.DestinationWarehouseID,
		ShippingMethod:         input.ShippingMethod,
		Note:                   input.Note,
	}
	created, err := s.repo.Create(ctx, order, lines)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.logger.Info("purchase order created",
		slog.Int64("order_id", created.ID),
		slog.Int64("destination_warehouse_id", created.DestinationWarehouseID),
		slog.Int("lines", len(lines)))
	return created, nil
}

// UpdateStatus drives the order lifecycle. Completion settles the order
// against the ledger; every other transition is validated and written by the
// same engine so there is exactly one place statuses change.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next inventory.OrderStatus) (inventory.SettlementSummary, error) {
	return s.settlement.SettlePurchaseOrder(ctx, id, next)
}

// AddLineItems appends product lines to an order that has not settled yet.
func (s *Service) AddLineItems(ctx context.Context, orderID int64, inputs []LineInput) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return fmt.Errorf("procurement: purchase order %d is %s: %w", orderID, order.Status, shared.ErrInvalidState)
	}
	lines := make([]LineItem, 0, len(inputs))
	for _, line := range inputs {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return fmt.Errorf("procurement: line requires product and positive quantity: %w", shared.ErrInvalidState)
		}
		lines = append(lines, LineItem{
			ProductID:       line.ProductID,
			QuantityOrdered: line.Quantity,
			Status:          LineStatusCreated,
		})
	}
	return s.repo.CreateLineItems(ctx, orderID, lines)
}

// UpdateLineItem amends quantities or status on one line. The line must
// belong to the given order and the order must not have settled.
func (s *Service) UpdateLineItem(ctx context.Context, orderID int64, line LineItem) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status.Terminal() {
		return fmt.Errorf("procurement: purchase order %d is %s: %w", orderID, order.Status, shared.ErrInvalidState)
	}
	if !line.Status.Valid() {
		return fmt.Errorf("procurement: unknown line item status %q: %w", line.Status, shared.ErrInvalidState)
	}
	if line.QuantityOrdered < 0 || line.QuantityReceived < 0 {
		return fmt.Errorf("procurement: quantities must not be negative: %w", shared.ErrInvalidState)
	}
	existing, err := s.repo.ListLineItems(ctx, orderID)
	if err != nil {
		return err
	}
	belongs := false
	for _, li := range existing {
		if li.ID == line.ID {
			belongs = true
			break
		}
	}
	if !belongs {
		return fmt.Errorf("procurement: line item %d does not belong to purchase order %d: %w",
			line.ID, orderID, shared.ErrInvalidState)
	}
	line.PurchaseOrderID = orderID
	return s.repo.UpdateLineItem(ctx, line)
}

// CreateShipment registers a delivery against an order.
func (s *Service) CreateShipment(ctx context.Context, shipment Shipment) (Shipment, error) {
	if _, err := s.repo.Get(ctx, shipment.PurchaseOrderID); err != nil {
		return Shipment{}, err
	}
	return s.repo.CreateShipment(ctx, shipment)
}

func (s *Service) ListShipments(ctx context.Context, orderID int64) ([]Shipment, error) {
	return s.repo.ListShipments(ctx, orderID)
}

// AdvanceShipment moves a shipment forward and records a tracking event. The
// detail doubles as the carrier message kept on the shipment row.
func (s *Service) AdvanceShipment(ctx context.Context, shipmentID int64, status ShipmentStatus, detail string) error {
	switch status {
	case ShipmentPending, ShipmentOnRoute, ShipmentDelivered:
	default:
		return fmt.Errorf("procurement: unknown shipment status %q: %w", status, shared.ErrInvalidState)
	}
	if err := s.repo.SetShipmentStatus(ctx, shipmentID, status, detail); err != nil {
		return err
	}
	_, err := s.repo.AddTrackingEvent(ctx, TrackingEvent{
		ShipmentID: shipmentID,
		Status:     string(status),
		Detail:     detail,
	})
	return err
}

func (s *Service) ListTrackingEvents(ctx context.Context, shipmentID int64) ([]TrackingEvent, error) {
	return s.repo.ListTrackingEvents(ctx, shipmentID)
}
