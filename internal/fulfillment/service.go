package fulfillment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/shared"
)

// ConsumptionPort is the slice of the inventory service work order status
// changes are delegated to, so completion and its stock debits land together.
type ConsumptionPort interface {
	ConsumeWorkOrder(ctx context.Context, orderID int64, next string) (inventory.ConsumptionSummary, error)
}

// Service orchestrates work order flows.
type Service struct {
	logger      *slog.Logger
	repo        Repository
	consumption ConsumptionPort
}

// NewService constructs fulfillment service.
func NewService(logger *slog.Logger, repo Repository, consumption ConsumptionPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, consumption: consumption}
}

// CreateOrderInput describes a new work order.
type CreateOrderInput struct {
	TechnicianID string
	CustomerRef  string
	Note         string
	Lines        []LineInput
}

// LineInput is one product planned for the job.
type LineInput struct {
	ProductID int64
	Quantity  int
	Status    string
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]WorkOrder, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (WorkOrder, []WorkOrderLine, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return WorkOrder{}, nil, err
	}
	lines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return WorkOrder{}, nil, err
	}
	return order, lines, nil
}

// Create opens a work order in the pending state.
func (s *Service) Create(ctx context.Context, input CreateOrderInput) (WorkOrder, error) {
	if input.TechnicianID == "" {
		return WorkOrder{}, fmt.Errorf("fulfillment: technician required: %w", shared.ErrInvalidState)
	}
	lines := make([]WorkOrderLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return WorkOrder{}, fmt.Errorf("fulfillment: line requires product and positive quantity: %w", shared.ErrInvalidState)
		}
		if !inventory.ValidLineStatus(line.Status) {
			return WorkOrder{}, fmt.Errorf("fulfillment: unknown line status %q: %w", line.Status, shared.ErrInvalidState)
		}
		lines = append(lines, WorkOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Status:    line.Status,
		})
	}
	order := WorkOrder{
		Status:       inventory.WorkStatusPending,
		TechnicianID: input.TechnicianID,
		CustomerRef:  input.CustomerRef,
		Note:         input.Note,
	}
	created, err := s.repo.Create(ctx, order, lines)
	if err != nil {
		return WorkOrder{}, err
	}
	s.logger.Info("work order created",
		slog.Int64("order_id", created.ID),
		slog.String("technician_id", created.TechnicianID))
	return created, nil
}

// UpdateStatus drives the work order lifecycle. Completion consumes truck
// stock through the inventory engine; other statuses are plain writes made by
// the same engine so the status column has a single writer.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next string) (inventory.ConsumptionSummary, error) {
	return s.consumption.ConsumeWorkOrder(ctx, id, next)
}

// AddLines appends product lines to a work order that has not completed.
func (s *Service) AddLines(ctx context.Context, orderID int64, inputs []LineInput) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == inventory.WorkStatusCompleted || order.Status == inventory.WorkStatusCancelled {
		return fmt.Errorf("fulfillment: work order %d is %s: %w", orderID, order.Status, shared.ErrInvalidState)
	}
	lines := make([]WorkOrderLine, 0, len(inputs))
	for _, line := range inputs {
		if line.ProductID <= 0 || line.Quantity <= 0 {
			return fmt.Errorf("fulfillment: line requires product and positive quantity: %w", shared.ErrInvalidState)
		}
		if !inventory.ValidLineStatus(line.Status) {
			return fmt.Errorf("fulfillment: unknown line status %q: %w", line.Status, shared.ErrInvalidState)
		}
		lines = append(lines, WorkOrderLine{ProductID: line.ProductID, Quantity: line.Quantity, Status: line.Status})
	}
	return s.repo.CreateLines(ctx, orderID, lines)
}

// UpdateLine amends one line on an order that has not completed.
func (s *Service) UpdateLine(ctx context.Context, orderID int64, line WorkOrderLine) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == inventory.WorkStatusCompleted || order.Status == inventory.WorkStatusCancelled {
		return fmt.Errorf("fulfillment: work order %d is %s: %w", orderID, order.Status, shared.ErrInvalidState)
	}
	if line.Quantity < 0 {
		return fmt.Errorf("fulfillment: quantity must not be negative: %w", shared.ErrInvalidState)
	}
	if !inventory.ValidLineStatus(line.Status) {
		return fmt.Errorf("fulfillment: unknown line status %q: %w", line.Status, shared.ErrInvalidState)
	}
	line.WorkOrderID = orderID
	return s.repo.UpdateLine(ctx, line)
}
