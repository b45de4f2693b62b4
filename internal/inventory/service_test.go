package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/shared"
)

// memoryRepo is an in-memory RepositoryPort and TxRepository. Transactions
// are not isolated; tests drive single operations sequentially.
type memoryRepo struct {
	nextID     int64
	warehouses map[int64]directory.Warehouse
	products   map[int64]bool
	orders     map[int64]*SettlementOrder
	orderLines map[int64][]SettlementLine
	workOrders map[int64]*ConsumptionOrder
	workLines  map[int64][]ConsumptionLine
	positions  map[positionKey]*Position
	entries    []TransactionEntry
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:     1000,
		warehouses: map[int64]directory.Warehouse{},
		products:   map[int64]bool{},
		orders:     map[int64]*SettlementOrder{},
		orderLines: map[int64][]SettlementLine{},
		workOrders: map[int64]*ConsumptionOrder{},
		workLines:  map[int64][]ConsumptionLine{},
		positions:  map[positionKey]*Position{},
	}
}

func (m *memoryRepo) addWarehouse(w directory.Warehouse) directory.Warehouse {
	m.warehouses[w.ID] = w
	return w
}

func (m *memoryRepo) addProduct(id int64) {
	m.products[id] = true
}

func (m *memoryRepo) addPosition(pos Position) *Position {
	m.nextID++
	pos.ID = m.nextID
	p := &pos
	m.positions[positionKey{pos.WarehouseID, pos.ProductID}] = p
	return p
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) GetPosition(_ context.Context, warehouseID, productID int64) (Position, error) {
	pos, ok := m.positions[positionKey{warehouseID, productID}]
	if !ok {
		return Position{}, fmt.Errorf("inventory: position: %w", shared.ErrNotFound)
	}
	return *pos, nil
}

func (m *memoryRepo) ListPositions(context.Context, PositionFilters) ([]Position, error) {
	var out []Position
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (m *memoryRepo) CreatePosition(_ context.Context, pos Position) (Position, error) {
	return *m.addPosition(pos), nil
}

func (m *memoryRepo) ListEntries(context.Context, EntryFilter) ([]TransactionEntry, error) {
	return m.entries, nil
}

func (m *memoryRepo) GetPurchaseOrderForUpdate(_ context.Context, id int64) (SettlementOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return SettlementOrder{}, fmt.Errorf("inventory: purchase order %d: %w", id, shared.ErrNotFound)
	}
	return *order, nil
}

func (m *memoryRepo) ListSettlementLines(_ context.Context, orderID int64) ([]SettlementLine, error) {
	return m.orderLines[orderID], nil
}

func (m *memoryRepo) SetPurchaseOrderStatus(_ context.Context, id int64, status OrderStatus) error {
	order, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("inventory: purchase order %d: %w", id, shared.ErrNotFound)
	}
	order.Status = status
	return nil
}

// EnsureProducts mirrors the catalog check. An empty catalog means the test
// did not register products and every id resolves.
func (m *memoryRepo) EnsureProducts(_ context.Context, ids []int64) error {
	if len(m.products) == 0 {
		return nil
	}
	for _, id := range ids {
		if !m.products[id] {
			return fmt.Errorf("inventory: product %d: %w", id, shared.ErrNotFound)
		}
	}
	return nil
}

func (m *memoryRepo) GetWorkOrderForUpdate(_ context.Context, id int64) (ConsumptionOrder, error) {
	order, ok := m.workOrders[id]
	if !ok {
		return ConsumptionOrder{}, fmt.Errorf("inventory: work order %d: %w", id, shared.ErrNotFound)
	}
	return *order, nil
}

func (m *memoryRepo) ListConsumptionLines(_ context.Context, orderID int64) ([]ConsumptionLine, error) {
	return m.workLines[orderID], nil
}

func (m *memoryRepo) SetWorkOrderStatus(_ context.Context, id int64, status string) error {
	order, ok := m.workOrders[id]
	if !ok {
		return fmt.Errorf("inventory: work order %d: %w", id, shared.ErrNotFound)
	}
	order.Status = status
	return nil
}

func (m *memoryRepo) GetWarehouse(_ context.Context, id int64) (directory.Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok {
		return directory.Warehouse{}, fmt.Errorf("inventory: warehouse %d: %w", id, shared.ErrNotFound)
	}
	return w, nil
}

func (m *memoryRepo) GetWarehouseByTechnician(_ context.Context, technicianID string) (directory.Warehouse, error) {
	for _, w := range m.warehouses {
		if w.TechnicianID == technicianID {
			return w, nil
		}
	}
	return directory.Warehouse{}, fmt.Errorf("inventory: warehouse for technician %s: %w", technicianID, shared.ErrNotFound)
}

func (m *memoryRepo) ListPositionsForUpdate(_ context.Context, keys []positionKey) (map[positionKey]Position, error) {
	out := make(map[positionKey]Position)
	for _, key := range keys {
		if pos, ok := m.positions[key]; ok {
			out[key] = *pos
		}
	}
	return out, nil
}

func (m *memoryRepo) ApplyWriteSet(_ context.Context, ws WriteSet) error {
	for _, create := range ws.Creates {
		m.addPosition(Position{
			WarehouseID:  create.WarehouseID,
			ProductID:    create.ProductID,
			OnHand:       create.OnHand,
			Desired:      create.Desired,
			CanBeOrdered: create.CanBeOrdered,
		})
	}
	for _, update := range ws.Updates {
		pos, ok := m.positions[positionKey{update.WarehouseID, update.ProductID}]
		if !ok {
			return fmt.Errorf("position %d: %w", update.PositionID, shared.ErrNotFound)
		}
		pos.OnHand += update.Delta
	}
	for _, entry := range ws.Entries {
		m.nextID++
		entry.ID = m.nextID
		m.entries = append(m.entries, entry)
	}
	return nil
}

func (m *memoryRepo) onHand(warehouseID, productID int64) int {
	pos, ok := m.positions[positionKey{warehouseID, productID}]
	if !ok {
		return 0
	}
	return pos.OnHand
}

func TestSettleReplenishmentArrival(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 1, Role: directory.RoleVendor})
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.addPosition(Position{WarehouseID: 2, ProductID: 7, OnHand: 1, Desired: 5})
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusApproved, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	repo.orderLines[10] = []SettlementLine{{ID: 1, ProductID: 7, QuantityOrdered: 4, QuantityReceived: 4}}

	svc := NewService(nil, repo, nil, nil)
	summary, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.NoError(t, err)
	require.Equal(t, MovementReplenishment, summary.Movement)
	require.Equal(t, OrderStatusComplete, summary.Status)
	require.Equal(t, 1, summary.Entries)

	require.Equal(t, 5, repo.onHand(2, 7))
	require.Equal(t, OrderStatusComplete, repo.orders[10].Status)
	require.Len(t, repo.entries, 1)
	require.Equal(t, int64(10), repo.entries[0].DestinationOrderID)
}

func TestSettleIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 1, Role: directory.RoleVendor})
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.addPosition(Position{WarehouseID: 2, ProductID: 7, OnHand: 0, Desired: 5})
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusApproved, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	repo.orderLines[10] = []SettlementLine{{ID: 1, ProductID: 7, QuantityOrdered: 4, QuantityReceived: 4}}

	svc := NewService(nil, repo, nil, nil)
	_, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.NoError(t, err)

	summary, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.NoError(t, err)
	require.True(t, summary.AlreadySettled)
	require.Zero(t, summary.Entries)

	// No second ledger entry, no double credit.
	require.Len(t, repo.entries, 1)
	require.Equal(t, 4, repo.onHand(2, 7))
}

func TestSettleRejectsIllegalTransitions(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusOpen, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	svc := NewService(nil, repo, nil, nil)

	_, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, OrderStatusOpen, repo.orders[10].Status)

	repo.orders[10].Status = OrderStatusDeclined
	_, err = svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusApproved)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.SettlePurchaseOrder(context.Background(), 10, "shipped")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSettleApprovalIsPlainStatusWrite(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusOpen, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	svc := NewService(nil, repo, nil, nil)

	summary, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusApproved)
	require.NoError(t, err)
	require.Equal(t, OrderStatusApproved, summary.Status)
	require.Empty(t, summary.Movement)
	require.Empty(t, repo.entries)
}

func TestSettleRequiresSourceWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusApproved, DestinationWarehouseID: 2}
	svc := NewService(nil, repo, nil, nil)

	_, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, OrderStatusApproved, repo.orders[10].Status)
	require.Empty(t, repo.entries)
}

func TestSettleUnknownOrder(t *testing.T) {
	svc := NewService(nil, newMemoryRepo(), nil, nil)
	_, err := svc.SettlePurchaseOrder(context.Background(), 999, OrderStatusComplete)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSettleUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 1, Role: directory.RoleVendor})
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.addProduct(7)
	repo.orders[10] = &SettlementOrder{ID: 10, Status: OrderStatusApproved, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	repo.orderLines[10] = []SettlementLine{{ID: 1, ProductID: 9, QuantityOrdered: 4, QuantityReceived: 4}}

	svc := NewService(nil, repo, nil, nil)
	_, err := svc.SettlePurchaseOrder(context.Background(), 10, OrderStatusComplete)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, OrderStatusApproved, repo.orders[10].Status)
	require.Empty(t, repo.entries)
}

func TestSettleTransferMovesStockBetweenWarehouses(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.addWarehouse(directory.Warehouse{ID: 3, Role: directory.RoleIndividual, TechnicianID: "tech-1"})
	repo.addPosition(Position{WarehouseID: 2, ProductID: 7, OnHand: 9})
	repo.addPosition(Position{WarehouseID: 3, ProductID: 7, OnHand: 1, Desired: 4})
	repo.orders[20] = &SettlementOrder{ID: 20, Status: OrderStatusApproved, SourceWarehouseID: 2, DestinationWarehouseID: 3}
	repo.orderLines[20] = []SettlementLine{{ID: 1, ProductID: 7, QuantityOrdered: 3, QuantityReceived: 3}}

	svc := NewService(nil, repo, nil, nil)
	summary, err := svc.SettlePurchaseOrder(context.Background(), 20, OrderStatusComplete)
	require.NoError(t, err)
	require.Equal(t, MovementTransfer, summary.Movement)
	require.Equal(t, 2, summary.Entries)

	require.Equal(t, 6, repo.onHand(2, 7))
	require.Equal(t, 4, repo.onHand(3, 7))

	total := 0
	for _, entry := range repo.entries {
		total += entry.Quantity
	}
	require.Zero(t, total)
}

// Scenario: vendor delivery arrives, the truck is restocked from the
// warehouse, the technician completes a job, and the planner tops the
// network back up. Every movement is visible in the ledger and on-hand
// arithmetic checks out after each step.
func TestInventoryFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 1, Role: directory.RoleVendor})
	repo.addWarehouse(directory.Warehouse{ID: 2, Role: directory.RoleWarehouse})
	repo.addWarehouse(directory.Warehouse{ID: 3, Role: directory.RoleIndividual, TechnicianID: "tech-1"})
	repo.addPosition(Position{WarehouseID: 2, ProductID: 7, OnHand: 0, Desired: 10, CanBeOrdered: true})
	repo.addPosition(Position{WarehouseID: 3, ProductID: 7, OnHand: 0, Desired: 3, CanBeOrdered: true})

	svc := NewService(nil, repo, nil, nil)

	// Vendor delivery lands at the warehouse.
	repo.orders[30] = &SettlementOrder{ID: 30, Status: OrderStatusApproved, SourceWarehouseID: 1, DestinationWarehouseID: 2}
	repo.orderLines[30] = []SettlementLine{{ID: 1, ProductID: 7, QuantityOrdered: 10, QuantityReceived: 10}}
	_, err := svc.SettlePurchaseOrder(ctx, 30, OrderStatusComplete)
	require.NoError(t, err)
	require.Equal(t, 10, repo.onHand(2, 7))

	// Truck restock transfers three units off the shelf.
	repo.orders[31] = &SettlementOrder{ID: 31, Status: OrderStatusApproved, SourceWarehouseID: 2, DestinationWarehouseID: 3}
	repo.orderLines[31] = []SettlementLine{{ID: 1, ProductID: 7, QuantityOrdered: 3, QuantityReceived: 3}}
	_, err = svc.SettlePurchaseOrder(ctx, 31, OrderStatusComplete)
	require.NoError(t, err)
	require.Equal(t, 7, repo.onHand(2, 7))
	require.Equal(t, 3, repo.onHand(3, 7))

	// Technician completes a job using two units.
	repo.workOrders[40] = &ConsumptionOrder{ID: 40, Status: WorkStatusInProgress, TechnicianID: "tech-1"}
	repo.workLines[40] = []ConsumptionLine{
		{ID: 1, ProductID: 7, Quantity: 2, Status: LineStatusCompletedMounted},
		{ID: 2, ProductID: 7, Quantity: 1, Status: LineStatusCanceledNotUsed},
	}
	cons, err := svc.ConsumeWorkOrder(ctx, 40, WorkStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 1, cons.Entries)
	require.Equal(t, 1, repo.onHand(3, 7))

	// Ledger sums to current on-hand for the truck.
	truckSum := 0
	for _, entry := range repo.entries {
		if entry.DestinationWarehouseID == 3 {
			truckSum += entry.Quantity
		}
		if entry.SourceWarehouseID == 3 && entry.Type == MovementConsumption {
			truckSum += entry.Quantity
		}
	}
	require.Equal(t, 1, truckSum)

	// Planner sees warehouse 2 short three units and truck short two.
	var positions []OrderablePosition
	for _, pos := range repo.positions {
		if pos.CanBeOrdered {
			positions = append(positions, OrderablePosition{
				WarehouseID: pos.WarehouseID,
				ProductID:   pos.ProductID,
				OnHand:      pos.OnHand,
				Desired:     pos.Desired,
			})
		}
	}
	plan := buildPlan(positions, nil)
	require.Len(t, plan, 2)
	byDest := map[int64]int{}
	for _, order := range plan {
		for _, line := range order.Lines {
			byDest[order.DestinationWarehouseID] += line.Quantity
		}
	}
	require.Equal(t, 3, byDest[2])
	require.Equal(t, 2, byDest[3])
}

func TestConsumeIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.addWarehouse(directory.Warehouse{ID: 3, Role: directory.RoleIndividual, TechnicianID: "tech-1"})
	repo.addPosition(Position{WarehouseID: 3, ProductID: 7, OnHand: 5})
	repo.workOrders[40] = &ConsumptionOrder{ID: 40, Status: WorkStatusInProgress, TechnicianID: "tech-1"}
	repo.workLines[40] = []ConsumptionLine{{ID: 1, ProductID: 7, Quantity: 2, Status: LineStatusCompletedMounted}}

	svc := NewService(nil, repo, nil, nil)
	_, err := svc.ConsumeWorkOrder(context.Background(), 40, WorkStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, 3, repo.onHand(3, 7))

	summary, err := svc.ConsumeWorkOrder(context.Background(), 40, WorkStatusCompleted)
	require.NoError(t, err)
	require.True(t, summary.AlreadyConsumed)
	require.Equal(t, 3, repo.onHand(3, 7))
	require.Len(t, repo.entries, 1)
}

func TestConsumeRequiresKnownTechnicianWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	repo.workOrders[40] = &ConsumptionOrder{ID: 40, Status: WorkStatusInProgress, TechnicianID: "ghost"}
	svc := NewService(nil, repo, nil, nil)

	_, err := svc.ConsumeWorkOrder(context.Background(), 40, WorkStatusCompleted)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, WorkStatusInProgress, repo.workOrders[40].Status)
}

func TestConsumeNonCompletionIsPlainStatusWrite(t *testing.T) {
	repo := newMemoryRepo()
	repo.workOrders[40] = &ConsumptionOrder{ID: 40, Status: WorkStatusPending, TechnicianID: "tech-1"}
	svc := NewService(nil, repo, nil, nil)

	summary, err := svc.ConsumeWorkOrder(context.Background(), 40, WorkStatusAssigned)
	require.NoError(t, err)
	require.Equal(t, WorkStatusAssigned, summary.Status)
	require.Empty(t, repo.entries)

	_, err = svc.ConsumeWorkOrder(context.Background(), 40, "done")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreatePositionValidation(t *testing.T) {
	svc := NewService(nil, newMemoryRepo(), nil, nil)

	_, err := svc.CreatePosition(context.Background(), Position{ProductID: 7})
	require.Error(t, err)

	_, err = svc.CreatePosition(context.Background(), Position{WarehouseID: 2, ProductID: 7, Desired: -1})
	require.Error(t, err)

	pos, err := svc.CreatePosition(context.Background(), Position{WarehouseID: 2, ProductID: 7, Desired: 4})
	require.NoError(t, err)
	require.NotZero(t, pos.ID)
}
