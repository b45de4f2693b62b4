package procurement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	orders    map[int64]*PurchaseOrder
	lines     map[int64][]LineItem
	shipments map[int64]*Shipment
	events    []TrackingEvent
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:    map[int64]*PurchaseOrder{},
		lines:     map[int64][]LineItem{},
		shipments: map[int64]*Shipment{},
	}
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, order := range m.orders {
		if filters.ParentPurchaseOrderID > 0 && order.ParentPurchaseOrderID != filters.ParentPurchaseOrderID {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (PurchaseOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, fmt.Errorf("procurement: purchase order %d: %w", id, shared.ErrNotFound)
	}
	return *order, nil
}

func (m *memoryRepo) Create(_ context.Context, order PurchaseOrder, lines []LineItem) (PurchaseOrder, error) {
	m.nextID++
	order.ID = m.nextID
	m.orders[order.ID] = &order
	for i := range lines {
		m.nextID++
		lines[i].ID = m.nextID
		lines[i].PurchaseOrderID = order.ID
	}
	m.lines[order.ID] = lines
	return order, nil
}

func (m *memoryRepo) ListLineItems(_ context.Context, orderID int64) ([]LineItem, error) {
	return m.lines[orderID], nil
}

func (m *memoryRepo) CreateLineItems(_ context.Context, orderID int64, lines []LineItem) error {
	for i := range lines {
		m.nextID++
		lines[i].ID = m.nextID
		lines[i].PurchaseOrderID = orderID
	}
	m.lines[orderID] = append(m.lines[orderID], lines...)
	return nil
}

func (m *memoryRepo) UpdateLineItem(_ context.Context, line LineItem) error {
	for i, existing := range m.lines[line.PurchaseOrderID] {
		if existing.ID == line.ID {
			m.lines[line.PurchaseOrderID][i] = line
			return nil
		}
	}
	return fmt.Errorf("procurement: line item %d on order %d: %w", line.ID, line.PurchaseOrderID, shared.ErrNotFound)
}

func (m *memoryRepo) ListShipments(_ context.Context, orderID int64) ([]Shipment, error) {
	var out []Shipment
	for _, s := range m.shipments {
		if s.PurchaseOrderID == orderID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateShipment(_ context.Context, shipment Shipment) (Shipment, error) {
	m.nextID++
	shipment.ID = m.nextID
	if shipment.Status == "" {
		shipment.Status = ShipmentPending
	}
	m.shipments[shipment.ID] = &shipment
	return shipment, nil
}

func (m *memoryRepo) SetShipmentStatus(_ context.Context, id int64, status ShipmentStatus, carrierMessage string) error {
	s, ok := m.shipments[id]
	if !ok {
		return fmt.Errorf("procurement: shipment %d: %w", id, shared.ErrNotFound)
	}
	s.Status = status
	if carrierMessage != "" {
		s.LastCarrierMessage = carrierMessage
	}
	now := time.Now()
	if status == ShipmentOnRoute && s.ShipmentDate == nil {
		s.ShipmentDate = &now
	}
	if status == ShipmentDelivered && s.DeliveryDate == nil {
		s.DeliveryDate = &now
	}
	return nil
}

func (m *memoryRepo) AddTrackingEvent(_ context.Context, event TrackingEvent) (TrackingEvent, error) {
	m.nextID++
	event.ID = m.nextID
	m.events = append(m.events, event)
	return event, nil
}

func (m *memoryRepo) ListTrackingEvents(_ context.Context, shipmentID int64) ([]TrackingEvent, error) {
	var out []TrackingEvent
	for _, e := range m.events {
		if e.ShipmentID == shipmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSettlement struct {
	calls []inventory.OrderStatus
	err   error
}

func (f *fakeSettlement) SettlePurchaseOrder(_ context.Context, orderID int64, next inventory.OrderStatus) (inventory.SettlementSummary, error) {
	f.calls = append(f.calls, next)
	if f.err != nil {
		return inventory.SettlementSummary{}, f.err
	}
	return inventory.SettlementSummary{OrderID: orderID, Status: next}, nil
}

func TestCreateOrderStartsOpen(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, &fakeSettlement{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		SourceWarehouseID:      1,
		DestinationWarehouseID: 2,
		Lines: []LineInput{
			{ProductID: 7, Quantity: 3},
			{ProductID: 8, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, KindManual, order.Kind)
	require.Equal(t, inventory.OrderStatusOpen, order.Status)

	lines := repo.lines[order.ID]
	require.Len(t, lines, 2)
	require.Equal(t, LineStatusCreated, lines[0].Status)
	require.Equal(t, 3, lines[0].QuantityOrdered)
	require.Zero(t, lines[0].QuantityReceived)
}

func TestCreateOrderValidation(t *testing.T) {
	svc := NewService(nil, newMemoryRepo(), &fakeSettlement{})

	_, err := svc.Create(context.Background(), CreateOrderInput{DestinationWarehouseID: 2})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 0}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Create(context.Background(), CreateOrderInput{
		Lines: []LineInput{{ProductID: 7, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestUpdateStatusDelegatesToSettlement(t *testing.T) {
	settlement := &fakeSettlement{}
	svc := NewService(nil, newMemoryRepo(), settlement)

	summary, err := svc.UpdateStatus(context.Background(), 5, inventory.OrderStatusComplete)
	require.NoError(t, err)
	require.Equal(t, inventory.OrderStatusComplete, summary.Status)
	require.Equal(t, []inventory.OrderStatus{inventory.OrderStatusComplete}, settlement.calls)
}

func TestAddLineItemsRejectsSettledOrders(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, &fakeSettlement{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	repo.orders[order.ID].Status = inventory.OrderStatusComplete
	err = svc.AddLineItems(context.Background(), order.ID, []LineInput{{ProductID: 8, Quantity: 1}})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	repo.orders[order.ID].Status = inventory.OrderStatusApproved
	err = svc.AddLineItems(context.Background(), order.ID, []LineInput{{ProductID: 8, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, repo.lines[order.ID], 2)
}

func TestUpdateLineItemBelongingAndStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, &fakeSettlement{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 4}},
	})
	require.NoError(t, err)
	line := repo.lines[order.ID][0]

	err = svc.UpdateLineItem(context.Background(), order.ID, LineItem{
		ID: line.ID, QuantityOrdered: 4, QuantityReceived: 4, Status: LineStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, LineStatusCompleted, repo.lines[order.ID][0].Status)

	// Unknown status is rejected before touching storage.
	err = svc.UpdateLineItem(context.Background(), order.ID, LineItem{
		ID: line.ID, Status: "shipped",
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// A line id from another order does not match.
	other, err := svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 3,
		Lines:                  []LineInput{{ProductID: 9, Quantity: 1}},
	})
	require.NoError(t, err)
	err = svc.UpdateLineItem(context.Background(), other.ID, LineItem{
		ID: line.ID, Status: LineStatusOrdered,
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestAdvanceShipmentRecordsEvent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, &fakeSettlement{})

	order, err := svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 1}},
	})
	require.NoError(t, err)

	shipment, err := svc.CreateShipment(context.Background(), Shipment{
		PurchaseOrderID: order.ID, Carrier: "ups", TrackingNumber: "1Z999",
	})
	require.NoError(t, err)
	require.Equal(t, ShipmentPending, shipment.Status)

	require.NoError(t, svc.AdvanceShipment(context.Background(), shipment.ID, ShipmentOnRoute, "picked up"))
	require.NoError(t, svc.AdvanceShipment(context.Background(), shipment.ID, ShipmentDelivered, ""))

	events, err := svc.ListTrackingEvents(context.Background(), shipment.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, string(ShipmentOnRoute), events[0].Status)

	stored := repo.shipments[shipment.ID]
	require.Equal(t, ShipmentDelivered, stored.Status)
	require.Equal(t, "picked up", stored.LastCarrierMessage)
	require.NotNil(t, stored.ShipmentDate)
	require.NotNil(t, stored.DeliveryDate)

	err = svc.AdvanceShipment(context.Background(), shipment.ID, "lost", "")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateOrderWithParent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, &fakeSettlement{})

	parent, err := svc.Create(context.Background(), CreateOrderInput{
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 2}},
	})
	require.NoError(t, err)

	child, err := svc.Create(context.Background(), CreateOrderInput{
		ParentPurchaseOrderID:  parent.ID,
		DestinationWarehouseID: 2,
		ShippingMethod:         "ground",
		Lines:                  []LineInput{{ProductID: 7, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, parent.ID, child.ParentPurchaseOrderID)
	require.Equal(t, "ground", child.ShippingMethod)

	// A follow-up order cannot reference an order that does not exist.
	_, err = svc.Create(context.Background(), CreateOrderInput{
		ParentPurchaseOrderID:  999,
		DestinationWarehouseID: 2,
		Lines:                  []LineInput{{ProductID: 7, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	children, err := svc.List(context.Background(), ListFilters{ParentPurchaseOrderID: parent.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, child.ID, children[0].ID)
}
