package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ss-chris/shield-field/internal/shared"
)

func TestBuildPlanOrdersDeficitsOnly(t *testing.T) {
	orders := buildPlan([]OrderablePosition{
		{WarehouseID: 2, ProductID: 7, OnHand: 1, Desired: 5},
		{WarehouseID: 2, ProductID: 8, OnHand: 9, Desired: 5},
		{WarehouseID: 3, ProductID: 7, OnHand: 0, Desired: 2},
	}, nil)

	require.Len(t, orders, 2)
	require.Equal(t, int64(2), orders[0].DestinationWarehouseID)
	require.Equal(t, []PlannedLine{{ProductID: 7, Quantity: 4}}, orders[0].Lines)
	require.Equal(t, int64(3), orders[1].DestinationWarehouseID)
	require.Equal(t, []PlannedLine{{ProductID: 7, Quantity: 2}}, orders[1].Lines)
}

func TestBuildPlanOneOrderPerWarehouse(t *testing.T) {
	orders := buildPlan([]OrderablePosition{
		{WarehouseID: 2, ProductID: 7, OnHand: 0, Desired: 5},
		{WarehouseID: 2, ProductID: 8, OnHand: 1, Desired: 4},
	}, nil)

	require.Len(t, orders, 1)
	require.Len(t, orders[0].Lines, 2)
	require.Equal(t, 5, orders[0].Lines[0].Quantity)
	require.Equal(t, 3, orders[0].Lines[1].Quantity)
}

func TestBuildPlanCountsInflightPerProduct(t *testing.T) {
	orders := buildPlan([]OrderablePosition{
		{WarehouseID: 2, ProductID: 7, OnHand: 1, Desired: 5},
		{WarehouseID: 2, ProductID: 8, OnHand: 0, Desired: 3},
	}, []OpenOrderLine{
		// Covers product 7 fully; product 8 on a different warehouse does not
		// count against warehouse 2.
		{DestinationWarehouseID: 2, ProductID: 7, Quantity: 4},
		{DestinationWarehouseID: 3, ProductID: 8, Quantity: 10},
	})

	require.Len(t, orders, 1)
	require.Equal(t, []PlannedLine{{ProductID: 8, Quantity: 3}}, orders[0].Lines)
}

func TestBuildPlanOrdersFullDeficit(t *testing.T) {
	orders := buildPlan([]OrderablePosition{
		{WarehouseID: 1, ProductID: 1, OnHand: 2, Desired: 10},
	}, nil)

	require.Len(t, orders, 1)
	require.Equal(t, int64(1), orders[0].DestinationWarehouseID)
	require.Equal(t, []PlannedLine{{ProductID: 1, Quantity: 8}}, orders[0].Lines)
}

func TestBuildPlanNoDeficitsNoOrders(t *testing.T) {
	orders := buildPlan([]OrderablePosition{
		{WarehouseID: 2, ProductID: 7, OnHand: 5, Desired: 5},
	}, nil)
	require.Empty(t, orders)

	orders = buildPlan(nil, nil)
	require.Empty(t, orders)
}

type fakePlanStore struct {
	positions []OrderablePosition
	inflight  []OpenOrderLine

	locked   []int64
	inserted []PlannedOrder
	nextID   int64
	calls    []string
}

func (s *fakePlanStore) WithPlanTx(ctx context.Context, fn func(ctx context.Context, tx PlanTx) error) error {
	return fn(ctx, s)
}

func (s *fakePlanStore) LockDestination(_ context.Context, warehouseID int64) error {
	s.locked = append(s.locked, warehouseID)
	s.calls = append(s.calls, "lock")
	return nil
}

func (s *fakePlanStore) ListOrderablePositions(context.Context) ([]OrderablePosition, error) {
	s.calls = append(s.calls, "positions")
	return s.positions, nil
}

func (s *fakePlanStore) ListOpenOrderLines(context.Context) ([]OpenOrderLine, error) {
	s.calls = append(s.calls, "inflight")
	return s.inflight, nil
}

func (s *fakePlanStore) InsertPlannedOrder(_ context.Context, order PlannedOrder) (int64, error) {
	s.nextID++
	s.inserted = append(s.inserted, order)
	return s.nextID, nil
}

func (s *fakePlanStore) InsertPlannedLines(_ context.Context, orderID int64, lines []PlannedLine) error {
	s.inserted[orderID-1].Lines = lines
	return nil
}

func newTestRunLock(t *testing.T) (*shared.RunLock, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewRunLock(client, time.Minute), client
}

func TestPlannerRunRaisesOrders(t *testing.T) {
	store := &fakePlanStore{
		positions: []OrderablePosition{
			{WarehouseID: 2, ProductID: 7, OnHand: 1, Desired: 5},
			{WarehouseID: 3, ProductID: 7, OnHand: 0, Desired: 2},
		},
	}
	lock, _ := newTestRunLock(t)
	planner := NewPlanner(nil, store, lock, nil, "acme")

	summary, err := planner.Run(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Skipped)
	require.Equal(t, 2, summary.Orders)
	require.Equal(t, 2, summary.LineItems)
	require.Equal(t, []int64{1, 2}, summary.OrderIDs)

	// Destinations are locked in ascending order before planning.
	require.Equal(t, []int64{2, 3}, store.locked)
	require.Len(t, store.inserted, 2)

	// In-flight lines are read only after every destination is locked, so a
	// concurrent planner's freshly committed orders count against deficits.
	require.Equal(t, []string{"positions", "lock", "lock", "inflight"}, store.calls)
}

func TestPlannerRunSecondPassIsEmpty(t *testing.T) {
	store := &fakePlanStore{
		positions: []OrderablePosition{
			{WarehouseID: 2, ProductID: 7, OnHand: 1, Desired: 5},
		},
	}
	planner := NewPlanner(nil, store, nil, nil, "acme")

	first, err := planner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Orders)

	// The raised order is now in flight, covering the deficit.
	store.inflight = []OpenOrderLine{{DestinationWarehouseID: 2, ProductID: 7, Quantity: 4}}
	second, err := planner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Orders)
	require.Zero(t, second.LineItems)
}

func TestPlannerRunSkipsWhenLockHeld(t *testing.T) {
	store := &fakePlanStore{}
	lock, client := newTestRunLock(t)
	require.NoError(t, client.Set(context.Background(),
		shared.PlannerLockKey("acme"), "other-runner", time.Minute).Err())

	planner := NewPlanner(nil, store, lock, nil, "acme")
	summary, err := planner.Run(context.Background())
	require.NoError(t, err)
	require.True(t, summary.Skipped)
	require.Empty(t, store.locked)
}
