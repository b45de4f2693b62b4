package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/shared"
)

func TestMovementForCoversAllRolePairs(t *testing.T) {
	cases := []struct {
		source      directory.Role
		destination directory.Role
		want        MovementType
	}{
		{directory.RoleVendor, directory.RoleWarehouse, MovementReplenishment},
		{directory.RoleVendor, directory.RoleIndividual, MovementReplenishment},
		{directory.RoleVendor, directory.RoleVendor, MovementReplenishment},
		{directory.RoleWarehouse, directory.RoleVendor, MovementReturn},
		{directory.RoleIndividual, directory.RoleVendor, MovementReturn},
		{directory.RoleWarehouse, directory.RoleIndividual, MovementTransfer},
		{directory.RoleWarehouse, directory.RoleWarehouse, MovementTransfer},
		{directory.RoleIndividual, directory.RoleWarehouse, MovementTransfer},
		{directory.RoleIndividual, directory.RoleIndividual, MovementTransfer},
	}
	for _, tc := range cases {
		got, err := MovementFor(tc.source, tc.destination)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "source=%s destination=%s", tc.source, tc.destination)
	}
}

func TestMovementForRejectsUnknownRoles(t *testing.T) {
	_, err := MovementFor("depot", directory.RoleWarehouse)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = MovementFor(directory.RoleVendor, "depot")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestOrderStatusTransitions(t *testing.T) {
	require.True(t, OrderStatusOpen.CanTransition(OrderStatusApproved))
	require.True(t, OrderStatusOpen.CanTransition(OrderStatusDeclined))
	require.True(t, OrderStatusApproved.CanTransition(OrderStatusComplete))

	require.False(t, OrderStatusOpen.CanTransition(OrderStatusComplete))
	require.False(t, OrderStatusDeclined.CanTransition(OrderStatusApproved))
	require.False(t, OrderStatusComplete.CanTransition(OrderStatusOpen))
	require.False(t, OrderStatusApproved.CanTransition(OrderStatusOpen))

	// Re-asserting the current status is always allowed.
	require.True(t, OrderStatusComplete.CanTransition(OrderStatusComplete))
	require.True(t, OrderStatusDeclined.CanTransition(OrderStatusDeclined))

	require.True(t, OrderStatusComplete.Terminal())
	require.True(t, OrderStatusDeclined.Terminal())
	require.False(t, OrderStatusApproved.Terminal())
}

func vendorWarehouse(id int64) directory.Warehouse {
	return directory.Warehouse{ID: id, Role: directory.RoleVendor}
}

func stockWarehouse(id int64) directory.Warehouse {
	return directory.Warehouse{ID: id, Role: directory.RoleWarehouse}
}

func truckWarehouse(id int64) directory.Warehouse {
	return directory.Warehouse{ID: id, Role: directory.RoleIndividual}
}

func TestBuildSettlementReplenishment(t *testing.T) {
	ws, movement, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 10, SourceWarehouseID: 1, DestinationWarehouseID: 2},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 5, QuantityReceived: 4},
		},
		source:      vendorWarehouse(1),
		destination: stockWarehouse(2),
		positions: map[positionKey]Position{
			{2, 7}: {ID: 31, WarehouseID: 2, ProductID: 7, OnHand: 3, Desired: 8},
		},
	})
	require.NoError(t, err)
	require.Equal(t, MovementReplenishment, movement)
	require.Empty(t, ws.Creates)
	require.Empty(t, ws.Anomalies)

	require.Len(t, ws.Updates, 1)
	require.Equal(t, int64(31), ws.Updates[0].PositionID)
	require.Equal(t, 4, ws.Updates[0].Delta)

	require.Len(t, ws.Entries, 1)
	entry := ws.Entries[0]
	require.Equal(t, MovementReplenishment, entry.Type)
	require.Equal(t, 4, entry.Quantity)
	require.Equal(t, int64(1), entry.SourceWarehouseID)
	require.Equal(t, int64(2), entry.DestinationWarehouseID)
	require.Equal(t, int64(10), entry.DestinationOrderID)
	require.Zero(t, entry.SourceOrderID)
}

func TestBuildSettlementSeedsDesiredOnFirstArrival(t *testing.T) {
	ws, _, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 11},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 6, QuantityReceived: 6},
		},
		source:      vendorWarehouse(1),
		destination: stockWarehouse(2),
		positions:   map[positionKey]Position{},
	})
	require.NoError(t, err)
	require.Empty(t, ws.Updates)
	require.Len(t, ws.Creates, 1)
	require.Equal(t, 6, ws.Creates[0].OnHand)
	require.Equal(t, 6, ws.Creates[0].Desired)
}

func TestBuildSettlementReturnDebitsSource(t *testing.T) {
	ws, movement, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 12, SourceWarehouseID: 2, DestinationWarehouseID: 1},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 3, QuantityReceived: 3},
		},
		source:      stockWarehouse(2),
		destination: vendorWarehouse(1),
		positions: map[positionKey]Position{
			{2, 7}: {ID: 40, WarehouseID: 2, ProductID: 7, OnHand: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, MovementReturn, movement)
	require.Len(t, ws.Entries, 1)
	require.Equal(t, -3, ws.Entries[0].Quantity)

	// Stock leaves the returning warehouse; the vendor side is untracked.
	require.Len(t, ws.Updates, 1)
	require.Equal(t, int64(2), ws.Updates[0].WarehouseID)
	require.Equal(t, -3, ws.Updates[0].Delta)
	require.Empty(t, ws.Creates)
	require.Empty(t, ws.Anomalies)
}

func TestBuildSettlementTransferConservesStock(t *testing.T) {
	ws, movement, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 13, SourceWarehouseID: 2, DestinationWarehouseID: 3},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 5, QuantityReceived: 5},
			{ID: 2, ProductID: 8, QuantityOrdered: 2, QuantityReceived: 2},
		},
		source:      stockWarehouse(2),
		destination: truckWarehouse(3),
		positions: map[positionKey]Position{
			{2, 7}: {ID: 50, WarehouseID: 2, ProductID: 7, OnHand: 9},
			{2, 8}: {ID: 51, WarehouseID: 2, ProductID: 8, OnHand: 4},
			{3, 7}: {ID: 52, WarehouseID: 3, ProductID: 7, OnHand: 1},
			{3, 8}: {ID: 53, WarehouseID: 3, ProductID: 8, OnHand: 0},
		},
	})
	require.NoError(t, err)
	require.Equal(t, MovementTransfer, movement)

	// Two entries per line, each pair summing to zero.
	require.Len(t, ws.Entries, 4)
	total := 0
	for _, entry := range ws.Entries {
		total += entry.Quantity
	}
	require.Zero(t, total)

	// Mirror entries swap endpoints and carry the order on the source side.
	mirror := ws.Entries[1]
	require.Equal(t, int64(3), mirror.SourceWarehouseID)
	require.Equal(t, int64(2), mirror.DestinationWarehouseID)
	require.Equal(t, int64(13), mirror.SourceOrderID)
	require.Zero(t, mirror.DestinationOrderID)

	// Position deltas also conserve.
	total = 0
	for _, update := range ws.Updates {
		total += update.Delta
	}
	require.Zero(t, total)
	require.Empty(t, ws.Anomalies)
}

func TestBuildSettlementTransferFromUnknownSourcePosition(t *testing.T) {
	ws, _, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 14},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 2, QuantityReceived: 2},
		},
		source:      stockWarehouse(2),
		destination: truckWarehouse(3),
		positions: map[positionKey]Position{
			{3, 7}: {ID: 60, WarehouseID: 3, ProductID: 7, OnHand: 0},
		},
	})
	require.NoError(t, err)

	// Source position materializes at the negative delta and is flagged.
	require.Len(t, ws.Creates, 1)
	require.Equal(t, int64(2), ws.Creates[0].WarehouseID)
	require.Equal(t, -2, ws.Creates[0].OnHand)
	require.Zero(t, ws.Creates[0].Desired)

	require.Len(t, ws.Anomalies, 1)
	require.Equal(t, shared.AnomalyMissingPosition, ws.Anomalies[0].Kind)
	require.Equal(t, int64(2), ws.Anomalies[0].WarehouseID)
}

func TestBuildSettlementFlagsNegativeOnHand(t *testing.T) {
	ws, _, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 15},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 5, QuantityReceived: 5},
		},
		source:      stockWarehouse(2),
		destination: truckWarehouse(3),
		positions: map[positionKey]Position{
			{2, 7}: {ID: 70, WarehouseID: 2, ProductID: 7, OnHand: 3},
			{3, 7}: {ID: 71, WarehouseID: 3, ProductID: 7, OnHand: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, ws.Anomalies, 1)
	require.Equal(t, shared.AnomalyInsufficientOnHand, ws.Anomalies[0].Kind)
	require.Equal(t, int64(2), ws.Anomalies[0].WarehouseID)

	// The movement still lands; soft accounting never blocks settlement.
	require.Len(t, ws.Updates, 2)
}

func TestBuildSettlementCoalescesRepeatedProductLines(t *testing.T) {
	ws, _, err := buildSettlement(settlementInput{
		order: SettlementOrder{ID: 16},
		lines: []SettlementLine{
			{ID: 1, ProductID: 7, QuantityOrdered: 2, QuantityReceived: 2},
			{ID: 2, ProductID: 7, QuantityOrdered: 3, QuantityReceived: 3},
		},
		source:      vendorWarehouse(1),
		destination: stockWarehouse(2),
		positions: map[positionKey]Position{
			{2, 7}: {ID: 80, WarehouseID: 2, ProductID: 7, OnHand: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, ws.Entries, 2)
	require.Len(t, ws.Updates, 1)
	require.Equal(t, 5, ws.Updates[0].Delta)
}
