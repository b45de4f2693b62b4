package inventory

import (
	"fmt"

	"github.com/ss-chris/shield-field/internal/shared"
)

// Work order lifecycle statuses. Only the transition into completed triggers
// consumption; everything else is bookkeeping owned by fulfillment.
const (
	WorkStatusPending    = "pending"
	WorkStatusAssigned   = "assigned"
	WorkStatusInProgress = "in_progress"
	WorkStatusCompleted  = "completed"
	WorkStatusCancelled  = "cancelled"
)

// Work order line item statuses. canceled_not_used and ordered_out_of_stock
// mark stock that never left the truck; lines in those states are excluded
// from consumption.
const (
	LineStatusCompletedMounted       = "completed_mounted_and_programmed"
	LineStatusCanceledNotUsed        = "canceled_not_used"
	LineStatusLeftNotMounted         = "left_not_mounted_or_programmed"
	LineStatusMountedNotProgrammed   = "mounted_not_programmed"
	LineStatusOrderedOutOfStock      = "ordered_out_of_stock"
	LineStatusProgrammedHVACNeeded   = "programmed_hvac_needed"
	LineStatusProgrammedNotInstalled = "programmed_not_installed"
)

// ValidLineStatus reports whether status is one of the enumerated work order
// line item states.
func ValidLineStatus(status string) bool {
	switch status {
	case LineStatusCompletedMounted, LineStatusCanceledNotUsed, LineStatusLeftNotMounted,
		LineStatusMountedNotProgrammed, LineStatusOrderedOutOfStock,
		LineStatusProgrammedHVACNeeded, LineStatusProgrammedNotInstalled:
		return true
	}
	return false
}

func consumable(status string) bool {
	return status != LineStatusCanceledNotUsed && status != LineStatusOrderedOutOfStock
}

// ConsumptionOrder is the slice of a work order the consumption engine needs.
type ConsumptionOrder struct {
	ID           int64
	Status       string
	TechnicianID string
}

// ConsumptionLine is one product used on a work order.
type ConsumptionLine struct {
	ID        int64
	ProductID int64
	Quantity  int
	Status    string
}

type consumptionInput struct {
	order     ConsumptionOrder
	lines     []ConsumptionLine
	truck     int64 // warehouse assigned to the technician
	positions map[positionKey]Position
}

// buildConsumption computes the ledger effect of completing a work order.
// Each consumable line debits the technician's truck position and appends a
// negative consumption entry, so the position delta and the entry agree
// exactly. Lines for products with no truck position are skipped and
// reported as anomalies rather than inventing stock.
func buildConsumption(in consumptionInput) WriteSet {
	var ws WriteSet
	deltas := make(map[positionKey]int)
	var order []positionKey
	for _, line := range in.lines {
		if !consumable(line.Status) || line.Quantity == 0 {
			continue
		}
		key := positionKey{in.truck, line.ProductID}
		if _, exists := in.positions[key]; !exists {
			ws.Anomalies = append(ws.Anomalies, shared.Anomaly{
				Kind:        shared.AnomalyMissingPosition,
				WarehouseID: in.truck,
				ProductID:   line.ProductID,
				OrderID:     in.order.ID,
				Detail:      "consumption skipped, no position on truck",
			})
			continue
		}
		if _, ok := deltas[key]; !ok {
			order = append(order, key)
		}
		deltas[key] -= line.Quantity

		ws.Entries = append(ws.Entries, TransactionEntry{
			Type:               MovementConsumption,
			Quantity:           -line.Quantity,
			ProductID:          line.ProductID,
			SourceWarehouseID:  in.truck,
			DestinationOrderID: in.order.ID,
		})
	}

	for _, key := range order {
		delta := deltas[key]
		pos := in.positions[key]
		ws.Updates = append(ws.Updates, PositionDelta{
			PositionID:  pos.ID,
			WarehouseID: key.warehouseID,
			ProductID:   key.productID,
			Delta:       delta,
		})
		if pos.OnHand+delta < 0 {
			ws.Anomalies = append(ws.Anomalies, shared.Anomaly{
				Kind:        shared.AnomalyInsufficientOnHand,
				WarehouseID: key.warehouseID,
				ProductID:   key.productID,
				OrderID:     in.order.ID,
				Detail:      fmt.Sprintf("on-hand %d after consuming %d", pos.OnHand+delta, -delta),
			})
		}
	}
	return ws
}
