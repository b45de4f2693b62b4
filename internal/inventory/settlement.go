package inventory

import (
	"fmt"

	"github.com/ss-chris/shield-field/internal/directory"
	"github.com/ss-chris/shield-field/internal/shared"
)

// SettlementOrder is the slice of a purchase order the settlement engine
// needs: identity, lifecycle status and the two endpoints of the movement.
type SettlementOrder struct {
	ID                     int64
	Kind                   string
	Status                 OrderStatus
	SourceWarehouseID      int64
	DestinationWarehouseID int64
}

// SettlementLine is one product line of a settling purchase order. Received
// quantity drives the ledger; ordered quantity only seeds desired levels on
// first contact with a destination.
type SettlementLine struct {
	ID               int64
	ProductID        int64
	QuantityOrdered  int
	QuantityReceived int
}

// settlementInput gathers everything buildSettlement reads. Positions are
// keyed by (warehouse, product); absent keys mean the position does not exist
// yet.
type settlementInput struct {
	order       SettlementOrder
	lines       []SettlementLine
	source      directory.Warehouse
	destination directory.Warehouse
	positions   map[positionKey]Position
}

type positionKey struct {
	warehouseID int64
	productID   int64
}

type lineEffect struct {
	delta   int
	desired int
	source  bool
}

// buildSettlement computes the complete ledger effect of completing a
// purchase order. It is pure: it never touches storage, so callers can apply
// the result atomically or replay it in tests.
//
// Per line, the received quantity leaves the source position and lands on the
// destination position; vendor endpoints are untracked and skipped. A return
// negates the entry quantity. A transfer additionally appends a mirrored
// entry so the pair sums to zero and network stock is conserved.
func buildSettlement(in settlementInput) (WriteSet, MovementType, error) {
	movement, err := MovementFor(in.source.Role, in.destination.Role)
	if err != nil {
		return WriteSet{}, "", err
	}

	var ws WriteSet
	// Coalesce repeated product lines so each position is adjusted once.
	deltas := make(map[positionKey]*lineEffect)
	var order []positionKey
	touch := func(key positionKey) *lineEffect {
		eff, ok := deltas[key]
		if !ok {
			eff = &lineEffect{}
			deltas[key] = eff
			order = append(order, key)
		}
		return eff
	}

	for _, line := range in.lines {
		qty := line.QuantityReceived
		entryQty := qty
		if movement == MovementReturn {
			entryQty = -qty
		}

		ws.Entries = append(ws.Entries, TransactionEntry{
			Type:                   movement,
			Quantity:               entryQty,
			ProductID:              line.ProductID,
			SourceWarehouseID:      in.source.ID,
			DestinationWarehouseID: in.destination.ID,
			DestinationOrderID:     in.order.ID,
		})
		if movement == MovementTransfer {
			ws.Entries = append(ws.Entries, TransactionEntry{
				Type:                   movement,
				Quantity:               -entryQty,
				ProductID:              line.ProductID,
				SourceWarehouseID:      in.destination.ID,
				DestinationWarehouseID: in.source.ID,
				SourceOrderID:          in.order.ID,
			})
		}

		if in.destination.Role != directory.RoleVendor {
			eff := touch(positionKey{in.destination.ID, line.ProductID})
			eff.delta += qty
			eff.desired += line.QuantityOrdered
		}
		if in.source.Role != directory.RoleVendor {
			eff := touch(positionKey{in.source.ID, line.ProductID})
			eff.delta -= qty
			eff.source = true
		}
	}

	for _, key := range order {
		eff := deltas[key]
		pos, exists := in.positions[key]
		switch {
		case exists:
			ws.Updates = append(ws.Updates, PositionDelta{
				PositionID:  pos.ID,
				WarehouseID: key.warehouseID,
				ProductID:   key.productID,
				Delta:       eff.delta,
			})
			if pos.OnHand+eff.delta < 0 {
				ws.Anomalies = append(ws.Anomalies, shared.Anomaly{
					Kind:        shared.AnomalyInsufficientOnHand,
					WarehouseID: key.warehouseID,
					ProductID:   key.productID,
					OrderID:     in.order.ID,
					Detail:      fmt.Sprintf("on-hand %d after delta %d", pos.OnHand+eff.delta, eff.delta),
				})
			}
		case eff.source:
			// Goods moved out of a warehouse that never held the product.
			// Start the position at zero and let the debit drive it negative.
			ws.Creates = append(ws.Creates, PositionCreate{
				WarehouseID: key.warehouseID,
				ProductID:   key.productID,
				OnHand:      eff.delta,
			})
			ws.Anomalies = append(ws.Anomalies, shared.Anomaly{
				Kind:        shared.AnomalyMissingPosition,
				WarehouseID: key.warehouseID,
				ProductID:   key.productID,
				OrderID:     in.order.ID,
				Detail:      "source position created at zero",
			})
		default:
			// First arrival at the destination seeds the desired level from
			// the ordered quantity.
			ws.Creates = append(ws.Creates, PositionCreate{
				WarehouseID: key.warehouseID,
				ProductID:   key.productID,
				OnHand:      eff.delta,
				Desired:     eff.desired,
			})
			if eff.delta < 0 {
				ws.Anomalies = append(ws.Anomalies, shared.Anomaly{
					Kind:        shared.AnomalyInsufficientOnHand,
					WarehouseID: key.warehouseID,
					ProductID:   key.productID,
					OrderID:     in.order.ID,
					Detail:      fmt.Sprintf("position created with on-hand %d", eff.delta),
				})
			}
		}
	}
	return ws, movement, nil
}
