package inventory

import "github.com/ss-chris/shield-field/internal/shared"

// PositionDelta adjusts one existing position by a signed amount.
type PositionDelta struct {
	PositionID  int64
	WarehouseID int64
	ProductID   int64
	Delta       int
}

// PositionCreate materializes a position that did not exist before the
// movement touched it.
type PositionCreate struct {
	WarehouseID  int64
	ProductID    int64
	OnHand       int
	Desired      int
	CanBeOrdered bool
}

// WriteSet is the full effect of one settlement or consumption, computed
// before any row is touched. Applying it is the only place engine results hit
// storage, so a transaction either lands every part or none of it.
type WriteSet struct {
	Creates   []PositionCreate
	Updates   []PositionDelta
	Entries   []TransactionEntry
	Anomalies []shared.Anomaly
}

// Empty reports whether the write set carries no storage effects. Anomalies
// alone do not make a write set non-empty; they are reported, not stored.
func (ws WriteSet) Empty() bool {
	return len(ws.Creates) == 0 && len(ws.Updates) == 0 && len(ws.Entries) == 0
}
