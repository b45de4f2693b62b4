package shared

import "fmt"

// AnomalyKind classifies non-fatal bookkeeping mismatches.
type AnomalyKind string

const (
	// AnomalyMissingPosition indicates a movement referenced a (warehouse,
	// product) pair with no position row.
	AnomalyMissingPosition AnomalyKind = "missing_position"
	// AnomalyInsufficientOnHand indicates a movement drove (or would drive)
	// a position below zero.
	AnomalyInsufficientOnHand AnomalyKind = "insufficient_on_hand"
)

// Anomaly records a data-integrity mismatch observed while processing a
// movement. Anomalies are surfaced for observability but never abort the
// enclosing atomic unit; bookkeeping mismatches must not block field work.
type Anomaly struct {
	Kind        AnomalyKind
	WarehouseID int64
	ProductID   int64
	OrderID     int64
	Detail      string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: warehouse=%d product=%d order=%d %s", a.Kind, a.WarehouseID, a.ProductID, a.OrderID, a.Detail)
}
