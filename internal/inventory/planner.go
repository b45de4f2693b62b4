package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ss-chris/shield-field/internal/observability"
	"github.com/ss-chris/shield-field/internal/shared"
)

// OrderablePosition is a stocked position eligible for replenishment.
type OrderablePosition struct {
	WarehouseID int64
	ProductID   int64
	OnHand      int
	Desired     int
}

// OpenOrderLine is an in-flight ordered quantity counted against a deficit.
type OpenOrderLine struct {
	DestinationWarehouseID int64
	ProductID              int64
	Quantity               int
}

// PlannedOrder is one replenishment purchase order the planner decided to
// raise, together with its lines. Orders are system-kind and start open.
type PlannedOrder struct {
	DestinationWarehouseID int64
	SourceWarehouseID      int64 // vendor, zero when unset
	Lines                  []PlannedLine
}

// PlannedLine is one product deficit on a planned order.
type PlannedLine struct {
	ProductID int64
	Quantity  int
}

// buildPlan computes the replenishment orders for a set of orderable
// positions given the in-flight quantities already on open or approved
// orders. Deficit per position is desired minus on-hand minus in-flight; only
// positive deficits produce lines, and all lines for one destination coalesce
// onto a single order. Deterministic: destinations ascend, lines keep
// position order within a destination.
func buildPlan(positions []OrderablePosition, inflight []OpenOrderLine) []PlannedOrder {
	pending := make(map[positionKey]int)
	for _, line := range inflight {
		pending[positionKey{line.DestinationWarehouseID, line.ProductID}] += line.Quantity
	}

	byDest := make(map[int64][]PlannedLine)
	for _, pos := range positions {
		deficit := pos.Desired - pos.OnHand - pending[positionKey{pos.WarehouseID, pos.ProductID}]
		if deficit <= 0 {
			continue
		}
		byDest[pos.WarehouseID] = append(byDest[pos.WarehouseID], PlannedLine{
			ProductID: pos.ProductID,
			Quantity:  deficit,
		})
	}

	dests := make([]int64, 0, len(byDest))
	for id := range byDest {
		dests = append(dests, id)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	orders := make([]PlannedOrder, 0, len(dests))
	for _, id := range dests {
		orders = append(orders, PlannedOrder{DestinationWarehouseID: id, Lines: byDest[id]})
	}
	return orders
}

// PlanSummary reports one planner run.
type PlanSummary struct {
	Orders    int     `json:"orders"`
	LineItems int     `json:"line_items"`
	OrderIDs  []int64 `json:"order_ids,omitempty"`
	Skipped   bool    `json:"skipped"` // another run held the lock
}

// PlanTx is the transactional storage surface the planner runs against. All
// calls happen inside one transaction; LockDestination takes an advisory lock
// that falls with the transaction.
type PlanTx interface {
	LockDestination(ctx context.Context, warehouseID int64) error
	ListOrderablePositions(ctx context.Context) ([]OrderablePosition, error)
	ListOpenOrderLines(ctx context.Context) ([]OpenOrderLine, error)
	InsertPlannedOrder(ctx context.Context, order PlannedOrder) (int64, error)
	InsertPlannedLines(ctx context.Context, orderID int64, lines []PlannedLine) error
}

// PlannerStore opens planner transactions.
type PlannerStore interface {
	WithPlanTx(ctx context.Context, fn func(ctx context.Context, tx PlanTx) error) error
}

// Planner raises system purchase orders for every stocked warehouse whose
// positions run below desired. One run produces at most one order per
// destination warehouse, and overlapping runs for the same account are
// excluded by a Redis lease.
type Planner struct {
	logger  *slog.Logger
	store   PlannerStore
	lock    *shared.RunLock
	metrics *observability.Metrics
	account string
}

// NewPlanner builds Planner. The run lock may be nil, in which case runs are
// unguarded (tests).
func NewPlanner(logger *slog.Logger, store PlannerStore, lock *shared.RunLock, metrics *observability.Metrics, account string) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger, store: store, lock: lock, metrics: metrics, account: account}
}

// Run executes one replenishment pass. A run that loses the account lease
// returns a skipped summary rather than an error so schedulers do not retry.
func (p *Planner) Run(ctx context.Context) (PlanSummary, error) {
	if p.lock != nil {
		release, err := p.lock.Acquire(ctx, shared.PlannerLockKey(p.account))
		if err != nil {
			if errors.Is(err, shared.ErrLockBusy) {
				p.logger.Info("replenishment run skipped, lock busy", slog.String("account", p.account))
				return PlanSummary{Skipped: true}, nil
			}
			return PlanSummary{}, fmt.Errorf("inventory: acquire planner lock: %w", err)
		}
		defer func() {
			if err := release(ctx); err != nil {
				p.logger.Warn("release planner lock", slog.Any("error", err))
			}
		}()
	}

	var summary PlanSummary
	err := p.store.WithPlanTx(ctx, func(ctx context.Context, tx PlanTx) error {
		positions, err := tx.ListOrderablePositions(ctx)
		if err != nil {
			return fmt.Errorf("inventory: list orderable positions: %w", err)
		}

		// Lock candidate destinations in ascending order before reading
		// in-flight quantities, so concurrent runs serialize per warehouse
		// without deadlocking.
		seen := make(map[int64]bool)
		var dests []int64
		for _, pos := range positions {
			if !seen[pos.WarehouseID] {
				seen[pos.WarehouseID] = true
				dests = append(dests, pos.WarehouseID)
			}
		}
		sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
		for _, id := range dests {
			if err := tx.LockDestination(ctx, id); err != nil {
				return fmt.Errorf("inventory: lock destination %d: %w", id, err)
			}
		}

		inflight, err := tx.ListOpenOrderLines(ctx)
		if err != nil {
			return fmt.Errorf("inventory: list open order lines: %w", err)
		}

		for _, order := range buildPlan(positions, inflight) {
			id, err := tx.InsertPlannedOrder(ctx, order)
			if err != nil {
				return fmt.Errorf("inventory: insert planned order: %w", err)
			}
			if err := tx.InsertPlannedLines(ctx, id, order.Lines); err != nil {
				return fmt.Errorf("inventory: insert planned lines: %w", err)
			}
			summary.Orders++
			summary.LineItems += len(order.Lines)
			summary.OrderIDs = append(summary.OrderIDs, id)
		}
		return nil
	})
	if err != nil {
		return PlanSummary{}, err
	}

	p.metrics.ObservePlannerRun(summary.Orders, summary.LineItems)
	p.logger.Info("replenishment run complete",
		slog.String("account", p.account),
		slog.Int("orders", summary.Orders),
		slog.Int("line_items", summary.LineItems))
	return summary, nil
}
