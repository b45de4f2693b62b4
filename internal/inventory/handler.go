package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ss-chris/shield-field/internal/platform/httpx"
)

// RunEnqueuer queues a planner pass for the background worker.
type RunEnqueuer interface {
	EnqueueRun(ctx context.Context) error
}

// EnqueueFunc adapts a function to RunEnqueuer.
type EnqueueFunc func(ctx context.Context) error

func (f EnqueueFunc) EnqueueRun(ctx context.Context) error { return f(ctx) }

// Handler wires HTTP endpoints for positions, the ledger and planner runs.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	planner  *Planner
	enqueue  RunEnqueuer
	validate *validator.Validate
}

// NewHandler constructs inventory handler. Planner may be nil when runs are
// only triggered by the scheduler, and enqueue may be nil when no job queue
// is available.
func NewHandler(logger *slog.Logger, service *Service, planner *Planner, enqueue RunEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, planner: planner, enqueue: enqueue, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/positions", h.handleListPositions)
	r.Post("/positions", h.handleCreatePosition)
	r.Get("/transactions", h.handleListEntries)
	r.Post("/replenishment/run", h.handleRunPlanner)
}

func (h *Handler) handleListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filters PositionFilters
	if id, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err == nil {
		filters.WarehouseID = id
	}
	if id, err := strconv.ParseInt(q.Get("product_id"), 10, 64); err == nil {
		filters.ProductID = id
	}
	if v := q.Get("can_be_ordered"); v != "" {
		orderable := v == "true"
		filters.CanBeOrdered = &orderable
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}
	positions, err := h.service.ListPositions(r.Context(), filters)
	if err != nil {
		h.logger.Error("list positions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, positions)
}

type positionRequest struct {
	WarehouseID  int64 `json:"warehouse_id" validate:"required,gt=0"`
	ProductID    int64 `json:"product_id" validate:"required,gt=0"`
	OnHand       int   `json:"on_hand"`
	Desired      int   `json:"desired" validate:"gte=0"`
	CanBeOrdered bool  `json:"can_be_ordered"`
}

func (h *Handler) handleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	pos, err := h.service.CreatePosition(r.Context(), Position{
		WarehouseID:  req.WarehouseID,
		ProductID:    req.ProductID,
		OnHand:       req.OnHand,
		Desired:      req.Desired,
		CanBeOrdered: req.CanBeOrdered,
	})
	if err != nil {
		h.logger.Error("create position", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pos)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter EntryFilter
	if id, err := strconv.ParseInt(q.Get("product_id"), 10, 64); err == nil {
		filter.ProductID = id
	}
	if id, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64); err == nil {
		filter.WarehouseID = id
	}
	if id, err := strconv.ParseInt(q.Get("purchase_order_id"), 10, 64); err == nil {
		filter.PurchaseOrderID = id
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRunPlanner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "true" {
		if h.enqueue == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Planner Unavailable", "job queue is not configured")
			return
		}
		if err := h.enqueue.EnqueueRun(r.Context()); err != nil {
			h.logger.Error("enqueue replenishment run", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"enqueued": true})
		return
	}
	if h.planner == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Planner Unavailable", "replenishment planner is not configured")
		return
	}
	summary, err := h.planner.Run(r.Context())
	if err != nil {
		h.logger.Error("replenishment run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if summary.Skipped {
		status = http.StatusConflict
	}
	httpx.JSON(w, status, summary)
}
