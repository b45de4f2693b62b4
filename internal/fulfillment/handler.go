package fulfillment

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ss-chris/shield-field/internal/platform/httpx"
)

// Handler wires HTTP endpoints for work orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs fulfillment handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers fulfillment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/work-orders", h.handleList)
	r.Post("/work-orders", h.handleCreate)
	r.Get("/work-orders/{id}", h.handleGet)
	r.Patch("/work-orders/{id}/status", h.handleUpdateStatus)
	r.Post("/work-orders/{id}/lines", h.handleAddLines)
	r.Patch("/work-orders/{id}/lines/{lineID}", h.handleUpdateLine)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status:       q.Get("status"),
		TechnicianID: q.Get("technician_id"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}
	orders, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list work orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid work order id")
		return
	}
	order, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "line_items": lines})
}

type lineRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required,oneof=completed_mounted_and_programmed canceled_not_used left_not_mounted_or_programmed mounted_not_programmed ordered_out_of_stock programmed_hvac_needed programmed_not_installed"`
}

type createOrderRequest struct {
	TechnicianID string        `json:"technician_id" validate:"required"`
	CustomerRef  string        `json:"customer_ref"`
	Note         string        `json:"note"`
	Lines        []lineRequest `json:"lines" validate:"dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := CreateOrderInput{
		TechnicianID: req.TechnicianID,
		CustomerRef:  req.CustomerRef,
		Note:         req.Note,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity, Status: line.Status})
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create work order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending assigned in_progress completed cancelled"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid work order id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("update work order status",
			slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type addLinesRequest struct {
	Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleAddLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid work order id")
		return
	}
	var req addLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity, Status: line.Status})
	}
	if err := h.service.AddLines(r.Context(), id, lines); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"added": len(lines)})
}

type updateLineRequest struct {
	Quantity int    `json:"quantity" validate:"gte=0"`
	Status   string `json:"status" validate:"required,oneof=completed_mounted_and_programmed canceled_not_used left_not_mounted_or_programmed mounted_not_programmed ordered_out_of_stock programmed_hvac_needed programmed_not_installed"`
}

func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid work order id")
		return
	}
	lineID, ok := pathID(r, "lineID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line id")
		return
	}
	var req updateLineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err := h.service.UpdateLine(r.Context(), orderID, WorkOrderLine{
		ID:       lineID,
		Quantity: req.Quantity,
		Status:   req.Status,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}
