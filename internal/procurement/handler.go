package procurement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ss-chris/shield-field/internal/inventory"
	"github.com/ss-chris/shield-field/internal/platform/httpx"
)

// Handler wires HTTP endpoints for purchase orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Post("/orders", h.handleCreate)
	r.Post("/orders/bulk", h.handleCreateBulk)
	r.Get("/orders/{id}", h.handleGet)
	r.Patch("/orders/{id}/status", h.handleUpdateStatus)
	r.Post("/orders/{id}/lines", h.handleAddLines)
	r.Patch("/orders/{id}/lines/{lineID}", h.handleUpdateLine)
	r.Get("/orders/{id}/shipments", h.handleListShipments)
	r.Post("/orders/{id}/shipments", h.handleCreateShipment)
	r.Patch("/shipments/{id}/status", h.handleAdvanceShipment)
	r.Get("/shipments/{id}/events", h.handleListEvents)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status: inventory.OrderStatus(q.Get("status")),
		Kind:   OrderKind(q.Get("kind")),
	}
	if id, err := strconv.ParseInt(q.Get("parent_purchase_order_id"), 10, 64); err == nil {
		filters.ParentPurchaseOrderID = id
	}
	if id, err := strconv.ParseInt(q.Get("destination_warehouse_id"), 10, 64); err == nil {
		filters.DestinationWarehouseID = id
	}
	if id, err := strconv.ParseInt(q.Get("source_warehouse_id"), 10, 64); err == nil {
		filters.SourceWarehouseID = id
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}
	orders, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	order, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "line_items": lines})
}

type createOrderRequest struct {
	ParentPurchaseOrderID  int64             `json:"parent_purchase_order_id" validate:"gte=0"`
	SourceWarehouseID      int64             `json:"source_warehouse_id"`
	DestinationWarehouseID int64             `json:"destination_warehouse_id" validate:"required,gt=0"`
	ShippingMethod         string            `json:"shipping_method"`
	Note                   string            `json:"note"`
	Lines                  []lineItemRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
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
		ParentPurchaseOrderID:  req.ParentPurchaseOrderID,
		SourceWarehouseID:      req.SourceWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		ShippingMethod:         req.ShippingMethod,
		Note:                   req.Note,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create purchase order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

type bulkCreateRequest struct {
	Orders []createOrderRequest `json:"orders" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created := make([]PurchaseOrder, 0, len(req.Orders))
	for _, item := range req.Orders {
		input := CreateOrderInput{
			ParentPurchaseOrderID:  item.ParentPurchaseOrderID,
			SourceWarehouseID:      item.SourceWarehouseID,
			DestinationWarehouseID: item.DestinationWarehouseID,
			ShippingMethod:         item.ShippingMethod,
			Note:                   item.Note,
		}
		for _, line := range item.Lines {
			input.Lines = append(input.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		order, err := h.service.Create(r.Context(), input)
		if err != nil {
			h.logger.Error("bulk create purchase order",
				slog.Int("created", len(created)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		created = append(created, order)
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"created": len(created), "orders": created})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=open approved declined complete"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
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
	summary, err := h.service.UpdateStatus(r.Context(), id, inventory.OrderStatus(req.Status))
	if err != nil {
		h.logger.Error("update purchase order status",
			slog.Int64("order_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type addLinesRequest struct {
	Lines []lineItemRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleAddLines(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
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
		lines = append(lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	if err := h.service.AddLineItems(r.Context(), id, lines); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"added": len(lines)})
}

type updateLineRequest struct {
	QuantityOrdered  int    `json:"quantity_ordered" validate:"gte=0"`
	QuantityReceived int    `json:"quantity_received" validate:"gte=0"`
	Status           string `json:"status" validate:"required,oneof=created ordered completed missing"`
}

func (h *Handler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	lineID, ok := pathID(r, "lineID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid line item id")
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
	err := h.service.UpdateLineItem(r.Context(), orderID, LineItem{
		ID:               lineID,
		QuantityOrdered:  req.QuantityOrdered,
		QuantityReceived: req.QuantityReceived,
		Status:           LineItemStatus(req.Status),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

type shipmentRequest struct {
	Carrier               string     `json:"carrier"`
	TrackingNumber        string     `json:"tracking_number"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date"`
}

func (h *Handler) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	var req shipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	shipment, err := h.service.CreateShipment(r.Context(), Shipment{
		PurchaseOrderID:       id,
		Carrier:               req.Carrier,
		TrackingNumber:        req.TrackingNumber,
		EstimatedDeliveryDate: req.EstimatedDeliveryDate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shipment)
}

func (h *Handler) handleListShipments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return
	}
	shipments, err := h.service.ListShipments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipments)
}

type shipmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending onroute delivered"`
	Detail string `json:"detail"`
}

func (h *Handler) handleAdvanceShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shipment id")
		return
	}
	var req shipmentStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.AdvanceShipment(r.Context(), id, ShipmentStatus(req.Status), req.Detail); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shipment id")
		return
	}
	events, err := h.service.ListTrackingEvents(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}
