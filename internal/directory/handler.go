package directory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ss-chris/shield-field/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the warehouse directory.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs directory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.handleList)
	r.Post("/warehouses", h.handleCreate)
	r.Get("/warehouses/{id}", h.handleGet)
	r.Patch("/warehouses/{id}", h.handleUpdate)
}

type warehouseRequest struct {
	Name         string `json:"name" validate:"required"`
	Role         string `json:"role" validate:"required,oneof=vendor individual warehouse"`
	Active       bool   `json:"active"`
	KeepStocked  bool   `json:"keep_stocked"`
	AccountID    string `json:"account_id" validate:"required"`
	TechnicianID string `json:"technician_id"`
	ShipTo       string `json:"ship_to"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{AccountID: q.Get("account_id")}
	if roleStr := q.Get("role"); roleStr != "" {
		role, err := ParseRole(roleStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		filters.Role = role
	}
	if activeStr := q.Get("active"); activeStr != "" {
		active := activeStr == "true"
		filters.Active = &active
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filters.Offset = offset
	}
	warehouses, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list warehouses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouses)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	warehouse, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouse, err := h.service.Create(r.Context(), Warehouse{
		Name:         req.Name,
		Role:         Role(req.Role),
		Active:       req.Active,
		KeepStocked:  req.KeepStocked,
		AccountID:    req.AccountID,
		TechnicianID: req.TechnicianID,
		ShipTo:       req.ShipTo,
	})
	if err != nil {
		h.logger.Error("create warehouse", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	err = h.service.Update(r.Context(), id, Warehouse{
		Name:         req.Name,
		Role:         Role(req.Role),
		Active:       req.Active,
		KeepStocked:  req.KeepStocked,
		AccountID:    req.AccountID,
		TechnicianID: req.TechnicianID,
		ShipTo:       req.ShipTo,
	})
	if err != nil {
		h.logger.Error("update warehouse", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}
