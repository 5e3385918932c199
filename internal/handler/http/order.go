package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/service"
	"github.com/dpedwards/webstore/pkg/httputil"
	"github.com/dpedwards/webstore/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateOrderRequest is the optional JSON body for creating an order.
type CreateOrderRequest struct {
	OrderDate string `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
}

// AddPositionRequest is the JSON body for adding a position to an order.
type AddPositionRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// --- Handlers ---

// ListOrders handles GET /api/v1/order/all
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// GetOrder handles GET /api/v1/order/{orderId}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// CreateOrder handles POST /api/v1/order/add. The body may be omitted, in
// which case the order is dated today.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if r.ContentLength != 0 {
		if !httputil.DecodeJSON(w, r, &req) {
			return
		}
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	var date *domain.Date
	if req.OrderDate != "" {
		d, err := domain.ParseDate(req.OrderDate)
		if err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
		date = &d
	}

	order, err := h.service.CreateOrder(r.Context(), date)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// AddPosition handles POST /api/v1/order/{orderId}/positions
func (h *OrderHandler) AddPosition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	var req AddPositionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	position, err := h.service.AddPosition(r.Context(), orderID.String(), req.ProductID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: position})
}

// DeletePosition handles DELETE /api/v1/order/delete/{orderId}/position/{positionId}
func (h *OrderHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}
	positionID, ok := httputil.ParseUUID(w, chi.URLParam(r, "positionId"))
	if !ok {
		return
	}

	if err := h.service.DeletePosition(r.Context(), orderID.String(), positionID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": positionID.String(), "status": "deleted"}})
}

// DeleteOrder handles DELETE /api/v1/order/delete/{orderId}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id.String(), "status": "deleted"}})
}

// CloseOrder handles PUT /api/v1/order/close/{orderId}
func (h *OrderHandler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "orderId"))
	if !ok {
		return
	}

	result, err := h.service.CloseOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
