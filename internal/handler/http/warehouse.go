package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dpedwards/webstore/internal/domain"
	"github.com/dpedwards/webstore/internal/service"
	"github.com/dpedwards/webstore/pkg/httputil"
	"github.com/dpedwards/webstore/pkg/validator"
)

// WarehouseHandler handles HTTP requests for warehouse and stock endpoints.
type WarehouseHandler struct {
	service *service.WarehouseService
	logger  *slog.Logger
}

// NewWarehouseHandler creates a new warehouse HTTP handler.
func NewWarehouseHandler(svc *service.WarehouseService, logger *slog.Logger) *WarehouseHandler {
	return &WarehouseHandler{
		service: svc,
		logger:  logger,
	}
}

// QuantityRequest is the body of the add and reduce endpoints. A bare JSON
// integer is accepted as well.
type QuantityRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

// decodeQuantity reads either {"quantity": n} or n. On failure it writes a
// 400 and returns false.
func decodeQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	var raw json.RawMessage
	if !httputil.DecodeJSON(w, r, &raw) {
		return 0, false
	}

	var req QuantityRequest
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &req); err != nil {
			httputil.WriteValidationError(w, err)
			return 0, false
		}
	} else if err := json.Unmarshal(raw, &req.Quantity); err != nil {
		httputil.WriteValidationError(w, err)
		return 0, false
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return 0, false
	}
	return req.Quantity, true
}

// ListWarehouses handles GET /api/v1/warehouse/all
func (h *WarehouseHandler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if warehouses == nil {
		warehouses = []domain.Warehouse{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: warehouses})
}

// GetWarehouse handles GET /api/v1/warehouse/{warehouseNumber}
func (h *WarehouseHandler) GetWarehouse(w http.ResponseWriter, r *http.Request) {
	number, ok := httputil.ParsePositiveInt(w, chi.URLParam(r, "warehouseNumber"))
	if !ok {
		return
	}

	warehouse, err := h.service.GetWarehouse(r.Context(), number)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: warehouse})
}

// AddProductQuantity handles POST /api/v1/warehouse/add/product/{productId}/warehouse/{warehouseNumber}
func (h *WarehouseHandler) AddProductQuantity(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, h.service.AddProductQuantity)
}

// ReduceProductQuantity handles POST /api/v1/warehouse/reduce/product/{productId}/warehouse/{warehouseNumber}
func (h *WarehouseHandler) ReduceProductQuantity(w http.ResponseWriter, r *http.Request) {
	h.changeQuantity(w, r, h.service.ReduceProductQuantity)
}

type quantityFunc = func(ctx context.Context, productID string, warehouseID, quantity int) (*domain.StockChange, error)

func (h *WarehouseHandler) changeQuantity(w http.ResponseWriter, r *http.Request, apply quantityFunc) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	number, ok := httputil.ParsePositiveInt(w, chi.URLParam(r, "warehouseNumber"))
	if !ok {
		return
	}
	quantity, ok := decodeQuantity(w, r)
	if !ok {
		return
	}

	change, err := apply(r.Context(), productID.String(), number, quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: change})
}

// TotalProductQuantity handles GET /api/v1/warehouse/product/{productId}/total
func (h *WarehouseHandler) TotalProductQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	total, err := h.service.TotalProductQuantity(r.Context(), productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: total})
}
