package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmapos/pharmapos/internal/platform/httpx"
	"github.com/pharmapos/pharmapos/internal/rbac"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// Handler exposes purchase order endpoints. All purchasing routes are admin
// only.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers purchasing routes under /purchase-orders.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/payments", h.paymentSummary)
		r.Post("/{id}/payments", h.recordPayment)
		r.Post("/{id}/items", h.addItem)
		r.Delete("/{id}/items/{itemID}", h.removeItem)
	})
}

type itemRequest struct {
	ProductID     int64   `json:"product_id" validate:"required,gt=0"`
	ProductUnitID int64   `json:"product_unit_id" validate:"required,gt=0"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	CostPrice     float64 `json:"cost_price" validate:"gte=0"`
	BatchNumber   string  `json:"batch_number"`
	ExpiryDate    string  `json:"expiry_date"`
}

type createOrderRequest struct {
	Code          string        `json:"code" validate:"required"`
	SupplierID    int64         `json:"supplier_id" validate:"required,gt=0"`
	OrderDate     string        `json:"order_date"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
	Notes         string        `json:"notes"`
	InitialStatus string        `json:"initial_status" validate:"omitempty,oneof=UNPAID PARTIAL PAID"`
	Items         []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required"`
	Description   string  `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateOrderInput{
		Code:          req.Code,
		SupplierID:    req.SupplierID,
		UserID:        shared.SessionFromContext(r.Context()).UserID(),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		InitialStatus: PaymentStatus(req.InitialStatus),
	}
	if req.OrderDate != "" {
		parsed, err := time.Parse("2006-01-02", req.OrderDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "order_date must be YYYY-MM-DD")
			return
		}
		input.OrderDate = parsed
	}
	for _, item := range req.Items {
		in, err := itemInputFromRequest(item)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		input.Items = append(input.Items, in)
	}

	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: PaymentStatus(q.Get("status")),
		Search: q.Get("q"),
	}
	filter.SupplierID, _ = strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if v := q.Get("from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = parsed
		}
	}
	if v := q.Get("to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = parsed
		}
	}

	orders, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_orders": orders,
		"pagination":      pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) paymentSummary(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	paid, err := h.service.TotalPaid(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	remaining, err := h.service.Remaining(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_paid": paid,
		"remaining":  remaining,
	})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	status, err := h.service.RecordPayment(r.Context(), id, PaymentInput{
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		UserID:        shared.SessionFromContext(r.Context()).UserID(),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payment_status": status})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := itemInputFromRequest(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	actor := shared.SessionFromContext(r.Context()).UserID()
	item, err := h.service.AddItem(r.Context(), id, input, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	itemID, err := idFromURL(r, "itemID")
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}

	actor := shared.SessionFromContext(r.Context()).UserID()
	if err := h.service.RemoveItem(r.Context(), id, itemID, actor); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate Code", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrOrderLocked):
		httpx.Problem(w, http.StatusConflict, "Order Locked", err.Error())
	case errors.Is(err, ErrOverpayment):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Overpayment", err.Error())
	default:
		h.logger.Error("purchasing request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func itemInputFromRequest(req itemRequest) (ItemInput, error) {
	input := ItemInput{
		ProductID:     req.ProductID,
		ProductUnitID: req.ProductUnitID,
		Quantity:      req.Quantity,
		CostPrice:     req.CostPrice,
		BatchNumber:   req.BatchNumber,
	}
	if req.ExpiryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return ItemInput{}, errors.New("expiry_date must be YYYY-MM-DD")
		}
		input.ExpiryDate = parsed
	}
	return input, nil
}

func idFromURL(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
