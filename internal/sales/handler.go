package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmapos/pharmapos/internal/inventory"
	"github.com/pharmapos/pharmapos/internal/platform/httpx"
	"github.com/pharmapos/pharmapos/internal/rbac"
	"github.com/pharmapos/pharmapos/internal/shared"
)

// Handler exposes the sales endpoints.
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

// MountRoutes registers sales routes under /invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Group(func(gr chi.Router) {
			gr.Use(h.rbac.RequireRole(rbac.RoleAdmin, rbac.RoleCashier))
			gr.Post("/", h.create)
			gr.Get("/", h.list)
			gr.Get("/{id}", h.get)
		})
		r.Group(func(gr chi.Router) {
			gr.Use(h.rbac.RequireRole(rbac.RoleAdmin))
			gr.Post("/{id}/cancel", h.cancel)
		})
	})
}

type lineRequest struct {
	ProductID     int64   `json:"product_id" validate:"required,gt=0"`
	ProductUnitID int64   `json:"product_unit_id" validate:"required,gt=0"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice     float64 `json:"unit_price" validate:"gte=0"`
	LotID         int64   `json:"lot_id"`
	BatchNumber   string  `json:"batch_number"`
	ExpiryDate    string  `json:"expiry_date"`
}

type createInvoiceRequest struct {
	Code          string        `json:"code" validate:"required"`
	CustomerName  string        `json:"customer_name"`
	CustomerPhone string        `json:"customer_phone"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
	Discount      float64       `json:"discount" validate:"gte=0"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInvoiceInput{
		Code:          req.Code,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		UserID:        shared.SessionFromContext(r.Context()).UserID(),
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
	}
	for _, line := range req.Lines {
		var expiry time.Time
		if line.ExpiryDate != "" {
			parsed, err := time.Parse("2006-01-02", line.ExpiryDate)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
				return
			}
			expiry = parsed
		}
		input.Lines = append(input.Lines, Line{
			ProductID:     line.ProductID,
			ProductUnitID: line.ProductUnitID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LotID:         line.LotID,
			BatchNumber:   line.BatchNumber,
			ExpiryDate:    expiry,
		})
	}

	invoice, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status: InvoiceStatus(q.Get("status")),
		Search: q.Get("q"),
	}
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

	invoices, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   invoices,
		"pagination": pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	invoice, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	actor := shared.SessionFromContext(r.Context()).UserID()
	if err := h.service.CancelInvoice(r.Context(), id, actor); err != nil {
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
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotCancellable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, inventory.ErrLotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Lot Not Found", err.Error())
	default:
		h.logger.Error("sales request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
