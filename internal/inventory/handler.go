package inventory

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

// Handler manages inventory endpoints.
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

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin, rbac.RoleCashier))
		r.Get("/lots", h.listLots)
		r.Get("/products/{id}/total", h.showTotal)
		r.Get("/near-expiry", h.listNearExpiry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Post("/receipts", h.createReceipt)
		r.Get("/low-stock", h.listLowStock)
	})
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	filter := LotFilter{IncludeEmpty: r.URL.Query().Get("include_empty") == "true"}
	filter.ProductID, _ = strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	filter.ProductUnitID, _ = strconv.ParseInt(r.URL.Query().Get("product_unit_id"), 10, 64)
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	lots, pagination, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		h.logger.Error("list lots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots, "pagination": pagination})
}

func (h *Handler) showTotal(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	total, err := h.service.TotalQuantity(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "base_quantity": total})
}

type receiptRequest struct {
	ProductID     int64   `json:"product_id" validate:"required,gt=0"`
	ProductUnitID int64   `json:"product_unit_id" validate:"required,gt=0"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	BatchNumber   string  `json:"batch_number"`
	ExpiryDate    string  `json:"expiry_date"`
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var expiry time.Time
	if req.ExpiryDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
			return
		}
		expiry = parsed
	}

	lot, err := h.service.Receive(r.Context(), ReceiveInput{
		ProductID:     req.ProductID,
		ProductUnitID: req.ProductUnitID,
		Quantity:      req.Quantity,
		BatchNumber:   req.BatchNumber,
		ExpiryDate:    expiry,
	}, shared.SessionFromContext(r.Context()).UserID())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) listNearExpiry(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 90
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	lots, err := h.service.ListExpiring(r.Context(), time.Duration(days)*24*time.Hour, limit)
	if err != nil {
		h.logger.Error("list near expiry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListLowStock(r.Context(), limit)
	if err != nil {
		h.logger.Error("list low stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrLotNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
