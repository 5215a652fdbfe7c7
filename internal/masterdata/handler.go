package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmapos/pharmapos/internal/platform/httpx"
	"github.com/pharmapos/pharmapos/internal/rbac"
)

// Handler exposes master data CRUD endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers master data routes. Reads are open to all staff,
// writes are admin only.
func (h *Handler) MountRoutes(r chi.Router) {
	mount := func(r chi.Router, path string, res resource) {
		r.Route(path, func(r chi.Router) {
			r.Group(func(gr chi.Router) {
				gr.Use(h.rbac.RequireRole(rbac.RoleAdmin, rbac.RoleCashier))
				gr.Get("/", res.list)
				gr.Get("/{id}", res.get)
			})
			r.Group(func(gr chi.Router) {
				gr.Use(h.rbac.RequireRole(rbac.RoleAdmin))
				gr.Post("/", res.create)
				gr.Put("/{id}", res.update)
				gr.Delete("/{id}", res.del)
			})
		})
	}

	mount(r, "/categories", h.categoryResource())
	mount(r, "/units", h.unitResource())
	mount(r, "/suppliers", h.supplierResource())
	mount(r, "/compartments", h.compartmentResource())
	mount(r, "/usage-routes", h.usageRouteResource())
}

// resource bundles the five CRUD handlers each master data entity shares.
type resource struct {
	list   http.HandlerFunc
	get    http.HandlerFunc
	create http.HandlerFunc
	update http.HandlerFunc
	del    http.HandlerFunc
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrValidation) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

func filtersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("per_page"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 25
	}
	return ListFilters{Page: page, Limit: limit, Search: q.Get("q")}
}

func idFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) categoryResource() resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			items, total, err := h.service.ListCategories(r.Context(), filtersFromQuery(r))
			if err != nil {
				h.logger.Error("list categories", slog.Any("error", err))
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"categories": items, "total": total})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			item, err := h.service.GetCategory(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, item)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var payload Category
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			item, err := h.service.CreateCategory(r.Context(), payload)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusCreated, item)
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			var payload Category
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			if err := h.service.UpdateCategory(r.Context(), id, payload); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
		del: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			if err := h.service.DeleteCategory(r.Context(), id); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

func (h *Handler) unitResource() resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			items, total, err := h.service.ListUnits(r.Context(), filtersFromQuery(r))
			if err != nil {
				h.logger.Error("list units", slog.Any("error", err))
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"units": items, "total": total})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			item, err := h.service.GetUnit(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, item)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var payload Unit
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			item, err := h.service.CreateUnit(r.Context(), payload)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusCreated, item)
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			var payload Unit
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			if err := h.service.UpdateUnit(r.Context(), id, payload); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
		del: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			if err := h.service.DeleteUnit(r.Context(), id); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

func (h *Handler) supplierResource() resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			items, total, err := h.service.ListSuppliers(r.Context(), filtersFromQuery(r))
			if err != nil {
				h.logger.Error("list suppliers", slog.Any("error", err))
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": items, "total": total})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			item, err := h.service.GetSupplier(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, item)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var payload Supplier
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			item, err := h.service.CreateSupplier(r.Context(), payload)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusCreated, item)
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			var payload Supplier
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			if err := h.service.UpdateSupplier(r.Context(), id, payload); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
		del: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

func (h *Handler) compartmentResource() resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			items, total, err := h.service.ListCompartments(r.Context(), filtersFromQuery(r))
			if err != nil {
				h.logger.Error("list compartments", slog.Any("error", err))
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"compartments": items, "total": total})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			item, err := h.service.GetCompartment(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, item)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var payload Compartment
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			item, err := h.service.CreateCompartment(r.Context(), payload)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusCreated, item)
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			var payload Compartment
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			if err := h.service.UpdateCompartment(r.Context(), id, payload); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
		del: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			if err := h.service.DeleteCompartment(r.Context(), id); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

func (h *Handler) usageRouteResource() resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			items, total, err := h.service.ListUsageRoutes(r.Context(), filtersFromQuery(r))
			if err != nil {
				h.logger.Error("list usage routes", slog.Any("error", err))
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"usage_routes": items, "total": total})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			item, err := h.service.GetUsageRoute(r.Context(), id)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, item)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var payload UsageRoute
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			item, err := h.service.CreateUsageRoute(r.Context(), payload)
			if err != nil {
				h.respondError(w, err)
				return
			}
			httpx.JSON(w, http.StatusCreated, item)
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			var payload UsageRoute
			if err := httpx.DecodeJSON(r, &payload); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
				return
			}
			if err := h.service.UpdateUsageRoute(r.Context(), id, payload); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
		del: func(w http.ResponseWriter, r *http.Request) {
			id, err := idFromURL(r)
			if err != nil {
				httpx.RespondError(w, httpx.ErrNotFound)
				return
			}
			if err := h.service.DeleteUsageRoute(r.Context(), id); err != nil {
				h.respondError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}
