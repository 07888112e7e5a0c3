package vouchers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
	"github.com/gatepass-erp/gatepass-erp/internal/shared"
)

// Handler wires the voucher HTTP surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    authz.Middleware
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		guard:    guard,
		validate: validator.New(),
	}
}

// MountRoutes registers voucher routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.With(h.guard.Require("vouchers", "list", authz.LevelRead)).Get("/", h.list)
		r.With(h.guard.Require("vouchers", "search", authz.LevelRead)).Get("/search", h.search)
		r.With(h.guard.Require("vouchers", "view_statistics", authz.LevelRead)).Get("/statistics", h.statistics)
		r.With(h.guard.Require("vouchers", "enums", authz.LevelRead)).Get("/enums", h.enums)
		r.With(h.guard.Require("vouchers", "get", authz.LevelRead)).Get("/by-folio/{folio}", h.showByFolio)
		r.With(h.guard.Require("vouchers", "get", authz.LevelRead)).Get("/{id}", h.show)
		r.With(h.guard.Require("vouchers", "view_logs", authz.LevelRead)).Get("/{id}/logs", h.logs)
		r.With(h.guard.Require("vouchers", "create", authz.LevelCreate)).Post("/", h.create)
		r.With(h.guard.Require("vouchers", "update", authz.LevelUpdate)).Put("/{id}", h.update)
		r.With(h.guard.Require("vouchers", "approve", authz.LevelUpdate)).Post("/{id}/approve", h.approve)
		r.With(h.guard.Require("vouchers", "cancel", authz.LevelUpdate)).Post("/{id}/cancel", h.cancel)
		r.With(h.guard.Require("vouchers", "close", authz.LevelUpdate)).Post("/{id}/close", h.close)
		r.With(h.guard.Require("vouchers", "scan_exit", authz.LevelUpdate)).Post("/{id}/scan-exit", h.scanExit)
		r.With(h.guard.Require("vouchers", "scan_entry", authz.LevelUpdate)).Post("/{id}/scan-entry", h.scanEntry)
		r.With(h.guard.Require("vouchers", "check_overdue", authz.LevelUpdate)).Post("/check-overdue", h.checkOverdue)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	vouchers, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list vouchers", err)
		return
	}
	if vouchers == nil {
		vouchers = []Voucher{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"vouchers": vouchers,
		"total":    total,
		"page":     filters.Page,
		"limit":    filters.Limit,
	})
}

// search is the same query surface as list without pagination defaults,
// capped at fifty results.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if filters.Limit == 0 || filters.Limit > 50 {
		filters.Limit = 50
	}
	filters.Page = 1

	vouchers, _, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "search vouchers", err)
		return
	}
	if vouchers == nil {
		vouchers = []Voucher{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vouchers": vouchers})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	voucher, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) showByFolio(w http.ResponseWriter, r *http.Request) {
	voucher, err := h.service.GetByFolio(r.Context(), chi.URLParam(r, "folio"))
	if err != nil {
		h.respondError(w, "get voucher by folio", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.Logs(r.Context(), id)
	if err != nil {
		h.respondError(w, "voucher logs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form CreateForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.Create(r.Context(), form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "create voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, voucher)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form UpdateForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.Update(r.Context(), id, form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "update voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form ApproveForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.Approve(r.Context(), id, form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "approve voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form CancelForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.Cancel(r.Context(), id, form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "cancel voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	voucher, err := h.service.Close(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "close voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) scanExit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form ScanExitForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.ScanExit(r.Context(), id, form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "scan exit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) scanEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var form ScanEntryForm
	if !h.decode(w, r, &form) {
		return
	}
	voucher, err := h.service.ScanEntry(r.Context(), id, form, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "scan entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) checkOverdue(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CheckAndMarkOverdue(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "check overdue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"marked_overdue": count})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	var companyID *int64
	if raw := r.URL.Query().Get("company_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "company_id must be a positive integer")
			return
		}
		companyID = &id
	}
	stats, err := h.service.Statistics(r.Context(), companyID)
	if err != nil {
		h.respondError(w, "voucher statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) enums(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"types":               Types(),
		"statuses":            Statuses(),
		"entry_statuses":      []EntryStatus{EntryComplete, EntryIncomplete, EntryDamaged},
		"validation_statuses": []ValidationStatus{ValidationApproved, ValidationObservation},
	})
}

func filtersFromQuery(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Page:   1,
		Limit:  20,
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= 100 {
		filters.Limit = limit
	}
	if raw := q.Get("company_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ListFilters{}, errors.New("company_id must be a positive integer")
		}
		filters.CompanyID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.Status = &status
	}
	if raw := q.Get("type"); raw != "" {
		vtype, err := ParseType(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.Type = &vtype
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return ListFilters{}, errors.New("from must be a date (YYYY-MM-DD)")
		}
		filters.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return ListFilters{}, errors.New("to must be a date (YYYY-MM-DD)")
		}
		end := to.Add(24 * time.Hour)
		filters.To = &end
	}
	return filters, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.RespondError(w, err) {
		h.logger.Error(op, slog.Any("error", err))
	}
}
