package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

// Handler exposes role administration endpoints. Admin only.
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

// MountRoutes registers role routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Get("/", h.list)
		r.Get("/{name}/template", h.template)
		r.Put("/{name}/template", h.setTemplateLevel)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []authz.Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Template(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.respondError(w, "role template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

type templateForm struct {
	Entity string `json:"entity" validate:"required"`
	Action string `json:"action" validate:"required"`
	Level  int    `json:"level" validate:"min=0,max=4"`
}

func (h *Handler) setTemplateLevel(w http.ResponseWriter, r *http.Request) {
	var form templateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	level, err := authz.ParseLevel(form.Level)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	name := chi.URLParam(r, "name")
	if err := h.service.SetTemplateLevel(r.Context(), name, form.Entity, form.Action, level); err != nil {
		h.respondError(w, "set template level", err)
		return
	}
	view, err := h.service.Template(r.Context(), name)
	if err != nil {
		h.respondError(w, "role template", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.RespondError(w, err) {
		h.logger.Error(op, slog.Any("error", err))
	}
}
