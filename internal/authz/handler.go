package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
	"github.com/gatepass-erp/gatepass-erp/internal/shared"
)

const (
	adminRateLimit  = 30
	adminRateWindow = time.Minute
)

// RouteLister supplies the live route set for autodiscovery requests.
type RouteLister func() []Route

// Handler exposes the permission administration surface.
type Handler struct {
	logger    *slog.Logger
	catalog   *Catalog
	scanner   *Scanner
	overrides *OverrideService
	mw        Middleware
	routes    RouteLister
	validate  *validator.Validate
}

// NewHandler builds the admin Handler.
func NewHandler(logger *slog.Logger, catalog *Catalog, scanner *Scanner, overrides *OverrideService, mw Middleware, routes RouteLister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		catalog:   catalog,
		scanner:   scanner,
		overrides: overrides,
		mw:        mw,
		routes:    routes,
		validate:  validator.New(),
	}
}

// MountRoutes registers the admin permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(adminRateLimit, adminRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
		}),
	)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAdmin)

		r.Get("/permissions", h.listPermissions)
		r.Get("/permissions/levels", h.listLevels)
		r.Post("/permissions/autodiscover", h.autodiscover)

		r.Get("/user-permissions/user/{userID}", h.listForUser)
		r.Get("/user-permissions/user/{userID}/effective", h.effectiveView)

		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/user-permissions/grant/{userID}", h.grant)
			r.Delete("/user-permissions/{id}", h.revoke)
			r.Patch("/user-permissions/{id}/extend", h.extend)
			r.Post("/user-permissions/cleanup-expired", h.cleanupExpired)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if userID := shared.UserIDFromContext(r.Context()); userID != 0 {
		return "user:" + strconv.FormatInt(userID, 10), nil
	}
	return r.RemoteAddr, nil
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	if entity := r.URL.Query().Get("entity"); entity != "" {
		perms, err := h.catalog.FindByEntity(r.Context(), entity)
		if err != nil {
			h.respondError(w, "list permissions by entity", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
		return
	}

	perms, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) listLevels(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"levels": Levels()})
}

type autodiscoverRequest struct {
	DryRun bool `json:"dry_run"`
}

func (h *Handler) autodiscover(w http.ResponseWriter, r *http.Request) {
	var req autodiscoverRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
	}

	routes := h.routes()
	var (
		diff Diff
		err  error
	)
	if req.DryRun {
		diff, err = h.scanner.DryRun(r.Context(), routes)
	} else {
		diff, err = h.scanner.Apply(r.Context(), routes)
	}
	if err != nil {
		h.respondError(w, "autodiscover", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"dry_run":      req.DryRun,
		"to_add":       diff.ToAdd,
		"stale":        diff.Stale,
		"unclassified": diff.Unclassified,
		"existing":     diff.Existing,
	})
}

type grantRequest struct {
	Entity string `json:"entity" validate:"required"`
	Action string `json:"action" validate:"required"`
	Level  int    `json:"level" validate:"min=0,max=4"`
	Hours  int    `json:"hours" validate:"min=0"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	level, err := ParseLevel(req.Level)
	if err != nil {
		h.respondError(w, "grant", err)
		return
	}

	override, err := h.overrides.Grant(r.Context(), GrantRequest{
		UserID:    userID,
		Entity:    req.Entity,
		Action:    req.Action,
		Level:     level,
		GrantedBy: shared.UserIDFromContext(r.Context()),
		Reason:    req.Reason,
		TTL:       time.Duration(req.Hours) * time.Hour,
	})
	if err != nil {
		h.respondError(w, "grant override", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, override)
}

type revokeRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	overrideID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req revokeRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
	}

	override, err := h.overrides.Revoke(r.Context(), overrideID, shared.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.respondError(w, "revoke override", err)
		return
	}
	httpx.JSON(w, http.StatusOK, override)
}

type extendRequest struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

func (h *Handler) extend(w http.ResponseWriter, r *http.Request) {
	overrideID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req extendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	override, err := h.overrides.Extend(r.Context(), overrideID, req.ExpiresAt)
	if err != nil {
		h.respondError(w, "extend override", err)
		return
	}
	httpx.JSON(w, http.StatusOK, override)
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	activeOnly := r.URL.Query().Get("active_only") != "false"

	overrides, err := h.overrides.ListForUser(r.Context(), userID, activeOnly)
	if err != nil {
		h.respondError(w, "list overrides", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

func (h *Handler) effectiveView(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	view, err := h.overrides.EffectiveViewFor(r.Context(), userID)
	if err != nil {
		h.respondError(w, "effective view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) cleanupExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.overrides.CleanupExpired(r.Context())
	if err != nil {
		h.respondError(w, "cleanup expired", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deactivated": count})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if !httpx.RespondError(w, err) {
		h.logger.Error(op, slog.Any("error", err))
	}
}
