package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gatepass-erp/gatepass-erp/internal/auth"
	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/branches"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/companies"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/countries"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/individuals"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/products"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/states"
	"github.com/gatepass-erp/gatepass-erp/internal/roles"
	"github.com/gatepass-erp/gatepass-erp/internal/shared"
	"github.com/gatepass-erp/gatepass-erp/internal/users"
	"github.com/gatepass-erp/gatepass-erp/internal/vouchers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler        *auth.Handler
	AuthzHandler       *authz.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	CompaniesHandler   *companies.Handler
	BranchesHandler    *branches.Handler
	CountriesHandler   *countries.Handler
	StatesHandler      *states.Handler
	ProductsHandler    *products.Handler
	IndividualsHandler *individuals.Handler
	VouchersHandler    *vouchers.Handler
}

// NewRouter constructs the chi router with the Gatepass defaults.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	params.AuthHandler.MountRoutes(r)
	params.AuthzHandler.MountRoutes(r)
	params.UsersHandler.MountRoutes(r)
	params.RolesHandler.MountRoutes(r)
	params.CompaniesHandler.MountRoutes(r)
	params.BranchesHandler.MountRoutes(r)
	params.CountriesHandler.MountRoutes(r)
	params.StatesHandler.MountRoutes(r)
	params.ProductsHandler.MountRoutes(r)
	params.IndividualsHandler.MountRoutes(r)
	params.VouchersHandler.MountRoutes(r)

	return r
}

// Routes walks the mounted router and flattens it into the scanner's
// input shape.
func Routes(r chi.Routes) []authz.Route {
	var routes []authz.Route
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, authz.Route{Method: method, Path: route})
		return nil
	})
	return routes
}

// SyncPermissions runs endpoint autodiscovery against the mounted
// router and backfills role templates for whatever it registered.
// Called once at startup, after seeding.
func SyncPermissions(ctx context.Context, logger *slog.Logger, router chi.Router, scanner *authz.Scanner, propagator *authz.Propagator) error {
	diff, err := scanner.Apply(ctx, Routes(router))
	if err != nil {
		return err
	}
	logger.Info("permission autodiscovery",
		slog.Int("registered", len(diff.ToAdd)),
		slog.Int("existing", diff.Existing),
		slog.Int("stale", len(diff.Stale)),
		slog.Int("unclassified", len(diff.Unclassified)))

	filled, err := propagator.Backfill(ctx)
	if err != nil {
		return err
	}
	if filled > 0 {
		logger.Info("role templates backfilled", slog.Int("entries", filled))
	}
	return nil
}
