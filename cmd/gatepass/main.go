package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatepass-erp/gatepass-erp/internal/app"
	"github.com/gatepass-erp/gatepass-erp/internal/auth"
	"github.com/gatepass-erp/gatepass-erp/internal/authz"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/branches"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/companies"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/countries"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/individuals"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/products"
	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/states"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/cache"
	"github.com/gatepass-erp/gatepass-erp/internal/platform/db"
	"github.com/gatepass-erp/gatepass-erp/internal/roles"
	"github.com/gatepass-erp/gatepass-erp/internal/seed"
	"github.com/gatepass-erp/gatepass-erp/internal/shared"
	"github.com/gatepass-erp/gatepass-erp/internal/users"
	"github.com/gatepass-erp/gatepass-erp/internal/vouchers"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	authzStore := authz.NewStore(pool)
	levelCache := authz.NewLevelCache(redisClient, cfg.AuthzCacheTTL)
	catalog := authz.NewCatalog(authzStore, logger)
	scanner := authz.NewScanner(catalog, logger, "/healthz", "/auth")
	resolver := authz.NewResolver(authzStore, levelCache, logger)

	policy := authz.BuiltinPolicy()
	if cfg.AuthzPolicyFile != "" {
		policy, err = authz.LoadPolicy(cfg.AuthzPolicyFile)
		if err != nil {
			logger.Error("load role policy", slog.String("path", cfg.AuthzPolicyFile), slog.Any("error", err))
			os.Exit(1)
		}
	}
	propagator := authz.NewPropagator(authzStore, policy, levelCache, logger)
	catalog.Subscribe(propagator)

	overrideService := authz.NewOverrideService(authzStore, catalog, resolver, levelCache, logger)
	guard := authz.Middleware{Resolver: resolver, Store: authzStore, Logger: logger}

	rolesService := roles.NewService(authzStore, levelCache)
	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rolesService)

	authService := auth.NewService(usersService)

	companiesService := companies.NewService(companies.NewRepository(pool))
	branchesService := branches.NewService(branches.NewRepository(pool))
	countriesService := countries.NewService(countries.NewRepository(pool))
	statesService := states.NewService(states.NewRepository(pool))
	productsService := products.NewService(products.NewRepository(pool))
	individualsService := individuals.NewService(individuals.NewRepository(pool), usersService)

	vouchersService := vouchers.NewService(vouchers.NewRepository(pool), companiesService, productsService, logger)

	var router chi.Router
	authzHandler := authz.NewHandler(logger, catalog, scanner, overrideService, guard, func() []authz.Route {
		return app.Routes(router)
	})

	router = app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        auth.NewHandler(logger, authService, usersService),
		AuthzHandler:       authzHandler,
		UsersHandler:       users.NewHandler(logger, usersService, guard),
		RolesHandler:       roles.NewHandler(logger, rolesService, guard),
		CompaniesHandler:   companies.NewHandler(logger, companiesService, guard),
		BranchesHandler:    branches.NewHandler(logger, branchesService, guard),
		CountriesHandler:   countries.NewHandler(logger, countriesService, guard),
		StatesHandler:      states.NewHandler(logger, statesService, guard),
		ProductsHandler:    products.NewHandler(logger, productsService, guard),
		IndividualsHandler: individuals.NewHandler(logger, individualsService, guard),
		VouchersHandler:    vouchers.NewHandler(logger, vouchersService, guard),
	})

	seeder := seed.New(authzStore, usersService, logger)
	if err := seeder.Run(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		logger.Error("seed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := app.SyncPermissions(ctx, logger, router, scanner, propagator); err != nil {
		logger.Error("sync permissions", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
