package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"city-planner/backend/internal/api"
	"city-planner/backend/internal/auth"
	"city-planner/backend/internal/cache"
	"city-planner/backend/internal/config"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/logging"
	"city-planner/backend/internal/mcp"
	"city-planner/backend/internal/planner"
	"city-planner/backend/internal/providers"
	"city-planner/backend/internal/ratelimit"
	"city-planner/backend/internal/tls"
	"city-planner/backend/internal/validation"
)

const serviceName = "city-planner"

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "city-planner",
	Short: "Travel planning service with cached, rate-limited provider lookups",
	Long: `city-planner plans city visits and multi-destination trips.

Provider lookups go through a shared cache and per-caller rate limits, and
fall back to reference data when live providers are unavailable. The service
is exposed over REST and MCP, and plans can also be produced from the command
line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to .env file")
	rootCmd.AddCommand(serveCmd, planCmd, tripCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired planning core shared by every command.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	planner *planner.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format).With("service", serviceName)
	logger.Info("Configuration loaded",
		"cache_backend", cfg.Cache.Backend,
		"ratelimit_tier", cfg.RateLimit.Tier,
		"openweather_configured", cfg.Providers.OpenWeather.APIKey != "",
		"amadeus_configured", cfg.Providers.Amadeus.APIKey != "",
	)

	store := cache.OpenStore(ctx, cfg.Cache.Backend, cfg.CacheDSN(), cfg.Cache.KeyPrefix, logger)
	c := cache.New(store, cache.WithLogger(logger))

	limiter := ratelimit.New(
		ratelimit.WithTier(ratelimit.ParseTier(cfg.RateLimit.Tier)),
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithClassLimits(cfg.RateLimit.ClassLimits),
		ratelimit.WithLogger(logger),
	)

	catalog, err := providers.LoadCatalog()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}

	timeout := cfg.Providers.Timeout
	amadeus := providers.NewAmadeusClient(ctx,
		cfg.Providers.Amadeus.APIKey, cfg.Providers.Amadeus.APISecret, cfg.Providers.Amadeus.BaseURL,
		timeout, catalog, c)

	adapter := fetch.NewAdapter(c, limiter, fetch.WithTimeout(timeout), fetch.WithLogger(logger))
	svc, err := planner.New(adapter, catalog, planner.Providers{
		Facts:   providers.NewWikipediaClient(cfg.Providers.Wikipedia.BaseURL, timeout),
		Weather: providers.NewOpenWeatherClient(cfg.Providers.OpenWeather.APIKey, cfg.Providers.OpenWeather.BaseURL, timeout),
		Flights: amadeus,
		Hotels:  amadeus,
		Rates:   providers.NewExchangeRateClient(cfg.Providers.ExchangeRate.BaseURL, timeout),
		Search:  providers.NewDuckDuckGoClient(cfg.Providers.DuckDuckGo.BaseURL, timeout),
	},
		planner.WithLogger(logger),
		planner.WithFanOutLimit(cfg.Planner.FanOutLimit),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build planner: %w", err)
	}

	return &app{cfg: cfg, logger: logger, cache: c, limiter: limiter, planner: svc}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close error", "error", err)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API and MCP endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	logger.Info("Starting City Planner service")

	a.cache.StartSweeper(ctx, cfg.Cache.SweepInterval)
	a.limiter.StartSweeper(ctx, cfg.RateLimit.SweepInterval)

	validator, err := validation.New()
	if err != nil {
		return fmt.Errorf("failed to compile schemas: %w", err)
	}

	var verifier auth.Verifier
	if cfg.Auth.Issuer != "" {
		v, err := auth.New(ctx, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
		verifier = v
		logger.Info("Bearer token verification enabled", "issuer", cfg.Auth.Issuer)
	} else {
		logger.Warn("auth.issuer is not set; admin routes are disabled and every caller is identified by address")
	}

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))

	// Mount REST API handlers
	apiHandler := api.NewHandler(a.planner, a.cache, a.limiter, validator, logger)
	api.RegisterRoutes(e, apiHandler, verifier)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(a.planner, a.limiter, logger)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		generated, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			serverErrors <- err
			return
		}
		if generated {
			logger.Warn("generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
	return nil
}
