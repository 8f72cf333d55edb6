package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldops/installer-portal/config"
	httpx "github.com/fieldops/installer-portal/internal/http"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP listeners.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// BuildHandler assembles the application router behind the session gate.
func BuildHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{
		Logger:   logger,
		Location: cfg.Services.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	svc := cfg.Services
	services := httpx.RouterServices{
		Gate:     svc.Gate,
		Auth:     svc.Auth,
		Tokens:   svc.Auth,
		Push:     svc.Push,
		Renderer: renderer,
		Work: httpx.WorkServices{
			Installations: svc.Installations,
			Users:         svc.UserAdmin,
			FieldWork:     svc.FieldWork,
		},
		Cookies: httpx.CookieSettings{
			Domain: cfg.Config.HTTP.CookieDomain,
			Secure: cfg.Config.IsProduction(),
		},
		SignInURL:   svc.Providers.SignInURL,
		CallbackURL: svc.Providers.CallbackURL,
		Logger:      logger,
	}
	if svc.Metrics != nil {
		services.Observer = svc.Metrics
	}
	return httpx.NewRouter(services), nil
}

// BuildOpsHandler serves health and metrics.
func BuildOpsHandler(cfg *config.AppConfig, services *ServiceContainer, db *sql.DB) http.Handler {
	ops := httpx.OpsServices{MetricsPath: cfg.Observability.MetricsPath}
	if services.Metrics != nil {
		ops.Metrics = services.Metrics.Handler()
	}
	if db != nil {
		ops.HealthCheckers = append(ops.HealthCheckers, db)
	}
	return httpx.NewOpsRouter(ops)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServiceOrchestrationConfig groups what RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves the application and ops listeners until
// SIGINT or SIGTERM, then drains both.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := BuildHandler(&HTTPServerConfig{Config: cfg.Config, Services: cfg.Services, Logger: logger})
	if err != nil {
		return err
	}

	servers := []*http.Server{newServer(cfg.Config.HTTP.Addr, handler)}
	if addr := cfg.Config.Observability.OpsAddr; addr != "" {
		servers = append(servers, newServer(addr, BuildOpsHandler(cfg.Config, cfg.Services, cfg.DB)))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		group.Go(func() error {
			logger.InfoContext(gctx, "starting HTTP server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("HTTP servers stopped")
	return nil
}
