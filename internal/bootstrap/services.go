package bootstrap

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldops/installer-portal/config"
	redisadapter "github.com/fieldops/installer-portal/internal/adapters/redis"
	"github.com/fieldops/installer-portal/internal/data"
	"github.com/fieldops/installer-portal/internal/domain/session"
	"github.com/fieldops/installer-portal/internal/observability/metrics"
	"github.com/fieldops/installer-portal/internal/ports"
	"github.com/fieldops/installer-portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Resolver  *service.TokenResolver
	Gate      *service.RequestGate
	Auth      *service.AuthService
	Push      *service.PushSubscriptionService
	Providers AuthProviders

	Installations *service.InstallationService
	UserAdmin     *service.UserAdminService
	FieldWork     *service.FieldWorkService
	// Location renders and buckets dates; it comes from APP_TIMEZONE.
	Location *time.Location
	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Registry
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional: enables the identity cache
	Logger      *slog.Logger
}

// NewServices builds the resolver, gate and supporting services.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	providers, err := BuildAuthProviders(AuthConfig{Auth: cfg.Auth, HTTP: cfg.HTTP, Logger: logger})
	if err != nil {
		return nil, err
	}

	var reg *metrics.Registry
	if cfg.Observability.MetricsEnabled {
		reg = metrics.New()
	}

	users := data.NewUserRepo(deps.DB)
	cache := buildIdentityCache(users, deps.RedisClient, cfg.Cache, logger)
	resolver := service.NewTokenResolver(service.TokenResolverOptions{
		Provider: providers.Tokens,
		Users:    identityStore(users, cache),
		Logger:   logger,
	})

	clock := &data.RealTimeProvider{}
	gate := service.NewRequestGate(service.RequestGateOptions{
		Resolver: resolver,
		Session: service.SessionClockConfig{
			Timeouts: session.Timeouts{
				Absolute:   cfg.Session.AbsoluteTimeout(),
				Inactivity: cfg.Session.InactivityTimeout(),
			},
			Clock: clock,
		},
		Observability: service.GateObservability{Logger: logger, Metrics: gateMetrics(reg)},
	})

	loc := cfg.Location()
	work := service.WorkStores{
		Installations: data.NewInstallationRepo(deps.DB),
		Materials:     data.NewMaterialRepo(deps.DB),
	}

	return &ServiceContainer{
		Resolver: resolver,
		Gate:     gate,
		Auth: service.NewAuthService(service.AuthServiceOptions{
			Resolver: resolver,
			Tokens:   providers.Tokens,
			CodeFlow: providers.CodeFlow,
		}),
		Push: service.NewPushSubscriptionService(service.PushSubscriptionServiceOptions{
			Store:  data.NewPushSubscriptionRepo(deps.DB),
			Logger: logger,
		}),
		Providers: providers,
		Metrics:   reg,

		Installations: service.NewInstallationService(service.InstallationServiceOptions{Stores: work, Logger: logger}),
		UserAdmin: service.NewUserAdminService(service.UserAdminServiceOptions{
			Users:       users,
			Invalidator: identityInvalidator(cache),
			Logger:      logger,
		}),
		FieldWork: service.NewFieldWorkService(service.FieldWorkServiceOptions{
			Stores:   work,
			Calendar: service.WorkCalendar{Clock: clock, Location: loc},
			Logger:   logger,
		}),
		Location: loc,
	}, nil
}

// buildIdentityCache returns the Redis identity cache in front of the users
// table, or nil when no client is available or the TTL is not positive.
func buildIdentityCache(
	repo *data.UserRepo,
	client redis.UniversalClient,
	cache config.CacheConfig,
	logger *slog.Logger,
) *redisadapter.IdentityCache {
	if client == nil || cache.IdentityTTL <= 0 {
		return nil
	}
	logger.Info("identity cache enabled", "ttl", cache.IdentityTTL)
	return redisadapter.NewIdentityCache(redisadapter.IdentityCacheOptions{
		Client:   client,
		Next:     repo,
		Settings: redisadapter.CacheSettings{TTL: cache.IdentityTTL, Logger: logger},
	})
}

// identityStore picks the cache when one is configured.
//
//nolint:ireturn // the cache and the repository are interchangeable UserStores.
func identityStore(repo *data.UserRepo, cache *redisadapter.IdentityCache) ports.UserStore {
	if cache == nil {
		return repo
	}
	return cache
}

// identityInvalidator avoids handing the user admin service a typed nil.
//
//nolint:ireturn // nil must stay an untyped interface value.
func identityInvalidator(cache *redisadapter.IdentityCache) ports.IdentityInvalidator {
	if cache == nil {
		return nil
	}
	return cache
}

// gateMetrics avoids handing the gate a typed nil.
//
//nolint:ireturn // nil must stay an untyped interface value.
func gateMetrics(reg *metrics.Registry) service.GateMetrics {
	if reg == nil {
		return nil
	}
	return reg
}
