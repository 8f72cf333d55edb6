package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"postgres"`
	Password string `env:"PASSWORD"                envDefault:"postgres"`
	Name     string `env:"NAME"                    envDefault:"postgres"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'require' against hosted Postgres
	// RunMigrationsOnStart controls whether the application applies the embedded schema during startup.
	// Off by default: the hosted database usually owns the schema.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"false"`
}

// RedisConfig contains Redis configuration for the identity cache.
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED"  envDefault:"false"`
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
	// ClusterNodes switches to a cluster client when non-empty.
	ClusterNodes []string `env:"CLUSTER_NODES" envSeparator:","`
}

// CacheConfig controls caching of identity records.
type CacheConfig struct {
	// IdentityTTL is how long a resolved identity is reused before the
	// users table is consulted again.
	IdentityTTL time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"60s"`
}

// Sanitize clamps the identity TTL to a sane range.
func (c *CacheConfig) Sanitize() {
	if c.IdentityTTL < 0 {
		c.IdentityTTL = 0
	}
	if c.IdentityTTL > 10*time.Minute {
		c.IdentityTTL = 10 * time.Minute
	}
}
