package config

import "strings"

// ObservabilityConfig groups configuration that controls metrics and logging.
type ObservabilityConfig struct {
	// OpsAddr is the listener for /healthz and metrics, kept apart from the
	// application listener so health checks bypass the session gate.
	OpsAddr string `env:"OPS_ADDR" envDefault:":9090"`

	// MetricsEnabled exposes Prometheus metrics on MetricsPath.
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsPath    string `env:"METRICS_PATH"    envDefault:"/metrics"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Sanitize normalises derived fields.
func (c *ObservabilityConfig) Sanitize() {
	c.MetricsPath = strings.TrimSpace(c.MetricsPath)
	if !strings.HasPrefix(c.MetricsPath, "/") {
		c.MetricsPath = "/metrics"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.OpsAddr = strings.TrimSpace(c.OpsAddr)
}
