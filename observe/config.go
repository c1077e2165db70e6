package observe

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "ASYNCQUERY_"

// LoadConfig reads an observer Config from the environment.
//
// Recognized variables (all prefixed with EnvPrefix):
//
//	SERVICE_NAME, SERVICE_VERSION
//	TRACING_ENABLED, TRACING_EXPORTER, TRACING_SAMPLE_PCT
//	METRICS_ENABLED, METRICS_EXPORTER
//	LOG_ENABLED, LOG_LEVEL
//
// The returned config is validated.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
