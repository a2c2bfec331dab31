package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays configuration values from IDSTORE_-prefixed environment
// variables (IDSTORE_DATABASE_DSN, IDSTORE_MIGRATE_ON_START, ...). Only
// variables that are actually set override earlier layers.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: "IDSTORE_"}); err != nil {
		panic(err)
	}
}
