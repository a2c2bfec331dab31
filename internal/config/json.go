package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/identitystore/internal/flagx"
	"github.com/dmitrijs2005/identitystore/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON config
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "5s" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN    string         `json:"database_dsn"`
	MigrateOnStart bool           `json:"migrate_on_start"`
	NormalizeUpper bool           `json:"normalize_upper"`
	OpTimeout      timex.Duration `json:"op_timeout"`
	LogLevel       string         `json:"log_level"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable or
// malformed file panics, matching flag-parse failures.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.MigrateOnStart = c.MigrateOnStart
	config.NormalizeUpper = c.NormalizeUpper
	config.OpTimeout = time.Duration(c.OpTimeout.Duration)
	config.LogLevel = c.LogLevel
}
