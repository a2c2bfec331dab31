package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/identitystore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-m          run schema migrations on start
//	-n          upper-case lookup normalization (default true)
//	-t int      per-operation timeout, seconds
//	-l string   log level (debug, info, warn, error)
//
// os.Args is first filtered to only the flags handled here using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-m", "-n", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.MigrateOnStart, "m", config.MigrateOnStart, "run migrations on start")
	fs.BoolVar(&config.NormalizeUpper, "n", config.NormalizeUpper, "upper-case lookup normalization")
	opTimeout := fs.Int("t", int(config.OpTimeout.Seconds()), "operation timeout (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.OpTimeout = time.Duration(*opTimeout) * time.Second
}
