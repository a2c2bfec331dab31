package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrijs2005/identitystore/internal/cli"
	"github.com/dmitrijs2005/identitystore/internal/config"
	"github.com/dmitrijs2005/identitystore/internal/identity"
	"github.com/dmitrijs2005/identitystore/internal/logging"
	"github.com/dmitrijs2005/identitystore/internal/store"
	"github.com/dmitrijs2005/identitystore/internal/store/postgres"
)

// configFlags lists the flags consumed by the config package; everything
// else on the command line is treated as the subcommand and its arguments.
var configFlags = map[string]bool{
	"-d": true, "-t": true, "-l": true, "-c": true, "-config": true,
}

// boolean flags carry no separate value argument
var boolFlags = map[string]bool{"-m": true, "-n": true}

func commandArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			name := strings.SplitN(arg, "=", 2)[0]
			if configFlags[name] && !strings.Contains(arg, "=") {
				i++ // skip the flag's value
			}
			if configFlags[name] || boolFlags[name] {
				continue
			}
		}
		out = append(out, arg)
	}
	return out
}

func newLogger(level string) logging.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	return logging.NewSlogLogger(slog.New(h))
}

func run(ctx context.Context) error {
	cfg := config.LoadConfig()
	logger := newLogger(cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		logger.Info(ctx, "running migrations")
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migration error: %w", err)
		}
	}

	var normalizer identity.Normalizer = identity.PassthroughNormalizer{}
	if cfg.NormalizeUpper {
		normalizer = identity.UpperInvariantNormalizer{}
	}

	base := store.New(postgres.New(db), normalizer)
	defer base.Dispose()
	users := store.NewStandardStore(base)

	app := cli.NewApp(users, logger, os.Stdin, os.Stdout, cfg.OpTimeout)
	return app.Run(ctx, commandArgs(os.Args[1:]))
}

func main() {
	if err := run(context.Background()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
