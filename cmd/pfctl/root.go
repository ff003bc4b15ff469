package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/simaogato/portfolio-engine/internal/adapter/repository/memory"
	"github.com/simaogato/portfolio-engine/internal/adapter/repository/postgres"
	"github.com/simaogato/portfolio-engine/internal/app"
	"github.com/simaogato/portfolio-engine/internal/config"
	"github.com/simaogato/portfolio-engine/internal/domain"
	"github.com/simaogato/portfolio-engine/internal/logger"
)

// session is an opened service graph for a single command run
type session struct {
	App *app.App
	DB  *postgres.DB // nil on the in-memory store

	closeFn func()
}

func (s *session) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// opener builds a session from the global flags
type opener func(ctx context.Context, c *cli) (*session, error)

// cli holds the global flags shared by every command
type cli struct {
	memory   bool
	logLevel string

	open opener
	now  func() time.Time
}

var errNeedsDatabase = errors.New("this command needs a database; drop --memory")

func cmdName() string {
	return filepath.Base(os.Args[0])
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open, now: time.Now}

	root := &cobra.Command{
		Use:   cmdName(),
		Short: "Portfolio engine operator tool",
		Long: `An operator tool for the portfolio engine.

It runs migrations, materializes position snapshots, processes corporate
actions, rebuilds tax lots and prints positions and PnL summaries.

Connection settings are read from the environment (DB_CONN_STR or DB_*),
optionally through a .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&c.memory, "memory", false, "use an empty in-memory store instead of PostgreSQL")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); defaults to LOG_LEVEL")

	root.AddCommand(
		newMigrateCmd(c),
		newSnapshotCmd(c),
		newActionCmd(c),
		newLotsCmd(c),
		newPositionsCmd(c),
		newPnlCmd(c),
	)
	return root
}

// run opens a session, runs fn and closes the session
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// today is the UTC date of the CLI clock
func (c *cli) today() time.Time {
	return domain.DateOf(c.now())
}

// openSession connects to PostgreSQL, or builds an empty in-memory store with --memory
func openSession(ctx context.Context, c *cli) (*session, error) {
	// 1. Configuration and logger; logs go to stderr so tables stay clean
	cfg := config.Load()
	level := c.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	log := logger.NewWithWriter(os.Stderr, level)

	opts := app.Options{UseSnapshots: cfg.UseSnapshots}

	// 2. Storage
	if c.memory {
		log.Warn("Using the in-memory store; nothing is persisted")
		return &session{App: app.New(memory.NewStore().Repositories(), opts)}, nil
	}

	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &session{
		App: app.New(db.Repositories(), opts),
		DB:  db,
		closeFn: func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close database", "error", err)
			}
		},
	}, nil
}

// parseIDFlag reads a required UUID flag
func parseIDFlag(cmd *cobra.Command, name string) (uuid.UUID, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return uuid.Nil, err
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return id, nil
}

// parseDateFlag reads an optional YYYY-MM-DD flag, returning fallback when unset
func parseDateFlag(cmd *cobra.Command, name string, fallback time.Time) (time.Time, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return fallback, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}
