package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"timeline_sync/internal/api"
	"timeline_sync/internal/domain"
	"timeline_sync/internal/scheduler"
	"timeline_sync/internal/service"
	"timeline_sync/internal/storage/postgres"
)

type globalOptions struct {
	Config string `short:"c" long:"config" env:"TIMELINE_CONFIG" default:"config.yaml" description:"Path to the YAML config file"`
}

var opts globalOptions

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	mustAdd(parser, "sync", "Sync sources into their stores", "Fetch new activity from every enabled source, then publish the timeline.", &syncCommand{})
	mustAdd(parser, "publish", "Publish the timeline", "Classify and merge every store and write the JSON and RSS documents.", &publishCommand{})
	mustAdd(parser, "serve", "Serve the published timeline", "Run the HTTP server for the published documents.", &serveCommand{})
	mustAdd(parser, "migrate", "Apply database migrations", "Create or upgrade the Postgres sync state schema.", &migrateCommand{})
	mustAdd(parser, "status", "Show per-source sync state", "Print the sync marker of every enabled source.", &statusCommand{})

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func mustAdd(parser *flags.Parser, name, short, long string, cmd any) {
	if _, err := parser.AddCommand(name, short, long, cmd); err != nil {
		panic(err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type syncCommand struct {
	Full        bool     `long:"full" description:"Ignore sync markers and walk every source from the start"`
	Watch       bool     `long:"watch" description:"Keep running and sync on the configured interval"`
	Sources     []string `long:"source" description:"Only sync this source (section name or job id); repeatable"`
	SkipPublish bool     `long:"skip-publish" description:"Do not run the publish pass after syncing"`
}

func (c *syncCommand) Execute(_ []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(); err != nil {
		a.logger.Error("failed to connect backends", "error", err)
		return err
	}

	jobs, err := a.jobs(c.Sources, c.Full)
	if err != nil {
		a.logger.Error("failed to build sources", "error", err)
		return err
	}
	if len(jobs) == 0 {
		a.logger.Warn("no sources enabled")
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner := service.NewRunner(jobs, a.cfg.Sync.ParallelSources, a.logger)
	afterRun := func(ctx context.Context, report *domain.RunReport) {
		logReport(a, report)
		if c.SkipPublish {
			return
		}
		if err := a.publishTimeline(ctx); err != nil {
			a.logger.Error("publish failed", "error", err)
		}
	}

	if c.Watch {
		a.logger.Info("starting timeline syncer",
			"sources", len(jobs),
			"interval", a.cfg.Sync.Interval,
		)
		sched := scheduler.NewScheduler(runner, a.cfg.Sync.Interval, a.cfg.Sync.RunTimeout, afterRun, a.logger)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	runCtx, cancelRun := context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
	defer cancelRun()

	report, err := runner.Run(runCtx)
	if report != nil {
		afterRun(ctx, report)
	}
	if err != nil {
		a.logger.Error("sync aborted", "error", err)
		return err
	}
	return nil
}

func logReport(a *app, report *domain.RunReport) {
	for _, st := range report.Stats {
		a.logger.Info("source synced",
			"source", st.SourceID,
			"fetched", st.Fetched,
			"new", st.New,
			"updated", st.Updated,
			"filtered", st.Filtered,
			"malformed", st.Malformed,
			"total", st.Total,
			"rate_limited", st.RateLimited,
			"capped", st.Capped,
			"duration", st.Duration,
		)
	}
}

type publishCommand struct{}

func (c *publishCommand) Execute(_ []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.publishTimeline(ctx); err != nil {
		a.logger.Error("publish failed", "error", err)
		return err
	}
	return nil
}

type serveCommand struct {
	Addr string `long:"addr" description:"Listen address, overrides server.addr"`
}

func (c *serveCommand) Execute(_ []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg := api.Config{
		Addr:         addr,
		PublicDir:    a.cfg.Publish.OutputDir,
		CacheMaxAge:  a.cfg.Server.CacheMaxAge,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	if a.cfg.Media.Enabled {
		cfg.MediaDir = a.cfg.Media.Dir
		cfg.MediaPrefix = a.cfg.Media.PublicPrefix
	}
	return api.Serve(ctx, cfg, a.logger)
}

type migrateCommand struct{}

func (c *migrateCommand) Execute(_ []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.Database.Enabled() {
		return errors.New("database.host is not configured")
	}
	db, err := a.openDB()
	if err != nil {
		return err
	}
	version, err := postgres.RunMigrations(db)
	if err != nil {
		a.logger.Error("migration failed", "error", err)
		return err
	}
	a.logger.Info("migrations applied", "version", version)
	return nil
}

type statusCommand struct {
	Runs int `long:"runs" default:"5" description:"Recent runs to show per source when Postgres is configured"`
}

func (c *statusCommand) Execute(_ []string) error {
	a, err := newApp(opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(); err != nil {
		return err
	}
	jobs, err := a.jobs(nil, false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	for _, job := range jobs {
		state, err := a.syncState.Get(ctx, job.ID())
		if err != nil {
			return fmt.Errorf("get sync state %s: %w", job.ID(), err)
		}
		last := "never"
		if !state.LastSyncedAt.IsZero() {
			last = state.LastSyncedAt.Format("2006-01-02 15:04:05 MST")
		}
		fmt.Printf("%-32s last=%s total=%d new=%d updated=%d\n",
			job.ID(), last, state.TotalSynced, state.LastNew, state.LastUpdated)

		store, ok := a.syncState.(*postgres.SyncStateStore)
		if !ok {
			continue
		}
		runs, err := store.RecentRuns(ctx, job.ID(), c.Runs)
		if err != nil {
			return fmt.Errorf("recent runs %s: %w", job.ID(), err)
		}
		for _, run := range runs {
			fmt.Printf("    %s new=%d updated=%d\n", run.FinishedAt.Format("2006-01-02 15:04:05"), run.New, run.Updated)
		}
	}
	return nil
}
