package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"timeline_sync/internal/canonical"
	"timeline_sync/internal/classify"
	"timeline_sync/internal/config"
	"timeline_sync/internal/media"
	"timeline_sync/internal/publish"
	"timeline_sync/internal/publisher"
	"timeline_sync/internal/service"
	"timeline_sync/internal/source"
	"timeline_sync/internal/source/blog"
	"timeline_sync/internal/source/bluesky"
	"timeline_sync/internal/source/github"
	"timeline_sync/internal/source/hackernews"
	"timeline_sync/internal/source/raindrop"
	"timeline_sync/internal/source/wikipedia"
	"timeline_sync/internal/storage/jsonfile"
	"timeline_sync/internal/storage/postgres"
)

// app holds everything built from the config file for one invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	syncState service.SyncStateStore
	publisher service.Publisher
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &app{
		cfg:       cfg,
		logger:    setupLogger(cfg.LogLevel),
		syncState: jsonfile.NewStateStore(cfg.DataDir),
	}, nil
}

// connect opens the optional Postgres and RabbitMQ backends.
func (a *app) connect() error {
	if a.cfg.Database.Enabled() {
		db, err := a.openDB()
		if err != nil {
			return err
		}
		version, err := postgres.RunMigrations(db)
		if err != nil {
			return err
		}
		a.logger.Info("connected to database", "schema_version", version)
		a.syncState = postgres.NewSyncStateStore(db)
	}

	if a.cfg.RabbitMQ.Enabled() {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        a.cfg.RabbitMQ.URL,
			Exchange:   a.cfg.RabbitMQ.Exchange,
			RoutingKey: a.cfg.RabbitMQ.RoutingKey,
			QueueName:  a.cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			return err
		}
		a.publisher = rabbitMQ
	}
	return nil
}

func (a *app) openDB() (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := sqlx.Connect("postgres", a.cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close publisher", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// namedJob pairs a job with the config section it came from, which is what
// --source matches on besides the job id.
type namedJob struct {
	section string
	job     service.Job
}

// jobs builds one job per enabled source, narrowed to only when non-empty.
func (a *app) jobs(only []string, full bool) ([]service.Job, error) {
	cfg := a.cfg
	sources := cfg.Sources
	syncCfg := cfg.Sync
	syncCfg.FullResync = syncCfg.FullResync || full

	client := source.NewClient(source.ClientConfig{
		Timeout:        cfg.HTTP.Timeout,
		MaxAttempts:    cfg.HTTP.Retry.MaxAttempts,
		InitialBackoff: cfg.HTTP.Retry.InitialBackoff,
		MaxBackoff:     cfg.HTTP.Retry.MaxBackoff,
		UserAgent:      cfg.HTTP.UserAgent,
	}, a.logger)

	var cache canonical.MediaCache = canonical.Passthrough{}
	if cfg.Media.Enabled {
		cache = media.New(media.Config{
			Dir:          cfg.Media.Dir,
			PublicPrefix: cfg.Media.PublicPrefix,
			Timeout:      cfg.Media.Timeout,
			MaxBytes:     cfg.Media.MaxBytes,
			UserAgent:    cfg.HTTP.UserAgent,
		}, a.logger)
	}

	store := func(id string) service.EntryStore {
		return jsonfile.NewStore(jsonfile.StorePath(cfg.DataDir, id), a.logger)
	}

	var jobs []namedJob
	add := func(section string, job service.Job) {
		jobs = append(jobs, namedJob{section: section, job: job})
	}

	if sources.Bluesky.Enabled {
		src := bluesky.New(bluesky.Config{
			BaseURL:  sources.Bluesky.BaseURL,
			Handle:   sources.Bluesky.Handle,
			PageSize: sources.Bluesky.PageSize,
		}, client, cache, a.logger)
		add("bluesky", service.NewSyncService[bluesky.FeedItem](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.Bluesky.MaxItems)))
	}

	if sources.GitHub.Enabled {
		for _, repo := range sources.GitHub.Repos {
			src, err := github.New(github.Config{
				BaseURL:  sources.GitHub.BaseURL,
				Repo:     repo,
				Token:    sources.GitHub.Token,
				PageSize: sources.GitHub.PageSize,
			}, client, a.logger)
			if err != nil {
				return nil, err
			}
			add("github", service.NewSyncService[github.Release](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.GitHub.MaxItems)))
		}
	}

	if sources.Wikipedia.Enabled {
		src := wikipedia.New(wikipedia.Config{
			BaseURL:  sources.Wikipedia.BaseURL,
			Username: sources.Wikipedia.Username,
			PageSize: sources.Wikipedia.PageSize,
		}, client, a.logger)
		add("wikipedia", service.NewSyncService[wikipedia.Contribution](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.Wikipedia.MaxItems)))
	}

	if sources.Raindrop.Enabled {
		src := raindrop.New(raindrop.Config{
			BaseURL:          sources.Raindrop.BaseURL,
			Token:            sources.Raindrop.Token,
			PageSize:         sources.Raindrop.PageSize,
			AllowTags:        sources.Raindrop.AllowTags,
			HiddenTags:       sources.Raindrop.HiddenTags,
			FetchHighlights:  sources.Raindrop.FetchHighlights,
			HighlightWorkers: sources.Raindrop.HighlightWorkers,
		}, client, cache, a.logger)
		add("raindrop", service.NewSyncService[raindrop.Item](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.Raindrop.MaxItems)))
	}

	if sources.Blog.Enabled {
		src := blog.New(blog.Config{
			FeedURL: sources.Blog.FeedURL,
			SiteURL: sources.Blog.SiteURL,
		}, client, a.logger)
		add("blog", service.NewSyncService[*gofeed.Item](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.Blog.MaxItems)))
	}

	if sources.HackerNews.Enabled {
		src := hackernews.New(hackernews.Config{
			BaseURL:  sources.HackerNews.BaseURL,
			Username: sources.HackerNews.Username,
			PageSize: sources.HackerNews.PageSize,
			Workers:  sources.HackerNews.Workers,
		}, client, a.logger)
		add("hackernews", service.NewSyncService[hackernews.Hit](src, store(src.ID()), a.syncState, a.publisher, a.logger, syncCfg.ForSource(sources.HackerNews.MaxItems)))
	}

	selected := lo.Filter(jobs, func(j namedJob, _ int) bool {
		return len(only) == 0 || slices.Contains(only, j.section) || slices.Contains(only, j.job.ID())
	})
	if len(only) > 0 && len(selected) == 0 {
		return nil, fmt.Errorf("no enabled source matches %s", strings.Join(only, ", "))
	}
	return lo.Map(selected, func(j namedJob, _ int) service.Job { return j.job }), nil
}

// publishTimeline is the final pass: every store into the public documents.
func (a *app) publishTimeline(ctx context.Context) error {
	entries, err := publish.NewBuilder(a.cfg.DataDir, classify.Default(), a.logger).Build(ctx)
	if err != nil {
		return fmt.Errorf("build timeline: %w", err)
	}

	writer := publish.NewWriter(publish.Channel{
		Title:       a.cfg.Publish.Title,
		Description: a.cfg.Publish.Description,
		SiteURL:     a.cfg.Publish.SiteURL,
		Language:    a.cfg.Publish.Language,
		MaxItems:    a.cfg.Publish.MaxItems,
	})
	if err := writer.WriteAll(a.cfg.Publish.OutputDir, entries, time.Now()); err != nil {
		return fmt.Errorf("write timeline: %w", err)
	}

	a.logger.Info("timeline published", "dir", a.cfg.Publish.OutputDir, "entries", len(entries))
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
