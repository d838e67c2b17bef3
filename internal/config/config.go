package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	HTTP     HTTPConfig     `yaml:"http"`
	Media    MediaConfig    `yaml:"media"`
	Sync     SyncConfig     `yaml:"sync"`
	Publish  PublishConfig  `yaml:"publish"`
	Server   ServerConfig   `yaml:"server"`
	Sources  SourcesConfig  `yaml:"sources"`
	LogLevel string         `yaml:"log_level"`
}

// RabbitMQConfig is optional; an empty URL disables change notifications.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// DatabaseConfig is optional; without a host sync state lives next to the
// stores as JSON sidecar files.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Retry     RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type MediaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Dir          string        `yaml:"dir"`
	PublicPrefix string        `yaml:"public_prefix"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
}

type SyncConfig struct {
	Interval         time.Duration `yaml:"interval"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	MaxItems         int           `yaml:"max_items"`
	Lookback         time.Duration `yaml:"lookback"`
	WatermarkOverlap time.Duration `yaml:"watermark_overlap"`
	PageDelay        time.Duration `yaml:"page_delay"`
	ParallelSources  int           `yaml:"parallel_sources"`
	FullResync       bool          `yaml:"full_resync"`
}

type PublishConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	SiteURL     string `yaml:"site_url"`
	Language    string `yaml:"language"`
	MaxItems    int    `yaml:"max_items"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	CacheMaxAge  time.Duration `yaml:"cache_max_age"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type SourcesConfig struct {
	Bluesky    BlueskyConfig    `yaml:"bluesky"`
	GitHub     GitHubConfig     `yaml:"github"`
	Wikipedia  WikipediaConfig  `yaml:"wikipedia"`
	Raindrop   RaindropConfig   `yaml:"raindrop"`
	Blog       BlogConfig       `yaml:"blog"`
	HackerNews HackerNewsConfig `yaml:"hackernews"`
}

// Per-source MaxItems overrides sync.max_items for that source only.

type BlueskyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Handle   string `yaml:"handle"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
	MaxItems int    `yaml:"max_items"`
}

type GitHubConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Repos    []string `yaml:"repos"`
	Token    string   `yaml:"token"`
	BaseURL  string   `yaml:"base_url"`
	PageSize int      `yaml:"page_size"`
	MaxItems int      `yaml:"max_items"`
}

type WikipediaConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
	MaxItems int    `yaml:"max_items"`
}

type RaindropConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Token            string   `yaml:"token"`
	BaseURL          string   `yaml:"base_url"`
	PageSize         int      `yaml:"page_size"`
	AllowTags        []string `yaml:"allow_tags"`
	HiddenTags       []string `yaml:"hidden_tags"`
	FetchHighlights  bool     `yaml:"fetch_highlights"`
	HighlightWorkers int      `yaml:"highlight_workers"`
	MaxItems         int      `yaml:"max_items"`
}

type BlogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FeedURL  string `yaml:"feed_url"`
	SiteURL  string `yaml:"site_url"`
	MaxItems int    `yaml:"max_items"`
}

type HackerNewsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
	Workers  int    `yaml:"workers"`
	MaxItems int    `yaml:"max_items"`
}

// ForSource returns a copy of the sync settings with a per-source item cap
// applied when one is set.
func (s SyncConfig) ForSource(maxItems int) SyncConfig {
	if maxItems > 0 {
		s.MaxItems = maxItems
	}
	return s
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML with ${VAR} expansion, then applies defaults and
// environment overrides.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TIMELINE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TIMELINE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TIMELINE_FULL_RESYNC"); v != "" {
		full, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse TIMELINE_FULL_RESYNC: %w", err)
		}
		c.Sync.FullResync = full
	}
	if v, ok := os.LookupEnv("TIMELINE_TAG_FILTER"); ok {
		// An empty filter is explicit and admits every bookmark.
		c.Sources.Raindrop.AllowTags = append([]string{}, splitList(v)...)
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && c.Sources.GitHub.Token == "" {
		c.Sources.GitHub.Token = v
	}
	if v := os.Getenv("RAINDROP_TOKEN"); v != "" && c.Sources.Raindrop.Token == "" {
		c.Sources.Raindrop.Token = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.RunTimeout < 0 {
		return fmt.Errorf("sync.run_timeout must be positive, got %s", c.Sync.RunTimeout)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "timeline"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "entries"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "timeline_entries"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "timeline-sync/1.0"
	}
	if c.HTTP.Retry.MaxAttempts == 0 {
		c.HTTP.Retry.MaxAttempts = 3
	}
	if c.HTTP.Retry.InitialBackoff == 0 {
		c.HTTP.Retry.InitialBackoff = 1 * time.Second
	}
	if c.HTTP.Retry.MaxBackoff == 0 {
		c.HTTP.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Media.Dir == "" {
		c.Media.Dir = filepath.Join(c.DataDir, "media")
	}
	if c.Media.PublicPrefix == "" {
		c.Media.PublicPrefix = "/media"
	}
	if c.Media.Timeout == 0 {
		c.Media.Timeout = 15 * time.Second
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = 20 << 20
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = time.Hour
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 10 * time.Minute
	}
	if c.Sync.MaxItems == 0 {
		c.Sync.MaxItems = 1000
	}
	if c.Sync.Lookback == 0 {
		c.Sync.Lookback = 365 * 24 * time.Hour
	}
	if c.Sync.WatermarkOverlap == 0 {
		c.Sync.WatermarkOverlap = time.Hour
	}
	if c.Sync.PageDelay == 0 {
		c.Sync.PageDelay = 500 * time.Millisecond
	}
	if c.Sync.ParallelSources == 0 {
		c.Sync.ParallelSources = 1
	}
	if c.Publish.OutputDir == "" {
		c.Publish.OutputDir = filepath.Join(c.DataDir, "public")
	}
	if c.Publish.Title == "" {
		c.Publish.Title = "Timeline"
	}
	if c.Publish.Description == "" {
		c.Publish.Description = "Recent activity across platforms"
	}
	if c.Publish.Language == "" {
		c.Publish.Language = "en"
	}
	if c.Publish.MaxItems == 0 {
		c.Publish.MaxItems = 50
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.CacheMaxAge == 0 {
		c.Server.CacheMaxAge = time.Hour
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	c.Sources.setDefaults()
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (s *SourcesConfig) setDefaults() {
	if s.Bluesky.BaseURL == "" {
		s.Bluesky.BaseURL = "https://public.api.bsky.app"
	}
	if s.Bluesky.PageSize == 0 {
		s.Bluesky.PageSize = 50
	}
	if s.GitHub.BaseURL == "" {
		s.GitHub.BaseURL = "https://api.github.com"
	}
	if s.GitHub.PageSize == 0 {
		s.GitHub.PageSize = 30
	}
	if s.Wikipedia.Language == "" {
		s.Wikipedia.Language = "en"
	}
	if s.Wikipedia.BaseURL == "" {
		s.Wikipedia.BaseURL = "https://" + s.Wikipedia.Language + ".wikipedia.org"
	}
	if s.Wikipedia.PageSize == 0 {
		s.Wikipedia.PageSize = 50
	}
	if s.Raindrop.BaseURL == "" {
		s.Raindrop.BaseURL = "https://api.raindrop.io"
	}
	if s.Raindrop.PageSize == 0 {
		s.Raindrop.PageSize = 50
	}
	if s.Raindrop.AllowTags == nil {
		s.Raindrop.AllowTags = []string{"timeline"}
	}
	if s.Raindrop.HiddenTags == nil {
		s.Raindrop.HiddenTags = []string{"timeline"}
	}
	if s.Raindrop.HighlightWorkers == 0 {
		s.Raindrop.HighlightWorkers = 4
	}
	if s.HackerNews.BaseURL == "" {
		s.HackerNews.BaseURL = "https://hn.algolia.com"
	}
	if s.HackerNews.PageSize == 0 {
		s.HackerNews.PageSize = 50
	}
	if s.HackerNews.Workers == 0 {
		s.HackerNews.Workers = 4
	}
}
