package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory config file name.
const ProjectConfigName = ".pdfqa.yaml"

// Config is the complete pdfqa configuration.
type Config struct {
	Version   int             `yaml:"version"`
	DataDir   string          `yaml:"data_dir"`
	Owner     OwnerConfig     `yaml:"owner"`
	Index     IndexConfig     `yaml:"index"`
	Store     StoreConfig     `yaml:"store"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Query     QueryConfig     `yaml:"query"`
	Upload    UploadConfig    `yaml:"upload"`
	Citation  CitationConfig  `yaml:"citation"`
	Inbox     InboxConfig     `yaml:"inbox"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// OwnerConfig identifies the acting owner. Authentication is external;
// the CLI and daemon act on behalf of this owner.
type OwnerConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// IndexConfig configures the remote indexing backend client.
type IndexConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	AssistantID     string        `yaml:"assistant_id"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset"`
}

// StoreConfig selects and configures the document record store.
type StoreConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// ReconcileConfig tunes status reconciliation.
type ReconcileConfig struct {
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ForceReadyAfter time.Duration `yaml:"force_ready_after"`
	Concurrency     int           `yaml:"concurrency"`
}

// QueryConfig tunes answer generation and client-side polling.
type QueryConfig struct {
	DefaultModel    string        `yaml:"default_model"`
	Instructions    string        `yaml:"instructions"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	PollBaseDelay   time.Duration `yaml:"poll_base_delay"`
	PollStep        time.Duration `yaml:"poll_step"`
	PollMaxDelay    time.Duration `yaml:"poll_max_delay"`
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxSizeMB int `yaml:"max_size_mb"`
}

// CitationConfig sizes the citation name cache.
type CitationConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// InboxConfig configures the watched upload folder.
type InboxConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	Debounce time.Duration `yaml:"debounce"`
}

// DaemonConfig configures the background daemon.
type DaemonConfig struct {
	SocketPath string        `yaml:"socket_path"`
	PIDPath    string        `yaml:"pid_path"`
	Timeout    time.Duration `yaml:"timeout"`
	// MaintenanceIdle is how long the daemon must see no requests before
	// it cleans up orphans and backfills metadata. Zero disables it.
	MaintenanceIdle time.Duration `yaml:"maintenance_idle"`
	// MaintenanceCooldown is the minimum time between maintenance runs.
	MaintenanceCooldown time.Duration `yaml:"maintenance_cooldown"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	Stderr    bool   `yaml:"stderr"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	ownerID, ownerName := defaultOwner()

	return &Config{
		Version: 1,
		DataDir: dataDir,
		Owner: OwnerConfig{
			ID:   ownerID,
			Name: ownerName,
		},
		Index: IndexConfig{
			BaseURL:         "https://api.openai.com/v1",
			Timeout:         60 * time.Second,
			MaxRetries:      3,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			MongoDatabase: "pdfqa",
		},
		Reconcile: ReconcileConfig{
			SweepInterval:   time.Minute,
			ForceReadyAfter: 5 * time.Minute,
			Concurrency:     4,
		},
		Query: QueryConfig{
			PollMaxAttempts: 60,
			PollBaseDelay:   time.Second,
			PollStep:        200 * time.Millisecond,
			PollMaxDelay:    5 * time.Second,
		},
		Upload: UploadConfig{
			MaxSizeMB: 50,
		},
		Citation: CitationConfig{
			CacheSize: 1024,
		},
		Inbox: InboxConfig{
			Debounce: 2 * time.Second,
		},
		Daemon: DaemonConfig{
			Timeout:             30 * time.Second,
			MaintenanceIdle:     2 * time.Minute,
			MaintenanceCooldown: time.Hour,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultDataDir returns ~/.pdfqa, or a temp-dir fallback.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pdfqa")
	}
	return filepath.Join(home, ".pdfqa")
}

func defaultOwner() (string, string) {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "local", "local"
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return u.Username, name
}

// StorePath returns the SQLite database path, defaulting into DataDir.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.DataDir, "documents.db")
}

// SocketPath returns the daemon socket path, defaulting into DataDir.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return filepath.Join(c.DataDir, "daemon.sock")
}

// PIDPath returns the daemon PID file path, defaulting into DataDir.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return filepath.Join(c.DataDir, "daemon.pid")
}

// SweepLockPath is the cross-process lock guarding the background sweep.
func (c *Config) SweepLockPath() string {
	return filepath.Join(c.DataDir, "sweep.lock")
}

// InboxPath returns the watched upload folder, defaulting into DataDir.
func (c *Config) InboxPath() string {
	if c.Inbox.Path != "" {
		return c.Inbox.Path
	}
	return filepath.Join(c.DataDir, "inbox")
}

// MaxUploadBytes returns the upload size cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) * 1024 * 1024
}

// GetUserConfigPath returns the user configuration file, following XDG:
//   - $XDG_CONFIG_HOME/pdfqa/config.yaml
//   - ~/.config/pdfqa/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pdfqa", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pdfqa", "config.yaml")
	}
	return filepath.Join(home, ".config", "pdfqa", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration for the working directory dir, in order of
// increasing precedence:
//  1. Defaults
//  2. User config (~/.config/pdfqa/config.yaml)
//  3. Project config (.pdfqa.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (PDFQA_*, OPENAI_API_KEY, OPENAI_ASSISTANT_ID, MONGODB_URI)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	setString(&c.DataDir, other.DataDir)

	setString(&c.Owner.ID, other.Owner.ID)
	setString(&c.Owner.Name, other.Owner.Name)

	setString(&c.Index.BaseURL, other.Index.BaseURL)
	setString(&c.Index.APIKey, other.Index.APIKey)
	setString(&c.Index.AssistantID, other.Index.AssistantID)
	setDuration(&c.Index.Timeout, other.Index.Timeout)
	setInt(&c.Index.MaxRetries, other.Index.MaxRetries)
	setInt(&c.Index.BreakerFailures, other.Index.BreakerFailures)
	setDuration(&c.Index.BreakerReset, other.Index.BreakerReset)

	setString(&c.Store.Driver, other.Store.Driver)
	setString(&c.Store.Path, other.Store.Path)
	setString(&c.Store.MongoURI, other.Store.MongoURI)
	setString(&c.Store.MongoDatabase, other.Store.MongoDatabase)

	setDuration(&c.Reconcile.SweepInterval, other.Reconcile.SweepInterval)
	setDuration(&c.Reconcile.ForceReadyAfter, other.Reconcile.ForceReadyAfter)
	setInt(&c.Reconcile.Concurrency, other.Reconcile.Concurrency)

	setString(&c.Query.DefaultModel, other.Query.DefaultModel)
	setString(&c.Query.Instructions, other.Query.Instructions)
	setInt(&c.Query.PollMaxAttempts, other.Query.PollMaxAttempts)
	setDuration(&c.Query.PollBaseDelay, other.Query.PollBaseDelay)
	setDuration(&c.Query.PollStep, other.Query.PollStep)
	setDuration(&c.Query.PollMaxDelay, other.Query.PollMaxDelay)

	setInt(&c.Upload.MaxSizeMB, other.Upload.MaxSizeMB)
	setInt(&c.Citation.CacheSize, other.Citation.CacheSize)

	// Booleans can only be switched on from a file; env vars can switch off.
	if other.Inbox.Enabled {
		c.Inbox.Enabled = true
	}
	setString(&c.Inbox.Path, other.Inbox.Path)
	setDuration(&c.Inbox.Debounce, other.Inbox.Debounce)

	setString(&c.Daemon.SocketPath, other.Daemon.SocketPath)
	setString(&c.Daemon.PIDPath, other.Daemon.PIDPath)
	setDuration(&c.Daemon.Timeout, other.Daemon.Timeout)
	setDuration(&c.Daemon.MaintenanceIdle, other.Daemon.MaintenanceIdle)
	setDuration(&c.Daemon.MaintenanceCooldown, other.Daemon.MaintenanceCooldown)

	setString(&c.Logging.Level, other.Logging.Level)
	setString(&c.Logging.FilePath, other.Logging.FilePath)
	setInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	setInt(&c.Logging.MaxFiles, other.Logging.MaxFiles)
	if other.Logging.Stderr {
		c.Logging.Stderr = true
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	setString(&c.DataDir, os.Getenv("PDFQA_DATA_DIR"))
	setString(&c.Owner.ID, os.Getenv("PDFQA_OWNER_ID"))
	setString(&c.Owner.Name, os.Getenv("PDFQA_OWNER_NAME"))

	setString(&c.Index.BaseURL, os.Getenv("PDFQA_INDEX_BASE_URL"))
	setString(&c.Index.APIKey, os.Getenv("OPENAI_API_KEY"))
	setString(&c.Index.APIKey, os.Getenv("PDFQA_INDEX_API_KEY"))
	setString(&c.Index.AssistantID, os.Getenv("OPENAI_ASSISTANT_ID"))
	setString(&c.Index.AssistantID, os.Getenv("PDFQA_ASSISTANT_ID"))

	setString(&c.Store.Driver, os.Getenv("PDFQA_STORE_DRIVER"))
	setString(&c.Store.Path, os.Getenv("PDFQA_STORE_PATH"))
	setString(&c.Store.MongoURI, os.Getenv("MONGODB_URI"))
	setString(&c.Store.MongoURI, os.Getenv("PDFQA_MONGO_URI"))

	if d, ok := envDuration("PDFQA_SWEEP_INTERVAL"); ok {
		c.Reconcile.SweepInterval = d
	}
	if d, ok := envDuration("PDFQA_FORCE_READY_AFTER"); ok {
		c.Reconcile.ForceReadyAfter = d
	}
	if v := os.Getenv("PDFQA_SWEEP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Reconcile.Concurrency = n
		}
	}

	setString(&c.Query.DefaultModel, os.Getenv("PDFQA_DEFAULT_MODEL"))

	if v := os.Getenv("PDFQA_INBOX_ENABLED"); v != "" {
		c.Inbox.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	setString(&c.Inbox.Path, os.Getenv("PDFQA_INBOX_PATH"))

	setString(&c.Logging.Level, os.Getenv("PDFQA_LOG_LEVEL"))
}

// Validate checks the configuration for values the rest of the program
// cannot work with.
func (c *Config) Validate() error {
	if c.Owner.ID == "" {
		return fmt.Errorf("owner.id must not be empty")
	}

	switch strings.ToLower(c.Store.Driver) {
	case "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store.mongo_uri is required when store.driver is 'mongo'")
		}
	default:
		return fmt.Errorf("store.driver must be 'sqlite' or 'mongo', got %s", c.Store.Driver)
	}

	if c.Reconcile.SweepInterval <= 0 {
		return fmt.Errorf("reconcile.sweep_interval must be positive, got %s", c.Reconcile.SweepInterval)
	}
	if c.Reconcile.ForceReadyAfter <= 0 {
		return fmt.Errorf("reconcile.force_ready_after must be positive, got %s", c.Reconcile.ForceReadyAfter)
	}
	if c.Reconcile.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be at least 1, got %d", c.Reconcile.Concurrency)
	}

	if c.Query.PollMaxAttempts < 1 {
		return fmt.Errorf("query.poll_max_attempts must be at least 1, got %d", c.Query.PollMaxAttempts)
	}
	if c.Query.PollMaxDelay < c.Query.PollBaseDelay {
		return fmt.Errorf("query.poll_max_delay (%s) must not be below query.poll_base_delay (%s)",
			c.Query.PollMaxDelay, c.Query.PollBaseDelay)
	}

	if c.Upload.MaxSizeMB < 1 {
		return fmt.Errorf("upload.max_size_mb must be at least 1, got %d", c.Upload.MaxSizeMB)
	}
	if c.Index.MaxRetries < 0 {
		return fmt.Errorf("index.max_retries must be non-negative, got %d", c.Index.MaxRetries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy safe for printing.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Index.APIKey != "" {
		out.Index.APIKey = "****"
	}
	if out.Store.MongoURI != "" {
		out.Store.MongoURI = "****"
	}
	return &out
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
