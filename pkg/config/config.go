package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the tool reads
const EnvPrefix = "CTPULL_"

// Config holds all configuration options for ctpull
type Config struct {
	// CrowdTangle API access
	API APIConfig `yaml:"api" json:"api"`

	// Default query options for the posts endpoint
	Query QueryConfig `yaml:"query" json:"query"`

	// Collection loop settings
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// APIConfig holds API endpoint and credential settings
type APIConfig struct {
	Token     string        `yaml:"token" json:"token"`
	Profile   string        `yaml:"profile" json:"profile"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// QueryConfig holds the default posts query
type QueryConfig struct {
	Count           int      `yaml:"count" json:"count"`
	SortBy          string   `yaml:"sort_by" json:"sort_by"`
	IncludeHistory  bool     `yaml:"include_history" json:"include_history"`
	Types           []string `yaml:"types" json:"types"`
	SearchTerm      string   `yaml:"search_term" json:"search_term"`
	MinInteractions int      `yaml:"min_interactions" json:"min_interactions"`
	Offset          int      `yaml:"offset" json:"offset"`
	ListIDs         []string `yaml:"list_ids" json:"list_ids"`
	StartDate       string   `yaml:"start_date" json:"start_date"`
	EndDate         string   `yaml:"end_date" json:"end_date"`
}

// CollectorConfig holds pagination and retry settings
type CollectorConfig struct {
	MaxCalls      int           `yaml:"max_calls" json:"max_calls"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	CourtesyDelay time.Duration `yaml:"courtesy_delay" json:"courtesy_delay"`
	Backoff       BackoffConfig `yaml:"backoff" json:"backoff"`
}

// BackoffConfig selects and tunes the retry backoff strategy
type BackoffConfig struct {
	Strategy   string        `yaml:"strategy" json:"strategy"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	Increment  time.Duration `yaml:"increment" json:"increment"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Path       string `yaml:"path" json:"path"`
	Dedupe     bool   `yaml:"dedupe" json:"dedupe"`
	Checkpoint bool   `yaml:"checkpoint" json:"checkpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// MetricsConfig holds the Prometheus listener address; empty disables it
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Backoff strategy names
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
	BackoffConstant    = "constant"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.crowdtangle.com",
			Timeout:   30 * time.Second,
			UserAgent: "ctpull/1.0",
		},
		Query: QueryConfig{
			Count:          100,
			SortBy:         "date",
			IncludeHistory: true,
		},
		Collector: CollectorConfig{
			MaxCalls:      100,
			MaxRetries:    10,
			CourtesyDelay: 500 * time.Millisecond,
			Backoff: BackoffConfig{
				Strategy:   BackoffLinear,
				BaseDelay:  5 * time.Second,
				Increment:  5 * time.Second,
				MaxDelay:   0, // 0 means uncapped
				Multiplier: 2.0,
			},
		},
		Output: OutputConfig{
			Path:       "posts.ndjson",
			Dedupe:     true,
			Checkpoint: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if token := getenv("API_TOKEN"); token != "" {
		c.API.Token = token
	}
	if profile := getenv("PROFILE"); profile != "" {
		c.API.Profile = profile
	}
	if baseURL := getenv("BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if timeout := getenv("TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.API.Timeout = d
		}
	}

	if maxCalls := getenv("MAX_CALLS"); maxCalls != "" {
		val, err := strconv.Atoi(maxCalls)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_CALLS: %w", EnvPrefix, err))
		} else {
			c.Collector.MaxCalls = val
		}
	}
	if maxRetries := getenv("MAX_RETRIES"); maxRetries != "" {
		val, err := strconv.Atoi(maxRetries)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: %w", EnvPrefix, err))
		} else {
			c.Collector.MaxRetries = val
		}
	}
	if delay := getenv("COURTESY_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCOURTESY_DELAY: %w", EnvPrefix, err))
		} else {
			c.Collector.CourtesyDelay = d
		}
	}

	if lists := getenv("LIST_IDS"); lists != "" {
		c.Query.ListIDs = SplitList(lists)
	}

	if outputPath := getenv("OUTPUT"); outputPath != "" {
		c.Output.Path = outputPath
	}

	if logLevel := getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := getenv("LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	if addr := getenv("METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".ctpull.yaml",
		".ctpull.yml",
		filepath.Join(home, ".config", "ctpull", "config.yaml"),
		filepath.Join(home, ".config", "ctpull", "config.yml"),
		filepath.Join(home, ".ctpull.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
// The API token is not required here; it may come from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base URL is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}

	if c.Query.Count < 1 {
		errs = append(errs, errors.New("query count must be at least 1"))
	}
	if c.Query.MinInteractions < 0 {
		errs = append(errs, errors.New("min interactions cannot be negative"))
	}
	if c.Query.Offset < 0 {
		errs = append(errs, errors.New("offset cannot be negative"))
	}

	if c.Collector.MaxCalls < 1 {
		errs = append(errs, errors.New("max calls must be at least 1"))
	}
	if c.Collector.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}
	if c.Collector.CourtesyDelay < 0 {
		errs = append(errs, errors.New("courtesy delay cannot be negative"))
	}

	switch strings.ToLower(c.Collector.Backoff.Strategy) {
	case BackoffLinear, BackoffExponential, BackoffConstant:
	default:
		errs = append(errs, fmt.Errorf("invalid backoff strategy %q", c.Collector.Backoff.Strategy))
	}
	if c.Collector.Backoff.BaseDelay < 0 || c.Collector.Backoff.Increment < 0 || c.Collector.Backoff.MaxDelay < 0 {
		errs = append(errs, errors.New("backoff delays cannot be negative"))
	}

	if c.Output.Path == "" {
		errs = append(errs, errors.New("output path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["token"].(string); ok && token != "" {
		c.API.Token = token
	}
	if profile, ok := flags["profile"].(string); ok && profile != "" {
		c.API.Profile = profile
	}
	if lists, ok := flags["lists"].([]string); ok && len(lists) > 0 {
		c.Query.ListIDs = lists
	}
	if start, ok := flags["start"].(string); ok && start != "" {
		c.Query.StartDate = start
	}
	if end, ok := flags["end"].(string); ok && end != "" {
		c.Query.EndDate = end
	}
	if search, ok := flags["search"].(string); ok && search != "" {
		c.Query.SearchTerm = search
	}
	if types, ok := flags["types"].([]string); ok && len(types) > 0 {
		c.Query.Types = types
	}
	if sortBy, ok := flags["sort-by"].(string); ok && sortBy != "" {
		c.Query.SortBy = sortBy
	}
	if count, ok := flags["count"].(int); ok && count > 0 {
		c.Query.Count = count
	}
	if maxCalls, ok := flags["max-calls"].(int); ok && maxCalls > 0 {
		c.Collector.MaxCalls = maxCalls
	}
	if maxRetries, ok := flags["max-retries"].(int); ok && maxRetries > 0 {
		c.Collector.MaxRetries = maxRetries
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.Path = output
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".ctpull.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// SplitList splits a comma separated value, dropping empty items
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}
