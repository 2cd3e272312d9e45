package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/claimscope/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Cron        CronConfig      `toml:"cron"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port            int    `toml:"port"`
	Host            string `toml:"host"`
	ReadTimeout     string `toml:"read_timeout"`     // Request read timeout (default: "15s")
	WriteTimeout    string `toml:"write_timeout"`    // Response write timeout; run and sweep requests lift it (default: "60s")
	ShutdownTimeout string `toml:"shutdown_timeout"` // Grace period for in-flight requests (default: "30s")
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for console/file lines
	FileName   string   `toml:"file_name"`   // Log file name inside ./logs
}

// PipelineConfig controls how stages are rendered and called
type PipelineConfig struct {
	PromptsDir  string  `toml:"prompts_dir"` // Root of the YAML prompt tree
	Temperature float64 `toml:"temperature"` // Sampling temperature for every stage (default: 0.0)
}

// SchedulerConfig holds the admission limits and the optional cron trigger
type SchedulerConfig struct {
	Enabled           bool   `toml:"enabled"`             // Run batch sweeps from an in-process cron entry
	Schedule          string `toml:"schedule"`            // Cron expression (5 fields)
	MaxConcurrentJobs int    `toml:"max_concurrent_jobs"` // Global admission slots (default: 3)
	TimeoutSeconds    int    `toml:"timeout_seconds"`     // Active job timeout (default: 1800)
	RetryCap          int    `toml:"retry_cap"`           // Failed jobs requeued per sweep (default: 2)
	DefaultMaxRetries int    `toml:"default_max_retries"` // Retry budget for new jobs (default: 3)
	DefaultPriority   int    `toml:"default_priority"`    // Priority for new jobs (default: 5)
}

// CronConfig protects the externally triggered sweep endpoints
type CronConfig struct {
	Secret string `toml:"secret"` // Bearer token; endpoints answer 503 while unset
}

// WebSocketConfig contains configuration for the job event stream
type WebSocketConfig struct {
	// Whitelist of event types to broadcast. Empty list allows all events.
	AllowedEvents []string `toml:"allowed_events"`
	// Throttle intervals per event type, e.g. {"stage_completed": "250ms"}
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`     // Per-call timeout as duration string (default: "5m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between calls (default: "4s")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum output tokens (default: 8192)
	Temperature float32 `toml:"temperature"` // Used when a caller passes no explicit temperature
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used by stage calls
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini" (default: "claude")
	MaxRetries      int         `toml:"max_retries"`      // Provider retries per call (default: 3)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			ReadTimeout:     "15s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "30s",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
			FileName:   "claimscope.log",
		},
		Pipeline: PipelineConfig{
			PromptsDir:  "./prompts",
			Temperature: 0.0, // Deterministic stage outputs
		},
		Scheduler: SchedulerConfig{
			Enabled:           false,         // External cron calls /api/cron/batch-analyze by default
			Schedule:          "0 */6 * * *", // Every 6 hours
			MaxConcurrentJobs: 3,
			TimeoutSeconds:    1800,
			RetryCap:          2,
			DefaultMaxRetries: 3,
			DefaultPriority:   5,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"stage_started":   "250ms",
				"stage_completed": "250ms",
			},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s", // 15 RPM free tier
			MaxTokens:   8192,
			Temperature: 0.0,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.0,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			MaxRetries:      3,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
// CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if config.Scheduler.Enabled {
		if err := ValidateSchedule(config.Scheduler.Schedule); err != nil {
			return nil, fmt.Errorf("invalid [scheduler] schedule: %w", err)
		}
	}

	return config, nil
}

// applyEnvOverrides applies CLAIMSCOPE_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CLAIMSCOPE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("CLAIMSCOPE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CLAIMSCOPE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage
	if badgerPath := os.Getenv("CLAIMSCOPE_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging
	if level := os.Getenv("CLAIMSCOPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("CLAIMSCOPE_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Pipeline
	if dir := os.Getenv("CLAIMSCOPE_PROMPTS_DIR"); dir != "" {
		config.Pipeline.PromptsDir = dir
	}
	if temp := os.Getenv("CLAIMSCOPE_TEMPERATURE"); temp != "" {
		if t, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Pipeline.Temperature = t
		}
	}

	// Scheduler
	if enabled := os.Getenv("CLAIMSCOPE_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("CLAIMSCOPE_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if maxJobs := os.Getenv("CLAIMSCOPE_MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if m, err := strconv.Atoi(maxJobs); err == nil {
			config.Scheduler.MaxConcurrentJobs = m
		}
	}
	if timeout := os.Getenv("CLAIMSCOPE_JOB_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Scheduler.TimeoutSeconds = t
		}
	}
	if retryCap := os.Getenv("CLAIMSCOPE_RETRY_CAP"); retryCap != "" {
		if r, err := strconv.Atoi(retryCap); err == nil {
			config.Scheduler.RetryCap = r
		}
	}

	// Cron secret
	if secret := os.Getenv("CLAIMSCOPE_CRON_SECRET"); secret != "" {
		config.Cron.Secret = secret
	} else if secret := os.Getenv("CRON_SECRET"); secret != "" {
		config.Cron.Secret = secret
	}

	// LLM
	if provider := os.Getenv("CLAIMSCOPE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if model := os.Getenv("CLAIMSCOPE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if model := os.Getenv("CLAIMSCOPE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves a secret by name.
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"CLAIMSCOPE_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"CLAIMSCOPE_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"claude_api_key":    {"CLAIMSCOPE_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"cron_secret":       {"CLAIMSCOPE_CRON_SECRET", "CRON_SECRET"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		value, err := kvStorage.Get(ctx, name)
		if err == nil && value != "" {
			return value, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a 5-field cron expression and enforces a
// minimum 5-minute interval between sweeps.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}
