package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//nolint:gochecknoglobals // compiled once
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

//nolint:gochecknoglobals // reflect type for Duration fields
var durationType = reflect.TypeOf(Duration(0))

// LoadConfig reads a JSON or YAML config file, substitutes ${ENV} placeholders,
// applies ROMA_* environment overrides and defaults, and validates the result.
// A missing path yields the defaults plus environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}
	cfg.Capabilities.KeywordFallback = true
	cfg.Server.ScanSecrets = true
	cfg.Metrics.Enabled = true

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			envVar := match[2 : len(match)-1]
			if value := os.Getenv(envVar); value != "" {
				return value
			}
			return match
		})

		switch strings.ToLower(filepath.Ext(configPath)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal([]byte(dataStr), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config YAML: %w", err)
			}
		default:
			if err := json.Unmarshal([]byte(dataStr), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config JSON: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides walks the json tags: Server.Port is ROMA_SERVER_PORT.
func applyEnvOverrides(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	applyEnvOverridesRecursive(v, v.Type(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		envKey := strings.ToUpper(prefix + strings.Split(jsonTag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, field.Type(), envKey+"_")
			continue
		}
		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		if d, err := time.ParseDuration(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(envValue); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(envValue); err == nil {
			field.SetBool(val)
		}
	default:
	}
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SchemaVersion
	}

	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = Duration(30 * time.Second)
	}
	if s.HistoryWindow == 0 {
		s.HistoryWindow = DefaultHistoryWindow
	}
	if s.HistoryLimit == 0 {
		s.HistoryLimit = DefaultHistoryLimit
	}
	if s.SessionCacheSize == 0 {
		s.SessionCacheSize = DefaultSessionCache
	}
	if s.MaxMessageChars == 0 {
		s.MaxMessageChars = DefaultMaxMessageChars
	}

	m := &cfg.Models
	if m.Primary == "" {
		m.Primary = DefaultPrimaryModel
	}
	if m.Secondary == "" {
		m.Secondary = DefaultSecondaryModel
	}
	// Routing, planning and synthesis run on the primary model unless overridden.
	if m.Router == "" {
		m.Router = m.Primary
	}
	if m.Planner == "" {
		m.Planner = m.Primary
	}
	if m.Synthesis == "" {
		m.Synthesis = m.Primary
	}

	r := &cfg.Resilience
	if r.CircuitBreaker.FailureThreshold == 0 {
		r.CircuitBreaker.FailureThreshold = 5
	}
	if r.CircuitBreaker.SuccessThreshold == 0 {
		r.CircuitBreaker.SuccessThreshold = 3
	}
	if r.CircuitBreaker.Timeout == 0 {
		r.CircuitBreaker.Timeout = Duration(30 * time.Second)
	}
	if r.Retry.MaxAttempts == 0 {
		r.Retry.MaxAttempts = 3
	}
	if r.Retry.InitialDelay == 0 {
		r.Retry.InitialDelay = Duration(100 * time.Millisecond)
	}
	if r.Retry.MaxDelay == 0 {
		r.Retry.MaxDelay = Duration(10 * time.Second)
	}
	if r.Retry.BackoffFactor == 0 {
		r.Retry.BackoffFactor = 2.0
	}
	if r.Timeout == 0 {
		r.Timeout = Duration(DefaultLLMTimeout)
	}

	c := &cfg.Capabilities
	if c.CoinGeckoBaseURL == "" {
		c.CoinGeckoBaseURL = DefaultCoinGeckoURL
	}
	if c.FalBaseURL == "" {
		c.FalBaseURL = DefaultFalURL
	}
	if c.FalModel == "" {
		c.FalModel = DefaultFalModel
	}
	if len(c.NewsFeeds) == 0 {
		c.NewsFeeds = DefaultNewsFeeds()
	}
	if c.NewsMaxItems == 0 {
		c.NewsMaxItems = DefaultNewsMaxItems
	}
	if c.NewsMaxAge == 0 {
		c.NewsMaxAge = Duration(DefaultNewsMaxAge)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = Duration(DefaultHTTPTimeout)
	}

	if cfg.Persistence.DBPath == "" {
		cfg.Persistence.DBPath = DefaultDBPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.HistoryWindow < 0 || cfg.Server.HistoryLimit < 0 {
		return fmt.Errorf("server history sizes must not be negative")
	}
	if cfg.Server.HistoryWindow > cfg.Server.HistoryLimit {
		return fmt.Errorf("server.history_window (%d) exceeds server.history_limit (%d)",
			cfg.Server.HistoryWindow, cfg.Server.HistoryLimit)
	}

	for role, model := range map[string]string{
		"primary":   cfg.Models.Primary,
		"secondary": cfg.Models.Secondary,
		"router":    cfg.Models.Router,
		"planner":   cfg.Models.Planner,
		"synthesis": cfg.Models.Synthesis,
	} {
		if _, err := GetModelProvider(model); err != nil {
			return fmt.Errorf("models.%s: %w", role, err)
		}
	}

	if cfg.Resilience.Retry.MaxAttempts < 1 {
		return fmt.Errorf("resilience.retry.max_attempts must be at least 1")
	}
	if cfg.Resilience.Retry.BackoffFactor < 1 {
		return fmt.Errorf("resilience.retry.backoff_factor must be >= 1")
	}
	if cfg.Capabilities.NewsMaxItems < 0 {
		return fmt.Errorf("capabilities.news_max_items must not be negative")
	}
	return nil
}
