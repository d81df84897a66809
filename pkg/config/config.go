// Package config provides configuration loading, validation, and access for the research service.
//
// A single Config is loaded once at startup (LoadConfig) and held behind a mutex.
// GetConfig returns it BY VALUE so callers cannot mutate shared state.
//
//	cfg, err := config.LoadConfig("roma.json")
//	config.SetConfig(cfg)
//	current, err := config.GetConfig()
//
// Credentials never live in the config file. They come from the encrypted
// secrets file (see secrets.go) or the environment, via GetSecret and GetAPIKey.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ntclick/ai-research-roma/pkg/logx"
)

//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	config *Config
	logger *logx.Logger
	mu     sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// LogInfo logs an info message using the config logger.
func LogInfo(format string, args ...interface{}) {
	getLogger().Info(format, args...)
}

// ModelInfo contains static information about a known LLM model.
type ModelInfo struct {
	Provider         string  // API provider (anthropic, openai, google, ollama)
	InputCPM         float64 // Cost per million input tokens (USD)
	OutputCPM        float64 // Cost per million output tokens (USD)
	MaxContextTokens int
	MaxOutputTokens  int
}

// KnownModels registry contains pricing and provider information for common models.
// Unknown models are inferred via ProviderPatterns.
//
//nolint:gochecknoglobals // static model registry
var KnownModels = map[string]ModelInfo{
	ModelGemini25Flash: {
		Provider:         ProviderGoogle,
		InputCPM:         0.30,
		OutputCPM:        2.50,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  65536,
	},
	"gemini-2.0-flash": {
		Provider:         ProviderGoogle,
		InputCPM:         0.10,
		OutputCPM:        0.40,
		MaxContextTokens: 1048576,
		MaxOutputTokens:  8192,
	},
	ModelGPT41Mini: {
		Provider:         ProviderOpenAI,
		InputCPM:         0.40,
		OutputCPM:        1.60,
		MaxContextTokens: 1047576,
		MaxOutputTokens:  32768,
	},
	"gpt-4o-mini": {
		Provider:         ProviderOpenAI,
		InputCPM:         0.15,
		OutputCPM:        0.60,
		MaxContextTokens: 128000,
		MaxOutputTokens:  16384,
	},
	"gpt-4o": {
		Provider:         ProviderOpenAI,
		InputCPM:         2.5,
		OutputCPM:        10.0,
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
	},
	ModelClaudeHaiku: {
		Provider:         ProviderAnthropic,
		InputCPM:         1.0,
		OutputCPM:        5.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
	"claude-sonnet-4-5": {
		Provider:         ProviderAnthropic,
		InputCPM:         3.0,
		OutputCPM:        15.0,
		MaxContextTokens: 200000,
		MaxOutputTokens:  8192,
	},
}

// ProviderPattern represents a pattern for inferring provider from model name.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns defines rules for inferring providers from unknown model names.
//
//nolint:gochecknoglobals // inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"phi", ProviderOllama},
	{"ollama:", ProviderOllama},
}

// GetModelProvider returns the API provider for a given model.
// KnownModels is consulted first, then ProviderPatterns.
func GetModelProvider(modelName string) (string, error) {
	if info, exists := KnownModels[modelName]; exists {
		return info.Provider, nil
	}
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no known provider mapping or pattern match", modelName)
}

// CalculateCost returns the USD cost of a request; unknown models cost 0.
func CalculateCost(modelName string, promptTokens, completionTokens int) float64 {
	info, exists := KnownModels[modelName]
	if !exists {
		return 0
	}
	return (float64(promptTokens)/1_000_000.0)*info.InputCPM + (float64(completionTokens)/1_000_000.0)*info.OutputCPM
}

const (
	SchemaVersion = "1.0"

	// Provider constants.
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"

	// Model name constants.
	ModelGemini25Flash = "gemini-2.5-flash"
	ModelGPT41Mini     = "gpt-4.1-mini"
	ModelClaudeHaiku   = "claude-haiku-4-5"

	DefaultPrimaryModel   = ModelGemini25Flash
	DefaultSecondaryModel = ModelGPT41Mini

	// Secret / environment variable names.
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGoogleAPIKey    = "GEMINI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
	EnvCoinGeckoAPIKey = "COINGECKO_API_KEY"
	EnvFalAPIKey       = "FAL_API_KEY"
	EnvWebPassword     = "ROMA_WEB_PASSWORD"
	EnvSecretsPassword = "ROMA_PASSWORD"

	// EnvPrefix prefixes environment overrides, e.g. ROMA_SERVER_PORT.
	EnvPrefix = "ROMA_"

	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8765
	DefaultHistoryWindow   = 5
	DefaultHistoryLimit    = 10
	DefaultSessionCache    = 1024
	DefaultMaxMessageChars = 4096
	DefaultDBPath          = "roma.db"
	DefaultCoinGeckoURL    = "https://api.coingecko.com"
	DefaultFalURL          = "https://fal.run"
	DefaultFalModel        = "fal-ai/flux/dev"
	DefaultNewsMaxItems    = 5
	DefaultNewsMaxAge      = 7 * 24 * time.Hour
	DefaultHTTPTimeout     = 15 * time.Second
	DefaultLLMTimeout      = 60 * time.Second
	DefaultMetricsNS       = "roma"
)

// DefaultNewsFeeds lists the RSS feeds queried by the news capability.
func DefaultNewsFeeds() map[string]string {
	return map[string]string{
		"coindesk":      "https://www.coindesk.com/arc/outboundfeeds/rss/",
		"cointelegraph": "https://cointelegraph.com/rss",
		"decrypt":       "https://decrypt.co/feed",
		"theblock":      "https://www.theblock.co/rss.xml",
	}
}

// Duration is a time.Duration that reads "30s"-style strings or integer nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "1m30s" or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return d.set(raw)
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return d.set(raw)
}

func (d *Duration) set(raw interface{}) error {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(v))
	case int:
		*d = Duration(time.Duration(v))
	default:
		return fmt.Errorf("invalid duration type %T", raw)
	}
	return nil
}

// Config is the complete service configuration.
type Config struct {
	SchemaVersion string             `json:"schema_version" yaml:"schema_version"`
	Server        ServerConfig       `json:"server" yaml:"server"`
	Models        ModelsConfig       `json:"models" yaml:"models"`
	Resilience    ResilienceConfig   `json:"resilience" yaml:"resilience"`
	Capabilities  CapabilitiesConfig `json:"capabilities" yaml:"capabilities"`
	Persistence   PersistenceConfig  `json:"persistence" yaml:"persistence"`
	Metrics       MetricsConfig      `json:"metrics" yaml:"metrics"`
}

// ServerConfig controls the transport and the session layer.
type ServerConfig struct {
	Host             string   `json:"host" yaml:"host"`
	Port             int      `json:"port" yaml:"port"`
	ReadTimeout      Duration `json:"read_timeout" yaml:"read_timeout"`
	HistoryWindow    int      `json:"history_window" yaml:"history_window"`         // turns passed to each task
	HistoryLimit     int      `json:"history_limit" yaml:"history_limit"`           // turns kept per user
	SessionCacheSize int      `json:"session_cache_size" yaml:"session_cache_size"` // users held in memory
	MaxMessageChars  int      `json:"max_message_chars" yaml:"max_message_chars"`
	ScanSecrets      bool     `json:"scan_secrets" yaml:"scan_secrets"`
}

// ModelsConfig names the model used by each reasoning role.
type ModelsConfig struct {
	Primary   string `json:"primary" yaml:"primary"`
	Secondary string `json:"secondary" yaml:"secondary"`
	Router    string `json:"router" yaml:"router"`
	Planner   string `json:"planner" yaml:"planner"`
	Synthesis string `json:"synthesis" yaml:"synthesis"`
}

// CircuitBreakerConfig defines circuit breaker behavior for each provider.
type CircuitBreakerConfig struct {
	FailureThreshold int      `json:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int      `json:"success_threshold" yaml:"success_threshold"`
	Timeout          Duration `json:"timeout" yaml:"timeout"`
}

// RetryConfig defines retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts   int      `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64  `json:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool     `json:"jitter" yaml:"jitter"`
}

// ResilienceConfig bundles the LLM middleware settings.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry" yaml:"retry"`
	Timeout        Duration             `json:"timeout" yaml:"timeout"`
}

// CapabilitiesConfig points the capability providers at their upstream services.
type CapabilitiesConfig struct {
	CoinGeckoBaseURL string            `json:"coingecko_base_url" yaml:"coingecko_base_url"`
	FalBaseURL       string            `json:"fal_base_url" yaml:"fal_base_url"`
	FalModel         string            `json:"fal_model" yaml:"fal_model"`
	NewsFeeds        map[string]string `json:"news_feeds" yaml:"news_feeds"`
	NewsMaxItems     int               `json:"news_max_items" yaml:"news_max_items"`
	NewsMaxAge       Duration          `json:"news_max_age" yaml:"news_max_age"`
	HTTPTimeout      Duration          `json:"http_timeout" yaml:"http_timeout"`
	KeywordFallback  bool              `json:"keyword_fallback" yaml:"keyword_fallback"`
}

// PersistenceConfig locates the conversation history database.
type PersistenceConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// MetricsConfig defines configuration for metrics collection.
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Namespace     string `json:"namespace" yaml:"namespace"`
	PrometheusURL string `json:"prometheus_url" yaml:"prometheus_url"` // for usage queries
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Capabilities.KeywordFallback = true
	cfg.Server.ScanSecrets = true
	cfg.Metrics.Enabled = true
	applyDefaults(cfg)
	return cfg
}

// GetConfig returns the current configuration by value.
func GetConfig() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if config == nil {
		return Config{}, fmt.Errorf("config not initialized - call LoadConfig first")
	}
	return *config, nil
}

// SetConfig installs cfg as the global configuration. Pass nil to reset.
func SetConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	config = cfg
}

// GetAPIKey returns the credential for a provider: secrets file first, then environment.
// For Ollama the host URL is returned instead of a key.
func GetAPIKey(provider string) (string, error) {
	var envVar string
	switch provider {
	case ProviderAnthropic:
		envVar = EnvAnthropicAPIKey
	case ProviderOpenAI:
		envVar = EnvOpenAIAPIKey
	case ProviderGoogle:
		envVar = EnvGoogleAPIKey
	case ProviderOllama:
		if host, err := GetSecret(EnvOllamaHost); err == nil {
			return host, nil
		}
		return "http://localhost:11434", nil
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	key, err := GetSecret(envVar)
	if err == nil && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("API key not found: %s not found in secrets file or environment variables", envVar)
}

// GetOptionalSecret returns a secret or "" when it is not set.
func GetOptionalSecret(name string) string {
	value, err := GetSecret(name)
	if err != nil {
		return ""
	}
	return value
}

// GetWebPassword returns the basic-auth password for the web API, or "" when auth is off.
func GetWebPassword() string {
	return GetOptionalSecret(EnvWebPassword)
}

// Exists reports whether a file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
