package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	secretService = "thoughtchain"
	apiKeyAccount = "ai_api_key"
	tokenAccount  = "server_token"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	AI        AIConfig
	Summary   SummaryConfig
	Report    ReportConfig
	Lifecycle LifecycleConfig
	Browser   BrowserConfig
	Worker    WorkerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	// Token is the bearer token required by the HTTP API. Empty rejects
	// every authenticated request.
	Token string
}

type StorageConfig struct {
	DataDir   string
	Backend   string
	RedisAddr string
}

type AIConfig struct {
	Provider       string
	BaseURL        string
	APIKey         string
	TargetLanguage string
}

type SummaryConfig struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	ChunkSize     int
	ChunkOverlap  int
	MaxInputChars int
	MaxLength     int
	FirstTimeout  time.Duration
	RetryTimeout  time.Duration
}

type ReportConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type LifecycleConfig struct {
	SplitHour int
	CatchUp   bool
}

type BrowserConfig struct {
	// DebuggerURL is the DevTools websocket of a running browser. Empty
	// disables open-tab extraction.
	DebuggerURL string
}

type WorkerConfig struct {
	PollInterval time.Duration
}

type LogConfig struct {
	Level string
}

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir:   defaultDataDir(),
			Backend:   BackendSQLite,
			RedisAddr: "localhost:6379",
		},
		AI: AIConfig{
			Provider:       ProviderOpenAI,
			TargetLanguage: "English",
		},
		Summary: SummaryConfig{
			Model:         "gpt-4o-mini",
			Temperature:   0.3,
			MaxTokens:     512,
			ChunkSize:     4000,
			ChunkOverlap:  200,
			MaxInputChars: 16000,
			MaxLength:     300,
			FirstTimeout:  30 * time.Second,
			RetryTimeout:  60 * time.Second,
		},
		Report: ReportConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.5,
			MaxTokens:   4096,
		},
		Lifecycle: LifecycleConfig{
			SplitHour: 4,
			CatchUp:   true,
		},
		Worker: WorkerConfig{
			PollInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.thoughtchain.app) and
// the API key falls back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/thoughtchain/config.json
// and the API key falls back to $XDG_DATA_HOME/thoughtchain/secrets.json.
//
// Environment variables (THOUGHTCHAIN_*) override backend values on all
// platforms. A missing API key is not an error; summaries report it instead.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b Backend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	applySecrets(&cfg, kc)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q: want sqlite, redis or memory", c.Storage.Backend)
	}
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid ai.provider %q: want openai or gemini", c.AI.Provider)
	}
	if c.Lifecycle.SplitHour < 0 || c.Lifecycle.SplitHour > 23 {
		return fmt.Errorf("invalid lifecycle.split_hour %d: want 0-23", c.Lifecycle.SplitHour)
	}
	if c.Summary.ChunkOverlap >= c.Summary.ChunkSize {
		return fmt.Errorf("summary.chunk_overlap (%d) must be smaller than summary.chunk_size (%d)",
			c.Summary.ChunkOverlap, c.Summary.ChunkSize)
	}
	return nil
}

// APIKeyFunc returns a lookup that resolves the AI key on every call, so a
// key stored after startup is picked up without a restart.
func APIKeyFunc(cfg Config) func() string {
	return apiKeyFunc(cfg, keychainReader{})
}

func apiKeyFunc(cfg Config, kc keychain) func() string {
	return func() string {
		if cfg.AI.APIKey != "" {
			return cfg.AI.APIKey
		}
		key, err := kc.Get(secretService, apiKeyAccount)
		if err != nil {
			return ""
		}
		return key
	}
}

// EnsureServerToken generates and stores a bearer token for the HTTP API
// when none is configured.
func EnsureServerToken(cfg *Config) error {
	return ensureServerToken(cfg, keychainSet)
}

func ensureServerToken(cfg *Config, setSecret func(service, account, value string) error) error {
	if cfg.Server.Token != "" {
		return nil
	}
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	if err := setSecret(secretService, tokenAccount, token); err != nil {
		return fmt.Errorf("storing server token: %w", err)
	}
	cfg.Server.Token = token
	return nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
