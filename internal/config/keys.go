package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// account names the secret store entry a secret key falls back to.
	account string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "THOUGHTCHAIN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "THOUGHTCHAIN_SERVER_TOKEN",
		secret: true, account: tokenAccount,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "THOUGHTCHAIN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "THOUGHTCHAIN_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.redis_addr", typ: kString, env: "THOUGHTCHAIN_STORAGE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisAddr },
	},
	{
		key: "ai.provider", typ: kString, env: "THOUGHTCHAIN_AI_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.AI.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.Provider },
	},
	{
		key: "ai.base_url", typ: kString, env: "THOUGHTCHAIN_AI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.AI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.BaseURL },
	},
	{
		key: "ai.api_key", typ: kString, env: "THOUGHTCHAIN_API_KEY",
		secret: true, account: apiKeyAccount,
		apply:   func(cfg *Config, v any) { cfg.AI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.APIKey },
	},
	{
		key: "ai.target_language", typ: kString, env: "THOUGHTCHAIN_AI_TARGET_LANGUAGE",
		apply:   func(cfg *Config, v any) { cfg.AI.TargetLanguage = v.(string) },
		extract: func(cfg Config) any { return cfg.AI.TargetLanguage },
	},
	{
		key: "summary.model", typ: kString, env: "THOUGHTCHAIN_SUMMARY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Summary.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.Model },
	},
	{
		key: "summary.temperature", typ: kFloat, env: "THOUGHTCHAIN_SUMMARY_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Summary.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Summary.Temperature },
	},
	{
		key: "summary.max_tokens", typ: kInt, env: "THOUGHTCHAIN_SUMMARY_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Summary.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.MaxTokens },
	},
	{
		key: "summary.chunk_size", typ: kInt, env: "THOUGHTCHAIN_SUMMARY_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Summary.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.ChunkSize },
	},
	{
		key: "summary.chunk_overlap", typ: kInt, env: "THOUGHTCHAIN_SUMMARY_CHUNK_OVERLAP",
		apply:   func(cfg *Config, v any) { cfg.Summary.ChunkOverlap = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.ChunkOverlap },
	},
	{
		key: "summary.max_input_chars", typ: kInt, env: "THOUGHTCHAIN_SUMMARY_MAX_INPUT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Summary.MaxInputChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.MaxInputChars },
	},
	{
		key: "summary.max_length", typ: kInt, env: "THOUGHTCHAIN_SUMMARY_MAX_LENGTH",
		apply:   func(cfg *Config, v any) { cfg.Summary.MaxLength = v.(int) },
		extract: func(cfg Config) any { return cfg.Summary.MaxLength },
	},
	{
		key: "summary.first_timeout", typ: kDuration, env: "THOUGHTCHAIN_SUMMARY_FIRST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Summary.FirstTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Summary.FirstTimeout },
	},
	{
		key: "summary.retry_timeout", typ: kDuration, env: "THOUGHTCHAIN_SUMMARY_RETRY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Summary.RetryTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Summary.RetryTimeout },
	},
	{
		key: "report.model", typ: kString, env: "THOUGHTCHAIN_REPORT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Report.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.Model },
	},
	{
		key: "report.temperature", typ: kFloat, env: "THOUGHTCHAIN_REPORT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Report.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Report.Temperature },
	},
	{
		key: "report.max_tokens", typ: kInt, env: "THOUGHTCHAIN_REPORT_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Report.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Report.MaxTokens },
	},
	{
		key: "lifecycle.split_hour", typ: kInt, env: "THOUGHTCHAIN_LIFECYCLE_SPLIT_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Lifecycle.SplitHour = v.(int) },
		extract: func(cfg Config) any { return cfg.Lifecycle.SplitHour },
	},
	{
		key: "lifecycle.catch_up", typ: kBool, env: "THOUGHTCHAIN_LIFECYCLE_CATCH_UP",
		apply:   func(cfg *Config, v any) { cfg.Lifecycle.CatchUp = v.(bool) },
		extract: func(cfg Config) any { return cfg.Lifecycle.CatchUp },
	},
	{
		key: "browser.debugger_url", typ: kString, env: "THOUGHTCHAIN_BROWSER_DEBUGGER_URL",
		apply:   func(cfg *Config, v any) { cfg.Browser.DebuggerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.DebuggerURL },
	},
	{
		key: "worker.poll_interval", typ: kDuration, env: "THOUGHTCHAIN_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "log.level", typ: kString, env: "THOUGHTCHAIN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts a raw string into the value apply expects.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func (s keySpec) typeName() string {
	switch s.typ {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typeName(), s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

// applySecrets fills secret keys still empty after env overrides from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.account == "" {
			continue
		}
		if v, _ := s.extract(*cfg).(string); v != "" {
			continue
		}
		v, err := kc.Get(secretService, s.account)
		if err != nil {
			if !errors.Is(err, ErrSecretNotFound) {
				fmt.Fprintf(os.Stderr, "[WARN] could not read %s from the secret store: %v\n", s.key, err)
			}
			continue
		}
		if v != "" {
			s.apply(cfg, v)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typeName(), s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
