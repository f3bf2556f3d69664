package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/thoughtchain/internal/clock"
	"github.com/kalambet/thoughtchain/internal/config"
	"github.com/kalambet/thoughtchain/internal/dispatch"
	"github.com/kalambet/thoughtchain/internal/extract"
	"github.com/kalambet/thoughtchain/internal/lifecycle"
	"github.com/kalambet/thoughtchain/internal/llm"
	"github.com/kalambet/thoughtchain/internal/metrics"
	"github.com/kalambet/thoughtchain/internal/storage"
	"github.com/kalambet/thoughtchain/internal/store"
	"github.com/kalambet/thoughtchain/internal/summary"
	"github.com/kalambet/thoughtchain/internal/worker"
)

// services is the wired object graph behind the server.
type services struct {
	jobs         *storage.SQLite
	kv           storage.KV
	store        *store.Store
	policy       *lifecycle.Policy
	scheduler    *lifecycle.Scheduler
	channels     *summary.ChannelManager
	orchestrator *summary.Orchestrator
	worker       *worker.Worker
	dispatcher   *dispatch.Dispatcher
	metrics      *metrics.Collector
	tabs         *extract.RodTabs
}

// buildServices opens storage and wires every component from cfg. apiKey
// is consulted on every generation.
func buildServices(ctx context.Context, cfg config.Config, apiKey func() string) (*services, error) {
	s := &services{metrics: metrics.NewCollector("thoughtchain")}

	jobs, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	s.jobs = jobs

	kv, err := openKV(ctx, cfg.Storage, jobs)
	if err != nil {
		jobs.Close()
		return nil, err
	}
	s.kv = kv

	s.store = store.New(kv)
	if err := s.store.Initialize(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	s.policy = lifecycle.NewPolicy(s.store, clock.Real{}, cfg.Lifecycle.SplitHour)
	s.policy.OnSplit = s.metrics.ObserveSplit
	s.scheduler = lifecycle.NewScheduler(s.policy, cfg.Lifecycle.CatchUp)

	var tabs extract.TabSource
	if cfg.Browser.DebuggerURL != "" {
		s.tabs = extract.NewRodTabs(cfg.Browser.DebuggerURL)
		tabs = s.tabs
	}
	content := extract.NewAcquirer(tabs, extract.NewHTTPFetcher(nil))

	backend := llm.NewBreaker(newBackend(cfg.AI), llm.DefaultBreakerConfig(cfg.AI.Provider), s.metrics.BreakerChanged)
	s.channels = summary.NewChannelManager(summary.NewSummarizer(backend), s.metrics.ChannelReset)
	s.orchestrator = summary.NewOrchestrator(s.store, content, s.channels, apiKey, summarySettings(cfg), s.metrics)

	s.worker = worker.NewWorker(jobs, s.orchestrator, s.metrics, cfg.Worker.PollInterval)

	s.dispatcher = dispatch.New(dispatch.Deps{
		Store:     s.store,
		Splitter:  s.policy,
		Generator: s.orchestrator,
		Content:   content,
		Jobs:      jobs,
		Recorder:  s.metrics,
	})

	return s, nil
}

// run starts the background loops. It returns immediately.
func (s *services) run(ctx context.Context) {
	go s.worker.Run(ctx)
	go s.scheduler.Run(ctx)
}

// Close releases the channel, browser connection and storage.
func (s *services) Close() error {
	if s.channels != nil {
		s.channels.Close()
	}
	var errs []error
	if s.tabs != nil {
		errs = append(errs, s.tabs.Close())
	}
	if s.kv != nil && s.kv != storage.KV(s.jobs) {
		errs = append(errs, s.kv.Close())
	}
	if s.jobs != nil {
		errs = append(errs, s.jobs.Close())
	}
	return errors.Join(errs...)
}

func openKV(ctx context.Context, cfg config.StorageConfig, jobs *storage.SQLite) (storage.KV, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		kv, err := storage.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		slog.Info("chain state stored in redis", "addr", cfg.RedisAddr)
		return kv, nil
	case config.BackendMemory:
		slog.Warn("chain state is kept in memory and lost on exit")
		return storage.NewMemory(), nil
	default:
		return jobs, nil
	}
}

func newBackend(cfg config.AIConfig) llm.Backend {
	if cfg.Provider == config.ProviderGemini {
		return llm.NewGeminiClient(cfg.BaseURL)
	}
	return llm.NewOpenAIClient(cfg.BaseURL)
}

func summarySettings(cfg config.Config) summary.Settings {
	return summary.Settings{
		Summary: summary.ModelSettings{
			Model:       cfg.Summary.Model,
			Temperature: cfg.Summary.Temperature,
			MaxTokens:   cfg.Summary.MaxTokens,
		},
		Report: summary.ModelSettings{
			Model:       cfg.Report.Model,
			Temperature: cfg.Report.Temperature,
			MaxTokens:   cfg.Report.MaxTokens,
		},
		ChunkSize:      cfg.Summary.ChunkSize,
		ChunkOverlap:   cfg.Summary.ChunkOverlap,
		MaxInputChars:  cfg.Summary.MaxInputChars,
		MaxLength:      cfg.Summary.MaxLength,
		TargetLanguage: cfg.AI.TargetLanguage,
		FirstTimeout:   cfg.Summary.FirstTimeout,
		RetryTimeout:   cfg.Summary.RetryTimeout,
	}
}
