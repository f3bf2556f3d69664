package main

import (
	"strings"
	"testing"
	"time"

	"github.com/kalambet/thoughtchain/internal/config"
	"github.com/kalambet/thoughtchain/internal/dispatch"
	"github.com/kalambet/thoughtchain/internal/summary"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	var cfg config.Config
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.Backend = backend
	cfg.AI.Provider = config.ProviderOpenAI
	cfg.Lifecycle.SplitHour = 4
	cfg.Summary.ChunkSize = 4000
	cfg.Summary.ChunkOverlap = 200
	cfg.Summary.FirstTimeout = time.Second
	cfg.Summary.RetryTimeout = time.Second
	cfg.Worker.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestBuildServices_CaptureWithoutAPIKey(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			svc, err := buildServices(ctx, testConfig(t, backend), func() string { return "" })
			if err != nil {
				t.Fatalf("buildServices: %v", err)
			}
			defer svc.Close()

			added := svc.dispatcher.Dispatch(ctx, dispatch.Request{
				Action: dispatch.ActionAddNode,
				Node:   &dispatch.NodeInput{Title: "Go blog", URL: "https://go.dev/blog"},
			})
			if !added.Success {
				t.Fatalf("addNode failed: %s", added.Error)
			}

			processed, err := svc.worker.RunOnce(ctx)
			if err != nil {
				t.Fatalf("RunOnce: %v", err)
			}
			if !processed {
				t.Fatal("expected the queued summary job to be processed")
			}

			node, found, err := svc.store.NodeByID(ctx, added.ChainID, added.NodeID)
			if err != nil || !found {
				t.Fatalf("NodeByID: found=%v err=%v", found, err)
			}
			if !strings.HasPrefix(node.AISummary, summary.MarkerNotConfigured) {
				t.Errorf("AISummary = %q, want not-configured placeholder", node.AISummary)
			}
		})
	}
}

func TestBuildServices_StatePersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, config.BackendSQLite)
	noKey := func() string { return "" }

	svc, err := buildServices(ctx, cfg, noKey)
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	split := svc.dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionManualSplitChain})
	if !split.Success {
		t.Fatalf("split failed: %s", split.Error)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	svc, err = buildServices(ctx, cfg, noKey)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer svc.Close()

	active := svc.dispatcher.Dispatch(ctx, dispatch.Request{Action: dispatch.ActionGetActiveChain})
	if !active.Success || active.Chain == nil {
		t.Fatalf("no active chain after reopen: %+v", active)
	}
	if active.Chain.ID != split.NewChainID {
		t.Errorf("active chain = %s, want %s", active.Chain.ID, split.NewChainID)
	}
}

func TestSummarySettings(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Summary.Model = "small"
	cfg.Report.Model = "large"
	cfg.Report.MaxTokens = 4096
	cfg.AI.TargetLanguage = "German"

	s := summarySettings(cfg)
	if s.Summary.Model != "small" || s.Report.Model != "large" || s.Report.MaxTokens != 4096 {
		t.Errorf("model settings = %+v / %+v", s.Summary, s.Report)
	}
	if s.TargetLanguage != "German" || s.FirstTimeout != time.Second {
		t.Errorf("settings = %+v", s)
	}
}

func TestOpenKV_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t, config.BackendRedis)
	cfg.Storage.RedisAddr = "127.0.0.1:1"

	if _, err := buildServices(ctx, cfg, func() string { return "" }); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}
