package api

import (
	"context"
	"testing"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/clock"
	"github.com/kalambet/thoughtchain/internal/dispatch"
	"github.com/kalambet/thoughtchain/internal/extract"
	"github.com/kalambet/thoughtchain/internal/lifecycle"
	"github.com/kalambet/thoughtchain/internal/storage"
	"github.com/kalambet/thoughtchain/internal/store"
	"github.com/kalambet/thoughtchain/internal/summary"
)

// --- mocks ---

type mockGenerator struct {
	report summary.ReportResult
	node   summary.NodeResult
}

func (m *mockGenerator) GenerateNodeSummary(context.Context, string, string, bool) (summary.NodeResult, error) {
	return m.node, nil
}

func (m *mockGenerator) GenerateChainReport(context.Context, string, []chain.Node, string) (summary.ReportResult, error) {
	return m.report, nil
}

type mockContent struct {
	art extract.Article
	err error
}

func (m *mockContent) Acquire(context.Context, string) (extract.Article, error) {
	return m.art, m.err
}

// --- helpers ---

type testEnv struct {
	store   *store.Store
	gen     *mockGenerator
	content *mockContent
	disp    *dispatch.Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.New(storage.NewMemory())
	env := &testEnv{
		store:   st,
		gen:     &mockGenerator{},
		content: &mockContent{},
	}
	env.disp = dispatch.New(dispatch.Deps{
		Store:     st,
		Splitter:  lifecycle.NewPolicy(st, clock.Real{}, lifecycle.DefaultSplitHour),
		Generator: env.gen,
		Content:   env.content,
	})
	return env
}
