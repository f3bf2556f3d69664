// Package summary produces AI summaries for captured pages and chain-level
// reports. Every outcome, including failures, ends up as a persisted string
// on the node or chain so callers never see an empty summary field after a
// generation attempt.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/extract"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrChainNotFound = errors.New("chain not found")
)

// Store is the part of the chain store the orchestrator reads and writes.
type Store interface {
	NodeByID(ctx context.Context, chainID, nodeID string) (chain.Node, bool, error)
	ChainByID(ctx context.Context, id string) (chain.Chain, bool, error)
	UpdateNodeAISummary(ctx context.Context, chainID, nodeID, summary string) (bool, error)
	UpdateChainSummaryDoc(ctx context.Context, chainID, doc string) (bool, error)
}

// ContentSource turns a URL into readable text.
type ContentSource interface {
	Acquire(ctx context.Context, url string) (extract.Article, error)
}

// Sender is a resettable summarization channel.
type Sender interface {
	Send(ctx context.Context, req Request) (Response, error)
	Reset()
}

// Recorder observes generation outcomes.
type Recorder interface {
	ObserveSummary(kind, outcome string, d time.Duration)
}

// ModelSettings selects the model and output budget for one kind of call.
type ModelSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Settings tune generation.
type Settings struct {
	Summary        ModelSettings
	Report         ModelSettings
	ChunkSize      int
	ChunkOverlap   int
	MaxInputChars  int
	MaxLength      int
	TargetLanguage string
	FirstTimeout   time.Duration
	RetryTimeout   time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Summary:       ModelSettings{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 512},
		Report:        ModelSettings{Model: "gpt-4o-mini", Temperature: 0.5, MaxTokens: 4096},
		ChunkSize:     4000,
		ChunkOverlap:  200,
		MaxInputChars: 16000,
		MaxLength:     300,
		FirstTimeout:  DefaultFirstTimeout,
		RetryTimeout:  DefaultRetryTimeout,
	}
}

// NodeResult is the outcome of GenerateNodeSummary. Summary always holds
// the string that was persisted (or kept, when Skipped).
type NodeResult struct {
	Summary  string `json:"summary"`
	Success  bool   `json:"success"`
	Degraded bool   `json:"degraded,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReportResult is the outcome of GenerateChainReport.
type ReportResult struct {
	Report  string `json:"report"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Orchestrator runs the generation protocol for nodes and chains.
type Orchestrator struct {
	store    Store
	content  ContentSource
	channel  Sender
	apiKey   func() string
	settings Settings
	recorder Recorder
	logger   *slog.Logger
}

// NewOrchestrator wires the protocol's collaborators. apiKey is consulted on
// every call so a key set at runtime takes effect immediately. recorder may
// be nil.
func NewOrchestrator(store Store, content ContentSource, channel Sender, apiKey func() string, settings Settings, recorder Recorder) *Orchestrator {
	if apiKey == nil {
		apiKey = func() string { return "" }
	}
	return &Orchestrator{
		store:    store,
		content:  content,
		channel:  channel,
		apiKey:   apiKey,
		settings: settings,
		recorder: recorder,
		logger:   slog.Default(),
	}
}

// GenerateNodeSummary produces and stores the AI summary for one node. The
// returned error is reserved for storage failures and a missing node; every
// generation failure is reported through NodeResult and persisted.
func (o *Orchestrator) GenerateNodeSummary(ctx context.Context, chainID, nodeID string, force bool) (NodeResult, error) {
	start := time.Now()

	node, ok, err := o.store.NodeByID(ctx, chainID, nodeID)
	if err != nil {
		return NodeResult{}, fmt.Errorf("loading node: %w", err)
	}
	if !ok {
		return NodeResult{}, ErrNodeNotFound
	}

	if !force && IsUsable(node.AISummary) {
		o.logger.Debug("node already summarized", "chain_id", chainID, "node_id", nodeID)
		o.observe("node", "skipped", start)
		return NodeResult{Summary: node.AISummary, Success: true, Skipped: true}, nil
	}

	key := o.apiKey()
	if key == "" {
		text := notConfiguredText("summary")
		if err := o.persistNode(ctx, chainID, nodeID, text); err != nil {
			return NodeResult{}, err
		}
		o.observe("node", "not_configured", start)
		return NodeResult{Summary: text, Error: "AI API key is not configured"}, nil
	}

	text, err := o.acquire(ctx, node.URL)
	if err != nil {
		o.logger.Warn("content acquisition failed", "chain_id", chainID, "node_id", nodeID, "url", node.URL, "error", err)
		failed := failedText(err)
		if perr := o.persistNode(ctx, chainID, nodeID, failed); perr != nil {
			return NodeResult{}, perr
		}
		o.observe("node", "acquisition_failed", start)
		return NodeResult{Summary: failed, Error: err.Error()}, nil
	}

	s := o.settings
	policy := o.retryPolicy()
	policy.Degrade = func(error) (string, bool) {
		return degradedText(node.Title, utf8.RuneCountInString(text)), true
	}

	out, degraded, err := policy.Run(ctx, func(actx context.Context, n int) (string, error) {
		input := text
		if n > 0 {
			input = truncateRunes(text, utf8.RuneCountInString(text)/2)
		}
		return o.send(actx, Request{
			Text:   input,
			APIKey: key,
			Options: Options{
				UserNotes:      node.Notes,
				ChunkSize:      s.ChunkSize,
				ChunkOverlap:   s.ChunkOverlap,
				MaxTokens:      s.Summary.MaxTokens,
				MaxLength:      s.MaxLength,
				Temperature:    s.Summary.Temperature,
				ModelName:      s.Summary.Model,
				TargetLanguage: s.TargetLanguage,
			},
		})
	})

	var res NodeResult
	switch {
	case err != nil:
		o.logger.Warn("node summary failed", "chain_id", chainID, "node_id", nodeID, "error", err)
		res = NodeResult{Summary: failedText(err), Error: err.Error()}
		o.observe("node", "failed", start)
	case degraded:
		o.logger.Warn("node summary degraded", "chain_id", chainID, "node_id", nodeID)
		res = NodeResult{Summary: out, Degraded: true, Error: "AI service did not respond in time"}
		o.observe("node", "degraded", start)
	default:
		res = NodeResult{Summary: out, Success: true}
		o.observe("node", "success", start)
	}

	if err := o.persistNode(ctx, chainID, nodeID, res.Summary); err != nil {
		return NodeResult{}, err
	}
	return res, nil
}

// GenerateChainReport writes a report over nodes into the chain's summary
// document. A nil nodes slice means the chain's current nodes. There is no
// degraded fallback: failures are persisted as a marked string and reported.
func (o *Orchestrator) GenerateChainReport(ctx context.Context, chainID string, nodes []chain.Node, guidance string) (ReportResult, error) {
	start := time.Now()

	c, ok, err := o.store.ChainByID(ctx, chainID)
	if err != nil {
		return ReportResult{}, fmt.Errorf("loading chain: %w", err)
	}
	if !ok {
		return ReportResult{}, ErrChainNotFound
	}
	if nodes == nil {
		nodes = c.Nodes
	}

	key := o.apiKey()
	if key == "" {
		text := notConfiguredText("chain report")
		if err := o.persistChain(ctx, chainID, text); err != nil {
			return ReportResult{}, err
		}
		o.observe("report", "not_configured", start)
		return ReportResult{Report: text, Error: "AI API key is not configured"}, nil
	}

	s := o.settings
	prompt := BuildReportPrompt(c.Name, nodes, guidance, s.TargetLanguage)
	out, _, err := o.retryPolicy().Run(ctx, func(actx context.Context, _ int) (string, error) {
		return o.send(actx, Request{
			Text:   prompt,
			APIKey: key,
			Options: Options{
				MaxTokens:      s.Report.MaxTokens,
				Temperature:    s.Report.Temperature,
				ModelName:      s.Report.Model,
				TargetLanguage: s.TargetLanguage,
				SystemPrompt:   reportSystemPrompt,
			},
		})
	})

	res := ReportResult{Report: out, Success: true}
	if err != nil {
		o.logger.Warn("chain report failed", "chain_id", chainID, "error", err)
		res = ReportResult{Report: reportFailedText(err), Error: err.Error()}
		o.observe("report", "failed", start)
	} else {
		o.observe("report", "success", start)
	}

	if err := o.persistChain(ctx, chainID, res.Report); err != nil {
		return ReportResult{}, err
	}
	return res, nil
}

func (o *Orchestrator) retryPolicy() RetryPolicy {
	p := DefaultRetryPolicy(o.channel.Reset)
	if o.settings.FirstTimeout > 0 {
		p.Timeouts[0] = o.settings.FirstTimeout
	}
	if o.settings.RetryTimeout > 0 {
		p.Timeouts[1] = o.settings.RetryTimeout
	}
	return p
}

func (o *Orchestrator) acquire(ctx context.Context, url string) (string, error) {
	art, err := o.content.Acquire(ctx, url)
	if err != nil {
		return "", err
	}
	text := extract.NormalizeWhitespace(art.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable text found at %s", url)
	}
	return truncateRunes(text, o.settings.MaxInputChars), nil
}

func (o *Orchestrator) send(ctx context.Context, req Request) (string, error) {
	resp, err := o.channel.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "summarization failed without an error message"
		}
		return "", errors.New(msg)
	}
	out := strings.TrimSpace(resp.Summary)
	if out == "" {
		return "", errors.New("AI service returned an empty summary")
	}
	return out, nil
}

// persistNode and persistChain write even when ctx was cancelled so an
// interrupted generation still leaves a readable string behind.
func (o *Orchestrator) persistNode(ctx context.Context, chainID, nodeID, text string) error {
	ok, err := o.store.UpdateNodeAISummary(context.WithoutCancel(ctx), chainID, nodeID, text)
	if err != nil {
		return fmt.Errorf("saving node summary: %w", err)
	}
	if !ok {
		return ErrNodeNotFound
	}
	return nil
}

func (o *Orchestrator) persistChain(ctx context.Context, chainID, text string) error {
	ok, err := o.store.UpdateChainSummaryDoc(context.WithoutCancel(ctx), chainID, text)
	if err != nil {
		return fmt.Errorf("saving chain report: %w", err)
	}
	if !ok {
		return ErrChainNotFound
	}
	return nil
}

func (o *Orchestrator) observe(kind, outcome string, start time.Time) {
	if o.recorder != nil {
		o.recorder.ObserveSummary(kind, outcome, time.Since(start))
	}
}
