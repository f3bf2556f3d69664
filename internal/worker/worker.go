// Package worker drains the durable job queue in the background. The only
// job type today is node summary generation, queued whenever a page is
// captured.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/thoughtchain/internal/storage"
	"github.com/kalambet/thoughtchain/internal/summary"
)

// JobTypeNodeSummary generates the AI summary for one captured node.
const JobTypeNodeSummary = "node_summary"

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// NodeSummarizer generates node summaries.
type NodeSummarizer interface {
	GenerateNodeSummary(ctx context.Context, chainID, nodeID string, force bool) (summary.NodeResult, error)
}

// Recorder observes job outcomes.
type Recorder interface {
	ObserveJob(jobType, outcome string)
}

// NodeSummaryPayload is the JSON payload of a node_summary job.
type NodeSummaryPayload struct {
	ChainID string `json:"chain_id"`
	NodeID  string `json:"node_id"`
	Force   bool   `json:"force,omitempty"`
}

// NewNodeSummaryJob builds a queue entry asking for nodeID's summary.
func NewNodeSummaryJob(chainID, nodeID string, force bool) (storage.Job, error) {
	payload, err := json.Marshal(NodeSummaryPayload{ChainID: chainID, NodeID: nodeID, Force: force})
	if err != nil {
		return storage.Job{}, fmt.Errorf("marshalling payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeNodeSummary,
		PayloadJSON: string(payload),
	}, nil
}

// Worker processes node_summary jobs from the SQLite job queue.
type Worker struct {
	store      JobStore
	summarizer NodeSummarizer
	recorder   Recorder
	poll       time.Duration
	logger     *slog.Logger
}

// NewWorker creates a Worker with the given dependencies. recorder may be nil.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, summarizer NodeSummarizer, recorder Recorder, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:      store,
		summarizer: summarizer,
		recorder:   recorder,
		poll:       pollInterval,
		logger:     slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{JobTypeNodeSummary})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	outcome, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		w.observe(job.Type, "retry")
		// The job may be interrupted by shutdown; record the attempt anyway.
		if failErr := w.store.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	w.observe(job.Type, outcome)
	// The summary is already persisted; record it even when shutting down.
	if err := w.store.CompleteJob(context.WithoutCancel(ctx), job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// processJob returns the outcome label on completion. Generation failures
// are already persisted on the node, so only storage errors are retried.
func (w *Worker) processJob(ctx context.Context, job *storage.Job) (string, error) {
	var payload NodeSummaryPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return "", fmt.Errorf("parsing payload: %w", err)
	}

	res, err := w.summarizer.GenerateNodeSummary(ctx, payload.ChainID, payload.NodeID, payload.Force)
	if errors.Is(err, summary.ErrNodeNotFound) {
		w.logger.Info("node removed before summary job ran", "chain_id", payload.ChainID, "node_id", payload.NodeID)
		return "node_gone", nil
	}
	if err != nil {
		return "", fmt.Errorf("summarizing node %s: %w", payload.NodeID, err)
	}

	switch {
	case res.Skipped:
		return "skipped", nil
	case res.Success:
		return "success", nil
	case res.Degraded:
		return "degraded", nil
	default:
		w.logger.Info("node summary not generated", "node_id", payload.NodeID, "reason", res.Error)
		return "failed", nil
	}
}

func (w *Worker) observe(jobType, outcome string) {
	if w.recorder != nil {
		w.recorder.ObserveJob(jobType, outcome)
	}
}
