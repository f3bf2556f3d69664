// Package lifecycle decides when a new thought chain starts: automatically
// once per day at a fixed local hour, or on explicit request.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/clock"
)

// DefaultSplitHour is the local hour at which a new day of browsing starts.
const DefaultSplitHour = 4

// ChainSplitter is the subset of the chain store the policy needs.
type ChainSplitter interface {
	CreateChain(ctx context.Context, name string) (chain.Chain, error)
	SplitActiveIf(ctx context.Context, cond func(active chain.Chain) bool) (chain.Chain, bool, error)
}

// SplitResult describes the chain a split created.
type SplitResult struct {
	ChainID   string `json:"newChainId"`
	ChainName string `json:"newChainName"`
}

// Policy applies the daily and manual split rules.
type Policy struct {
	store     ChainSplitter
	clock     clock.Clock
	splitHour int
	logger    *slog.Logger

	// OnSplit, if set, is called with "daily" or "manual" after each split.
	OnSplit func(trigger string)
}

// NewPolicy creates a Policy. splitHour outside 0..23 falls back to DefaultSplitHour.
func NewPolicy(store ChainSplitter, c clock.Clock, splitHour int) *Policy {
	if splitHour < 0 || splitHour > 23 {
		splitHour = DefaultSplitHour
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Policy{
		store:     store,
		clock:     c,
		splitHour: splitHour,
		logger:    slog.Default(),
	}
}

// BoundaryFor returns the split boundary of now's calendar day, in now's
// location. Before the split hour it lies in the future.
func BoundaryFor(now time.Time, hour int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
}

// NextBoundary returns the first split boundary strictly after now.
func NextBoundary(now time.Time, hour int) time.Time {
	b := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !b.After(now) {
		b = b.AddDate(0, 0, 1)
	}
	return b
}

// CheckDailySplit starts a new chain when the active chain was created before
// today's split boundary. It does nothing when no chain is active, and the
// previous chain is left untouched.
func (p *Policy) CheckDailySplit(ctx context.Context) (SplitResult, bool, error) {
	boundary := BoundaryFor(p.clock.Now(), p.splitHour)

	created, split, err := p.store.SplitActiveIf(ctx, func(active chain.Chain) bool {
		if active.CreatedAt == 0 {
			p.logger.Warn("active chain has no creation time, skipping daily split", "chain_id", active.ID)
			return false
		}
		return active.CreatedAt < boundary.UnixMilli()
	})
	if err != nil {
		return SplitResult{}, false, fmt.Errorf("daily split: %w", err)
	}
	if !split {
		p.logger.Debug("daily split not needed", "boundary", boundary)
		return SplitResult{}, false, nil
	}

	p.logger.Info("daily split created chain", "chain_id", created.ID, "name", created.Name)
	p.notify("daily")
	return SplitResult{ChainID: created.ID, ChainName: created.Name}, true, nil
}

// ManualSplit always starts a new date-named chain and makes it active.
func (p *Policy) ManualSplit(ctx context.Context) (SplitResult, error) {
	created, err := p.store.CreateChain(ctx, "")
	if err != nil {
		return SplitResult{}, fmt.Errorf("manual split: %w", err)
	}
	p.logger.Info("manual split created chain", "chain_id", created.ID, "name", created.Name)
	p.notify("manual")
	return SplitResult{ChainID: created.ID, ChainName: created.Name}, nil
}

func (p *Policy) notify(trigger string) {
	if p.OnSplit != nil {
		p.OnSplit(trigger)
	}
}
