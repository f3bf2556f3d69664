package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/worker"
)

var (
	errChainNotFound = errors.New("chain not found")
	errNodeNotFound  = errors.New("node not found")
	errBlankName     = errors.New("chain name must not be blank")
)

// addNode captures a page into the requested chain (or the active one) and
// queues its summary. It returns as soon as the node is stored.
func (d *Dispatcher) addNode(ctx context.Context, req Request) (Response, error) {
	in := req.Node
	node := chain.NewNode(in.Title, in.URL, in.Notes, in.Tags, time.Now())

	res, err := d.deps.Store.AddNodeToChain(ctx, node, req.ChainID)
	if err != nil {
		return Response{}, fmt.Errorf("adding node: %w", err)
	}
	d.queueSummary(ctx, res.ChainID, res.NodeID)
	return Response{ChainID: res.ChainID, NodeID: res.NodeID}, nil
}

func (d *Dispatcher) queueSummary(ctx context.Context, chainID, nodeID string) {
	if d.deps.Jobs == nil {
		return
	}
	job, err := worker.NewNodeSummaryJob(chainID, nodeID, false)
	if err == nil {
		err = d.deps.Jobs.EnqueueJob(ctx, job)
	}
	if err != nil {
		// The node is stored; its summary can still be requested later.
		d.logger.Error("queueing node summary", "chain_id", chainID, "node_id", nodeID, "error", err)
	}
}

func (d *Dispatcher) getRecentChains(ctx context.Context, req Request) (Response, error) {
	chains, err := d.deps.Store.RecentChains(ctx, req.Limit)
	if err != nil {
		return Response{}, err
	}
	return Response{Chains: chains}, nil
}

func (d *Dispatcher) getAllChains(ctx context.Context, _ Request) (Response, error) {
	chains, err := d.deps.Store.AllChains(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Chains: chains}, nil
}

func (d *Dispatcher) getActiveChain(ctx context.Context, _ Request) (Response, error) {
	c, ok, err := d.deps.Store.ActiveChain(ctx)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, nil
	}
	return Response{Chain: &c}, nil
}

func (d *Dispatcher) getChain(ctx context.Context, req Request) (Response, error) {
	c, ok, err := d.deps.Store.ChainByID(ctx, req.ChainID)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errChainNotFound
	}
	return Response{Chain: &c}, nil
}

func (d *Dispatcher) setActiveChain(ctx context.Context, req Request) (Response, error) {
	ok, err := d.deps.Store.SetActiveChain(ctx, req.ChainID)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errChainNotFound
	}
	return Response{ChainID: req.ChainID}, nil
}

func (d *Dispatcher) manualSplitChain(ctx context.Context, _ Request) (Response, error) {
	res, err := d.deps.Splitter.ManualSplit(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{NewChainID: res.ChainID, NewChainName: res.ChainName}, nil
}

func (d *Dispatcher) updateChainName(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.NewName) == "" {
		return Response{}, errBlankName
	}
	ok, err := d.deps.Store.UpdateChainName(ctx, req.ChainID, req.NewName)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errChainNotFound
	}
	return Response{ChainID: req.ChainID}, nil
}

func (d *Dispatcher) deleteChain(ctx context.Context, req Request) (Response, error) {
	ok, err := d.deps.Store.DeleteChain(ctx, req.ChainID)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errChainNotFound
	}
	return Response{ChainID: req.ChainID}, nil
}

func (d *Dispatcher) extractContent(ctx context.Context, req Request) (Response, error) {
	art, err := d.deps.Content.Acquire(ctx, req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("extracting %s: %w", req.URL, err)
	}
	return Response{Content: &art}, nil
}

func (d *Dispatcher) getChainSummaryDoc(ctx context.Context, req Request) (Response, error) {
	if _, ok, err := d.deps.Store.ChainByID(ctx, req.ChainID); err != nil {
		return Response{}, err
	} else if !ok {
		return Response{}, errChainNotFound
	}
	doc, _, err := d.deps.Store.ChainSummaryDoc(ctx, req.ChainID)
	if err != nil {
		return Response{}, err
	}
	return Response{ChainID: req.ChainID, SummaryDoc: doc}, nil
}

// requestChainSummary generates the chain report synchronously; the caller
// waits for the model.
func (d *Dispatcher) requestChainSummary(ctx context.Context, req Request) (Response, error) {
	res, err := d.deps.Generator.GenerateChainReport(ctx, req.ChainID, nil, req.CustomPrompt)
	if err != nil {
		return Response{}, err
	}
	if !res.Success {
		return Response{}, errors.New(res.Error)
	}
	return Response{ChainID: req.ChainID, SummaryDoc: res.Report}, nil
}

func (d *Dispatcher) regenerateNodeSummary(ctx context.Context, req Request) (Response, error) {
	res, err := d.deps.Generator.GenerateNodeSummary(ctx, req.ChainID, req.NodeID, true)
	if err != nil {
		return Response{}, err
	}
	if !res.Success {
		// The persisted placeholder is still useful to the caller.
		return Response{ChainID: req.ChainID, NodeID: req.NodeID, Summary: res.Summary, Degraded: res.Degraded}, errors.New(res.Error)
	}
	return Response{ChainID: req.ChainID, NodeID: req.NodeID, Summary: res.Summary, Skipped: res.Skipped}, nil
}

func (d *Dispatcher) getRecentNodes(ctx context.Context, req Request) (Response, error) {
	nodes, err := d.deps.Store.RecentNodes(ctx, req.Limit)
	if err != nil {
		return Response{}, err
	}
	return Response{Nodes: nodes}, nil
}

func (d *Dispatcher) updateNodeNotes(ctx context.Context, req Request) (Response, error) {
	return d.nodeMutation(req, func() (bool, error) {
		return d.deps.Store.UpdateNodeNotes(ctx, req.NodeID, req.ChainID, *req.Notes)
	})
}

func (d *Dispatcher) reorderNodes(ctx context.Context, req Request) (Response, error) {
	return d.nodeMutation(req, func() (bool, error) {
		return d.deps.Store.ReorderNodes(ctx, req.ChainID, req.NodeID, *req.NewPosition)
	})
}

func (d *Dispatcher) removeNode(ctx context.Context, req Request) (Response, error) {
	return d.nodeMutation(req, func() (bool, error) {
		return d.deps.Store.RemoveNodeFromChain(ctx, req.NodeID, req.ChainID)
	})
}

func (d *Dispatcher) nodeMutation(req Request, fn func() (bool, error)) (Response, error) {
	ok, err := fn()
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errNodeNotFound
	}
	return Response{ChainID: req.ChainID, NodeID: req.NodeID}, nil
}

func (d *Dispatcher) getNode(ctx context.Context, req Request) (Response, error) {
	n, ok, err := d.deps.Store.NodeByID(ctx, req.ChainID, req.NodeID)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{}, errNodeNotFound
	}
	return Response{Node: &n}, nil
}
