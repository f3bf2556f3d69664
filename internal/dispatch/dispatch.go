// Package dispatch is the message surface of thoughtchain. A message names
// an action and carries that action's parameters; the reply is always an
// envelope with a success flag and either a payload or an error string.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/extract"
	"github.com/kalambet/thoughtchain/internal/lifecycle"
	"github.com/kalambet/thoughtchain/internal/storage"
	"github.com/kalambet/thoughtchain/internal/store"
	"github.com/kalambet/thoughtchain/internal/summary"
)

// Actions understood by the dispatcher.
const (
	ActionAddNode               = "addNode"
	ActionGetRecentChains       = "getRecentChains"
	ActionGetActiveChain        = "getActiveChain"
	ActionSetActiveChain        = "setActiveChain"
	ActionManualSplitChain      = "manualSplitChain"
	ActionUpdateChainName       = "updateChainName"
	ActionDeleteChain           = "deleteChain"
	ActionExtractContent        = "extractContent"
	ActionGetChainSummaryDoc    = "getChainSummaryDoc"
	ActionRequestChainSummary   = "requestChainSummary"
	ActionRegenerateNodeSummary = "regenerateNodeSummary"
	ActionGetAllChains          = "getAllChains"
	ActionGetChain              = "getChain"
	ActionGetRecentNodes        = "getRecentNodes"
	ActionUpdateNodeNotes       = "updateNodeNotes"
	ActionReorderNodes          = "reorderNodes"
	ActionRemoveNode            = "removeNode"
	ActionGetNode               = "getNode"
)

// Failure codes carried by Response.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeFailed         = "failed"
)

// NodeInput describes a page to capture.
type NodeInput struct {
	Title string   `json:"title" validate:"max=2048"`
	URL   string   `json:"url" validate:"required,url"`
	Notes string   `json:"notes"`
	Tags  []string `json:"tags" validate:"dive,max=64"`
}

// Request is one message. Which fields are required depends on Action.
type Request struct {
	Action       string     `json:"action" validate:"required"`
	Node         *NodeInput `json:"node,omitempty" validate:"required"`
	ChainID      string     `json:"chainId,omitempty" validate:"required"`
	NodeID       string     `json:"nodeId,omitempty" validate:"required"`
	NewName      string     `json:"newName,omitempty" validate:"required,max=200"`
	Notes        *string    `json:"notes,omitempty" validate:"required"`
	NewPosition  *int       `json:"newPosition,omitempty" validate:"required"`
	URL          string     `json:"url,omitempty" validate:"required,url"`
	CustomPrompt string     `json:"customPrompt,omitempty" validate:"max=4000"`
	Limit        int        `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// Response is the reply envelope. Only the fields relevant to the action
// are set.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`

	ChainID      string           `json:"chainId,omitempty"`
	NodeID       string           `json:"nodeId,omitempty"`
	NewChainID   string           `json:"newChainId,omitempty"`
	NewChainName string           `json:"newChainName,omitempty"`
	Chain        *chain.Chain     `json:"chain,omitempty"`
	Chains       []chain.Chain    `json:"chains,omitempty"`
	Node         *chain.Node      `json:"node,omitempty"`
	Nodes        []store.NodeRef  `json:"nodes,omitempty"`
	Content      *extract.Article `json:"content,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	SummaryDoc   string           `json:"summaryDoc,omitempty"`
	Degraded     bool             `json:"degraded,omitempty"`
	Skipped      bool             `json:"skipped,omitempty"`
}

// ChainStore is the chain store surface the dispatcher exposes.
type ChainStore interface {
	AllChains(ctx context.Context) ([]chain.Chain, error)
	ChainByID(ctx context.Context, id string) (chain.Chain, bool, error)
	ActiveChain(ctx context.Context) (chain.Chain, bool, error)
	SetActiveChain(ctx context.Context, id string) (bool, error)
	AddNodeToChain(ctx context.Context, node chain.Node, chainID string) (store.AddResult, error)
	RemoveNodeFromChain(ctx context.Context, nodeID, chainID string) (bool, error)
	DeleteChain(ctx context.Context, chainID string) (bool, error)
	RecentChains(ctx context.Context, limit int) ([]chain.Chain, error)
	RecentNodes(ctx context.Context, limit int) ([]store.NodeRef, error)
	UpdateNodeNotes(ctx context.Context, nodeID, chainID, notes string) (bool, error)
	ReorderNodes(ctx context.Context, chainID, nodeID string, newPosition int) (bool, error)
	UpdateChainName(ctx context.Context, chainID, newName string) (bool, error)
	ChainSummaryDoc(ctx context.Context, chainID string) (string, bool, error)
	NodeByID(ctx context.Context, chainID, nodeID string) (chain.Node, bool, error)
}

// Splitter starts new chains on request.
type Splitter interface {
	ManualSplit(ctx context.Context) (lifecycle.SplitResult, error)
}

// Generator runs summary generation.
type Generator interface {
	GenerateNodeSummary(ctx context.Context, chainID, nodeID string, force bool) (summary.NodeResult, error)
	GenerateChainReport(ctx context.Context, chainID string, nodes []chain.Node, guidance string) (summary.ReportResult, error)
}

// ContentSource extracts readable text for a URL.
type ContentSource interface {
	Acquire(ctx context.Context, url string) (extract.Article, error)
}

// JobQueue accepts background jobs.
type JobQueue interface {
	EnqueueJob(ctx context.Context, job storage.Job) error
}

// Recorder observes handled messages.
type Recorder interface {
	ObserveDispatch(action string, success bool)
}

// Deps holds the dispatcher's collaborators. Jobs and Recorder may be nil.
type Deps struct {
	Store     ChainStore
	Splitter  Splitter
	Generator Generator
	Content   ContentSource
	Jobs      JobQueue
	Recorder  Recorder
}

type handlerFunc func(ctx context.Context, req Request) (Response, error)

type action struct {
	fields []string
	handle handlerFunc
}

// Dispatcher routes messages to the store, the lifecycle policy and the
// summary orchestrator.
type Dispatcher struct {
	deps     Deps
	validate *validator.Validate
	actions  map[string]action
	logger   *slog.Logger
}

// New creates a Dispatcher.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	d.actions = map[string]action{
		ActionAddNode:               {[]string{"Node", "Node.Title", "Node.URL", "Node.Tags"}, d.addNode},
		ActionGetRecentChains:       {[]string{"Limit"}, d.getRecentChains},
		ActionGetActiveChain:        {nil, d.getActiveChain},
		ActionSetActiveChain:        {[]string{"ChainID"}, d.setActiveChain},
		ActionManualSplitChain:      {nil, d.manualSplitChain},
		ActionUpdateChainName:       {[]string{"ChainID", "NewName"}, d.updateChainName},
		ActionDeleteChain:           {[]string{"ChainID"}, d.deleteChain},
		ActionExtractContent:        {[]string{"URL"}, d.extractContent},
		ActionGetChainSummaryDoc:    {[]string{"ChainID"}, d.getChainSummaryDoc},
		ActionRequestChainSummary:   {[]string{"ChainID", "CustomPrompt"}, d.requestChainSummary},
		ActionRegenerateNodeSummary: {[]string{"ChainID", "NodeID"}, d.regenerateNodeSummary},
		ActionGetAllChains:          {nil, d.getAllChains},
		ActionGetChain:              {[]string{"ChainID"}, d.getChain},
		ActionGetRecentNodes:        {[]string{"Limit"}, d.getRecentNodes},
		ActionUpdateNodeNotes:       {[]string{"ChainID", "NodeID", "Notes"}, d.updateNodeNotes},
		ActionReorderNodes:          {[]string{"ChainID", "NodeID", "NewPosition"}, d.reorderNodes},
		ActionRemoveNode:            {[]string{"ChainID", "NodeID"}, d.removeNode},
		ActionGetNode:               {[]string{"ChainID", "NodeID"}, d.getNode},
	}
	return d
}

// Dispatch handles one message. It never returns a Go error: every failure
// is reported in the envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	resp := d.dispatch(ctx, req)
	if d.deps.Recorder != nil {
		d.deps.Recorder.ObserveDispatch(req.Action, resp.Success)
	}
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Response {
	act, ok := d.actions[req.Action]
	if !ok {
		if req.Action == "" {
			return failure(CodeInvalidRequest, errors.New("action is required"))
		}
		return failure(CodeInvalidRequest, fmt.Errorf("unknown action %q", req.Action))
	}

	if len(act.fields) > 0 {
		if err := d.validate.StructPartialCtx(ctx, &req, act.fields...); err != nil {
			return failure(CodeInvalidRequest, validationError(err))
		}
	}

	resp, err := act.handle(ctx, req)
	if err != nil {
		d.logger.Warn("dispatch failed", "action", req.Action, "error", err)
		resp.Success = false
		resp.Error = err.Error()
		resp.Code = codeFor(err)
		return resp
	}
	resp.Success = true
	return resp
}

func failure(code string, err error) Response {
	return Response{Success: false, Error: err.Error(), Code: code}
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, errChainNotFound), errors.Is(err, errNodeNotFound),
		errors.Is(err, summary.ErrChainNotFound), errors.Is(err, summary.ErrNodeNotFound):
		return CodeNotFound
	case errors.Is(err, errBlankName):
		return CodeInvalidRequest
	default:
		return CodeFailed
	}
}

// validationError turns validator output into one readable message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Request.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return errors.New("invalid request: " + strings.Join(msgs, "; "))
}
