// Package store is the persistence layer for thought chains. It keeps the
// whole root (all chains plus the active-chain pointer) in a key-value area
// and exposes mutations that preserve the chain invariants: unique chain and
// node IDs, at most one active chain, and strictly increasing updatedAt.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kalambet/thoughtchain/internal/chain"
	"github.com/kalambet/thoughtchain/internal/clock"
	"github.com/kalambet/thoughtchain/internal/storage"
)

// Persisted keys.
const (
	KeyChains      = "thoughtChains"
	KeyActiveChain = "activeChainId"
)

const (
	DefaultRecentChains = 5
	DefaultRecentNodes  = 10
)

// AddResult identifies where AddNodeToChain placed a node.
type AddResult struct {
	ChainID string `json:"chainId"`
	NodeID  string `json:"nodeId"`
}

// NodeRef is a node together with the chain that holds it.
type NodeRef struct {
	Node      chain.Node `json:"node"`
	ChainID   string     `json:"chainId"`
	ChainName string     `json:"chainName"`
}

// Store serializes every mutation through a single in-process writer, so
// concurrent callers never lose each other's read-modify-write updates.
type Store struct {
	kv     storage.KV
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// New creates a Store over kv using the system clock.
func New(kv storage.KV) *Store {
	return NewWithClock(kv, clock.Real{})
}

// NewWithClock creates a Store with a custom clock (for testing).
func NewWithClock(kv storage.KV, c clock.Clock) *Store {
	return &Store{
		kv:     kv,
		clock:  c,
		logger: slog.Default(),
	}
}

// Initialize makes sure both root keys exist. It is idempotent, and every
// other operation calls it lazily. A failed attempt is retried on the next call.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureInit(ctx)
}

func (s *Store) ensureInit(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	vals, err := s.kv.Get(ctx, KeyChains, KeyActiveChain)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	missing := make(map[string][]byte)
	if _, ok := vals[KeyChains]; !ok {
		missing[KeyChains] = []byte("[]")
	}
	if _, ok := vals[KeyActiveChain]; !ok {
		missing[KeyActiveChain] = []byte("null")
	}
	if len(missing) > 0 {
		if err := s.kv.Set(ctx, missing); err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		s.logger.Info("store initialized", "keys", len(missing))
	}

	s.initialized = true
	return nil
}

// load reads and decodes the root. Callers hold mu.
func (s *Store) load(ctx context.Context) (chain.Root, error) {
	if err := s.ensureInit(ctx); err != nil {
		return chain.Root{}, err
	}

	vals, err := s.kv.Get(ctx, KeyChains, KeyActiveChain)
	if err != nil {
		return chain.Root{}, fmt.Errorf("reading root: %w", err)
	}

	var root chain.Root
	if raw, ok := vals[KeyChains]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &root.Chains); err != nil {
			return chain.Root{}, fmt.Errorf("decoding %s: %w", KeyChains, err)
		}
	}
	if raw, ok := vals[KeyActiveChain]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &root.ActiveChainID); err != nil {
			return chain.Root{}, fmt.Errorf("decoding %s: %w", KeyActiveChain, err)
		}
	}
	root.Normalize()
	return root, nil
}

// save writes both root keys in one atomic KV write. Callers hold mu.
func (s *Store) save(ctx context.Context, root chain.Root) error {
	chains, err := json.Marshal(root.Chains)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", KeyChains, err)
	}
	active, err := json.Marshal(root.ActiveChainID)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", KeyActiveChain, err)
	}
	if err := s.kv.Set(ctx, map[string][]byte{KeyChains: chains, KeyActiveChain: active}); err != nil {
		return fmt.Errorf("writing root: %w", err)
	}
	return nil
}

// view runs fn against a fresh snapshot of the root.
func (s *Store) view(ctx context.Context, fn func(*chain.Root)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(&root)
	return nil
}

// update runs fn against the root and persists it when fn reports a change.
func (s *Store) update(ctx context.Context, fn func(*chain.Root) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.load(ctx)
	if err != nil {
		return err
	}
	if !fn(&root) {
		return nil
	}
	return s.save(ctx, root)
}

// AllChains returns every chain in storage order.
func (s *Store) AllChains(ctx context.Context) ([]chain.Chain, error) {
	var chains []chain.Chain
	err := s.view(ctx, func(r *chain.Root) { chains = r.Chains })
	return chains, err
}

func (s *Store) ChainByID(ctx context.Context, id string) (chain.Chain, bool, error) {
	var (
		c     chain.Chain
		found bool
	)
	err := s.view(ctx, func(r *chain.Root) {
		if i := r.ChainIndex(id); i >= 0 {
			c, found = r.Chains[i], true
		}
	})
	return c, found, err
}

// ActiveChain returns the active chain. found is false when no chain is active
// or the pointer refers to a chain that no longer exists.
func (s *Store) ActiveChain(ctx context.Context) (chain.Chain, bool, error) {
	var (
		c     chain.Chain
		found bool
	)
	err := s.view(ctx, func(r *chain.Root) {
		if a := r.Active(); a != nil {
			c, found = *a, true
		}
	})
	return c, found, err
}

// SetActiveChain points the active pointer at id. Unknown ids are rejected and
// leave the pointer unchanged.
func (s *Store) SetActiveChain(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.update(ctx, func(r *chain.Root) bool {
		if r.ChainIndex(id) < 0 {
			return false
		}
		r.SetActive(id)
		ok = true
		return true
	})
	return ok, err
}

// CreateChain appends a new empty chain and makes it active. An empty name is
// replaced by the next date-based name.
func (s *Store) CreateChain(ctx context.Context, name string) (chain.Chain, error) {
	var created chain.Chain
	err := s.update(ctx, func(r *chain.Root) bool {
		created = s.appendChain(r, strings.TrimSpace(name))
		return true
	})
	if err != nil {
		return chain.Chain{}, err
	}
	s.logger.Info("chain created", "chain_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *Store) appendChain(r *chain.Root, name string) chain.Chain {
	now := s.clock.Now()
	if name == "" {
		name = chain.NextName(r.Names(), now)
	}
	c := chain.NewChain(name, now)
	r.Chains = append(r.Chains, c)
	r.SetActive(c.ID)
	return c
}

// AddNodeToChain appends node to chainID, falling back to the active chain and
// then to a freshly created chain when neither exists. The node gets a new ID
// when it has none or its ID is already used anywhere in the store. The target
// chain becomes active.
func (s *Store) AddNodeToChain(ctx context.Context, node chain.Node, chainID string) (AddResult, error) {
	var res AddResult
	healed := false
	err := s.update(ctx, func(r *chain.Root) bool {
		idx := r.ChainIndex(chainID)
		if idx < 0 {
			if a := r.Active(); a != nil {
				idx = r.ChainIndex(a.ID)
			}
		}
		if idx < 0 {
			s.appendChain(r, "")
			idx = len(r.Chains) - 1
			healed = true
		}

		if node.ID == "" || r.HasNodeID(node.ID) {
			node.ID = chain.NewID()
		}
		if node.Tags == nil {
			node.Tags = []string{}
		}
		now := s.clock.Now()
		if node.Timestamp == 0 {
			node.Timestamp = chain.Millis(now)
		}

		c := &r.Chains[idx]
		c.Nodes = append(c.Nodes, node)
		c.Touch(now)
		r.SetActive(c.ID)

		res = AddResult{ChainID: c.ID, NodeID: node.ID}
		return true
	})
	if err != nil {
		return AddResult{}, err
	}
	if healed {
		s.logger.Warn("no target chain for node, created one", "chain_id", res.ChainID)
	}
	return res, nil
}

func (s *Store) RemoveNodeFromChain(ctx context.Context, nodeID, chainID string) (bool, error) {
	return s.mutateChain(ctx, chainID, func(c *chain.Chain) bool {
		i := c.NodeIndex(nodeID)
		if i < 0 {
			return false
		}
		c.Nodes = append(c.Nodes[:i], c.Nodes[i+1:]...)
		return true
	})
}

// DeleteChain removes a chain. When it was active, the first remaining chain
// becomes active, or none if the store is now empty.
func (s *Store) DeleteChain(ctx context.Context, chainID string) (bool, error) {
	var ok bool
	err := s.update(ctx, func(r *chain.Root) bool {
		i := r.ChainIndex(chainID)
		if i < 0 {
			return false
		}
		r.Chains = append(r.Chains[:i], r.Chains[i+1:]...)
		if r.ActiveChainID != nil && *r.ActiveChainID == chainID {
			if len(r.Chains) > 0 {
				r.SetActive(r.Chains[0].ID)
			} else {
				r.SetActive("")
			}
		}
		ok = true
		return true
	})
	return ok, err
}

// RecentChains returns up to limit chains ordered by updatedAt, newest first.
// A non-positive limit uses DefaultRecentChains.
func (s *Store) RecentChains(ctx context.Context, limit int) ([]chain.Chain, error) {
	if limit <= 0 {
		limit = DefaultRecentChains
	}
	chains, err := s.AllChains(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(chains, func(i, j int) bool {
		return chains[i].UpdatedAt > chains[j].UpdatedAt
	})
	if len(chains) > limit {
		chains = chains[:limit]
	}
	return chains, nil
}

// RecentNodes returns up to limit nodes across all chains ordered by capture
// time, newest first. A non-positive limit uses DefaultRecentNodes.
func (s *Store) RecentNodes(ctx context.Context, limit int) ([]NodeRef, error) {
	if limit <= 0 {
		limit = DefaultRecentNodes
	}
	chains, err := s.AllChains(ctx)
	if err != nil {
		return nil, err
	}

	var refs []NodeRef
	for _, c := range chains {
		for _, n := range c.Nodes {
			refs = append(refs, NodeRef{Node: n, ChainID: c.ID, ChainName: c.Name})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return refs[i].Node.Timestamp > refs[j].Node.Timestamp
	})
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

func (s *Store) UpdateNodeNotes(ctx context.Context, nodeID, chainID, notes string) (bool, error) {
	return s.mutateNode(ctx, chainID, nodeID, func(n *chain.Node) { n.Notes = notes })
}

// ReorderNodes moves nodeID to newPosition, clamped to the chain bounds.
// Moving a node onto its current position succeeds without writing.
func (s *Store) ReorderNodes(ctx context.Context, chainID, nodeID string, newPosition int) (bool, error) {
	var ok bool
	err := s.update(ctx, func(r *chain.Root) bool {
		ci := r.ChainIndex(chainID)
		if ci < 0 {
			return false
		}
		c := &r.Chains[ci]
		from := c.NodeIndex(nodeID)
		if from < 0 {
			return false
		}
		ok = true

		to := max(0, min(newPosition, len(c.Nodes)-1))
		if to == from {
			return false
		}

		n := c.Nodes[from]
		c.Nodes = append(c.Nodes[:from], c.Nodes[from+1:]...)
		c.Nodes = append(c.Nodes[:to], append([]chain.Node{n}, c.Nodes[to:]...)...)
		c.Touch(s.clock.Now())
		return true
	})
	return ok, err
}

// UpdateChainName renames a chain. Blank names are rejected; surrounding
// whitespace is trimmed.
func (s *Store) UpdateChainName(ctx context.Context, chainID, newName string) (bool, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return false, nil
	}
	return s.mutateChain(ctx, chainID, func(c *chain.Chain) bool {
		c.Name = name
		return true
	})
}

// GenerateNewChainName returns the name the next date-based chain would get.
func (s *Store) GenerateNewChainName(ctx context.Context) (string, error) {
	var name string
	err := s.view(ctx, func(r *chain.Root) {
		name = chain.NextName(r.Names(), s.clock.Now())
	})
	return name, err
}

func (s *Store) UpdateNodeAISummary(ctx context.Context, chainID, nodeID, summary string) (bool, error) {
	return s.mutateNode(ctx, chainID, nodeID, func(n *chain.Node) { n.AISummary = summary })
}

func (s *Store) UpdateChainSummaryDoc(ctx context.Context, chainID, doc string) (bool, error) {
	return s.mutateChain(ctx, chainID, func(c *chain.Chain) bool {
		c.ChainSummaryDoc = doc
		return true
	})
}

// ChainSummaryDoc returns the stored report. found is false when the chain is
// missing or has no report yet.
func (s *Store) ChainSummaryDoc(ctx context.Context, chainID string) (string, bool, error) {
	c, found, err := s.ChainByID(ctx, chainID)
	if err != nil || !found || c.ChainSummaryDoc == "" {
		return "", false, err
	}
	return c.ChainSummaryDoc, true, nil
}

func (s *Store) NodeByID(ctx context.Context, chainID, nodeID string) (chain.Node, bool, error) {
	c, found, err := s.ChainByID(ctx, chainID)
	if err != nil || !found {
		return chain.Node{}, false, err
	}
	if i := c.NodeIndex(nodeID); i >= 0 {
		return c.Nodes[i], true, nil
	}
	return chain.Node{}, false, nil
}

// mutateChain applies fn to chainID and bumps updatedAt when fn reports a change.
func (s *Store) mutateChain(ctx context.Context, chainID string, fn func(*chain.Chain) bool) (bool, error) {
	var ok bool
	err := s.update(ctx, func(r *chain.Root) bool {
		i := r.ChainIndex(chainID)
		if i < 0 {
			return false
		}
		c := &r.Chains[i]
		if !fn(c) {
			return false
		}
		c.Touch(s.clock.Now())
		ok = true
		return true
	})
	return ok, err
}

func (s *Store) mutateNode(ctx context.Context, chainID, nodeID string, fn func(*chain.Node)) (bool, error) {
	return s.mutateChain(ctx, chainID, func(c *chain.Chain) bool {
		i := c.NodeIndex(nodeID)
		if i < 0 {
			return false
		}
		fn(&c.Nodes[i])
		return true
	})
}

// SplitActiveIf creates and activates a new date-named chain when an active
// chain exists and cond accepts it. The check and the creation happen under the
// same write, so concurrent splits cannot both fire.
func (s *Store) SplitActiveIf(ctx context.Context, cond func(active chain.Chain) bool) (chain.Chain, bool, error) {
	var (
		created chain.Chain
		split   bool
	)
	err := s.update(ctx, func(r *chain.Root) bool {
		a := r.Active()
		if a == nil || !cond(*a) {
			return false
		}
		created = s.appendChain(r, "")
		split = true
		return true
	})
	if err != nil {
		return chain.Chain{}, false, err
	}
	return created, split, nil
}
