// Package chain defines the thought-chain entity model: nodes are visited
// pages with user annotations, chains are ordered groups of nodes, and Root is
// the whole persisted state that is read and written as one unit.
package chain

import (
	"time"

	"github.com/google/uuid"
)

// Node is a single captured page within a chain.
type Node struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	Notes     string   `json:"notes"`
	Tags      []string `json:"tags"`
	AISummary string   `json:"aiSummary,omitempty"`
}

// Chain is an ordered sequence of nodes. Node order is user-meaningful.
type Chain struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	Nodes           []Node `json:"nodes"`
	ChainSummaryDoc string `json:"chainSummaryDoc,omitempty"`
}

// Root is the full persisted state. ActiveChainID is nil when no chain is
// active.
type Root struct {
	Chains        []Chain `json:"chains"`
	ActiveChainID *string `json:"activeChainId"`
}

// NewID returns a fresh random identifier for chains and nodes.
func NewID() string {
	return uuid.New().String()
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// NewChain builds an empty chain created at now.
func NewChain(name string, now time.Time) Chain {
	ms := Millis(now)
	return Chain{
		ID:        NewID(),
		Name:      name,
		CreatedAt: ms,
		UpdatedAt: ms,
		Nodes:     []Node{},
	}
}

// NewNode builds a node for a captured page. The ID is left empty; the store
// assigns one on insert.
func NewNode(title, url, notes string, tags []string, now time.Time) Node {
	if tags == nil {
		tags = []string{}
	}
	return Node{
		Title:     title,
		URL:       url,
		Timestamp: Millis(now),
		Notes:     notes,
		Tags:      tags,
	}
}

// NodeIndex returns the position of the node with id in c, or -1.
func (c *Chain) NodeIndex(id string) int {
	for i := range c.Nodes {
		if c.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Touch bumps UpdatedAt to now, keeping it strictly increasing even when the
// clock has not advanced since the previous write.
func (c *Chain) Touch(now time.Time) {
	ms := Millis(now)
	if ms <= c.UpdatedAt {
		ms = c.UpdatedAt + 1
	}
	c.UpdatedAt = ms
}

// ChainIndex returns the position of the chain with id in r, or -1.
func (r *Root) ChainIndex(id string) int {
	for i := range r.Chains {
		if r.Chains[i].ID == id {
			return i
		}
	}
	return -1
}

// Active returns a pointer to the active chain, or nil when the pointer is
// unset or dangling.
func (r *Root) Active() *Chain {
	if r.ActiveChainID == nil {
		return nil
	}
	if i := r.ChainIndex(*r.ActiveChainID); i >= 0 {
		return &r.Chains[i]
	}
	return nil
}

// SetActive points the active chain at id. An empty id clears it.
func (r *Root) SetActive(id string) {
	if id == "" {
		r.ActiveChainID = nil
		return
	}
	r.ActiveChainID = &id
}

// HasNodeID reports whether any chain contains a node with id.
func (r *Root) HasNodeID(id string) bool {
	for i := range r.Chains {
		if r.Chains[i].NodeIndex(id) >= 0 {
			return true
		}
	}
	return false
}

// Names lists the names of all chains in storage order.
func (r *Root) Names() []string {
	names := make([]string, len(r.Chains))
	for i := range r.Chains {
		names[i] = r.Chains[i].Name
	}
	return names
}

// Normalize fills defaults that older persisted data may lack.
func (r *Root) Normalize() {
	if r.Chains == nil {
		r.Chains = []Chain{}
	}
	for i := range r.Chains {
		if r.Chains[i].Nodes == nil {
			r.Chains[i].Nodes = []Node{}
		}
		for j := range r.Chains[i].Nodes {
			if r.Chains[i].Nodes[j].Tags == nil {
				r.Chains[i].Nodes[j].Tags = []string{}
			}
		}
	}
}
