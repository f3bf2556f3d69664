package chain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTouch_StrictlyIncreasing(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	c := NewChain("c", now)

	c.Touch(now)
	if c.UpdatedAt != 1_000_001 {
		t.Errorf("UpdatedAt = %d, want 1000001", c.UpdatedAt)
	}
	c.Touch(now.Add(-time.Second))
	if c.UpdatedAt != 1_000_002 {
		t.Errorf("UpdatedAt = %d, want 1000002", c.UpdatedAt)
	}
	c.Touch(now.Add(time.Second))
	if c.UpdatedAt != 1_001_000 {
		t.Errorf("UpdatedAt = %d, want 1001000", c.UpdatedAt)
	}
}

func TestRootActive(t *testing.T) {
	r := Root{Chains: []Chain{{ID: "a"}, {ID: "b"}}}
	if r.Active() != nil {
		t.Error("expected no active chain with nil pointer")
	}

	r.SetActive("b")
	if got := r.Active(); got == nil || got.ID != "b" {
		t.Errorf("Active() = %v, want chain b", got)
	}

	r.SetActive("missing")
	if r.Active() != nil {
		t.Error("dangling pointer should not resolve")
	}

	r.SetActive("")
	if r.ActiveChainID != nil {
		t.Error("empty id should clear the pointer")
	}
}

func TestRootJSONLayout(t *testing.T) {
	raw := `{"chains":[{"id":"c1","name":"2025-01-01","createdAt":1,"updatedAt":2,
		"nodes":[{"id":"n1","title":"T","url":"https://example.com","timestamp":5,"notes":""}]}],
		"activeChainId":"c1"}`

	var r Root
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	r.Normalize()

	want := Root{
		Chains: []Chain{{
			ID: "c1", Name: "2025-01-01", CreatedAt: 1, UpdatedAt: 2,
			Nodes: []Node{{ID: "n1", Title: "T", URL: "https://example.com", Timestamp: 5, Tags: []string{}}},
		}},
	}
	active := "c1"
	want.ActiveChainID = &active

	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("decoded root mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(r.Chains[0].Nodes[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"id":"n1","title":"T","url":"https://example.com","timestamp":5,"notes":"","tags":[]}` {
		t.Errorf("node JSON = %s", out)
	}
}
