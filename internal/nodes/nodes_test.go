package nodes

import "testing"

func TestExpandBoundEvictsLRU(t *testing.T) {
	m := NewManager(2)
	m.Expand("a")
	m.Expand("b")
	if evicted := m.Expand("c"); evicted != "a" {
		t.Fatalf("expected LRU eviction of %q, got %q", "a", evicted)
	}
	if m.GetExpansionStatus("a").Expanded {
		t.Fatalf("expected a collapsed after eviction")
	}
	if !m.GetExpansionStatus("b").Expanded || !m.GetExpansionStatus("c").Expanded {
		t.Fatalf("expected b and c still expanded")
	}
}

func TestPinnedNodeExemptFromEviction(t *testing.T) {
	m := NewManager(1)
	m.Expand("a")
	m.Pin("a")
	if evicted := m.Expand("b"); evicted != "" {
		t.Fatalf("expected no eviction since a is pinned, got %q evicted", evicted)
	}
	if !m.GetExpansionStatus("a").Expanded {
		t.Fatalf("expected pinned node a to remain expanded")
	}
}

func TestUnpinReturnsToLRUTracking(t *testing.T) {
	m := NewManager(1)
	m.Expand("a")
	m.Pin("a")
	m.Unpin("a")
	if evicted := m.Expand("b"); evicted != "a" {
		t.Fatalf("expected a evicted after unpin, got %q", evicted)
	}
}

func TestIsDataChanged(t *testing.T) {
	m := NewManager(5)
	if !m.IsDataChanged("x", "hash1") {
		t.Fatalf("expected unknown node to be considered changed")
	}
	m.UpdateSummary("x", "summary", "hash1")
	if m.IsDataChanged("x", "hash1") {
		t.Fatalf("expected no change when hash matches")
	}
	if !m.IsDataChanged("x", "hash2") {
		t.Fatalf("expected change detected when hash differs")
	}
}

func TestCollapseRemovesFromLRU(t *testing.T) {
	m := NewManager(1)
	m.Expand("a")
	m.Collapse("a")
	if m.GetExpansionStatus("a").Expanded {
		t.Fatalf("expected a collapsed")
	}
	if evicted := m.Expand("b"); evicted != "" {
		t.Fatalf("expected no eviction since a was already collapsed, got %q", evicted)
	}
}
