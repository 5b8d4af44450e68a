// Package nodes implements the node-based payload mode's collapsible
// view over world state: each Channel/Thread can be expanded (full
// content shown to the model) or collapsed (summary only), pinned nodes
// are exempt from automatic eviction, and an LRU policy bounds the
// number of simultaneously expanded nodes the payload builder has to
// render in full.
package nodes

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Node is one collapsible unit in the node-based view: typically a
// Channel, sometimes a Thread within one.
type Node struct {
	ID                string
	Summary           string
	Expanded          bool
	Pinned            bool
	LastAccessed      time.Time
	SummaryUpdatedAt  time.Time
	dataHash          string
}

// maxEvents bounds the system-events ring buffer surfaced in the
// node-based payload's system_events field.
const maxEvents = 20

// Manager tracks node expansion state with an LRU cap over unpinned,
// expanded nodes, mirroring the teacher's bounded-map-with-eviction
// pattern (WebhookRateLimiter) applied to node lifecycle instead of
// webhook hit counts.
type Manager struct {
	mu          sync.Mutex
	nodes       map[string]*Node
	lru         *list.List               // front = most recently used
	lruElements map[string]*list.Element // id -> element, only for expanded+unpinned
	maxExpanded int
	events      []string
}

// NewManager constructs a Manager bounding at most maxExpanded
// simultaneously expanded, unpinned nodes.
func NewManager(maxExpanded int) *Manager {
	if maxExpanded <= 0 {
		maxExpanded = 10
	}
	return &Manager{
		nodes:       make(map[string]*Node),
		lru:         list.New(),
		lruElements: make(map[string]*list.Element),
		maxExpanded: maxExpanded,
	}
}

func (m *Manager) getOrCreate(id string) *Node {
	n, ok := m.nodes[id]
	if !ok {
		n = &Node{ID: id}
		m.nodes[id] = n
	}
	return n
}

// Expand marks id expanded, touching its LRU recency. If the unpinned
// expanded set exceeds maxExpanded, the least-recently-used unpinned
// node is auto-collapsed and its ID is returned as evicted (empty if
// nothing was evicted).
func (m *Manager) Expand(id string) (evicted string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.getOrCreate(id)
	n.Expanded = true
	n.LastAccessed = time.Now()
	m.touchLRU(n)

	for len(m.lruElements) > m.maxExpanded {
		back := m.lru.Back()
		if back == nil {
			break
		}
		victimID := back.Value.(string)
		if victimID == id {
			break
		}
		m.lru.Remove(back)
		delete(m.lruElements, victimID)
		if victim, ok := m.nodes[victimID]; ok {
			victim.Expanded = false
			evicted = victimID
			m.recordEvent(fmt.Sprintf("auto-collapsed %q (LRU eviction, capacity %d)", victimID, m.maxExpanded))
		}
	}
	return evicted
}

// recordEvent appends a system event, keeping only the newest maxEvents.
// Callers must hold m.mu.
func (m *Manager) recordEvent(msg string) {
	m.events = append(m.events, msg)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
}

// Events returns the recent system events (auto-collapses, refreshes),
// oldest first, for the node-based payload's system_events field.
func (m *Manager) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

// Capacity returns the configured MAX_EXPANDED bound.
func (m *Manager) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxExpanded
}

// touchLRU inserts or moves n to the front of the LRU list, unless it
// is pinned (pinned nodes are never tracked for eviction).
func (m *Manager) touchLRU(n *Node) {
	if n.Pinned {
		if el, ok := m.lruElements[n.ID]; ok {
			m.lru.Remove(el)
			delete(m.lruElements, n.ID)
		}
		return
	}
	if el, ok := m.lruElements[n.ID]; ok {
		m.lru.MoveToFront(el)
		return
	}
	el := m.lru.PushFront(n.ID)
	m.lruElements[n.ID] = el
}

// Collapse marks id collapsed and removes it from LRU tracking.
func (m *Manager) Collapse(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.getOrCreate(id)
	n.Expanded = false
	if el, ok := m.lruElements[id]; ok {
		m.lru.Remove(el)
		delete(m.lruElements, id)
	}
}

// Pin exempts id from LRU auto-collapse.
func (m *Manager) Pin(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.getOrCreate(id)
	n.Pinned = true
	if el, ok := m.lruElements[id]; ok {
		m.lru.Remove(el)
		delete(m.lruElements, id)
	}
}

// Unpin returns id to normal LRU tracking; if currently expanded it is
// re-inserted at the most-recently-used position.
func (m *Manager) Unpin(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.getOrCreate(id)
	n.Pinned = false
	if n.Expanded {
		m.touchLRU(n)
	}
}

// UpdateSummary sets the collapsed-view summary text and the hash of
// the underlying data it summarizes, used by IsDataChanged to detect
// staleness.
func (m *Manager) UpdateSummary(id, summary, dataHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.getOrCreate(id)
	n.Summary = summary
	n.dataHash = dataHash
	n.SummaryUpdatedAt = time.Now()
	m.recordEvent(fmt.Sprintf("refreshed summary for %q", id))
}

// IsDataChanged reports whether currentDataHash differs from the hash
// recorded at the last UpdateSummary call, meaning the cached summary
// is stale and RefreshSummary should be called before display.
func (m *Manager) IsDataChanged(id, currentDataHash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return true
	}
	return n.dataHash != currentDataHash
}

// RefreshSummary recomputes and stores the summary for id via fn, then
// updates its data hash.
func (m *Manager) RefreshSummary(id string, fn func() (summary, dataHash string)) {
	summary, dataHash := fn()
	m.UpdateSummary(id, summary, dataHash)
}

// ExpansionStatus is the externally-visible state of one node.
type ExpansionStatus struct {
	ID               string
	Expanded         bool
	Pinned           bool
	Summary          string
	SummaryUpdatedAt time.Time
}

func statusOf(n *Node) ExpansionStatus {
	return ExpansionStatus{ID: n.ID, Expanded: n.Expanded, Pinned: n.Pinned, Summary: n.Summary, SummaryUpdatedAt: n.SummaryUpdatedAt}
}

// GetExpansionStatus returns the current status of id.
func (m *Manager) GetExpansionStatus(id string) ExpansionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return ExpansionStatus{ID: id}
	}
	return statusOf(n)
}

// AllStatuses returns the ExpansionStatus of every known node.
func (m *Manager) AllStatuses() []ExpansionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExpansionStatus, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, statusOf(n))
	}
	return out
}
