// Package payload assembles the bounded context the AI decision service
// sees each cycle, in either of two modes: traditional (the focus
// channel rendered in full, every other channel summary-only) or
// node-based (a collapsible tree of summaries with only expanded nodes
// shown in full), plus the shared anti-loop and rate-limit context
// appended in both modes.
package payload

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/integrations"
	"github.com/nextlevelbuilder/socialagent/internal/nodes"
	"github.com/nextlevelbuilder/socialagent/internal/ratelimit"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// Mode selects how channel content is rendered into the payload.
type Mode string

const (
	ModeTraditional Mode = "traditional"
	ModeNodeBased   Mode = "node_based"
)

// Config controls payload assembly.
type Config struct {
	Mode               Mode
	MaxTotalChars      int
	MaxMessagesPerChan int
	MaxActionHistory   int
	MaxRecentMedia     int
	RecentMediaWindow  time.Duration
	MaxThreadMessages  int
}

// Default returns conservative defaults sized to fit comfortably inside
// typical LLM context windows alongside the system prompt and tools.
func Default() Config {
	return Config{
		Mode:               ModeTraditional,
		MaxTotalChars:      40000,
		MaxMessagesPerChan: 40,
		MaxActionHistory:   20,
		MaxRecentMedia:     5,
		RecentMediaWindow:  time.Hour,
		MaxThreadMessages:  20,
	}
}

// ActivityView is the activity_metrics summary offered for a
// summary-only channel instead of its full message list.
type ActivityView struct {
	MessageCount int       `json:"message_count"`
	LastActive   time.Time `json:"last_active"`
}

// ChannelView is one channel's rendered content in the payload: either
// Detailed (full Messages) or summary-only (Activity, no Messages), per
// spec.md §4.4.
type ChannelView struct {
	ChannelID string        `json:"channel_id"`
	Name      string        `json:"name"`
	Topic     string        `json:"topic,omitempty"`
	Detailed  bool          `json:"detailed"`
	Activity  *ActivityView `json:"activity_metrics,omitempty"`
	Messages  []MessageView `json:"messages,omitempty"`
}

// MessageView is the flattened, payload-ready form of a worldstate.Message.
type MessageView struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	FromBot   bool      `json:"from_bot"`
}

// ThreadView is the triggering message's thread, rendered in full
// regardless of its channel's detail level, per spec.md §4.4.
type ThreadView struct {
	ThreadID  string        `json:"thread_id"`
	ChannelID string        `json:"channel_id"`
	Messages  []MessageView `json:"messages"`
}

// ConnectionStatus is the trimmed, payload-ready form of
// integrations.Status.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

// SystemStatus is system_status: connection states, rate limits,
// pending invites, and the current cycle id, per spec.md §4.4.
type SystemStatus struct {
	CycleID        string                      `json:"cycle_id,omitempty"`
	Connections    map[string]ConnectionStatus `json:"connections,omitempty"`
	RateLimits     ratelimit.Snapshot          `json:"rate_limits"`
	PendingInvites []worldstate.PendingInvite  `json:"pending_invites,omitempty"`
}

// PayloadStats is payload_stats: byte size, counts, and bot identity,
// per spec.md §4.4.
type PayloadStats struct {
	ByteSize             int    `json:"byte_size"`
	ChannelCount         int    `json:"channel_count"`
	DetailedChannelCount int    `json:"detailed_channel_count"`
	ActionHistoryCount   int    `json:"action_history_count"`
	BotIdentity          string `json:"bot_identity,omitempty"`
}

// NodeSummaryView is one entry of collapsed_node_summaries: the node's
// cached summary, whether the underlying data has since changed, and
// when the summary was last computed.
type NodeSummaryView struct {
	Summary       string    `json:"summary"`
	DataChanged   bool      `json:"data_changed"`
	LastSummaryTS time.Time `json:"last_summary_ts,omitempty"`
}

// ExpansionStatusView mirrors C3's get_expansion_status() -> {expanded,
// pinned, capacity}.
type ExpansionStatusView struct {
	Expanded []string `json:"expanded"`
	Pinned   []string `json:"pinned"`
	Capacity int      `json:"capacity"`
}

// Payload is the full structure handed to the AI decision service.
type Payload struct {
	Mode             Mode                            `json:"mode"`
	CurrentChannelID string                          `json:"current_channel_id,omitempty"`
	Channels         []ChannelView                   `json:"channels,omitempty"`
	Threads          *ThreadView                     `json:"threads,omitempty"`
	ActionHistory    []worldstate.ActionRecord       `json:"action_history,omitempty"`
	SystemStatus     SystemStatus                    `json:"system_status"`
	RecentMedia      []worldstate.GeneratedMediaRef  `json:"recent_media,omitempty"`
	AntiLoop         AntiLoopContext                 `json:"bot_activity_context"`
	Pending          []worldstate.PendingInvite      `json:"pending_invites,omitempty"`
	PayloadStats     PayloadStats                    `json:"payload_stats"`
	Truncated        bool                            `json:"truncated"`

	// Node-based mode only.
	ExpandedNodes          []ChannelView               `json:"expanded_nodes,omitempty"`
	CollapsedNodeSummaries map[string]NodeSummaryView  `json:"collapsed_node_summaries,omitempty"`
	ExpansionStatus        *ExpansionStatusView        `json:"expansion_status,omitempty"`
	SystemEvents           []string                    `json:"system_events,omitempty"`
}

// DataChangeChecker reports whether a node's underlying data has
// changed since its summary was last computed. The Orchestrator
// implements this (it alone knows how to recompute a node's current
// fingerprint); wired in post-construction the same way
// tools.NewRefreshSummaryTool(orch) closes the registry/orchestrator
// circular dependency.
type DataChangeChecker interface {
	IsChannelDataChanged(channelID string) bool
}

// Builder assembles a Payload from world state, optionally consulting a
// nodes.Manager when operating in ModeNodeBased.
type Builder struct {
	cfg     Config
	store   *worldstate.Store
	nodes   *nodes.Manager
	ints    []integrations.Integration
	checker DataChangeChecker
	botID   string
}

// New constructs a Builder. nodeMgr may be nil when cfg.Mode is
// ModeTraditional.
func New(cfg Config, store *worldstate.Store, nodeMgr *nodes.Manager) *Builder {
	if cfg.MaxActionHistory <= 0 {
		cfg.MaxActionHistory = 20
	}
	if cfg.MaxRecentMedia <= 0 {
		cfg.MaxRecentMedia = 5
	}
	if cfg.RecentMediaWindow <= 0 {
		cfg.RecentMediaWindow = time.Hour
	}
	if cfg.MaxThreadMessages <= 0 {
		cfg.MaxThreadMessages = 20
	}
	return &Builder{cfg: cfg, store: store, nodes: nodeMgr}
}

// SetMode overrides the Builder's rendering mode for subsequent Build
// calls. Mode selection is the Orchestrator's call, re-decided every
// cycle from a payload-size estimate; the Builder itself never chooses.
func (b *Builder) SetMode(m Mode) {
	b.cfg.Mode = m
}

// Mode returns the Builder's current rendering mode.
func (b *Builder) Mode() Mode {
	return b.cfg.Mode
}

// SetIntegrations supplies the connected platforms whose Status() feeds
// system_status.connections.
func (b *Builder) SetIntegrations(ints []integrations.Integration) {
	b.ints = ints
}

// SetDataChangeChecker wires the Orchestrator's fingerprint comparison
// into collapsed_node_summaries.data_changed.
func (b *Builder) SetDataChangeChecker(c DataChangeChecker) {
	b.checker = c
}

// SetBotIdentity sets the bot identity string surfaced in payload_stats.
func (b *Builder) SetBotIdentity(id string) {
	b.botID = id
}

// avgMessageBytes approximates one rendered MessageView's marshaled
// size, used by EstimateTraditionalSize's cheap pre-build estimate.
const avgMessageBytes = 180

// EstimateTraditionalSize approximates the byte size a traditional-mode
// payload would reach, from channel and message counts alone, without
// actually rendering one. The Orchestrator uses this ahead of Build to
// decide whether to switch to node-based mode for the cycle.
func (b *Builder) EstimateTraditionalSize() int {
	total := 0
	for _, ch := range b.store.Channels() {
		n := len(b.store.Messages(ch.ID, b.cfg.MaxMessagesPerChan))
		total += n*avgMessageBytes + 64
	}
	return total
}

// Build renders the current world state into a size-bounded Payload.
// focusChannelID is the cycle's selected current channel (spec.md §4.8
// step 1): in traditional mode it alone is rendered in full detail,
// every other channel is summary-only. An empty focusChannelID (no
// known channels yet) falls back to rendering every channel detailed,
// since there is nothing to distinguish it from.
func (b *Builder) Build(limiter *ratelimit.Limiter, now time.Time, focusChannelID, cycleID string) Payload {
	p := Payload{
		Mode:             b.cfg.Mode,
		CurrentChannelID: focusChannelID,
		AntiLoop:         BuildAntiLoopContext(b.store, now),
		SystemStatus: SystemStatus{
			CycleID:    cycleID,
			RateLimits: limiter.Snapshot(),
		},
	}
	for _, inv := range b.store.PendingInvites() {
		p.Pending = append(p.Pending, *inv)
	}
	p.SystemStatus.PendingInvites = p.Pending

	if len(b.ints) > 0 {
		p.SystemStatus.Connections = make(map[string]ConnectionStatus, len(b.ints))
		for _, integ := range b.ints {
			st := integ.Status()
			p.SystemStatus.Connections[integ.Name()] = ConnectionStatus{Connected: st.Connected, LastError: st.LastError}
		}
	}

	for _, ref := range b.store.RecentMedia(b.cfg.RecentMediaWindow, b.cfg.MaxRecentMedia) {
		p.RecentMedia = append(p.RecentMedia, *ref)
	}

	for _, a := range b.store.Actions(b.cfg.MaxActionHistory) {
		p.ActionHistory = append(p.ActionHistory, *a)
	}

	switch b.cfg.Mode {
	case ModeNodeBased:
		b.buildNodeBased(&p, focusChannelID)
	default:
		b.buildTraditional(&p, focusChannelID)
	}

	b.buildThreads(&p, focusChannelID)

	p.Truncated = b.truncate(&p)
	p.PayloadStats = b.stats(&p)
	return p
}

// buildTraditional renders every channel, the focus channel in full
// detail and all others summary-only, per spec.md §4.4.
func (b *Builder) buildTraditional(p *Payload, focusChannelID string) {
	channels := b.store.Channels()
	for _, ch := range channels {
		detailed := focusChannelID == "" || ch.ID == focusChannelID
		view := ChannelView{ChannelID: ch.ID, Name: ch.Name, Topic: ch.Topic, Detailed: detailed}
		if detailed {
			view.Messages = renderMessages(b.store.Messages(ch.ID, b.cfg.MaxMessagesPerChan))
		} else {
			metrics := b.store.Activity()
			view.Activity = activityFor(metrics, ch.ID)
		}
		p.Channels = append(p.Channels, view)
	}
}

// buildNodeBased renders expanded_nodes, collapsed_node_summaries, and
// expansion_status from the node manager, per spec.md §4.4.
func (b *Builder) buildNodeBased(p *Payload, focusChannelID string) {
	if b.nodes == nil {
		return
	}
	statuses := b.nodes.AllStatuses()
	var expandedIDs, pinnedIDs []string
	p.CollapsedNodeSummaries = make(map[string]NodeSummaryView)
	for _, st := range statuses {
		if st.Pinned {
			pinnedIDs = append(pinnedIDs, st.ID)
		}
		if st.Expanded {
			expandedIDs = append(expandedIDs, st.ID)
			ch, ok := b.store.Channel(st.ID)
			name := st.ID
			var topic string
			if ok {
				name, topic = ch.Name, ch.Topic
			}
			view := ChannelView{ChannelID: st.ID, Name: name, Topic: topic, Detailed: true}
			view.Messages = renderMessages(b.store.Messages(st.ID, b.cfg.MaxMessagesPerChan))
			p.ExpandedNodes = append(p.ExpandedNodes, view)
			continue
		}
		changed := false
		if b.checker != nil {
			changed = b.checker.IsChannelDataChanged(st.ID)
		}
		p.CollapsedNodeSummaries[st.ID] = NodeSummaryView{
			Summary:       st.Summary,
			DataChanged:   changed,
			LastSummaryTS: st.SummaryUpdatedAt,
		}
	}
	sort.Strings(expandedIDs)
	sort.Strings(pinnedIDs)
	p.ExpansionStatus = &ExpansionStatusView{
		Expanded: expandedIDs,
		Pinned:   pinnedIDs,
		Capacity: b.nodes.Capacity(),
	}
	p.SystemEvents = b.nodes.Events()
}

// buildThreads attaches the thread containing the focus channel's most
// recent message, if any, per spec.md §4.4's `threads` field.
func (b *Builder) buildThreads(p *Payload, focusChannelID string) {
	if focusChannelID == "" {
		return
	}
	msgs := b.store.Messages(focusChannelID, 1)
	if len(msgs) == 0 || msgs[0].ThreadID == "" {
		return
	}
	threadID := msgs[0].ThreadID
	thMsgs := b.store.ThreadMessages(threadID, b.cfg.MaxThreadMessages)
	if len(thMsgs) == 0 {
		return
	}
	p.Threads = &ThreadView{ThreadID: threadID, ChannelID: focusChannelID, Messages: renderMessages(thMsgs)}
}

func renderMessages(msgs []*worldstate.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			ID:        m.ID,
			Author:    m.AuthorID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
			FromBot:   m.IsFromBot,
		})
	}
	return out
}

func activityFor(metrics []worldstate.ActivityMetrics, channelID string) *ActivityView {
	for _, m := range metrics {
		if m.ChannelID == channelID {
			return &ActivityView{MessageCount: m.MessageCount, LastActive: m.LastActive}
		}
	}
	return nil
}

func (b *Builder) stats(p *Payload) PayloadStats {
	detailed := 0
	for _, ch := range p.Channels {
		if ch.Detailed {
			detailed++
		}
	}
	return PayloadStats{
		ByteSize:             size(p),
		ChannelCount:         len(p.Channels),
		DetailedChannelCount: detailed,
		ActionHistoryCount:   len(p.ActionHistory),
		BotIdentity:          b.botID,
	}
}

// truncate drops the oldest messages across channels, round-robin, then
// deletes collapsed-node summaries one at a time (in map iteration
// order, with no priority ranking), until the marshaled
// payload fits within MaxTotalChars. Returns whether any truncation
// occurred. Per spec.md §4.4.2's progressive size-control policy.
func (b *Builder) truncate(p *Payload) bool {
	if b.cfg.MaxTotalChars <= 0 {
		return false
	}
	truncated := false
	for size(p) > b.cfg.MaxTotalChars {
		trimmedAny := false
		for i := range p.Channels {
			ch := &p.Channels[i]
			if len(ch.Messages) == 0 {
				continue
			}
			ch.Messages = ch.Messages[1:]
			trimmedAny = true
			truncated = true
			if size(p) <= b.cfg.MaxTotalChars {
				return truncated
			}
		}
		if trimmedAny {
			continue
		}
		if len(p.CollapsedNodeSummaries) > 0 {
			for k := range p.CollapsedNodeSummaries {
				delete(p.CollapsedNodeSummaries, k)
				truncated = true
				trimmedAny = true
				break
			}
		}
		if !trimmedAny {
			break
		}
	}
	return truncated
}

func size(p *Payload) int {
	b, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(b)
}
