// Package orchestrator implements the Orchestrator (C8): the single
// task that owns the decision cycle end to end — draining the inbound
// observation bus into world state, consulting the cycle-level rate
// gate, choosing a payload mode, calling the AI decision service, and
// dispatching whatever actions it selects through the per-action rate
// limiter and tool executor. Structurally this generalizes the
// teacher's internal/agent.Loop Think-Act-Observe loop (loop.go) from a
// single conversational turn onto a recurring, gated, multi-action
// cycle.
package orchestrator

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/socialagent/internal/aiservice"
	"github.com/nextlevelbuilder/socialagent/internal/bus"
	"github.com/nextlevelbuilder/socialagent/internal/errs"
	"github.com/nextlevelbuilder/socialagent/internal/history"
	"github.com/nextlevelbuilder/socialagent/internal/nodes"
	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
	"github.com/nextlevelbuilder/socialagent/internal/ratelimit"
	"github.com/nextlevelbuilder/socialagent/internal/telemetry"
	"github.com/nextlevelbuilder/socialagent/internal/tools"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
	"github.com/nextlevelbuilder/socialagent/pkg/protocol"
)

// nodeControlTools is the subset of the tool catalog offered only when
// the cycle is running in node-based mode, per spec.md §4.8 step 3.
var nodeControlTools = map[string]bool{
	protocol.ActionExpandNode:     true,
	protocol.ActionCollapseNode:   true,
	protocol.ActionPinNode:        true,
	protocol.ActionUnpinNode:      true,
	protocol.ActionRefreshSummary: true,
	protocol.ActionGetExpansion:   true,
}

// Config controls the Orchestrator's cycle behavior, sourced from
// config.CycleConfig and config.PayloadConfig at wiring time.
type Config struct {
	TwoPhaseExplore           bool
	MaxExplorationRounds      int
	NodeBasedPreferred        bool
	MaxTraditionalPayloadSize int
	TickInterval              time.Duration
	RetryWorkerInterval       time.Duration

	// CronExpression, when non-empty, overrides plain interval ticking:
	// a cycle is only attempted on ticks where the expression is due,
	// letting an operator schedule activity (e.g. "only during waking
	// hours") independent of config.CycleConfig.Interval.
	CronExpression string
}

// DefaultConfig matches spec.md §4.8's conservative defaults.
func DefaultConfig() Config {
	return Config{
		TwoPhaseExplore:           true,
		MaxExplorationRounds:      3,
		MaxTraditionalPayloadSize: 32000,
		TickInterval:              10 * time.Second,
		RetryWorkerInterval:       5 * time.Minute,
	}
}

// Orchestrator is the single task permitted to mutate world state and
// rate-limit counters (spec.md §5's concurrency model); every other
// task only reads from it or feeds the bus.
type Orchestrator struct {
	cfg Config

	store    *worldstate.Store
	rec      history.Recorder
	nodeMgr  *nodes.Manager
	builder  *payload.Builder
	limiter  *ratelimit.Limiter
	gate     *ratelimit.CycleGate
	ai       *aiservice.Client
	registry *tools.Registry
	executor *tools.Executor
	obsBus   bus.Bus
	tel      *telemetry.Provider
	cron     *gronx.Gronx

	focusCursor  int
	pinnedFocus  bool
}

// Default node paths pinned at startup, per spec.md §4.3: "a small
// default set is pinned at startup (typically: the current processing
// channel, system rate-limits, system notifications)".
const (
	NodeSystemRateLimits   = "system.rate_limits"
	NodeSystemNotifications = "system.notifications"
)

// New constructs an Orchestrator. tel must be non-nil; pass
// telemetry.New with Config.Enabled false to get a no-op tracer rather
// than threading a nil check through every cycle method.
func New(
	cfg Config,
	store *worldstate.Store,
	rec history.Recorder,
	nodeMgr *nodes.Manager,
	builder *payload.Builder,
	limiter *ratelimit.Limiter,
	gate *ratelimit.CycleGate,
	ai *aiservice.Client,
	registry *tools.Registry,
	executor *tools.Executor,
	obsBus bus.Bus,
	tel *telemetry.Provider,
) *Orchestrator {
	if cfg.MaxExplorationRounds <= 0 {
		cfg.MaxExplorationRounds = 3
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 10 * time.Second
	}
	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		rec:      rec,
		nodeMgr:  nodeMgr,
		builder:  builder,
		limiter:  limiter,
		gate:     gate,
		ai:       ai,
		registry: registry,
		executor: executor,
		obsBus:   obsBus,
		tel:      tel,
	}
	if cfg.CronExpression != "" {
		g := gronx.New()
		o.cron = &g
	}
	if nodeMgr != nil {
		nodeMgr.Pin(NodeSystemRateLimits)
		nodeMgr.Pin(NodeSystemNotifications)
	}
	return o
}

// Run drains the bus and drives the cycle gate on a fixed tick until
// ctx is canceled. It is meant to run as the sole long-lived goroutine
// mutating world state; integrations and the retry worker only publish
// to the bus or call read-only methods.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()
	slog.Info("orchestrator started", "tick_interval", o.cfg.TickInterval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick drains pending observations, waits out the cycle gate if
// needed, and runs at most one cycle.
func (o *Orchestrator) tick(ctx context.Context) {
	o.drainBus(ctx)

	if o.cron != nil {
		due, err := o.cron.IsDue(o.cfg.CronExpression, time.Now())
		if err != nil {
			slog.Warn("invalid cron expression, falling back to plain interval ticking", "error", err)
			o.cron = nil
		} else if !due {
			return
		}
	}

	const maxGateWaits = 5
	for attempt := 0; ; attempt++ {
		ok, wait := o.gate.CanProcess(time.Now())
		if ok {
			break
		}
		if attempt >= maxGateWaits {
			slog.Debug("cycle gate still blocked, deferring to next tick", "wait", wait)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	o.gate.Record(time.Now())
	if o.processCycle(ctx) {
		o.gate.DecayOne()
	}
}

// drainBus applies every observation currently queued on the bus to
// world state and the durable recorder, without blocking past a short
// grace period — new observations arriving mid-drain are picked up on
// the next tick rather than stalling the cycle indefinitely.
func (o *Orchestrator) drainBus(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		drainCtx, cancel := context.WithDeadline(ctx, deadline)
		obs, ok := o.obsBus.Consume(drainCtx)
		cancel()
		if !ok {
			return
		}
		o.applyObservation(ctx, obs)
	}
}

func (o *Orchestrator) applyObservation(ctx context.Context, obs bus.Observation) {
	switch obs.Kind {
	case bus.ObservationMessage:
		if obs.Message == nil {
			return
		}
		if !o.store.AddMessage(obs.Message) {
			return
		}
		if err := o.rec.RecordMessage(ctx, obs.Message); err != nil {
			slog.Warn("record message failed", "error", err)
		}
		o.recordStateChange(ctx, worldstate.ChangeMessageAdded, obs.Message.ID, obs.Message.Content)

	case bus.ObservationInvite:
		if obs.Invite == nil {
			return
		}
		o.store.UpsertInvite(obs.Invite)
		o.recordStateChange(ctx, worldstate.ChangeInviteSeen, obs.Invite.ChannelID, "")

	case bus.ObservationUndecryptable:
		if obs.Undecryptable == nil {
			return
		}
		o.store.MarkUndecryptable(obs.Undecryptable)
		if err := o.rec.RecordUndecryptableEvent(ctx, obs.Undecryptable); err != nil {
			slog.Warn("record undecryptable event failed", "error", err)
		}
	}
}

func (o *Orchestrator) recordStateChange(ctx context.Context, typ worldstate.ChangeType, entityID, raw string) {
	block := &worldstate.StateChangeBlock{
		ID:         uuid.NewString(),
		Type:       typ,
		EntityID:   entityID,
		RawContent: raw,
		CreatedAt:  time.Now(),
	}
	if err := o.rec.RecordStateChange(ctx, block); err != nil {
		slog.Warn("record state change failed", "error", err, "type", typ)
	}
}

// processCycle runs spec.md §4.8's nine-step decision cycle and
// reports whether it completed without any rate-limit rejection, so
// the caller can decide whether to relax the adaptive cooldown.
func (o *Orchestrator) processCycle(ctx context.Context) (clean bool) {
	clean = true
	cycleID := uuid.NewString()
	ctx, span := o.tel.StartCycle(ctx, cycleID)
	defer span.End()

	focus := o.selectFocusChannel()
	if focus != "" && !o.pinnedFocus {
		o.nodeMgr.Pin(focus)
		o.pinnedFocus = true
	}
	slog.Info("cycle start", "cycle_id", cycleID, "focus_channel", focus)

	o.limiter.ResetCycle()

	mode := payload.ModeTraditional
	estimate := o.builder.EstimateTraditionalSize()
	if o.cfg.NodeBasedPreferred || estimate >= o.cfg.MaxTraditionalPayloadSize {
		mode = payload.ModeNodeBased
	}
	o.builder.SetMode(mode)

	var decision aiservice.DecisionResult
	if mode == payload.ModeNodeBased {
		o.refreshChangedSummaries(ctx)
		if o.cfg.TwoPhaseExplore {
			o.runExplorationPhase(ctx, cycleID, focus)
		}
		decision = o.decide(ctx, cycleID, focus, o.toolDefs(true))
	} else {
		decision = o.decide(ctx, cycleID, focus, o.toolDefs(false))
	}

	if !o.dispatchActions(ctx, cycleID, decision.SelectedActions) {
		clean = false
	}

	o.recordStateChange(ctx, worldstate.ChangeActionApplied, cycleID, decision.Reasoning)
	slog.Info("cycle complete", "cycle_id", cycleID, "mode", mode, "selected_actions", len(decision.SelectedActions))
	return clean
}

// selectFocusChannel picks the channel the cycle centers on: each call
// advances one step round-robin through the channels as ordered by
// store.Activity (most recently active first). It does not look at which
// channel received the newest triggering message. The result is logged,
// passed to the payload builder as the focus channel, and pinned on the
// first cycle.
func (o *Orchestrator) selectFocusChannel() string {
	activity := o.store.Activity()
	if len(activity) == 0 {
		return ""
	}
	o.focusCursor = (o.focusCursor + 1) % len(activity)
	return activity[o.focusCursor].ChannelID
}

// decide calls the AI decision service, folding a quota-exceeded error
// into a logged warning rather than propagating it — the orchestrator
// always has a cycle to complete, even an empty one, per spec.md §7's
// "all aiservice failures recover locally" rule.
func (o *Orchestrator) decide(ctx context.Context, cycleID, focusChannelID string, toolDefs []providers.ToolDefinition) aiservice.DecisionResult {
	ctx, span := o.tel.StartDecision(ctx, cycleID)
	defer span.End()

	p := o.builder.Build(o.limiter, time.Now(), focusChannelID, cycleID)
	decision, err := o.ai.Decide(ctx, cycleID, p, toolDefs)
	if err != nil {
		if errs.Is(err, errs.KindLLMQuotaExceeded) {
			slog.Warn("ai decision service quota exceeded", "cycle_id", cycleID)
		} else {
			slog.Warn("ai decision service call failed", "cycle_id", cycleID, "error", err)
		}
	}
	return decision
}

// runExplorationPhase drives up to MaxExplorationRounds sub-turns
// offering only node-control tools, so the model can expand/collapse
// nodes to gather context before the committing decision call,
// stopping early if the model signals protocol.ExplorationComplete or
// stops selecting node-control actions, per spec.md §4.8 step 4.
func (o *Orchestrator) runExplorationPhase(ctx context.Context, cycleID, focusChannelID string) {
	for round := 0; round < o.cfg.MaxExplorationRounds; round++ {
		decision := o.decide(ctx, cycleID, focusChannelID, o.toolDefs(true))
		if containsSentinel(decision.Reasoning) {
			slog.Debug("exploration phase ended by sentinel", "cycle_id", cycleID, "round", round)
			return
		}
		if len(decision.SelectedActions) == 0 {
			return
		}
		sawNodeAction := false
		for _, a := range decision.SelectedActions {
			if !nodeControlTools[a.Kind] {
				continue
			}
			sawNodeAction = true
			o.executeAction(ctx, cycleID, a, false)
		}
		if !sawNodeAction {
			return
		}
	}
}

func containsSentinel(reasoning string) bool {
	return len(reasoning) >= len(protocol.ExplorationComplete) &&
		indexOf(reasoning, protocol.ExplorationComplete) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// toolDefs returns the tool catalog offered for the call: every
// registered tool when nodeBasedCycle is true (action tools plus
// node-control), or only the action tools (excluding node-control)
// when running a traditional-mode cycle, per spec.md §4.8 step 3.
func (o *Orchestrator) toolDefs(nodeBasedCycle bool) []providers.ToolDefinition {
	all := o.registry.Definitions()
	if nodeBasedCycle {
		return all
	}
	out := make([]providers.ToolDefinition, 0, len(all))
	for _, d := range all {
		if nodeControlTools[d.Function.Name] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// dispatchActions runs the decision's selected actions in descending
// priority order, consulting the rate limiter before each one and
// recording the outcome of each attempt. Returns false if any action
// was rejected by the limiter, signaling the cycle was not clean.
func (o *Orchestrator) dispatchActions(ctx context.Context, cycleID string, actions []aiservice.Action) bool {
	ordered := make([]aiservice.Action, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	clean := true
	for _, a := range ordered {
		if a.Kind == protocol.ActionWait || a.Kind == "unknown" {
			continue
		}
		if !o.limiter.Allow(a.Kind, a.ChannelID) {
			slog.Info("action rejected by rate limiter", "cycle_id", cycleID, "kind", a.Kind, "channel_id", a.ChannelID)
			o.limiter.Reject()
			clean = false
			continue
		}
		o.executeAction(ctx, cycleID, a, true)
	}
	return clean
}

// executeAction runs one validated action through the tool executor,
// recording an ActionRecord either way. commitLimiter is false during
// exploration-phase node-control actions, which don't consume the
// per-cycle action budget.
func (o *Orchestrator) executeAction(ctx context.Context, cycleID string, a aiservice.Action, commitLimiter bool) {
	ctx, span := o.tel.StartTool(ctx, cycleID, a.Kind)
	defer span.End()

	record := &worldstate.ActionRecord{
		ID:         uuid.NewString(),
		CycleID:    cycleID,
		Kind:       worldstate.ActionKind(a.Kind),
		ChannelID:  a.ChannelID,
		Parameters: a.Parameters,
		Reasoning:  a.Reasoning,
		CreatedAt:  time.Now(),
	}

	args := a.Parameters
	if args == nil {
		args = map[string]interface{}{}
	}
	if a.ChannelID != "" {
		args["channel_id"] = a.ChannelID
	}

	result := o.executor.Execute(ctx, a.Kind, args)
	record.Success = !result.IsError
	if result.IsError {
		record.Error = result.ForLLM
		if result.Err != nil {
			record.Error = result.Err.Error()
		}
	} else {
		record.Result = result.ForLLM
	}

	if commitLimiter {
		o.limiter.Commit(a.Kind, a.ChannelID)
	}

	o.store.RecordAction(record)
	o.store.SetLastActionResult(record)
	if err := o.rec.RecordAction(ctx, record); err != nil {
		slog.Warn("record action failed", "error", err, "kind", a.Kind)
	}
}

// RefreshSummary implements tools.SummaryRefresher: it regenerates a
// node's collapsed-view summary from its channel's current messages,
// satisfying the refresh_summary tool and the node-based mode's
// data-changed auto-refresh, both of which need the same world-state
// read the orchestrator alone can do without a circular dependency
// between internal/tools and internal/nodes.
func (o *Orchestrator) RefreshSummary(ctx context.Context, nodeID string) (string, error) {
	summary, _, err := o.computeSummary(nodeID)
	if err != nil {
		return "", err
	}
	o.nodeMgr.RefreshSummary(nodeID, func() (string, string) {
		return o.computeSummaryOrEmpty(nodeID)
	})
	o.recordStateChange(ctx, worldstate.ChangeNodeCollapsed, nodeID, summary)
	return summary, nil
}

// computeSummary renders a short human-readable digest of a channel's
// most recent messages and a stable hash of that content, used both by
// RefreshSummary and by the background per-cycle auto-refresh.
func (o *Orchestrator) computeSummary(nodeID string) (summary string, dataHash string, err error) {
	msgs := o.store.Messages(nodeID, 10)
	if len(msgs) == 0 {
		return "(no recent activity)", channelDataHash(nil), nil
	}
	last := msgs[len(msgs)-1]
	summary = fmt.Sprintf("%d recent message(s), last from %s at %s: %.80s",
		len(msgs), last.AuthorID, last.Timestamp.Format(time.RFC3339), last.Content)
	return summary, channelDataHash(msgs), nil
}

func (o *Orchestrator) computeSummaryOrEmpty(nodeID string) (string, string) {
	summary, hash, err := o.computeSummary(nodeID)
	if err != nil {
		return "", hash
	}
	return summary, hash
}

// IsChannelDataChanged implements payload.DataChangeChecker: it reports
// whether channelID's messages have changed since its collapsed-view
// summary was last computed, for the node-based payload's
// collapsed_node_summaries.data_changed field.
func (o *Orchestrator) IsChannelDataChanged(channelID string) bool {
	_, hash, err := o.computeSummary(channelID)
	if err != nil {
		return false
	}
	return o.nodeMgr.IsDataChanged(channelID, hash)
}

// refreshChangedSummaries regenerates the summary of every channel
// whose underlying message data has changed since its last summary was
// computed, ahead of building a node-based payload — so a collapsed
// node's summary is never older than the data it claims to describe.
func (o *Orchestrator) refreshChangedSummaries(ctx context.Context) {
	for _, ch := range o.store.Channels() {
		_, hash, err := o.computeSummary(ch.ID)
		if err != nil {
			continue
		}
		if o.nodeMgr.IsDataChanged(ch.ID, hash) {
			if _, err := o.RefreshSummary(ctx, ch.ID); err != nil {
				slog.Warn("summary refresh failed", "channel_id", ch.ID, "error", err)
			}
		}
	}
}

// channelDataHash is a cheap, non-cryptographic change-detection
// fingerprint over a channel's recent messages — an ordinary FNV hash
// is enough here since the only property needed is "did this change",
// not collision resistance.
func channelDataHash(msgs []*worldstate.Message) string {
	h := fnv.New64a()
	for _, m := range msgs {
		_, _ = h.Write([]byte(m.ID))
		_, _ = h.Write([]byte(m.Content))
	}
	return fmt.Sprintf("%x", h.Sum64())
}
