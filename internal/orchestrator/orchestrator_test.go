package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/aiservice"
	"github.com/nextlevelbuilder/socialagent/internal/bus"
	"github.com/nextlevelbuilder/socialagent/internal/history"
	"github.com/nextlevelbuilder/socialagent/internal/nodes"
	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
	"github.com/nextlevelbuilder/socialagent/internal/ratelimit"
	"github.com/nextlevelbuilder/socialagent/internal/telemetry"
	"github.com/nextlevelbuilder/socialagent/internal/tools"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// --- fakes ---

type fakeRecorder struct{}

func (fakeRecorder) RecordStateChange(context.Context, *worldstate.StateChangeBlock) error { return nil }
func (fakeRecorder) RecordMessage(context.Context, *worldstate.Message) error               { return nil }
func (fakeRecorder) RecordAction(context.Context, *worldstate.ActionRecord) error            { return nil }
func (fakeRecorder) RecordUndecryptableEvent(context.Context, *worldstate.UndecryptableEvent) error {
	return nil
}
func (fakeRecorder) RecordMemory(context.Context, string, string) error { return nil }
func (fakeRecorder) GetMemories(context.Context, int) ([]history.MemoryEntry, error) {
	return nil, nil
}
func (fakeRecorder) ExportTraining(context.Context, time.Time) ([]history.TrainingRow, error) {
	return nil, nil
}
func (fakeRecorder) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }
func (fakeRecorder) Close() error                                      { return nil }

type emptyBus struct{}

func (emptyBus) Publish(context.Context, bus.Observation) error { return nil }
func (emptyBus) Consume(ctx context.Context) (bus.Observation, bool) {
	<-ctx.Done()
	return bus.Observation{}, false
}
func (emptyBus) Close() error { return nil }

type fakeDispatcher struct{ sent int }

func (d *fakeDispatcher) SendMessage(_ context.Context, channelID, content, _ string) (string, error) {
	d.sent++
	return "msg-" + channelID, nil
}

type fakeProvider struct {
	resp *providers.ChatResponse
}

func (p *fakeProvider) Chat(context.Context, providers.ChatRequest) (*providers.ChatResponse, error) {
	return p.resp, nil
}
func (p *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, _ func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.resp, nil
}
func (p *fakeProvider) DefaultModel() string { return "fake-model" }
func (p *fakeProvider) Name() string         { return "fake" }

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *worldstate.Store, *ratelimit.Limiter, *fakeDispatcher) {
	t.Helper()
	store := worldstate.New()
	nodeMgr := nodes.NewManager(10)
	builder := payload.New(payload.Default(), store, nodeMgr)
	limiter := ratelimit.New(ratelimit.Config{
		MaxActionsPerCycle:   1,
		MaxActionsPerKind:    map[string]int{"send_chat_message": 5},
		MaxActionsPerChannel: 5,
		ChannelWindow:        time.Minute,
		BurstCooldownBase:    time.Second,
		BurstCooldownMax:     time.Minute,
	})
	gate := ratelimit.NewCycleGate(ratelimit.DefaultCycleConfig())

	dispatcher := &fakeDispatcher{}
	registry := tools.NewRegistry()
	registry.Register(tools.NewSendChatMessageTool(dispatcher))
	registry.Register(tools.NewWaitTool())
	executor := tools.NewExecutor(registry, nil, nil)

	provider := &fakeProvider{resp: &providers.ChatResponse{Content: "{}"}}
	client := aiservice.NewClient(provider, 3)

	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: false})
	if err != nil {
		t.Fatalf("telemetry.New: %v", err)
	}

	o := New(cfg, store, fakeRecorder{}, nodeMgr, builder, limiter, gate, client, registry, executor, emptyBus{}, tel)
	return o, store, limiter, dispatcher
}

func TestToolDefsExcludesNodeControlForTraditionalMode(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t, DefaultConfig())
	o.registry.Register(tools.NewExpandNodeTool(nodes.NewManager(1)))

	traditional := o.toolDefs(false)
	for _, d := range traditional {
		if d.Function.Name == "expand_node" {
			t.Fatalf("traditional mode tool defs should exclude node-control tools, found %s", d.Function.Name)
		}
	}

	nodeBased := o.toolDefs(true)
	found := false
	for _, d := range nodeBased {
		if d.Function.Name == "expand_node" {
			found = true
		}
	}
	if !found {
		t.Fatalf("node-based mode tool defs should include node-control tools")
	}
}

func TestSelectFocusChannelRoundRobin(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t, DefaultConfig())
	store.UpsertChannel(&worldstate.Channel{ID: "a", LastActive: time.Now()})
	store.UpsertChannel(&worldstate.Channel{ID: "b", LastActive: time.Now()})

	first := o.selectFocusChannel()
	second := o.selectFocusChannel()
	if first == "" || second == "" {
		t.Fatalf("expected non-empty focus channels, got %q, %q", first, second)
	}
	if first == second {
		t.Fatalf("expected round-robin to advance between calls, got %q twice", first)
	}
}

func TestDispatchActionsRespectsRateLimit(t *testing.T) {
	o, _, limiter, dispatcher := newTestOrchestrator(t, DefaultConfig())
	limiter.ResetCycle()

	actions := []aiservice.Action{
		{Kind: "send_chat_message", ChannelID: "c1", Parameters: map[string]interface{}{"channel_id": "c1", "content": "hi"}, Priority: 8},
		{Kind: "send_chat_message", ChannelID: "c1", Parameters: map[string]interface{}{"channel_id": "c1", "content": "again"}, Priority: 5},
	}

	clean := o.dispatchActions(context.Background(), "cycle-1", actions)
	if clean {
		t.Fatalf("expected dispatch to report unclean cycle when rate limit rejects an action")
	}
	if dispatcher.sent != 1 {
		t.Fatalf("expected exactly 1 dispatched message under MaxActionsPerCycle=1, got %d", dispatcher.sent)
	}
}

func TestDispatchActionsSkipsWaitAndUnknown(t *testing.T) {
	o, _, _, dispatcher := newTestOrchestrator(t, DefaultConfig())
	actions := []aiservice.Action{
		{Kind: "wait", Priority: 5},
		{Kind: "unknown", Priority: 5},
	}
	if !o.dispatchActions(context.Background(), "cycle-2", actions) {
		t.Fatalf("expected a clean cycle when no dispatchable actions are present")
	}
	if dispatcher.sent != 0 {
		t.Fatalf("wait/unknown actions must never reach the dispatcher, got %d sends", dispatcher.sent)
	}
}

func TestRefreshSummaryUpdatesNodeManager(t *testing.T) {
	o, store, _, _ := newTestOrchestrator(t, DefaultConfig())
	store.AddMessage(&worldstate.Message{ID: "m1", ChannelID: "c1", AuthorID: "alice", Content: "hello there", Timestamp: time.Now()})

	summary, err := o.RefreshSummary(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RefreshSummary: %v", err)
	}
	if summary == "" {
		t.Fatalf("expected non-empty summary")
	}
	status := o.nodeMgr.GetExpansionStatus("c1")
	if status.Summary != summary {
		t.Fatalf("node manager summary %q does not match returned summary %q", status.Summary, summary)
	}
}

func TestRetryWorkerDeletesAfterMaxRetries(t *testing.T) {
	store := worldstate.New()
	store.MarkUndecryptable(&worldstate.UndecryptableEvent{
		EventID: "ev1", ChannelID: "c1", SenderID: "u1",
		FirstSeen: time.Now(), RetryCount: MaxUndecryptableRetries,
	})

	worker := NewRetryWorker(store, noopKeyRequester{}, time.Minute)
	worker.retryOnce(context.Background())

	if len(store.UnresolvedUndecryptable()) != 0 {
		t.Fatalf("expected event at max retries to be dropped")
	}
}

func TestRetryWorkerRequestsKeyBelowMaxRetries(t *testing.T) {
	store := worldstate.New()
	store.MarkUndecryptable(&worldstate.UndecryptableEvent{
		EventID: "ev2", ChannelID: "c1", SenderID: "u1",
		FirstSeen: time.Now(), RetryCount: 0,
	})

	req := &countingKeyRequester{}
	worker := NewRetryWorker(store, req, time.Minute)
	worker.retryOnce(context.Background())

	if req.calls != 1 {
		t.Fatalf("expected exactly 1 room key request, got %d", req.calls)
	}
	remaining := store.UnresolvedUndecryptable()
	if len(remaining) != 1 || remaining[0].RetryCount != 1 {
		t.Fatalf("expected retry count to increment to 1, got %+v", remaining)
	}
}

type noopKeyRequester struct{}

func (noopKeyRequester) RequestRoomKey(context.Context, string, string) error { return nil }

type countingKeyRequester struct{ calls int }

func (r *countingKeyRequester) RequestRoomKey(context.Context, string, string) error {
	r.calls++
	return nil
}
