package payload

import (
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/nodes"
	"github.com/nextlevelbuilder/socialagent/internal/ratelimit"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

func TestBuildTraditionalFocusChannelIsDetailed(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1", Name: "general"})
	store.UpsertChannel(&worldstate.Channel{ID: "c2", Name: "random"})
	store.AddMessage(&worldstate.Message{ID: "m1", ChannelID: "c1", Content: "hello world", Timestamp: time.Now()})
	store.AddMessage(&worldstate.Message{ID: "m2", ChannelID: "c2", Content: "hey there", Timestamp: time.Now()})

	b := New(Default(), store, nil)
	limiter := ratelimit.New(ratelimit.Default())
	p := b.Build(limiter, time.Now(), "c1", "cycle-1")

	if len(p.Channels) != 2 {
		t.Fatalf("expected two channels, got %+v", p.Channels)
	}
	for _, ch := range p.Channels {
		switch ch.ChannelID {
		case "c1":
			if !ch.Detailed || len(ch.Messages) != 1 {
				t.Fatalf("expected focus channel c1 detailed with 1 message, got %+v", ch)
			}
		case "c2":
			if ch.Detailed || len(ch.Messages) != 0 || ch.Activity == nil {
				t.Fatalf("expected non-focus channel c2 summary-only, got %+v", ch)
			}
		}
	}
	if p.CurrentChannelID != "c1" {
		t.Fatalf("expected current_channel_id c1, got %q", p.CurrentChannelID)
	}
}

func TestBuildNodeBasedCollapsesUnexpanded(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1", Name: "general"})
	store.AddMessage(&worldstate.Message{ID: "m1", ChannelID: "c1", Content: "hello", Timestamp: time.Now()})

	mgr := nodes.NewManager(5)
	mgr.UpdateSummary("c1", "1 new message", "h1")

	cfg := Default()
	cfg.Mode = ModeNodeBased
	b := New(cfg, store, mgr)
	limiter := ratelimit.New(ratelimit.Default())
	p := b.Build(limiter, time.Now(), "", "cycle-1")

	if len(p.ExpandedNodes) != 0 {
		t.Fatalf("expected no expanded nodes, got %+v", p.ExpandedNodes)
	}
	summary, ok := p.CollapsedNodeSummaries["c1"]
	if !ok || summary.Summary != "1 new message" {
		t.Fatalf("expected collapsed summary for c1, got %+v", p.CollapsedNodeSummaries)
	}
	if p.ExpansionStatus == nil || p.ExpansionStatus.Capacity != 5 {
		t.Fatalf("expected expansion status with capacity 5, got %+v", p.ExpansionStatus)
	}
}

func TestBuildNodeBasedExpandsExpandedNode(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1", Name: "general"})
	store.AddMessage(&worldstate.Message{ID: "m1", ChannelID: "c1", Content: "hello", Timestamp: time.Now()})

	mgr := nodes.NewManager(5)
	mgr.Expand("c1")

	cfg := Default()
	cfg.Mode = ModeNodeBased
	b := New(cfg, store, mgr)
	limiter := ratelimit.New(ratelimit.Default())
	p := b.Build(limiter, time.Now(), "", "cycle-1")

	if len(p.ExpandedNodes) != 1 || len(p.ExpandedNodes[0].Messages) != 1 {
		t.Fatalf("expected one expanded node with its message, got %+v", p.ExpandedNodes)
	}
	if len(p.ExpansionStatus.Expanded) != 1 || p.ExpansionStatus.Expanded[0] != "c1" {
		t.Fatalf("expected c1 listed expanded, got %+v", p.ExpansionStatus)
	}
}

func TestBuildTruncatesOversizedPayload(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1", Name: "general"})
	for i := 0; i < 50; i++ {
		store.AddMessage(&worldstate.Message{
			ID:        string(rune('a' + i)),
			ChannelID: "c1",
			Content:   strings.Repeat("x", 500),
			Timestamp: time.Now(),
		})
	}

	cfg := Default()
	cfg.MaxTotalChars = 2000
	b := New(cfg, store, nil)
	limiter := ratelimit.New(ratelimit.Default())
	p := b.Build(limiter, time.Now(), "c1", "cycle-1")

	if !p.Truncated {
		t.Fatalf("expected payload to be marked truncated")
	}
	if size(&p) > cfg.MaxTotalChars {
		t.Fatalf("expected payload to fit within MaxTotalChars, got %d", size(&p))
	}
}

func TestBuildPopulatesActionHistoryAndRecentMedia(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1", Name: "general"})
	store.RecordAction(&worldstate.ActionRecord{ID: "a1", Kind: worldstate.ActionSendChatMessage, Success: true, CreatedAt: time.Now()})
	store.AddMedia(&worldstate.GeneratedMediaRef{ID: "m1", StorageURL: "https://cdn/img.png", CreatedAt: time.Now()})

	b := New(Default(), store, nil)
	limiter := ratelimit.New(ratelimit.Default())
	p := b.Build(limiter, time.Now(), "c1", "cycle-1")

	if len(p.ActionHistory) != 1 || p.ActionHistory[0].ID != "a1" {
		t.Fatalf("expected action history to include a1, got %+v", p.ActionHistory)
	}
	if len(p.RecentMedia) != 1 || p.RecentMedia[0].ID != "m1" {
		t.Fatalf("expected recent media to include m1, got %+v", p.RecentMedia)
	}
	if p.PayloadStats.ByteSize == 0 {
		t.Fatalf("expected non-zero payload stats byte size")
	}
}

func TestAntiLoopDetectsRepetitiveMessages(t *testing.T) {
	store := worldstate.New()
	store.UpsertChannel(&worldstate.Channel{ID: "c1"})
	now := time.Now()
	store.AddMessage(&worldstate.Message{ID: "m1", ChannelID: "c1", IsFromBot: true, Content: "the weather today is quite nice outside", Timestamp: now})
	store.AddMessage(&worldstate.Message{ID: "m2", ChannelID: "c1", IsFromBot: true, Content: "the weather today is quite nice outside again", Timestamp: now.Add(time.Minute)})

	ctx := BuildAntiLoopContext(store, now.Add(2*time.Minute))
	if len(ctx.LikelyRepetitive) == 0 {
		t.Fatalf("expected repetitive message detected")
	}
	pattern, ok := ctx.ConversationPatterns["c1"]
	if !ok {
		t.Fatalf("expected a conversation pattern for c1, got %+v", ctx.ConversationPatterns)
	}
	if pattern.Recommendation != RecommendVaryResponse && pattern.Recommendation != RecommendPause {
		t.Fatalf("expected a repetitive-content recommendation, got %q", pattern.Recommendation)
	}
	if ctx.AntiLoopInstruction == "" {
		t.Fatalf("expected a non-empty anti-loop instruction")
	}
}

func TestAntiLoopLastActionReflectsLastDispatch(t *testing.T) {
	store := worldstate.New()
	now := time.Now()
	record := &worldstate.ActionRecord{ID: "a1", Kind: worldstate.ActionSendChatMessage, Success: true, ChannelID: "c1", CreatedAt: now.Add(-time.Second)}
	store.SetLastActionResult(record)

	ctx := BuildAntiLoopContext(store, now)
	if ctx.LastAction == nil || ctx.LastAction.ActionType != "send_chat_message" || !ctx.LastAction.Success {
		t.Fatalf("expected last_action to reflect the dispatched record, got %+v", ctx.LastAction)
	}
}
