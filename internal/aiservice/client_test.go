package aiservice

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

type fakeProvider struct {
	resp *providers.ChatResponse
	err  error
}

func (f *fakeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return f.resp, f.err
}
func (f *fakeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return f.resp, f.err
}
func (f *fakeProvider) DefaultModel() string { return "fake-model" }
func (f *fakeProvider) Name() string         { return "fake" }

func TestDecideParsesFencedJSON(t *testing.T) {
	p := &fakeProvider{resp: &providers.ChatResponse{
		Content: "Thinking... ```json\n{\"observations\":\"x\",\"selected_actions\":[{\"action_type\":\"wait\",\"priority\":3}]}\n``` Done.",
	}}
	c := NewClient(p, 3)
	dr, err := c.Decide(context.Background(), "cycle-1", payload.Payload{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dr.SelectedActions) != 1 || dr.SelectedActions[0].Kind != "wait" {
		t.Fatalf("unexpected actions: %+v", dr.SelectedActions)
	}
	if dr.SelectedActions[0].Reasoning != defaultReasoning {
		t.Fatalf("expected default reasoning for action, got %q", dr.SelectedActions[0].Reasoning)
	}
	if dr.Observations != "x" {
		t.Fatalf("expected observations %q, got %q", "x", dr.Observations)
	}
}

func TestDecideCapsActionsByPriority(t *testing.T) {
	p := &fakeProvider{resp: &providers.ChatResponse{
		Content: `{"observations":"x","selected_actions":[{"action_type":"wait","priority":1},{"action_type":"send_chat_message","priority":9},{"action_type":"like_post","priority":5}]}`,
	}}
	c := NewClient(p, 2)
	dr, err := c.Decide(context.Background(), "cycle-2", payload.Payload{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dr.SelectedActions) != 2 {
		t.Fatalf("expected actions capped to 2, got %d", len(dr.SelectedActions))
	}
	if dr.SelectedActions[0].Kind != "send_chat_message" {
		t.Fatalf("expected highest priority action first, got %q", dr.SelectedActions[0].Kind)
	}
}

func TestDecideUnparsableFallsBackToEmptyDecision(t *testing.T) {
	p := &fakeProvider{resp: &providers.ChatResponse{Content: "I cannot help with that."}}
	c := NewClient(p, 3)
	dr, err := c.Decide(context.Background(), "cycle-3", payload.Payload{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dr.SelectedActions) != 0 || dr.Reasoning == "" {
		t.Fatalf("expected empty decision with diagnostic reasoning, got %+v", dr)
	}
}

func TestDecideUnknownActionKindNormalized(t *testing.T) {
	p := &fakeProvider{resp: &providers.ChatResponse{
		Content: `{"observations":"x","selected_actions":[{"action_type":"launch_nukes"}]}`,
	}}
	c := NewClient(p, 3)
	dr, err := c.Decide(context.Background(), "cycle-4", payload.Payload{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dr.SelectedActions) != 1 || dr.SelectedActions[0].Kind != "unknown" {
		t.Fatalf("expected unknown action kind normalized, got %+v", dr.SelectedActions)
	}
}

func TestDecidePropagatesQuotaExceeded(t *testing.T) {
	p := &fakeProvider{err: &providers.HTTPError{Status: 402, Body: "quota exceeded"}}
	c := NewClient(p, 3)
	dr, err := c.Decide(context.Background(), "cycle-5", payload.Payload{}, nil)
	if err == nil {
		t.Fatalf("expected 402 to propagate an error")
	}
	if len(dr.SelectedActions) != 0 {
		t.Fatalf("expected empty decision alongside the propagated error")
	}
}

func TestDecidePayloadTooLargeDegradesSilently(t *testing.T) {
	p := &fakeProvider{err: &providers.HTTPError{Status: 413, Body: "too large"}}
	c := NewClient(p, 3)
	dr, err := c.Decide(context.Background(), "cycle-6", payload.Payload{}, nil)
	if err != nil {
		t.Fatalf("expected 413 to degrade without an error, got %v", err)
	}
	if len(dr.SelectedActions) != 0 {
		t.Fatalf("expected empty decision, got %+v", dr.SelectedActions)
	}
}
