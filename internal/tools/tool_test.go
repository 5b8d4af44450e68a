package tools

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/nodes"
)

type stubMedia struct {
	url, mime string
	ok        bool
}

func (s stubMedia) ResolveMedia(id string) (string, string, bool) { return s.url, s.mime, s.ok }

type stubLastMedia struct {
	id, url, mime string
	ok            bool
}

func (s stubLastMedia) LastMedia(time.Duration) (string, string, string, bool) {
	return s.id, s.url, s.mime, s.ok
}

func TestExecutorInjectsResolvedMedia(t *testing.T) {
	reg := NewRegistry()
	var gotURL string
	reg.Register(fakeTool{name: "send_social_post", fn: func(args map[string]interface{}) *Result {
		gotURL, _ = args["media_url"].(string)
		return NewResult("ok")
	}})

	exec := NewExecutor(reg, stubMedia{url: "https://cdn/img.png", mime: "image/png", ok: true}, nil)
	res := exec.Execute(context.Background(), "send_social_post", map[string]interface{}{"media_id": "m1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if gotURL != "https://cdn/img.png" {
		t.Fatalf("expected media_url injected, got %q", gotURL)
	}
}

func TestExecutorImplicitlyAttachesLastMedia(t *testing.T) {
	reg := NewRegistry()
	var gotID, gotURL string
	reg.Register(fakeTool{name: "send_social_post", fn: func(args map[string]interface{}) *Result {
		gotID, _ = args["media_id"].(string)
		gotURL, _ = args["media_url"].(string)
		return NewResult("ok")
	}})

	exec := NewExecutor(reg, nil, stubLastMedia{id: "m1", url: "https://cdn/img.png", mime: "image/png", ok: true})
	res := exec.Execute(context.Background(), "send_social_post", map[string]interface{}{"text": "look!"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if gotID != "m1" || gotURL != "https://cdn/img.png" {
		t.Fatalf("expected implicit media attachment, got id=%q url=%q", gotID, gotURL)
	}
}

func TestExecutorRejectsUnresolvedMedia(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fakeTool{name: "send_social_post", fn: func(map[string]interface{}) *Result { return NewResult("ok") }})

	exec := NewExecutor(reg, stubMedia{ok: false}, nil)
	res := exec.Execute(context.Background(), "send_social_post", map[string]interface{}{"media_id": "missing"})
	if !res.IsError {
		t.Fatalf("expected error for unresolved media_id")
	}
}

func TestExecutorUnknownTool(t *testing.T) {
	exec := NewExecutor(NewRegistry(), nil, nil)
	res := exec.Execute(context.Background(), "nope", nil)
	if !res.IsError {
		t.Fatalf("expected error for unknown tool")
	}
}

func TestNodeControlTools(t *testing.T) {
	mgr := nodes.NewManager(5)
	expand := NewExpandNodeTool(mgr)
	res := expand.Execute(context.Background(), map[string]interface{}{"node_id": "c1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !mgr.GetExpansionStatus("c1").Expanded {
		t.Fatalf("expected c1 expanded")
	}

	collapse := NewCollapseNodeTool(mgr)
	collapse.Execute(context.Background(), map[string]interface{}{"node_id": "c1"})
	if mgr.GetExpansionStatus("c1").Expanded {
		t.Fatalf("expected c1 collapsed")
	}
}

func TestNodeControlRequiresNodeID(t *testing.T) {
	mgr := nodes.NewManager(5)
	pin := NewPinNodeTool(mgr)
	res := pin.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatalf("expected error when node_id missing")
	}
}

type fakeTool struct {
	name string
	fn   func(map[string]interface{}) *Result
}

func (f fakeTool) Name() string                          { return f.name }
func (f fakeTool) Description() string                   { return "test tool" }
func (f fakeTool) Parameters() map[string]interface{}    { return map[string]interface{}{"type": "object"} }
func (f fakeTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	return f.fn(args)
}
