package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

type fakeVisionProvider struct {
	lastReq providers.ChatRequest
}

func (f *fakeVisionProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	f.lastReq = req
	return &providers.ChatResponse{Content: "a cat sitting on a windowsill"}, nil
}
func (f *fakeVisionProvider) ChatStream(ctx context.Context, req providers.ChatRequest, _ func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return f.Chat(ctx, req)
}
func (f *fakeVisionProvider) DefaultModel() string { return "test-model" }
func (f *fakeVisionProvider) Name() string         { return "fake" }

func TestDescribeImageTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	provider := &fakeVisionProvider{}
	tool := NewDescribeImageTool(provider)
	res := tool.Execute(context.Background(), map[string]interface{}{"image_url": srv.URL})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if res.ForLLM != "a cat sitting on a windowsill" {
		t.Fatalf("unexpected description: %q", res.ForLLM)
	}
	if len(provider.lastReq.Messages) != 1 || len(provider.lastReq.Messages[0].Images) != 1 {
		t.Fatalf("expected one message with one image attached")
	}
	if provider.lastReq.Messages[0].Images[0].MimeType != "image/png" {
		t.Fatalf("expected image/png mime type, got %q", provider.lastReq.Messages[0].Images[0].MimeType)
	}
}

func TestDescribeImageToolRequiresURL(t *testing.T) {
	res := NewDescribeImageTool(&fakeVisionProvider{}).Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error when image_url missing")
	}
}
