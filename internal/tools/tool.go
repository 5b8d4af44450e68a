package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

// Tool is the contract every bounded action implements, carried over
// from the teacher's tool interface: a name and JSON-schema parameters
// for the AI decision service's function-calling surface, and an
// Execute method returning the unified Result type.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// Registry holds every registered Tool in a flat map keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a Tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named Tool, if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of every registered tool.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// ToProviderDef converts a Tool into the provider-facing function
// definition understood by the LLM client's function-calling API.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Definitions returns every registered tool as provider-facing function
// definitions, in no particular order.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToProviderDef(t))
	}
	return defs
}

// mediaCoordinationWindow bounds how far back the executor will reach
// for an implicit generate_image -> send_social_post/send_chat_message
// attachment, matching spec.md's "retained long enough to be attached
// to the next post in the same cycle or the next; older than one hour
// is evictable".
const mediaCoordinationWindow = time.Hour

// mediaAttachingActions are the action kinds eligible for implicit
// media-id injection from the most recently generated media.
var mediaAttachingActions = map[string]bool{
	"send_social_post":  true,
	"send_chat_message": true,
}

// Executor runs a selected action kind against the Registry, handling
// the cross-tool coordination spec.md calls out explicitly: a
// generate_image action whose resulting media ID is referenced (or, if
// the plan omitted one, implied) by a subsequent
// send_social_post/send_chat_message action must have its
// GeneratedMediaRef resolved and injected before the messaging tool
// executes.
type Executor struct {
	registry  *Registry
	media     MediaResolver
	lastMedia LastMediaResolver
}

// MediaResolver looks up a previously generated media ref by ID, so a
// messaging tool can attach it without re-deriving the storage URL.
type MediaResolver interface {
	ResolveMedia(id string) (storageURL string, mimeType string, ok bool)
}

// LastMediaResolver looks up the most recently generated media within a
// time window, so the executor can implicitly attach it to a
// send_social_post/send_chat_message action whose plan omitted a
// media_id, per spec.md §4.6's action-coordination rule.
type LastMediaResolver interface {
	LastMedia(within time.Duration) (id string, storageURL string, mimeType string, ok bool)
}

func NewExecutor(registry *Registry, media MediaResolver, lastMedia LastMediaResolver) *Executor {
	return &Executor{registry: registry, media: media, lastMedia: lastMedia}
}

// Execute looks up the named tool and runs it, injecting a resolved
// media attachment into args["media_url"]/args["media_mime_type"] when
// args["media_id"] references a known GeneratedMediaRef, or, for a
// messaging action whose plan omitted media_id entirely, implicitly
// attaching the most recently generated media within
// mediaCoordinationWindow.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	tool, ok := e.registry.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	mediaID, _ := args["media_id"].(string)
	if mediaID == "" && mediaAttachingActions[name] && e.lastMedia != nil {
		if id, url, mime, found := e.lastMedia.LastMedia(mediaCoordinationWindow); found {
			args["media_id"] = id
			args["media_url"] = url
			args["media_mime_type"] = mime
			mediaID = id
		}
	}

	if mediaID != "" && args["media_url"] == nil && e.media != nil {
		url, mime, found := e.media.ResolveMedia(mediaID)
		if !found {
			return ErrorResult(fmt.Sprintf("media_id %q not found; generate_image must run first", mediaID))
		}
		args["media_url"] = url
		args["media_mime_type"] = mime
	}

	slog.Debug("executing tool", "name", name)
	return tool.Execute(ctx, args)
}
