package tools

import (
	"context"
	"fmt"
)

// MemoryStore is the subset of internal/history.Recorder the
// store_memory tool uses.
type MemoryStore interface {
	RecordMemory(ctx context.Context, key, value string) error
}

// StoreMemoryTool implements store_memory: durably persist a key/value
// fact the AI decision service wants available in future cycles' payloads.
type StoreMemoryTool struct{ store MemoryStore }

func NewStoreMemoryTool(store MemoryStore) *StoreMemoryTool { return &StoreMemoryTool{store: store} }
func (t *StoreMemoryTool) Name() string                     { return "store_memory" }
func (t *StoreMemoryTool) Description() string {
	return "Persist a short key/value fact to remember across future decision cycles."
}
func (t *StoreMemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Short identifier for this fact, e.g. 'alice_birthday'.",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "The fact to remember.",
			},
		},
		"required": []string{"key", "value"},
	}
}
func (t *StoreMemoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if key == "" || value == "" {
		return ErrorResult("key and value are required")
	}
	if err := t.store.RecordMemory(ctx, key, value); err != nil {
		return ErrorResult(fmt.Sprintf("store_memory failed: %v", err)).WithError(err)
	}
	return SilentResult(fmt.Sprintf("remembered %s", key))
}
