package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/socialagent/internal/nodes"
)

// nodeManager is the subset of *nodes.Manager the node-control tools use.
type nodeManager interface {
	Expand(id string) (evicted string)
	Collapse(id string)
	Pin(id string)
	Unpin(id string)
	GetExpansionStatus(id string) nodes.ExpansionStatus
}

func nodeIDArg(args map[string]interface{}) (string, *Result) {
	id, _ := args["node_id"].(string)
	if id == "" {
		return "", ErrorResult("node_id is required")
	}
	return id, nil
}

func nodeParams() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"node_id": map[string]interface{}{
				"type":        "string",
				"description": "The channel or thread ID to act on.",
			},
		},
		"required": []string{"node_id"},
	}
}

// ExpandNodeTool implements expand_node: show a collapsed channel's full
// recent content in the next payload.
type ExpandNodeTool struct{ mgr nodeManager }

func NewExpandNodeTool(mgr nodeManager) *ExpandNodeTool { return &ExpandNodeTool{mgr: mgr} }
func (t *ExpandNodeTool) Name() string                  { return "expand_node" }
func (t *ExpandNodeTool) Description() string {
	return "Expand a collapsed channel or thread node to see its full recent content."
}
func (t *ExpandNodeTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *ExpandNodeTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	evicted := t.mgr.Expand(id)
	if evicted != "" {
		return NewResult(fmt.Sprintf("expanded %s (auto-collapsed %s to stay within the expansion limit)", id, evicted))
	}
	return NewResult(fmt.Sprintf("expanded %s", id))
}

// CollapseNodeTool implements collapse_node.
type CollapseNodeTool struct{ mgr nodeManager }

func NewCollapseNodeTool(mgr nodeManager) *CollapseNodeTool { return &CollapseNodeTool{mgr: mgr} }
func (t *CollapseNodeTool) Name() string                    { return "collapse_node" }
func (t *CollapseNodeTool) Description() string {
	return "Collapse an expanded channel or thread node back to a summary."
}
func (t *CollapseNodeTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *CollapseNodeTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	t.mgr.Collapse(id)
	return NewResult(fmt.Sprintf("collapsed %s", id))
}

// PinNodeTool implements pin_node.
type PinNodeTool struct{ mgr nodeManager }

func NewPinNodeTool(mgr nodeManager) *PinNodeTool { return &PinNodeTool{mgr: mgr} }
func (t *PinNodeTool) Name() string                { return "pin_node" }
func (t *PinNodeTool) Description() string {
	return "Pin a node so it is never auto-collapsed by the expansion limit."
}
func (t *PinNodeTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *PinNodeTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	t.mgr.Pin(id)
	return NewResult(fmt.Sprintf("pinned %s", id))
}

// UnpinNodeTool implements unpin_node.
type UnpinNodeTool struct{ mgr nodeManager }

func NewUnpinNodeTool(mgr nodeManager) *UnpinNodeTool { return &UnpinNodeTool{mgr: mgr} }
func (t *UnpinNodeTool) Name() string                  { return "unpin_node" }
func (t *UnpinNodeTool) Description() string {
	return "Unpin a node, returning it to normal LRU auto-collapse eligibility."
}
func (t *UnpinNodeTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *UnpinNodeTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	t.mgr.Unpin(id)
	return NewResult(fmt.Sprintf("unpinned %s", id))
}

// GetExpansionStatusTool implements get_expansion_status: lets the model
// check a node's current expanded/pinned state without mutating it.
type GetExpansionStatusTool struct{ mgr nodeManager }

func NewGetExpansionStatusTool(mgr nodeManager) *GetExpansionStatusTool {
	return &GetExpansionStatusTool{mgr: mgr}
}
func (t *GetExpansionStatusTool) Name() string { return "get_expansion_status" }
func (t *GetExpansionStatusTool) Description() string {
	return "Check whether a channel or thread node is currently expanded or collapsed."
}
func (t *GetExpansionStatusTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *GetExpansionStatusTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	status := t.mgr.GetExpansionStatus(id)
	return NewResult(fmt.Sprintf("%s: expanded=%t pinned=%t", status.ID, status.Expanded, status.Pinned))
}

// SummaryRefresher regenerates a collapsed node's summary from current
// world state, implemented by the orchestrator since it alone holds
// both the node manager and the world state store.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context, nodeID string) (summary string, err error)
}

// RefreshSummaryTool implements refresh_summary: forces a collapsed
// node's cached summary to be regenerated ahead of its next natural
// data-changed refresh.
type RefreshSummaryTool struct{ refresher SummaryRefresher }

func NewRefreshSummaryTool(r SummaryRefresher) *RefreshSummaryTool { return &RefreshSummaryTool{refresher: r} }
func (t *RefreshSummaryTool) Name() string                         { return "refresh_summary" }
func (t *RefreshSummaryTool) Description() string {
	return "Force a collapsed channel or thread node's summary to be regenerated now."
}
func (t *RefreshSummaryTool) Parameters() map[string]interface{} { return nodeParams() }
func (t *RefreshSummaryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, errRes := nodeIDArg(args)
	if errRes != nil {
		return errRes
	}
	summary, err := t.refresher.RefreshSummary(ctx, id)
	if err != nil {
		return ErrorResult(fmt.Sprintf("refresh_summary failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("refreshed %s: %s", id, summary))
}
