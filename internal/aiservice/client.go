package aiservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/errs"
	"github.com/nextlevelbuilder/socialagent/internal/history"
	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

// Action is one validated, defaulted action selection — the typed
// counterpart to the raw, loosely-shaped DecisionAction the model
// returns, per spec.md §9's "normalize at the boundary" resolution.
type Action struct {
	Kind       string                 `json:"action_type"`
	ChannelID  string                 `json:"channel_id,omitempty"`
	Parameters map[string]interface{} `json:"parameters"`
	Reasoning  string                 `json:"reasoning"`
	Priority   int                    `json:"priority"`
}

// DecisionResult is the fully-parsed, validated, capped output of one
// AI decision service call — the only shape anything downstream of C7
// ever sees, regardless of how messy the raw model output was.
type DecisionResult struct {
	Observations    string   `json:"observations"`
	PotentialActions []Action `json:"potential_actions"`
	SelectedActions []Action `json:"selected_actions"`
	Reasoning       string   `json:"reasoning"`
}

const (
	defaultReasoning = "No reasoning provided"
	defaultPriority  = 5
)

// KnownActionKinds is the bounded action vocabulary; anything outside
// it is normalized to "unknown" rather than rejected, per spec.md §4.7
// ("kept so the cycle sees it").
var KnownActionKinds = map[string]bool{
	"send_chat_message": true, "send_social_post": true,
	"like_post": true, "follow_user": true,
	"generate_image": true, "describe_image": true,
	"join_room": true, "leave_room": true, "accept_invite": true,
	"store_memory": true,
	"expand_node": true, "collapse_node": true, "pin_node": true, "unpin_node": true,
	"refresh_summary": true, "get_expansion_status": true,
	"web_search": true, "web_fetch": true, "wait": true,
}

// Client is the AI Decision Service Client (C7): it renders a payload
// and tool catalog into a request, calls the configured LLM provider,
// and turns the response into a validated DecisionResult that never
// carries an unparsable shape downstream.
type Client struct {
	provider   providers.Provider
	maxActions int
	retry      providers.RetryConfig
	dumper     *history.PayloadDumper
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithPayloadDumper enables writing every outgoing payload to disk via
// d, per spec.md §4.7's optional debug flag.
func WithPayloadDumper(d *history.PayloadDumper) Option {
	return func(c *Client) { c.dumper = d }
}

// WithRetryConfig overrides the default provider retry policy.
func WithRetryConfig(cfg providers.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// NewClient constructs a Client bounding each decision to maxActions
// selected actions.
func NewClient(p providers.Provider, maxActions int, opts ...Option) *Client {
	if maxActions <= 0 {
		maxActions = 3
	}
	c := &Client{provider: p, maxActions: maxActions, retry: providers.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrQuotaExceeded is returned by Decide when the provider responds 402
// (payment/quota exhausted), so the orchestrator can fall back to a
// different model or profile per spec.md §4.7.
var ErrQuotaExceeded = errors.New("ai decision service: quota exceeded")

// Decide builds the request from p and toolDefs, calls the provider,
// and robustly parses whatever comes back into a DecisionResult. It
// never returns an error for malformed output or most HTTP failures —
// only for a 402, which the orchestrator must handle by switching
// profile, and for context cancellation.
func (c *Client) Decide(ctx context.Context, cycleID string, p payload.Payload, toolDefs []providers.ToolDefinition) (DecisionResult, error) {
	req, err := BuildRequest(c.provider.DefaultModel(), c.maxActions, p, toolDefs)
	if err != nil {
		return emptyDecision(fmt.Sprintf("payload render failed: %v", err)), nil
	}

	if c.dumper != nil {
		if data, err := json.MarshalIndent(p, "", "  "); err == nil {
			_ = c.dumper.Dump(cycleID, time.Now(), data)
		}
	}

	resp, err := providers.RetryDo(ctx, c.retry, func() (*providers.ChatResponse, error) {
		return c.provider.Chat(ctx, req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return emptyDecision("context canceled before decision completed"), ctx.Err()
		}
		var httpErr *providers.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.Status {
			case 413:
				return emptyDecision("payload too large for the ai decision service"), nil
			case 402:
				return emptyDecision("ai decision service quota exceeded"), errs.New(errs.KindLLMQuotaExceeded, "aiservice", ErrQuotaExceeded)
			}
		}
		return emptyDecision(fmt.Sprintf("ai decision service error: %v", err)), nil
	}

	return parseAndValidate(resp, c.maxActions), nil
}

// DecideToolCalls converts a provider response's native tool_calls
// (function calling) into a DecisionResult, used when the provider
// supports structured tool use instead of free-text JSON.
func DecideToolCalls(resp *providers.ChatResponse, maxActions int) DecisionResult {
	plain := plainTextReasoning(resp.Content)
	dr := DecisionResult{Observations: plain, Reasoning: plain}
	for _, tc := range resp.ToolCalls {
		dr.SelectedActions = append(dr.SelectedActions, normalizeAction(DecisionAction{
			Kind: tc.Name, Parameters: tc.Arguments,
		}))
	}
	dr.SelectedActions = capByPriority(dr.SelectedActions, maxActions)
	return dr
}

func parseAndValidate(resp *providers.ChatResponse, maxActions int) DecisionResult {
	if len(resp.ToolCalls) > 0 {
		return DecideToolCalls(resp, maxActions)
	}

	parsed, ok := ExtractJSON(resp.Content)
	if !ok {
		return emptyDecision("could not extract a decision from the ai decision service response")
	}

	dr := DecisionResult{Observations: plainTextReasoning(parsed.Observations), Reasoning: plainTextReasoning(parsed.Reasoning)}
	for _, a := range parsed.PotentialActions {
		dr.PotentialActions = append(dr.PotentialActions, normalizeAction(a))
	}
	for _, a := range parsed.SelectedActions {
		dr.SelectedActions = append(dr.SelectedActions, normalizeAction(a))
	}
	dr.SelectedActions = capByPriority(dr.SelectedActions, maxActions)
	return dr
}

// normalizeAction fills in safe defaults for missing fields and maps
// unrecognized action kinds to "unknown", per spec.md §4.7.
func normalizeAction(a DecisionAction) Action {
	kind := a.Kind
	if !KnownActionKinds[kind] {
		kind = "unknown"
	}
	params := a.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	priority := a.Priority
	if priority < 1 || priority > 10 {
		priority = defaultPriority
	}
	reasoning := a.Reasoning
	if reasoning == "" {
		reasoning = defaultReasoning
	}
	return Action{
		Kind:       kind,
		ChannelID:  a.ChannelID,
		Parameters: params,
		Reasoning:  reasoning,
		Priority:   priority,
	}
}

// capByPriority keeps at most max actions, highest priority first,
// per spec.md §4.7's "keep the top by priority" rule.
func capByPriority(actions []Action, max int) []Action {
	if max <= 0 || len(actions) <= max {
		sortByPriorityDesc(actions)
		return actions
	}
	sortByPriorityDesc(actions)
	return actions[:max]
}

func sortByPriorityDesc(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Priority > actions[j].Priority })
}

func emptyDecision(reasoning string) DecisionResult {
	return DecisionResult{Reasoning: reasoning}
}
