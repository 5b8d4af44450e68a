package aiservice

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/socialagent/internal/payload"
	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

const systemPromptTemplate = `You are a social agent observing one or more chat and social platforms.
Each cycle you are shown the current world state and must choose zero or more
bounded actions from the tools available to you. Do not repeat a message you
have recently sent; the anti_loop section below flags recent repetition.
Respond by calling tools directly, or — if function calling is unavailable —
reply with a single JSON object of the shape:
{"observations": "<what you notice>", "selected_actions": [{"action_type": "<action kind>", "channel_id": "<id>", "parameters": {...}, "reasoning": "<short rationale>"}]}
You may select at most %d actions this cycle. Prefer "wait" when nothing
warrants a response.`

// BuildSystemPrompt renders the fixed instructions plus the current
// world-state payload into the system message for the decision request.
func BuildSystemPrompt(maxActions int, p payload.Payload) (string, error) {
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(systemPromptTemplate, maxActions))
	sb.WriteString("\n\nCurrent world state:\n")
	sb.Write(body)
	return sb.String(), nil
}

// BuildRequest assembles the full ChatRequest for one decision cycle:
// the rendered system prompt, the registered tool definitions, and a
// single user turn prompting for this cycle's decision.
func BuildRequest(model string, maxActions int, p payload.Payload, toolDefs []providers.ToolDefinition) (providers.ChatRequest, error) {
	systemPrompt, err := BuildSystemPrompt(maxActions, p)
	if err != nil {
		return providers.ChatRequest{}, err
	}
	return providers.ChatRequest{
		Model: model,
		Tools: toolDefs,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Decide this cycle's actions, if any."},
		},
	}, nil
}
