// Package aiservice is the AI Decision Service Client (C7): it renders
// the cycle payload into a prompt, calls the configured LLM provider,
// and turns whatever comes back — which, in practice, is often not
// clean JSON — into a validated, capped list of actions.
package aiservice

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DecisionResponse is the structured shape the AI decision service is
// asked to produce: a short observation of current state, the actions
// it considered, the bounded subset it selected, and its reasoning.
type DecisionResponse struct {
	Observations     string           `json:"observations"`
	PotentialActions []DecisionAction `json:"potential_actions,omitempty"`
	SelectedActions  []DecisionAction `json:"selected_actions"`
	Reasoning        string           `json:"reasoning"`
}

// DecisionAction is one raw, not-yet-validated action selection.
type DecisionAction struct {
	Kind       string                 `json:"action_type"`
	ChannelID  string                 `json:"channel_id,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	Priority   int                    `json:"priority,omitempty"`
}

var (
	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	braceScanRe  = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON recovers a DecisionResponse from raw LLM output through a
// five-step fallback chain, each stage progressively more permissive:
//  1. The entire trimmed response parses as JSON outright.
//  2. A fenced ```json ... ``` code block is extracted and parsed.
//  3. The span from the first '{' to the last '}' in the text is
//     parsed. Braces are not balance-matched, so a '}' in prose after
//     the object makes this step fail.
//  4. The same span is parsed again after stripping trailing commas,
//     a common small-model mistake.
//  5. Give up and return ok=false so the caller can fall back to an
//     empty decision (no actions) for this cycle.
func ExtractJSON(raw string) (DecisionResponse, bool) {
	trimmed := strings.TrimSpace(raw)

	if resp, ok := tryParse(trimmed); ok {
		return resp, true
	}

	if m := fencedJSONRe.FindStringSubmatch(trimmed); len(m) == 2 {
		if resp, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return resp, true
		}
	}

	if span := braceScanRe.FindString(trimmed); span != "" {
		if resp, ok := tryParse(span); ok {
			return resp, true
		}
		cleaned := trailingCommaRe.ReplaceAllString(span, "$1")
		if resp, ok := tryParse(cleaned); ok {
			return resp, true
		}
	}

	return DecisionResponse{}, false
}

func tryParse(s string) (DecisionResponse, bool) {
	var resp DecisionResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return DecisionResponse{}, false
	}
	return resp, true
}
