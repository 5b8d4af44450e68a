package payload

import (
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// similarityThreshold is the fraction of shared words above which two
// bot messages are considered repetitive, per the upstream bot's
// bot_activity_context token-overlap heuristic.
const similarityThreshold = 0.7

// AntiLoopWindow bounds how far back RecentBotMessages looks when
// building the anti-loop context.
const AntiLoopWindow = 2 * time.Hour

// patternWindow is how recently a channel must have seen bot activity
// to get a conversation_patterns entry, per the upstream bot's 5-minute
// echo-chamber check.
const patternWindow = 5 * time.Minute

// Recommendation is the anti-loop guidance attached to a channel with
// recent bot activity.
type Recommendation string

const (
	RecommendWait         Recommendation = "WAIT"
	RecommendVaryResponse Recommendation = "VARY_RESPONSE"
	RecommendPause        Recommendation = "PAUSE"
	RecommendModerate     Recommendation = "MODERATE"
	RecommendNormal       Recommendation = "NORMAL"
)

// LastActionView is the trimmed projection of the bot's last action
// surfaced in bot_activity_context.last_action.
type LastActionView struct {
	ActionType     string    `json:"action_type"`
	Parameters     string    `json:"parameters_summary,omitempty"`
	Success        bool      `json:"success"`
	ResultPreview  string    `json:"result_preview,omitempty"`
	Reasoning      string    `json:"reasoning,omitempty"`
	SecondsAgo     float64   `json:"seconds_ago"`
	ChannelID      string    `json:"channel_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConversationPattern summarizes one channel's recent bot-vs-user
// activity balance for the echo-chamber-prevention check.
type ConversationPattern struct {
	BotMessageCount       int            `json:"bot_message_count"`
	SecondsSinceUserReply  float64        `json:"seconds_since_user_reply"`
	HighBotActivity        bool           `json:"high_bot_activity"`
	NoRecentUserResponse   bool           `json:"no_recent_user_response"`
	RepetitiveContent      bool           `json:"repetitive_content"`
	Recommendation         Recommendation `json:"recommendation"`
}

// AntiLoopContext summarizes the bot's own recent activity so the
// payload can warn the model away from repeating itself.
type AntiLoopContext struct {
	RecentBotMessageCount int                             `json:"recent_bot_message_count"`
	LikelyRepetitive      []string                        `json:"likely_repetitive,omitempty"`
	LastAction            *LastActionView                 `json:"last_action,omitempty"`
	ConversationPatterns  map[string]ConversationPattern  `json:"conversation_patterns,omitempty"`
	AntiLoopInstruction   string                          `json:"anti_loop_instruction"`
}

// BuildAntiLoopContext inspects the bot's own messages over
// AntiLoopWindow (already filtered to content longer than 20 characters
// by worldstate.Store.RecentBotMessages) and, within each channel's last
// 5 of them, flags ones that are highly similar to an earlier one, so
// the model sees it is at risk of looping.
// It also folds in the last dispatched action and a per-channel
// conversation-pattern recommendation, per spec.md §4.4.1.
func BuildAntiLoopContext(store *worldstate.Store, now time.Time) AntiLoopContext {
	msgs := store.RecentBotMessages(now.Add(-AntiLoopWindow))
	ctx := AntiLoopContext{RecentBotMessageCount: len(msgs)}
	left := make(map[string]int) // bot messages per channel not yet visited
	for _, m := range msgs {
		left[m.ChannelID]++
	}
	recent := make(map[string][]*worldstate.Message)
	for _, m := range msgs {
		if left[m.ChannelID]--; left[m.ChannelID] >= 5 {
			continue // older than the channel's last 5 bot messages
		}
		for _, prev := range recent[m.ChannelID] {
			if wordOverlap(m.Content, prev.Content) >= similarityThreshold {
				ctx.LikelyRepetitive = append(ctx.LikelyRepetitive, m.ID)
				break
			}
		}
		recent[m.ChannelID] = append(recent[m.ChannelID], m)
	}

	repetitive := make(map[string]bool, len(ctx.LikelyRepetitive))
	for _, id := range ctx.LikelyRepetitive {
		repetitive[id] = true
	}

	byChannel := make(map[string][]*worldstate.Message)
	for _, m := range msgs {
		if now.Sub(m.Timestamp) <= patternWindow {
			byChannel[m.ChannelID] = append(byChannel[m.ChannelID], m)
		}
	}
	if len(byChannel) > 0 {
		ctx.ConversationPatterns = make(map[string]ConversationPattern, len(byChannel))
		for channelID, channelMsgs := range byChannel {
			lastUser := store.LastUserMessage(channelID, now.Add(-AntiLoopWindow))
			sinceUser := AntiLoopWindow.Seconds()
			if lastUser != nil {
				sinceUser = now.Sub(lastUser.Timestamp).Seconds()
			}
			repeat := false
			for _, m := range channelMsgs {
				if repetitive[m.ID] {
					repeat = true
					break
				}
			}
			pattern := ConversationPattern{
				BotMessageCount:      len(channelMsgs),
				SecondsSinceUserReply: sinceUser,
				HighBotActivity:      len(channelMsgs) >= 3,
				NoRecentUserResponse: lastUser == nil || sinceUser > patternWindow.Seconds(),
				RepetitiveContent:    repeat,
			}
			pattern.Recommendation = recommend(pattern)
			ctx.ConversationPatterns[channelID] = pattern
		}
	}

	if last, ok := store.LastActionResult(); ok {
		ctx.LastAction = &LastActionView{
			ActionType:    string(last.Kind),
			Parameters:    summarizeParameters(last.Parameters),
			Success:       last.Success,
			ResultPreview: truncateText(last.Result, 120),
			Reasoning:     last.Reasoning,
			SecondsAgo:    now.Sub(last.CreatedAt).Seconds(),
			ChannelID:     last.ChannelID,
			Timestamp:     last.CreatedAt,
		}
	}
	ctx.AntiLoopInstruction = buildInstruction(ctx.LastAction)

	return ctx
}

// recommend derives the textual recommendation from a channel's
// conversation pattern, per spec.md §4.4.1's WAIT/VARY_RESPONSE/PAUSE/
// MODERATE/NORMAL vocabulary.
func recommend(p ConversationPattern) Recommendation {
	switch {
	case p.RepetitiveContent && p.NoRecentUserResponse:
		return RecommendPause
	case p.RepetitiveContent:
		return RecommendVaryResponse
	case p.HighBotActivity && p.NoRecentUserResponse:
		return RecommendWait
	case p.HighBotActivity:
		return RecommendModerate
	default:
		return RecommendNormal
	}
}

// buildInstruction produces the deterministic anti-loop guidance string
// from the last action kind, per spec.md §4.4.1.
func buildInstruction(last *LastActionView) string {
	base := "Do not repeat your immediately previous action with the same parameters; the model is stateless and repeating it will look identical to the user."
	if last == nil {
		return base
	}
	switch last.ActionType {
	case "expand_node":
		return base + " You just expanded a node; analyze the newly visible information instead of expanding another node."
	case "send_chat_message", "send_social_post":
		return base + fmt.Sprintf(" You just sent a message to channel %q; consider waiting or varying your response rather than posting again immediately.", last.ChannelID)
	case "wait":
		return base + " You just chose to wait; only act again if something has actually changed."
	default:
		return base + fmt.Sprintf(" You just executed %q; pick a different action unless new information justifies repeating it.", last.ActionType)
	}
}

func summarizeParameters(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	var sb strings.Builder
	first := true
	for k, v := range params {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s=%v", k, v)
	}
	return truncateText(sb.String(), 160)
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// wordOverlap returns the Jaccard similarity of the two strings' word sets.
func wordOverlap(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
