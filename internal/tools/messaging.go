package tools

import (
	"context"
	"fmt"
)

// Dispatcher sends an outbound message to a platform integration. Both
// federatedchat and socialnetwork integrations implement it so the
// messaging tools stay platform-agnostic.
type Dispatcher interface {
	SendMessage(ctx context.Context, channelID, content, mediaURL string) (messageID string, err error)
}

// SendChatMessageTool implements send_chat_message against the
// federated_chat platform.
type SendChatMessageTool struct{ dispatcher Dispatcher }

func NewSendChatMessageTool(d Dispatcher) *SendChatMessageTool { return &SendChatMessageTool{dispatcher: d} }
func (t *SendChatMessageTool) Name() string                    { return "send_chat_message" }
func (t *SendChatMessageTool) Description() string {
	return "Send a message into a federated_chat room."
}
func (t *SendChatMessageTool) Parameters() map[string]interface{} {
	return messageParams()
}
func (t *SendChatMessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return dispatch(ctx, t.dispatcher, args)
}

// SendSocialPostTool implements send_social_post against the
// social_network platform.
type SendSocialPostTool struct{ dispatcher Dispatcher }

func NewSendSocialPostTool(d Dispatcher) *SendSocialPostTool { return &SendSocialPostTool{dispatcher: d} }
func (t *SendSocialPostTool) Name() string                    { return "send_social_post" }
func (t *SendSocialPostTool) Description() string {
	return "Publish a post to the social_network platform, optionally attaching generated media."
}
func (t *SendSocialPostTool) Parameters() map[string]interface{} {
	return messageParams()
}
func (t *SendSocialPostTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return dispatch(ctx, t.dispatcher, args)
}

func messageParams() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel_id": map[string]interface{}{
				"type":        "string",
				"description": "Destination channel or feed ID.",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Message or post text.",
			},
			"media_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional GeneratedMediaRef ID from a prior generate_image action to attach.",
			},
		},
		"required": []string{"channel_id", "content"},
	}
}

func dispatch(ctx context.Context, d Dispatcher, args map[string]interface{}) *Result {
	channelID, _ := args["channel_id"].(string)
	content, _ := args["content"].(string)
	if channelID == "" || content == "" {
		return ErrorResult("channel_id and content are required")
	}
	mediaURL, _ := args["media_url"].(string)

	id, err := d.SendMessage(ctx, channelID, content, mediaURL)
	if err != nil {
		return ErrorResult(fmt.Sprintf("send failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("sent %s", id))
}

// WaitTool implements the no-op "wait" action the decision service can
// pick when no action is warranted this cycle.
type WaitTool struct{}

func NewWaitTool() *WaitTool { return &WaitTool{} }
func (t *WaitTool) Name() string         { return "wait" }
func (t *WaitTool) Description() string {
	return "Take no action this cycle; use when nothing warrants a response."
}
func (t *WaitTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Optional short note on why waiting.",
			},
		},
	}
}
func (t *WaitTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	reason, _ := args["reason"].(string)
	if reason == "" {
		reason = "no action warranted"
	}
	return SilentResult(reason)
}
