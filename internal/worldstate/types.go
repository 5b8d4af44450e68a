// Package worldstate implements the unified, in-memory observation model
// the orchestrator reasons over each cycle: the Channels, Messages,
// Threads, Users, and bookkeeping records gathered from every connected
// integration, deduplicated and capped per the retention rules.
package worldstate

import "time"

// Platform identifies which integration produced a piece of state.
type Platform string

const (
	PlatformFederatedChat Platform = "federated_chat"
	PlatformSocialNetwork Platform = "social_network"
)

// Channel is a room (federated_chat) or a feed/channel (social_network).
type Channel struct {
	ID          string            `json:"id"`
	Platform    Platform          `json:"platform"`
	Name        string            `json:"name"`
	Topic       string            `json:"topic,omitempty"`
	PowerLevels map[string]int    `json:"power_levels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	LastActive  time.Time         `json:"last_active"`
}

// Thread groups a reply chain inside a Channel; not every platform has
// explicit threads, in which case Thread.ID equals the root Message.ID.
type Thread struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	RootMsgID string    `json:"root_message_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a participant observed on any platform.
type User struct {
	ID          string   `json:"id"`
	Platform    Platform `json:"platform"`
	DisplayName string   `json:"display_name"`
	Handle      string   `json:"handle,omitempty"`
	IsBot       bool     `json:"is_bot"`
}

// BatchedMessage preserves one original message's content and timestamp
// inside a batched Message, per the upstream bot's observer semantics.
type BatchedMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a unit of observed content: a chat message, a cast, a reply.
type Message struct {
	ID          string            `json:"id"`
	Platform    Platform          `json:"platform"`
	ChannelID   string            `json:"channel_id"`
	ThreadID    string            `json:"thread_id,omitempty"`
	AuthorID    string            `json:"author_id"`
	Content     string            `json:"content"`
	Timestamp   time.Time         `json:"timestamp"`
	IsFromBot   bool              `json:"is_from_bot"`
	ReplyToID   string            `json:"reply_to_id,omitempty"`
	Batched     []BatchedMessage  `json:"batched_messages,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Undecryptable bool            `json:"undecryptable,omitempty"`
}

// ActionKind enumerates the bounded action vocabulary the AI decision
// service is allowed to select from.
type ActionKind string

const (
	ActionSendChatMessage ActionKind = "send_chat_message"
	ActionSendSocialPost  ActionKind = "send_social_post"
	ActionLikePost        ActionKind = "like_post"
	ActionFollowUser      ActionKind = "follow_user"
	ActionGenerateImage   ActionKind = "generate_image"
	ActionDescribeImage   ActionKind = "describe_image"
	ActionJoinRoom        ActionKind = "join_room"
	ActionLeaveRoom       ActionKind = "leave_room"
	ActionAcceptInvite    ActionKind = "accept_invite"
	ActionStoreMemory     ActionKind = "store_memory"
	ActionExpandNode      ActionKind = "expand_node"
	ActionCollapseNode    ActionKind = "collapse_node"
	ActionPinNode         ActionKind = "pin_node"
	ActionUnpinNode       ActionKind = "unpin_node"
	ActionWebSearch       ActionKind = "web_search"
	ActionWebFetch        ActionKind = "web_fetch"
	ActionWait            ActionKind = "wait"
	ActionUnknown         ActionKind = "unknown"
)

// ActionRecord is a durable record of one action the orchestrator
// dispatched on the AI decision service's behalf.
type ActionRecord struct {
	ID         string                 `json:"id"`
	CycleID    string                 `json:"cycle_id"`
	Kind       ActionKind             `json:"kind"`
	ChannelID  string                 `json:"channel_id,omitempty"`
	Parameters map[string]interface{} `json:"parameters"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	Success    bool                   `json:"success"`
	Result     string                 `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ChangeType enumerates the kinds of mutation a StateChangeBlock records.
type ChangeType string

const (
	ChangeMessageAdded  ChangeType = "message_added"
	ChangeNodeExpanded  ChangeType = "node_expanded"
	ChangeNodeCollapsed ChangeType = "node_collapsed"
	ChangeActionApplied ChangeType = "action_applied"
	ChangeInviteSeen    ChangeType = "invite_seen"
)

// StateChangeBlock is the append-only audit trail entry the history
// recorder persists for every mutation applied to the world state.
type StateChangeBlock struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	EntityID   string     `json:"entity_id"`
	RawContent string     `json:"raw_content,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PendingInvite is an invitation to a Channel awaiting accept/decline.
type PendingInvite struct {
	ChannelID string    `json:"channel_id"`
	Platform  Platform  `json:"platform"`
	InviterID string    `json:"inviter_id"`
	SeenAt    time.Time `json:"seen_at"`
}

// GeneratedMediaRef tracks a piece of bot-generated media from creation
// through durable mirror upload to its eventual use in a post/message.
type GeneratedMediaRef struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	LocalPath  string    `json:"local_path,omitempty"`
	StorageURL string    `json:"storage_url,omitempty"`
	MimeType   string    `json:"mime_type"`
	CreatedAt  time.Time `json:"created_at"`
	UsedInID   string    `json:"used_in_id,omitempty"`
}

// UndecryptableEvent records a federated_chat event the client could not
// decrypt, pending a room-key request retry.
type UndecryptableEvent struct {
	EventID    string    `json:"event_id"`
	ChannelID  string    `json:"channel_id"`
	SenderID   string    `json:"sender_id"`
	FirstSeen  time.Time `json:"first_seen"`
	RetryCount int       `json:"retry_count"`
	Resolved   bool      `json:"resolved"`
}

// RateLimitSnapshot is a point-in-time view of the rate limiter's
// counters, surfaced to the payload builder so the model can see how
// much budget remains.
type RateLimitSnapshot struct {
	CycleActionsUsed   int            `json:"cycle_actions_used"`
	CycleActionsLimit  int            `json:"cycle_actions_limit"`
	ByKindUsed         map[string]int `json:"by_kind_used"`
	CooldownActive     bool           `json:"cooldown_active"`
	CooldownUntil      time.Time      `json:"cooldown_until,omitempty"`
}

// ExternalAPISnapshot is a point-in-time view of a platform's own rate
// limit headers (e.g. a 429 response's Retry-After), surfaced to the
// model as informational context — per spec.md §4.5 these are never
// enforced by the rate limiter itself, only displayed so the model can
// reason about upcoming external throttling.
type ExternalAPISnapshot struct {
	APIName      string    `json:"api_name"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	ResetAt      time.Time `json:"reset_at"`
	RetryAfterMS int64     `json:"retry_after_ms,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Stale reports whether the snapshot is older than 10 minutes, per
// spec.md §3, and should no longer be trusted by the payload builder.
func (s ExternalAPISnapshot) Stale(now time.Time) bool {
	return now.Sub(s.LastUpdated) > 10*time.Minute
}
