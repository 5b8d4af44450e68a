// Package protocol holds the small vocabulary of string constants
// shared across the agent's components and its CLI surface: the
// bounded action kinds the AI decision service may select, the
// node-control tool names exposed alongside them, and the observation
// kinds integrations publish to the bus. internal/orchestrator and the
// CLI read these constants; internal/tools and internal/aiservice spell
// the same names as string literals. The layout follows the teacher's
// own pkg/protocol event/method name constants.
package protocol

// ProtocolVersion identifies the shape of the payload/decision contract
// between this binary and the AI decision service. Bump it whenever
// Payload or DecisionResult's JSON shape changes incompatibly.
const ProtocolVersion = 1

// Action kind names. These mirror worldstate.ActionKind's values as
// plain strings so the CLI and tool registry can refer to them without
// importing worldstate for a handful of constants.
const (
	ActionSendChatMessage = "send_chat_message"
	ActionSendSocialPost  = "send_social_post"
	ActionLikePost        = "like_post"
	ActionFollowUser      = "follow_user"
	ActionGenerateImage   = "generate_image"
	ActionDescribeImage   = "describe_image"
	ActionJoinRoom        = "join_room"
	ActionLeaveRoom       = "leave_room"
	ActionAcceptInvite    = "accept_invite"
	ActionStoreMemory     = "store_memory"
	ActionExpandNode      = "expand_node"
	ActionCollapseNode    = "collapse_node"
	ActionPinNode         = "pin_node"
	ActionUnpinNode       = "unpin_node"
	ActionRefreshSummary  = "refresh_summary"
	ActionGetExpansion    = "get_expansion_status"
	ActionWebSearch       = "web_search"
	ActionWebFetch        = "web_fetch"
	ActionWait            = "wait"
)

// ExplorationComplete is the sentinel the AI decision service emits in
// its reasoning string to end phase A (node-control exploration) of a
// two-phase cycle early, per spec.md §4.8.
const ExplorationComplete = "EXPLORATION_COMPLETE"

// Platform identifiers, duplicated here as plain strings (rather than
// importing worldstate.Platform) for use in CLI flags and log fields
// where the typed enum would be an unnecessary dependency.
const (
	PlatformFederatedChat = "federated_chat"
	PlatformSocialNetwork = "social_network"
)
