// Package integrations defines the common contract every platform
// adapter implements (spec.md §6 "Integration contract"): the core
// orchestrator depends only on these interfaces, never on a concrete
// federated_chat or social_network client, matching the teacher's
// internal/channels factory pattern (one interface, independent
// concrete implementations selected at startup by type tag).
package integrations

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// Status is the point-in-time connection state of an Integration,
// surfaced in system_status for the payload builder.
type Status struct {
	Connected bool
	LastError string
	Metrics   map[string]interface{}
}

// TestResult is the outcome of a connectivity self-check, used by the
// `integrations test` CLI subcommand and by startup health checks.
type TestResult struct {
	Success bool
	Error   string
}

// SendResult is the outcome of a successful or failed outbound send.
type SendResult struct {
	Success   bool
	MessageID string
}

// Integration is the contract every platform adapter implements. The
// core orchestrator and tool executor depend only on this (plus the
// optional capability interfaces below), never on a concrete client.
type Integration interface {
	// Name identifies the integration, e.g. "federated_chat" or "social_network".
	Name() string
	Platform() worldstate.Platform

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	TestConnection(ctx context.Context) TestResult
	Status() Status

	// SendMessage posts content into channelID, optionally attaching
	// mediaURL. It satisfies internal/tools.Dispatcher directly.
	SendMessage(ctx context.Context, channelID, content, mediaURL string) (messageID string, err error)

	// ReplyToMessage posts content as a reply to replyToID within channelID.
	ReplyToMessage(ctx context.Context, channelID, replyToID, content, mediaURL string) (messageID string, err error)
}

// RoomManager is implemented by platforms with explicit room/channel
// membership (federated_chat): join/leave/accept-invite/list-invites.
type RoomManager interface {
	JoinRoom(ctx context.Context, channelID string) error
	LeaveRoom(ctx context.Context, channelID string) error
	AcceptInvite(ctx context.Context, channelID string) error
	ListInvites(ctx context.Context) ([]worldstate.PendingInvite, error)
}

// SocialActor is implemented by platforms supporting likes/follows
// (social_network).
type SocialActor interface {
	LikePost(ctx context.Context, postID string) error
	FollowUser(ctx context.Context, userID string) error
}

// KeyRequester is implemented by encrypted-room platforms
// (federated_chat) so the undecryptable-event retry worker can
// broadcast a room-key request to current room members, per
// spec.md §4.1/§9 and the original bot's encryption.py behavior.
type KeyRequester interface {
	RequestRoomKey(ctx context.Context, channelID, eventID string) error
}

// ProfileLookup is implemented by platforms exposing user profile data
// (spec.md §6 "Optional: ... user profile lookup").
type ProfileLookup interface {
	LookupUser(ctx context.Context, userID string) (*worldstate.User, error)
}

// ObservationPublisher is what an Integration's ingestion loop uses to
// push inbound data toward the orchestrator, keeping integrations
// decoupled from the bus's concrete backend.
type ObservationPublisher interface {
	Publish(ctx context.Context, kind string, msg *worldstate.Message, invite *worldstate.PendingInvite, undecryptable *worldstate.UndecryptableEvent) error
}

// RateLimitObserver receives a platform's own rate-limit headers so the
// world state can surface them informationally, per spec.md §4.5.
type RateLimitObserver interface {
	ObserveRateLimit(apiName string, snap worldstate.ExternalAPISnapshot)
}

// ConnectTimeout and CallTimeout are the spec.md §5 per-call timeouts
// for integration HTTP/websocket calls.
const (
	ConnectTimeout = 30 * time.Second
	CallTimeout    = 30 * time.Second
)
