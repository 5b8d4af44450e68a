package tools

import (
	"context"
	"fmt"
)

// RoomManager is the subset of internal/integrations.RoomManager the
// join_room/leave_room/accept_invite tools use.
type RoomManager interface {
	JoinRoom(ctx context.Context, channelID string) error
	LeaveRoom(ctx context.Context, channelID string) error
	AcceptInvite(ctx context.Context, channelID string) error
}

func channelIDArg(args map[string]interface{}) (string, *Result) {
	id, _ := args["channel_id"].(string)
	if id == "" {
		return "", ErrorResult("channel_id is required")
	}
	return id, nil
}

func channelParams() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"channel_id": map[string]interface{}{
				"type":        "string",
				"description": "The federated_chat room ID to act on.",
			},
		},
		"required": []string{"channel_id"},
	}
}

// JoinRoomTool implements join_room against the federated_chat platform.
type JoinRoomTool struct{ mgr RoomManager }

func NewJoinRoomTool(mgr RoomManager) *JoinRoomTool { return &JoinRoomTool{mgr: mgr} }
func (t *JoinRoomTool) Name() string                { return "join_room" }
func (t *JoinRoomTool) Description() string         { return "Join a federated_chat room." }
func (t *JoinRoomTool) Parameters() map[string]interface{} { return channelParams() }
func (t *JoinRoomTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, errRes := channelIDArg(args)
	if errRes != nil {
		return errRes
	}
	if err := t.mgr.JoinRoom(ctx, id); err != nil {
		return ErrorResult(fmt.Sprintf("join failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("joined %s", id))
}

// LeaveRoomTool implements leave_room.
type LeaveRoomTool struct{ mgr RoomManager }

func NewLeaveRoomTool(mgr RoomManager) *LeaveRoomTool { return &LeaveRoomTool{mgr: mgr} }
func (t *LeaveRoomTool) Name() string                 { return "leave_room" }
func (t *LeaveRoomTool) Description() string          { return "Leave a federated_chat room." }
func (t *LeaveRoomTool) Parameters() map[string]interface{} { return channelParams() }
func (t *LeaveRoomTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, errRes := channelIDArg(args)
	if errRes != nil {
		return errRes
	}
	if err := t.mgr.LeaveRoom(ctx, id); err != nil {
		return ErrorResult(fmt.Sprintf("leave failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("left %s", id))
}

// AcceptInviteTool implements accept_invite.
type AcceptInviteTool struct{ mgr RoomManager }

func NewAcceptInviteTool(mgr RoomManager) *AcceptInviteTool { return &AcceptInviteTool{mgr: mgr} }
func (t *AcceptInviteTool) Name() string                    { return "accept_invite" }
func (t *AcceptInviteTool) Description() string {
	return "Accept a pending federated_chat room invite."
}
func (t *AcceptInviteTool) Parameters() map[string]interface{} { return channelParams() }
func (t *AcceptInviteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, errRes := channelIDArg(args)
	if errRes != nil {
		return errRes
	}
	if err := t.mgr.AcceptInvite(ctx, id); err != nil {
		return ErrorResult(fmt.Sprintf("accept invite failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("accepted invite to %s", id))
}
