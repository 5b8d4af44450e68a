package tools

import (
	"context"
	"errors"
	"testing"
)

type stubSocialActor struct {
	likedID, followedID string
	err                 error
}

func (s *stubSocialActor) LikePost(_ context.Context, postID string) error {
	s.likedID = postID
	return s.err
}
func (s *stubSocialActor) FollowUser(_ context.Context, userID string) error {
	s.followedID = userID
	return s.err
}

func TestLikePostTool(t *testing.T) {
	actor := &stubSocialActor{}
	tool := NewLikePostTool(actor)
	res := tool.Execute(context.Background(), map[string]interface{}{"post_id": "p1"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if actor.likedID != "p1" {
		t.Fatalf("expected like of p1, got %q", actor.likedID)
	}
}

func TestLikePostToolRequiresPostID(t *testing.T) {
	tool := NewLikePostTool(&stubSocialActor{})
	res := tool.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error when post_id missing")
	}
}

func TestFollowUserToolPropagatesError(t *testing.T) {
	actor := &stubSocialActor{err: errors.New("rate limited")}
	tool := NewFollowUserTool(actor)
	res := tool.Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if !res.IsError {
		t.Fatal("expected error to propagate")
	}
}

type stubRoomManager struct {
	joined, left, accepted string
}

func (s *stubRoomManager) JoinRoom(_ context.Context, channelID string) error {
	s.joined = channelID
	return nil
}
func (s *stubRoomManager) LeaveRoom(_ context.Context, channelID string) error {
	s.left = channelID
	return nil
}
func (s *stubRoomManager) AcceptInvite(_ context.Context, channelID string) error {
	s.accepted = channelID
	return nil
}

func TestRoomTools(t *testing.T) {
	mgr := &stubRoomManager{}
	NewJoinRoomTool(mgr).Execute(context.Background(), map[string]interface{}{"channel_id": "room1"})
	NewLeaveRoomTool(mgr).Execute(context.Background(), map[string]interface{}{"channel_id": "room2"})
	NewAcceptInviteTool(mgr).Execute(context.Background(), map[string]interface{}{"channel_id": "room3"})

	if mgr.joined != "room1" || mgr.left != "room2" || mgr.accepted != "room3" {
		t.Fatalf("unexpected room manager state: %+v", mgr)
	}
}

func TestRoomToolsRequireChannelID(t *testing.T) {
	res := NewJoinRoomTool(&stubRoomManager{}).Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error when channel_id missing")
	}
}

type stubMemoryStore struct {
	key, value string
	err        error
}

func (s *stubMemoryStore) RecordMemory(_ context.Context, key, value string) error {
	s.key, s.value = key, value
	return s.err
}

func TestStoreMemoryTool(t *testing.T) {
	store := &stubMemoryStore{}
	tool := NewStoreMemoryTool(store)
	res := tool.Execute(context.Background(), map[string]interface{}{"key": "k", "value": "v"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if !res.Silent {
		t.Fatal("expected store_memory result to be silent")
	}
	if store.key != "k" || store.value != "v" {
		t.Fatalf("unexpected stored memory: %+v", store)
	}
}

func TestStoreMemoryToolRequiresKeyAndValue(t *testing.T) {
	res := NewStoreMemoryTool(&stubMemoryStore{}).Execute(context.Background(), map[string]interface{}{"key": "k"})
	if !res.IsError {
		t.Fatal("expected error when value missing")
	}
}
