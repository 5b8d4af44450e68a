package tools

import (
	"context"
	"fmt"
)

// SocialActor is the subset of internal/integrations.SocialActor the
// like_post/follow_user tools use.
type SocialActor interface {
	LikePost(ctx context.Context, postID string) error
	FollowUser(ctx context.Context, userID string) error
}

// LikePostTool implements like_post against the social_network platform.
type LikePostTool struct{ actor SocialActor }

func NewLikePostTool(actor SocialActor) *LikePostTool { return &LikePostTool{actor: actor} }
func (t *LikePostTool) Name() string                  { return "like_post" }
func (t *LikePostTool) Description() string {
	return "Like a post on the social_network platform."
}
func (t *LikePostTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"post_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the post to like.",
			},
		},
		"required": []string{"post_id"},
	}
}
func (t *LikePostTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	postID, _ := args["post_id"].(string)
	if postID == "" {
		return ErrorResult("post_id is required")
	}
	if err := t.actor.LikePost(ctx, postID); err != nil {
		return ErrorResult(fmt.Sprintf("like failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("liked %s", postID))
}

// FollowUserTool implements follow_user against the social_network platform.
type FollowUserTool struct{ actor SocialActor }

func NewFollowUserTool(actor SocialActor) *FollowUserTool { return &FollowUserTool{actor: actor} }
func (t *FollowUserTool) Name() string                    { return "follow_user" }
func (t *FollowUserTool) Description() string {
	return "Follow a user on the social_network platform."
}
func (t *FollowUserTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"user_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the user to follow.",
			},
		},
		"required": []string{"user_id"},
	}
}
func (t *FollowUserTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return ErrorResult("user_id is required")
	}
	if err := t.actor.FollowUser(ctx, userID); err != nil {
		return ErrorResult(fmt.Sprintf("follow failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("followed %s", userID))
}
