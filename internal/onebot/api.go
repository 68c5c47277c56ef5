package onebot

import (
	"context"
)

// API is the action surface plugins use. *Server implements it; tests can
// substitute a fake.
type API interface {
	SelfID() int64
	Call(ctx context.Context, action string, params map[string]any) (map[string]any, error)
	SendGroupMessage(ctx context.Context, groupID int64, msg Message) error
	SendPrivateMessage(ctx context.Context, userID int64, msg Message) error
	SendGroupForward(ctx context.Context, groupID int64, nodes []Segment) error
	SendPrivateForward(ctx context.Context, userID int64, nodes []Segment) error
	SetMessageReaction(ctx context.Context, messageID int64, emojiID string) error
	GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (Sender, error)
	GetLoginInfo(ctx context.Context) (int64, string, error)
	GetGroupList(ctx context.Context) ([]int64, error)
	GetMessage(ctx context.Context, messageID int64) (Message, Sender, error)
}

// SendGroupMessage sends a segment-array message to a group.
func (s *Server) SendGroupMessage(ctx context.Context, groupID int64, msg Message) error {
	_, err := s.Call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  msg,
	})
	return err
}

// SendPrivateMessage sends a segment-array message to a user.
func (s *Server) SendPrivateMessage(ctx context.Context, userID int64, msg Message) error {
	_, err := s.Call(ctx, "send_private_msg", map[string]any{
		"user_id": userID,
		"message": msg,
	})
	return err
}

// SendGroupForward sends a merged-forward message built from node segments.
func (s *Server) SendGroupForward(ctx context.Context, groupID int64, nodes []Segment) error {
	_, err := s.Call(ctx, "send_group_forward_msg", map[string]any{
		"group_id": groupID,
		"messages": nodes,
	})
	return err
}

// SendPrivateForward is SendGroupForward for private chats.
func (s *Server) SendPrivateForward(ctx context.Context, userID int64, nodes []Segment) error {
	_, err := s.Call(ctx, "send_private_forward_msg", map[string]any{
		"user_id":  userID,
		"messages": nodes,
	})
	return err
}

// SetMessageReaction sticks an emoji reaction onto a message.
func (s *Server) SetMessageReaction(ctx context.Context, messageID int64, emojiID string) error {
	_, err := s.Call(ctx, "set_msg_emoji_like", map[string]any{
		"message_id": messageID,
		"emoji_id":   emojiID,
	})
	return err
}

// GetGroupMemberInfo fetches a member's card/nickname/role in a group.
func (s *Server) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (Sender, error) {
	data, err := s.Call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	})
	if err != nil {
		return Sender{}, err
	}
	return Sender{
		UserID:   toInt64(data["user_id"]),
		Nickname: toString(data["nickname"]),
		Card:     toString(data["card"]),
		Role:     toString(data["role"]),
	}, nil
}

// GetLoginInfo returns the bot account's QQ number and nickname.
func (s *Server) GetLoginInfo(ctx context.Context) (int64, string, error) {
	data, err := s.Call(ctx, "get_login_info", nil)
	if err != nil {
		return 0, "", err
	}
	return toInt64(data["user_id"]), toString(data["nickname"]), nil
}

// GetGroupList returns the IDs of all groups the bot has joined.
func (s *Server) GetGroupList(ctx context.Context) ([]int64, error) {
	list, err := s.CallList(ctx, "get_group_list", nil)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id := toInt64(m["group_id"]); id > 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

// GetMessage fetches a stored message by ID, used to resolve quoted replies.
func (s *Server) GetMessage(ctx context.Context, messageID int64) (Message, Sender, error) {
	data, err := s.Call(ctx, "get_msg", map[string]any{"message_id": messageID})
	if err != nil {
		return nil, Sender{}, err
	}
	msg := parseMessageValue(data["message"])
	sender := Sender{}
	if raw, ok := data["sender"].(map[string]any); ok {
		sender = Sender{
			UserID:   toInt64(raw["user_id"]),
			Nickname: toString(raw["nickname"]),
			Card:     toString(raw["card"]),
		}
	}
	return msg, sender, nil
}
