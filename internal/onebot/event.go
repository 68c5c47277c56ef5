package onebot

// Sender describes the account that produced a message event.
type Sender struct {
	UserID   int64
	Nickname string
	Card     string
	Role     string
}

// DisplayName prefers the group card over the account nickname.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

// Event is a decoded OneBot v11 event. Fields not present on a given
// post_type are zero.
type Event struct {
	Time          int64
	SelfID        int64
	PostType      string
	MessageType   string
	SubType       string
	MetaEventType string
	MessageID     int64
	GroupID       int64
	UserID        int64
	RawMessage    string
	Message       Message
	Sender        Sender

	raw map[string]any
}

// IsGroup reports whether the event came from a group chat.
func (e *Event) IsGroup() bool {
	return e.MessageType == "group" && e.GroupID > 0
}

// PlainText is the concatenated text content of the message, falling back to
// the CQ-stripped raw message when no segment array was reported.
func (e *Event) PlainText() string {
	if len(e.Message) > 0 {
		return e.Message.PlainText()
	}
	return StripCQCodes(e.RawMessage)
}

// Raw exposes the undecoded payload for fields this package does not model.
func (e *Event) Raw() map[string]any {
	return e.raw
}

func decodeEvent(data map[string]any) *Event {
	ev := &Event{
		Time:          toInt64(data["time"]),
		SelfID:        toInt64(data["self_id"]),
		PostType:      toString(data["post_type"]),
		MessageType:   toString(data["message_type"]),
		SubType:       toString(data["sub_type"]),
		MetaEventType: toString(data["meta_event_type"]),
		MessageID:     toInt64(data["message_id"]),
		GroupID:       toInt64(data["group_id"]),
		UserID:        toInt64(data["user_id"]),
		RawMessage:    toString(data["raw_message"]),
		Message:       parseMessageValue(data["message"]),
		raw:           data,
	}
	if s, ok := data["sender"].(map[string]any); ok {
		ev.Sender = Sender{
			UserID:   toInt64(s["user_id"]),
			Nickname: toString(s["nickname"]),
			Card:     toString(s["card"]),
			Role:     toString(s["role"]),
		}
	}
	if ev.Sender.UserID == 0 {
		ev.Sender.UserID = ev.UserID
	}
	return ev
}
