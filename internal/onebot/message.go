package onebot

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Segment is one element of an OneBot v11 message array.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Message is a segment array, the canonical OneBot v11 message form.
type Message []Segment

// Text builds a plain text segment.
func Text(s string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": s}}
}

// At builds an @-mention segment.
func At(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

// Face builds a QQ system face segment.
func Face(id int) Segment {
	return Segment{Type: "face", Data: map[string]any{"id": strconv.Itoa(id)}}
}

// ImageBytes builds an image segment carrying the raw bytes inline, so no
// filesystem is shared with the gateway.
func ImageBytes(b []byte) Segment {
	return Segment{Type: "image", Data: map[string]any{
		"file": "base64://" + base64.StdEncoding.EncodeToString(b),
	}}
}

// ImageURL builds an image segment pointing at a remote resource.
func ImageURL(u string) Segment {
	return Segment{Type: "image", Data: map[string]any{"file": u}}
}

// FileBytes builds a file segment carrying the payload inline.
func FileBytes(name string, b []byte) Segment {
	return Segment{Type: "file", Data: map[string]any{
		"name": name,
		"file": "base64://" + base64.StdEncoding.EncodeToString(b),
	}}
}

// Node builds a forward-message node attributed to the given sender.
func Node(name string, uin int64, content Message) Segment {
	return Segment{Type: "node", Data: map[string]any{
		"name":    name,
		"uin":     strconv.FormatInt(uin, 10),
		"content": content,
	}}
}

// TextNode is a convenience for the common single-text forward node.
func TextNode(name string, uin int64, text string) Segment {
	return Node(name, uin, Message{Text(text)})
}

func (s Segment) str(key string) string {
	return toString(s.Data[key])
}

// SegmentText returns the text payload of a text segment.
func SegmentText(s Segment) string {
	return s.str("text")
}

// SegmentAtTarget returns the user ID an at segment mentions, 0 for "all".
func SegmentAtTarget(s Segment) int64 {
	n, _ := strconv.ParseInt(s.str("qq"), 10, 64)
	return n
}

// PlainText concatenates the text segments of a message.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, seg := range m {
		if seg.Type == "text" {
			b.WriteString(seg.str("text"))
		}
	}
	return b.String()
}

// ImageURLs collects the remote URLs of all image segments.
func (m Message) ImageURLs() []string {
	out := make([]string, 0, 2)
	for _, seg := range m {
		if seg.Type != "image" {
			continue
		}
		for _, key := range []string{"url", "file"} {
			if u := strings.TrimSpace(seg.str(key)); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
				out = append(out, u)
				break
			}
		}
	}
	return out
}

// ReplyID returns the referenced message ID if the message quotes another,
// or 0 when it does not.
func (m Message) ReplyID() int64 {
	for _, seg := range m {
		if seg.Type == "reply" {
			id, _ := strconv.ParseInt(seg.str("id"), 10, 64)
			return id
		}
	}
	return 0
}

// HasAt reports whether the message @-mentions the given user.
func (m Message) HasAt(userID int64) bool {
	want := strconv.FormatInt(userID, 10)
	for _, seg := range m {
		if seg.Type == "at" && seg.str("qq") == want {
			return true
		}
	}
	return false
}

var cqCodeRe = regexp.MustCompile(`\[CQ:[^\]]*\]`)

// StripCQCodes removes CQ codes from a raw message string.
func StripCQCodes(s string) string {
	return cqCodeRe.ReplaceAllString(s, "")
}

// parseMessageValue converts the `message` field of an event, which may be a
// segment array or a CQ-code string depending on the gateway's report format.
func parseMessageValue(v any) Message {
	switch t := v.(type) {
	case []any:
		out := make(Message, 0, len(t))
		for _, raw := range t {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			data, _ := m["data"].(map[string]any)
			if data == nil {
				data = map[string]any{}
			}
			out = append(out, Segment{Type: toString(m["type"]), Data: data})
		}
		return out
	case string:
		return parseCQString(t)
	default:
		return nil
	}
}

var cqSegmentRe = regexp.MustCompile(`\[CQ:([a-zA-Z_]+)((?:,[^,\]]+)*)\]`)

func parseCQString(s string) Message {
	var out Message
	rest := s
	for len(rest) > 0 {
		loc := cqSegmentRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			if rest != "" {
				out = append(out, Text(cqUnescape(rest)))
			}
			break
		}
		if loc[0] > 0 {
			out = append(out, Text(cqUnescape(rest[:loc[0]])))
		}
		segType := rest[loc[2]:loc[3]]
		data := map[string]any{}
		if loc[4] >= 0 {
			for _, kv := range strings.Split(rest[loc[4]:loc[5]], ",") {
				if kv == "" {
					continue
				}
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) == 2 {
					data[parts[0]] = cqUnescape(parts[1])
				}
			}
		}
		out = append(out, Segment{Type: segType, Data: data})
		rest = rest[loc[1]:]
	}
	return out
}

func cqUnescape(s string) string {
	r := strings.NewReplacer("&#91;", "[", "&#93;", "]", "&#44;", ",", "&amp;", "&")
	return r.Replace(s)
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt64(v any) int64 {
	n, _ := strconv.ParseInt(toString(v), 10, 64)
	return n
}
