package onebot

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageValueArray(t *testing.T) {
	msg := parseMessageValue([]any{
		map[string]any{"type": "reply", "data": map[string]any{"id": "12345"}},
		map[string]any{"type": "at", "data": map[string]any{"qq": "10001"}},
		map[string]any{"type": "text", "data": map[string]any{"text": "你好"}},
		map[string]any{"type": "image", "data": map[string]any{"url": "https://example.com/a.png"}},
	})
	require.Len(t, msg, 4)
	assert.Equal(t, int64(12345), msg.ReplyID())
	assert.True(t, msg.HasAt(10001))
	assert.False(t, msg.HasAt(10002))
	assert.Equal(t, "你好", msg.PlainText())
	assert.Equal(t, []string{"https://example.com/a.png"}, msg.ImageURLs())
}

func TestParseMessageValueCQString(t *testing.T) {
	msg := parseMessageValue(`[CQ:reply,id=99]前面[CQ:at,qq=10001]后面 &#91;x&#93;`)
	require.Len(t, msg, 4)
	assert.Equal(t, int64(99), msg.ReplyID())
	assert.True(t, msg.HasAt(10001))
	assert.Equal(t, "前面后面 [x]", msg.PlainText())
}

func TestParseMessageValueCQImage(t *testing.T) {
	msg := parseMessageValue(`看图[CQ:image,file=abc.png,url=https://img.example.com/abc.png]`)
	assert.Equal(t, "看图", msg.PlainText())
	assert.Equal(t, []string{"https://img.example.com/abc.png"}, msg.ImageURLs())
}

func TestImageURLsSkipsLocalFiles(t *testing.T) {
	msg := Message{
		{Type: "image", Data: map[string]any{"file": "base64://AAAA"}},
		{Type: "image", Data: map[string]any{"file": "http://img.example.com/b.png"}},
	}
	assert.Equal(t, []string{"http://img.example.com/b.png"}, msg.ImageURLs())
}

func TestStripCQCodes(t *testing.T) {
	assert.Equal(t, "hello ", StripCQCodes("hello [CQ:face,id=1]"))
	assert.Equal(t, "plain", StripCQCodes("plain"))
}

func TestImageBytesInlinesBase64(t *testing.T) {
	raw := []byte{1, 2, 3}
	seg := ImageBytes(raw)
	assert.Equal(t, "image", seg.Type)
	assert.Equal(t, "base64://"+base64.StdEncoding.EncodeToString(raw), seg.Data["file"])
}

func TestNodeCarriesContent(t *testing.T) {
	n := Node("bot", 42, Message{Text("hi")})
	assert.Equal(t, "node", n.Type)
	assert.Equal(t, "42", n.Data["uin"])
	content, ok := n.Data["content"].(Message)
	require.True(t, ok)
	assert.Equal(t, "hi", content.PlainText())
}

func TestDecodeEventGroupMessage(t *testing.T) {
	ev := decodeEvent(map[string]any{
		"post_type":    "message",
		"message_type": "group",
		"group_id":     float64(123456),
		"user_id":      float64(10001),
		"message_id":   float64(777),
		"raw_message":  "hello [CQ:face,id=1]",
		"message": []any{
			map[string]any{"type": "text", "data": map[string]any{"text": "hello"}},
		},
		"sender": map[string]any{
			"user_id":  float64(10001),
			"nickname": "nick",
			"card":     "card",
			"role":     "admin",
		},
	})
	assert.True(t, ev.IsGroup())
	assert.Equal(t, "hello", ev.PlainText())
	assert.Equal(t, "card", ev.Sender.DisplayName())
	assert.Equal(t, "admin", ev.Sender.Role)
}

func TestDecodeEventRawMessageFallback(t *testing.T) {
	ev := decodeEvent(map[string]any{
		"post_type":    "message",
		"message_type": "group",
		"group_id":     float64(1),
		"raw_message":  "only raw [CQ:face,id=1]",
	})
	assert.Equal(t, "only raw ", ev.PlainText())
}
