package tarot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/resource"
)

type fakeAPI struct {
	onebot.API
	sent []onebot.Message
}

func (f *fakeAPI) SelfID() int64 { return 99 }

func (f *fakeAPI) SendGroupMessage(_ context.Context, _ int64, msg onebot.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func TestDrawCard(t *testing.T) {
	res, err := resource.Ensure(t.TempDir())
	require.NoError(t, err)
	p := New(res)

	api := &fakeAPI{}
	c := &plugin.Context{
		Ctx: context.Background(),
		Event: &onebot.Event{
			PostType:    "message",
			MessageType: "group",
			GroupID:     100,
			UserID:      5,
		},
		API:     api,
		Command: "抽塔罗牌",
	}

	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.True(t, consumed)
	require.Len(t, api.sent, 1)

	// The caller is mentioned and the card name plus orientation appear even
	// when the resource pack carries no card images.
	msg := api.sent[0]
	assert.Equal(t, "at", msg[0].Type)
	text := msg.PlainText()
	assert.Contains(t, text, "抽到了")
	assert.Regexp(t, "正位|逆位", text)
	for _, seg := range msg {
		assert.NotEqual(t, "image", seg.Type)
	}
}

func TestOtherCommandIgnored(t *testing.T) {
	res, err := resource.Ensure(t.TempDir())
	require.NoError(t, err)
	p := New(res)

	c := &plugin.Context{
		Ctx:     context.Background(),
		Event:   &onebot.Event{PostType: "message", MessageType: "group", GroupID: 100},
		API:     &fakeAPI{},
		Command: "别的",
	}
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.False(t, consumed)
}
