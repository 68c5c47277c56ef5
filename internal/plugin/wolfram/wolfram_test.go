package wolfram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
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

func newQueryContext(appID string) (*Plugin, *plugin.Context, *fakeAPI) {
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
		Command: "算",
	}
	return New(config.WolframConfig{AppID: appID}), c, api
}

func TestNotConfigured(t *testing.T) {
	p, c, api := newQueryContext("")
	c.Args = "integrate x^2 dx"

	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.True(t, consumed)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].PlainText(), "未配置")
}

func TestEmptyQueryShowsUsage(t *testing.T) {
	p, c, api := newQueryContext("DEMO")
	c.Args = ""

	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.True(t, consumed)
	require.Len(t, api.sent, 1)
	assert.Contains(t, api.sent[0].PlainText(), "请输入要计算的问题")
}

func TestOtherCommandIgnored(t *testing.T) {
	p, c, _ := newQueryContext("DEMO")
	c.Command = "别的"
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.False(t, consumed)
}
