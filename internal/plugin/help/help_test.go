package help

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

type fakeAPI struct {
	onebot.API
	forwarded [][]onebot.Segment
}

func (f *fakeAPI) SelfID() int64 { return 99 }

func (f *fakeAPI) GetLoginInfo(context.Context) (int64, string, error) {
	return 99, "测试Bot", nil
}

func (f *fakeAPI) SendGroupForward(_ context.Context, _ int64, nodes []onebot.Segment) error {
	f.forwarded = append(f.forwarded, nodes)
	return nil
}

type menuStub struct {
	name     string
	commands []plugin.Command
}

func (m *menuStub) Key() string                         { return m.name }
func (m *menuStub) DisplayName() string                 { return m.name }
func (m *menuStub) Toggleable() bool                    { return false }
func (m *menuStub) Triggers() []string                  { return nil }
func (m *menuStub) Commands() []plugin.Command          { return m.commands }
func (m *menuStub) Handle(*plugin.Context) (bool, error) { return false, nil }

func newMenuContext(atBot bool) (*plugin.Context, *fakeAPI) {
	api := &fakeAPI{}
	var msg onebot.Message
	if atBot {
		msg = append(msg, onebot.At(99))
	}
	msg = append(msg, onebot.Text(" /help"))
	return &plugin.Context{
		Ctx: context.Background(),
		Event: &onebot.Event{
			PostType:    "message",
			MessageType: "group",
			GroupID:     100,
			UserID:      5,
			Message:     msg,
		},
		API:     api,
		Command: "help",
	}, api
}

func TestMenuRequiresMention(t *testing.T) {
	p := New()
	p.SetRegistry([]plugin.Plugin{
		&menuStub{name: "功能A", commands: []plugin.Command{{Usage: "/a", Description: "做A"}}},
	})

	c, api := newMenuContext(false)
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Empty(t, api.forwarded)
}

func TestMenuListsCommands(t *testing.T) {
	p := New()
	p.SetRegistry([]plugin.Plugin{
		&menuStub{name: "功能A", commands: []plugin.Command{{Usage: "/a", Description: "做A"}}},
		&menuStub{name: "隐藏功能"},
		&menuStub{name: "功能B", commands: []plugin.Command{{Usage: "/b", Description: "做B"}}},
	})

	c, api := newMenuContext(true)
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.True(t, consumed)
	require.Len(t, api.forwarded, 1)

	// One node per feature that has commands; command-less ones are skipped.
	nodes := api.forwarded[0]
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Equal(t, "node", n.Type)
	}
}
