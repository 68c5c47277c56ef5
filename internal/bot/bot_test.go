package bot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/storage"
)

type fakeAPI struct {
	onebot.API
	self int64
	sent []onebot.Message
}

func (f *fakeAPI) SelfID() int64 { return f.self }

func (f *fakeAPI) SendGroupMessage(_ context.Context, _ int64, msg onebot.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

// recorder is a minimal plugin that records what it was handed.
type recorder struct {
	key        string
	triggers   []string
	toggleable bool
	defaultOff bool

	calls []string
}

func (r *recorder) Key() string                { return r.key }
func (r *recorder) DisplayName() string        { return r.key }
func (r *recorder) Toggleable() bool           { return r.toggleable }
func (r *recorder) DefaultOff() bool           { return r.defaultOff }
func (r *recorder) Triggers() []string         { return r.triggers }
func (r *recorder) Commands() []plugin.Command { return nil }

func (r *recorder) Handle(c *plugin.Context) (bool, error) {
	r.calls = append(r.calls, c.Command+"|"+c.Args)
	return true, nil
}

func newBot(t *testing.T, plugins ...plugin.Plugin) (*Bot, *storage.Store, *fakeAPI) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	require.NoError(t, store.Upgrade())
	cfg := &config.Config{CommandPrefix: "/"}
	api := &fakeAPI{self: 99}
	return New(cfg, store, api, nil, plugins), store, api
}

func groupMessage(text string) *onebot.Event {
	return &onebot.Event{
		PostType:    "message",
		MessageType: "group",
		GroupID:     100,
		UserID:      10001,
		Message:     onebot.Message{onebot.Text(text)},
	}
}

func TestCommandRoutedToOwner(t *testing.T) {
	short := &recorder{key: "short", triggers: []string{"贴"}}
	long := &recorder{key: "long", triggers: []string{"贴表情列表"}}
	b, _, _ := newBot(t, short, long)

	b.HandleEvent(context.Background(), groupMessage("/贴表情列表"))
	assert.Empty(t, short.calls)
	assert.Equal(t, []string{"贴表情列表|"}, long.calls)

	b.HandleEvent(context.Background(), groupMessage("/贴 微笑"))
	assert.Equal(t, []string{"贴|微笑"}, short.calls)
}

func TestDisabledPluginNotDispatched(t *testing.T) {
	r := &recorder{key: "feat", triggers: []string{"功能"}, toggleable: true}
	b, store, api := newBot(t, r)
	require.NoError(t, store.SetFeatureDisabled(100, "feat", true))

	// Explicitly disabled default-on features are dropped silently.
	b.HandleEvent(context.Background(), groupMessage("/功能"))
	assert.Empty(t, r.calls)
	assert.Empty(t, api.sent)
}

func TestDefaultOffPluginNeedsEnabling(t *testing.T) {
	r := &recorder{key: "feat", triggers: []string{"功能"}, toggleable: true, defaultOff: true}
	b, store, _ := newBot(t, r)

	b.HandleEvent(context.Background(), groupMessage("/功能"))
	assert.Empty(t, r.calls)

	require.NoError(t, store.SetFeatureDisabled(100, "feat", false))
	b.HandleEvent(context.Background(), groupMessage("/功能"))
	assert.Len(t, r.calls, 1)
}

func TestDefaultOffCommandGetsEnableHint(t *testing.T) {
	r := &recorder{key: "摩诃", triggers: []string{"随机摩诃"}, toggleable: true, defaultOff: true}
	b, store, api := newBot(t, r)

	b.HandleEvent(context.Background(), groupMessage("/随机摩诃"))
	assert.Empty(t, r.calls)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "摩诃功能未启用，请管理员使用 /启用 摩诃 开启", api.sent[0].PlainText())

	// Once enabled the command reaches the plugin without a hint.
	require.NoError(t, store.SetFeatureDisabled(100, "摩诃", false))
	b.HandleEvent(context.Background(), groupMessage("/随机摩诃"))
	assert.Len(t, r.calls, 1)
	assert.Len(t, api.sent, 1)
}

func TestUnconsumedMessageFallsThrough(t *testing.T) {
	cmd := &recorder{key: "cmd", triggers: []string{"命令"}}
	watcher := &recorder{key: "watcher"}
	b, _, _ := newBot(t, cmd, watcher)

	b.HandleEvent(context.Background(), groupMessage("随便聊点什么"))
	assert.Empty(t, cmd.calls)
	assert.Equal(t, []string{"|"}, watcher.calls)

	// A consumed command does not reach the watcher.
	b.HandleEvent(context.Background(), groupMessage("/命令 x"))
	assert.Equal(t, []string{"命令|x"}, cmd.calls)
	assert.Len(t, watcher.calls, 1)
}

func TestOwnAndNonMessageEventsIgnored(t *testing.T) {
	watcher := &recorder{key: "watcher"}
	b, _, _ := newBot(t, watcher)

	own := groupMessage("hi")
	own.UserID = 99
	b.HandleEvent(context.Background(), own)

	b.HandleEvent(context.Background(), &onebot.Event{PostType: "notice"})
	assert.Empty(t, watcher.calls)
}
