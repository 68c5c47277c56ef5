package quotes

import (
	"context"
	"errors"
	"os"
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
	sent []onebot.Message
}

func (f *fakeAPI) SelfID() int64 { return 99 }

func (f *fakeAPI) SendGroupMessage(_ context.Context, _ int64, msg onebot.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newTestContext(t *testing.T) (*plugin.Context, *Plugin, *fakeAPI) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	require.NoError(t, store.Upgrade())

	cfg := &config.Config{DataDir: dir, Superusers: []int64{1}}
	api := &fakeAPI{}
	c := &plugin.Context{
		Ctx: context.Background(),
		Event: &onebot.Event{
			PostType:    "message",
			MessageType: "group",
			GroupID:     100,
			UserID:      2,
		},
		API:   api,
		Store: store,
		Cfg:   cfg,
	}
	return c, New(cfg, nil), api
}

func lastText(api *fakeAPI) string {
	if len(api.sent) == 0 {
		return ""
	}
	return api.sent[len(api.sent)-1].PlainText()
}

func hasImage(msg onebot.Message) bool {
	for _, seg := range msg {
		if seg.Type == "image" {
			return true
		}
	}
	return false
}

func TestAddMember(t *testing.T) {
	c, p, api := newTestContext(t)

	c.Command, c.Args = "新增群友", "小明"
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Contains(t, lastText(api), "已成功添加群友「小明」")

	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "已存在")

	c.Args = ""
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "请输入群友昵称")
}

func TestAddAlias(t *testing.T) {
	c, p, api := newTestContext(t)

	c.Command, c.Args = "新增群友", "小明"
	_, err := p.Handle(c)
	require.NoError(t, err)

	c.Command, c.Args = "新增别名", "小明 明明"
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "已为群友「小明」添加别名「明明」")

	// The alias resolves back to the member.
	m, err := c.Store.ResolveMember(100, "明明")
	require.NoError(t, err)
	assert.Equal(t, "小明", m.Name)

	// A primary name cannot become an alias, and vice versa.
	c.Args = "小明 小明"
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "不能用作别名")

	c.Command, c.Args = "新增群友", "明明"
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "已被用作群友「小明」的别名")

	c.Command, c.Args = "新增别名", "无名 某某"
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "不存在")
}

func TestResolveOrRegister(t *testing.T) {
	c, p, _ := newTestContext(t)

	m, registered, err := p.resolveOrRegister(c, "新人")
	require.NoError(t, err)
	assert.True(t, registered)

	again, registered, err := p.resolveOrRegister(c, "新人")
	require.NoError(t, err)
	assert.False(t, registered)
	assert.Equal(t, m.ID, again.ID)
}

func TestListMembers(t *testing.T) {
	c, p, api := newTestContext(t)

	c.Command = "群友列表"
	_, err := p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "还没有记录任何群友")

	c.Command, c.Args = "新增群友", "小明"
	_, err = p.Handle(c)
	require.NoError(t, err)
	c.Command, c.Args = "新增别名", "小明 明明"
	_, err = p.Handle(c)
	require.NoError(t, err)

	c.Command, c.Args = "群友列表", ""
	_, err = p.Handle(c)
	require.NoError(t, err)
	out := lastText(api)
	assert.Contains(t, out, "小明")
	assert.Contains(t, out, "明明")
	assert.Contains(t, out, "0条")
}

func TestSaveAndViewQuote(t *testing.T) {
	c, p, api := newTestContext(t)

	member, _, err := p.resolveOrRegister(c, "小明")
	require.NoError(t, err)
	shortID, err := p.saveQuoteImage(c, member, []byte("png-bytes"))
	require.NoError(t, err)
	assert.Len(t, shortID, 6)

	quote, _, err := c.Store.QuoteByShortID(100, shortID)
	require.NoError(t, err)
	saved, err := os.ReadFile(p.quotePath(quote))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), saved)

	c.Command, c.Args = "查看", "小明"
	_, err = p.Handle(c)
	require.NoError(t, err)
	require.NotEmpty(t, api.sent)
	last := api.sent[len(api.sent)-1]
	assert.Contains(t, last.PlainText(), shortID)
	assert.True(t, hasImage(last))

	c.Command, c.Args = "随机群友", ""
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.True(t, hasImage(api.sent[len(api.sent)-1]))
}

func TestViewUnknownMember(t *testing.T) {
	c, p, api := newTestContext(t)

	c.Command, c.Args = "查看", "无名"
	_, err := p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "不存在")

	c.Command, c.Args = "随机群友", ""
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "还没有任何语录记录")
}

func TestDeleteQuoteRequiresSuperuser(t *testing.T) {
	c, p, api := newTestContext(t)

	member, _, err := p.resolveOrRegister(c, "小明")
	require.NoError(t, err)
	shortID, err := p.saveQuoteImage(c, member, []byte("png-bytes"))
	require.NoError(t, err)
	quote, _, err := c.Store.QuoteByShortID(100, shortID)
	require.NoError(t, err)
	path := p.quotePath(quote)

	c.Command, c.Args = "删除语录", shortID
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "仅超级管理员")
	_, _, err = c.Store.QuoteByShortID(100, shortID)
	assert.NoError(t, err)

	c.Event.UserID = 1
	_, err = p.Handle(c)
	require.NoError(t, err)
	assert.Contains(t, lastText(api), "已删除")
	_, _, err = c.Store.QuoteByShortID(100, shortID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGroupOnly(t *testing.T) {
	c, p, _ := newTestContext(t)
	c.Event.MessageType = "private"
	c.Event.GroupID = 0
	c.Command, c.Args = "新增群友", "小明"
	consumed, err := p.Handle(c)
	require.NoError(t, err)
	assert.False(t, consumed)
}
