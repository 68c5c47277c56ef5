// Package quotes records and replays quote screenshots of group members.
// Images live under <data>/quotes/<group>/<member-id>/, addressed by short
// IDs stored in the database.
package quotes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/render"
	"github.com/functionx37/yiyin-bot/internal/storage"
)

const avatarURL = "http://q1.qlogo.cn/g?b=qq&nk=%d&s=100"

type Plugin struct {
	renderer *render.Renderer
	root     string
	avatars  gcache.Cache
}

func New(cfg *config.Config, renderer *render.Renderer) *Plugin {
	return &Plugin{
		renderer: renderer,
		root:     filepath.Join(cfg.DataDir, "quotes"),
		avatars:  gcache.New(256).LRU().Expiration(time.Hour).Build(),
	}
}

func (p *Plugin) Key() string         { return "quotes" }
func (p *Plugin) DisplayName() string { return "群友语录" }
func (p *Plugin) Toggleable() bool    { return true }

func (p *Plugin) Triggers() []string {
	return []string{"新增群友", "新增别名", "群友列表", "上传", "截图上传", "查看", "随机群友", "删除语录", "语录导出"}
}

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/新增群友 <昵称>", Description: "登记一位群友"},
		{Usage: "/新增别名 <已有昵称> <别名>", Description: "为已登记的群友添加别名"},
		{Usage: "/群友列表", Description: "查看本群已登记的群友及语录数"},
		{Usage: "/上传 <昵称> [图片]", Description: "保存语录截图，可附图或引用含图消息"},
		{Usage: "/截图上传 <昵称>", Description: "引用一条消息，自动生成聊天截图并保存"},
		{Usage: "/查看 <昵称>", Description: "随机查看该群友的一条语录"},
		{Usage: "/随机群友", Description: "从全部语录中随机抽取一条"},
		{Usage: "/删除语录 <ID>", Description: "删除指定语录（仅超级管理员）"},
		{Usage: "/语录导出 [昵称]", Description: "将语录合并导出为 PDF 文件"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if !c.Event.IsGroup() {
		return false, nil
	}
	switch c.Command {
	case "新增群友":
		return true, p.handleAddMember(c)
	case "新增别名":
		return true, p.handleAddAlias(c)
	case "群友列表":
		return true, p.handleList(c)
	case "上传":
		return true, p.handleUpload(c)
	case "截图上传":
		return true, p.handleScreenshotUpload(c)
	case "查看":
		return true, p.handleView(c)
	case "随机群友":
		return true, p.handleRandom(c)
	case "删除语录":
		return true, p.handleDelete(c)
	case "语录导出":
		return true, p.handleExport(c)
	}
	return false, nil
}

func (p *Plugin) handleAddMember(c *plugin.Context) error {
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return c.Reply("请输入群友昵称，例如：/新增群友 小明")
	}
	group := c.Event.GroupID

	if m, err := c.Store.ResolveMember(group, name); err == nil {
		if m.Name == name {
			return c.Reply(fmt.Sprintf("群友「%s」已存在，无需重复添加", name))
		}
		return c.Reply(fmt.Sprintf("「%s」已被用作群友「%s」的别名，不能再作为主昵称", name, m.Name))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if _, err := c.Store.AddMember(group, name); err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("已成功添加群友「%s」✓", name))
}

func (p *Plugin) handleAddAlias(c *plugin.Context) error {
	parts := strings.Fields(c.Args)
	if len(parts) < 2 {
		return c.Reply("请输入已有昵称和新别名，例如：/新增别名 小明 明明")
	}
	existing, alias := parts[0], parts[1]
	group := c.Event.GroupID

	member, err := c.Store.ResolveMember(group, existing)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Reply(fmt.Sprintf("群友「%s」不存在，请先使用 /新增群友 %s 添加", existing, existing))
	}
	if err != nil {
		return err
	}

	if other, err := c.Store.ResolveMember(group, alias); err == nil {
		if other.Name == alias {
			return c.Reply(fmt.Sprintf("「%s」已是一个群友的主昵称，不能用作别名", alias))
		}
		return c.Reply(fmt.Sprintf("「%s」已是群友「%s」的别名", alias, other.Name))
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if err := c.Store.AddAlias(group, member.ID, alias); err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("已为群友「%s」添加别名「%s」✓", member.Name, alias))
}

func (p *Plugin) handleList(c *plugin.Context) error {
	members, err := c.Store.ListMembers(c.Event.GroupID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return c.Reply("本群还没有记录任何群友，使用 /新增群友 <昵称> 来添加吧")
	}
	lines := make([]string, 0, len(members)+1)
	lines = append(lines, "本群已记录的群友：")
	for i, m := range members {
		aliasStr := ""
		if len(m.Aliases) > 0 {
			aliasStr = fmt.Sprintf("（%s）", strings.Join(m.Aliases, "、"))
		}
		lines = append(lines, fmt.Sprintf("  %d. %s%s：%d条", i+1, m.Name, aliasStr, m.QuoteCount))
	}
	return c.Reply(strings.Join(lines, "\n"))
}

// resolveOrRegister looks the name up, auto-registering it as a new member
// the way the upload commands do.
func (p *Plugin) resolveOrRegister(c *plugin.Context, name string) (*storage.Member, bool, error) {
	m, err := c.Store.ResolveMember(c.Event.GroupID, name)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	m, err = c.Store.AddMember(c.Event.GroupID, name)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (p *Plugin) memberDir(groupID int64, memberID uint) string {
	return filepath.Join(p.root, fmt.Sprintf("%d", groupID), fmt.Sprintf("%d", memberID))
}

func (p *Plugin) quotePath(q *storage.Quote) string {
	return filepath.Join(p.memberDir(q.GroupID, q.MemberID), q.FileName)
}

// saveQuoteImage writes the image and records it, returning the short ID.
func (p *Plugin) saveQuoteImage(c *plugin.Context, member *storage.Member, img []byte) (string, error) {
	dir := p.memberDir(c.Event.GroupID, member.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	fileName := strings.ReplaceAll(uuid.NewString(), "-", "") + ".png"
	if err := os.WriteFile(filepath.Join(dir, fileName), img, 0o644); err != nil {
		return "", err
	}
	q, err := c.Store.AddQuote(c.Event.GroupID, member.ID, fileName)
	if err != nil {
		os.Remove(filepath.Join(dir, fileName))
		return "", err
	}
	return q.ShortID, nil
}

// eventImageURLs collects image URLs from the command message itself, falling
// back to the quoted message.
func (p *Plugin) eventImageURLs(c *plugin.Context) []string {
	if urls := c.Event.Message.ImageURLs(); len(urls) > 0 {
		return urls
	}
	if msg, _, ok := c.ReplyTarget(); ok {
		return msg.ImageURLs()
	}
	return nil
}

func (p *Plugin) handleUpload(c *plugin.Context) error {
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return c.Reply("请输入群友昵称并附带图片，例如：/上传 小明 [图片]")
	}

	urls := p.eventImageURLs(c)
	if len(urls) == 0 {
		return c.Reply("请在命令中附带图片或引用含图片的消息，例如：/上传 小明 [图片]")
	}

	member, registered, err := p.resolveOrRegister(c, name)
	if err != nil {
		return err
	}

	var savedIDs []string
	for _, u := range urls {
		img, err := c.HTTP.Fetch(c.Ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("quote image download failed")
			continue
		}
		id, err := p.saveQuoteImage(c, member, img)
		if err != nil {
			return err
		}
		savedIDs = append(savedIDs, id)
	}
	if len(savedIDs) == 0 {
		return c.Reply("图片下载失败，请稍后重试")
	}

	prefix := ""
	if registered {
		prefix = fmt.Sprintf("群友「%s」已自动注册，", member.Name)
	}
	return c.Reply(fmt.Sprintf("%s已成功为群友「%s」保存 %d 张语录截图✓\n语录ID：%s",
		prefix, member.Name, len(savedIDs), strings.Join(savedIDs, "、")))
}

// replyPlainText extracts the text of the quoted message, rendering
// @-mentions as @nickname.
func (p *Plugin) replyPlainText(c *plugin.Context, msg onebot.Message) string {
	var b strings.Builder
	for _, seg := range msg {
		switch seg.Type {
		case "text":
			b.WriteString(onebot.SegmentText(seg))
		case "at":
			qq := onebot.SegmentAtTarget(seg)
			label := fmt.Sprintf("%d", qq)
			if info, err := c.API.GetGroupMemberInfo(c.Ctx, c.Event.GroupID, qq); err == nil {
				if n := info.DisplayName(); n != "" {
					label = n
				}
			}
			b.WriteString("@" + label)
		}
	}
	return strings.TrimSpace(b.String())
}

func (p *Plugin) fetchAvatar(c *plugin.Context, userID int64) []byte {
	if v, err := p.avatars.Get(userID); err == nil {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	b, err := c.HTTP.Fetch(c.Ctx, fmt.Sprintf(avatarURL, userID))
	if err != nil {
		log.Warn().Err(err).Int64("user", userID).Msg("avatar download failed")
		return nil
	}
	p.avatars.Set(userID, b)
	return b
}

func (p *Plugin) handleScreenshotUpload(c *plugin.Context) error {
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return c.Reply("请输入群友昵称并引用一条消息，例如：/截图上传 小明（引用消息）")
	}

	msg, sender, ok := c.ReplyTarget()
	if !ok {
		return c.Reply("请引用一条消息来生成截图，例如回复某条消息并输入：/截图上传 小明")
	}
	text := p.replyPlainText(c, msg)
	if text == "" {
		return c.Reply("引用的消息没有文字内容，无法生成截图")
	}

	nick := sender.DisplayName()
	if info, err := c.API.GetGroupMemberInfo(c.Ctx, c.Event.GroupID, sender.UserID); err == nil {
		if n := info.DisplayName(); n != "" {
			nick = n
		}
	}
	if nick == "" {
		nick = "群友"
	}

	avatar := p.fetchAvatar(c, sender.UserID)
	shot, err := p.renderer.ChatScreenshot(avatar, nick, text)
	if err != nil {
		return fmt.Errorf("render screenshot: %w", err)
	}

	member, registered, err := p.resolveOrRegister(c, name)
	if err != nil {
		return err
	}
	shortID, err := p.saveQuoteImage(c, member, shot)
	if err != nil {
		return err
	}

	prefix := ""
	if registered {
		prefix = fmt.Sprintf("群友「%s」已自动注册，", member.Name)
	}
	return c.Send(onebot.Message{
		onebot.Text(fmt.Sprintf("%s已为群友「%s」生成并保存截图✓\n语录ID：%s\n", prefix, member.Name, shortID)),
		onebot.ImageBytes(shot),
	})
}

func (p *Plugin) handleView(c *plugin.Context) error {
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return c.Reply("请输入群友昵称，例如：/查看 小明")
	}
	member, err := c.Store.ResolveMember(c.Event.GroupID, name)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Reply(fmt.Sprintf("群友「%s」不存在，请先使用 /新增群友 %s 添加", name, name))
	}
	if err != nil {
		return err
	}

	quote, _, err := c.Store.RandomQuote(c.Event.GroupID, member.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Reply(fmt.Sprintf("群友「%s」还没有语录记录，使用 /上传 %s [图片] 来添加吧", member.Name, member.Name))
	}
	if err != nil {
		return err
	}
	img, err := os.ReadFile(p.quotePath(quote))
	if err != nil {
		return fmt.Errorf("read quote image: %w", err)
	}
	return c.Send(onebot.Message{
		onebot.Text(fmt.Sprintf("群友「%s」的语录（ID：%s）：\n", member.Name, quote.ShortID)),
		onebot.ImageBytes(img),
	})
}

func (p *Plugin) handleRandom(c *plugin.Context) error {
	quote, member, err := c.Store.RandomQuote(c.Event.GroupID, 0)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Reply("本群还没有任何语录记录，使用 /上传 <昵称> [图片] 来添加吧")
	}
	if err != nil {
		return err
	}
	img, err := os.ReadFile(p.quotePath(quote))
	if err != nil {
		return fmt.Errorf("read quote image: %w", err)
	}
	return c.Send(onebot.Message{
		onebot.Text(fmt.Sprintf("随机抽到了群友「%s」的语录（ID：%s）：\n", member.Name, quote.ShortID)),
		onebot.ImageBytes(img),
	})
}

func (p *Plugin) handleDelete(c *plugin.Context) error {
	if !c.IsSuperuser() {
		return c.Reply("仅超级管理员可删除语录")
	}
	shortID := strings.TrimSpace(c.Args)
	if shortID == "" {
		return c.Reply("请输入要删除的语录ID，例如：/删除语录 Ab3x9K")
	}
	quote, member, err := c.Store.QuoteByShortID(c.Event.GroupID, shortID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Reply(fmt.Sprintf("语录ID「%s」不存在，请检查后重试", shortID))
	}
	if err != nil {
		return err
	}
	if err := os.Remove(p.quotePath(quote)); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("id", shortID).Msg("quote image removal failed")
	}
	if err := c.Store.DeleteQuote(quote.ID); err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("已删除群友「%s」的语录（ID：%s）✓", member.Name, shortID))
}
