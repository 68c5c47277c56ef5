// Package emoji implements the reaction commands: /贴表情列表, /贴, /发.
// Reactions go through the set_msg_emoji_like action against the quoted
// message, or the command message itself when nothing is quoted.
package emoji

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/assets"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

const (
	maxRandomCount = 20
	maxEmojiID     = 470
	listChunkSize  = 30
	stickInterval  = 300 * time.Millisecond
)

var randomCountRe = regexp.MustCompile(`^(\d+)个$`)

type Plugin struct {
	table   []assets.EmojiEntry
	byID    map[string]assets.EmojiEntry
	byName  map[string]assets.EmojiEntry
	byEmoji map[string]assets.EmojiEntry
}

func New() *Plugin {
	table := assets.EmojiTable()
	p := &Plugin{
		table:   table,
		byID:    make(map[string]assets.EmojiEntry, len(table)),
		byName:  make(map[string]assets.EmojiEntry, len(table)),
		byEmoji: make(map[string]assets.EmojiEntry, len(table)),
	}
	for _, e := range table {
		p.byID[e.ID] = e
		p.byName[e.Name] = e
		if e.Emoji != "" {
			p.byEmoji[e.Emoji] = e
		}
	}
	return p
}

func (p *Plugin) Key() string         { return "emoji" }
func (p *Plugin) DisplayName() string { return "贴表情" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"贴表情列表", "贴", "发"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/贴表情列表", Description: "以合并转发展示所有可用表情"},
		{Usage: "/贴 <ID/含义/emoji>", Description: "给引用的消息贴上指定表情"},
		{Usage: "/贴<数字>个", Description: "给引用的消息随机贴上N个表情"},
		{Usage: "/发 <ID/含义>", Description: "发送对应的QQ系统表情，/发 随机 随机发一个"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if !c.Event.IsGroup() {
		return false, nil
	}
	switch c.Command {
	case "贴表情列表":
		return true, p.handleList(c)
	case "贴":
		return true, p.handleStick(c)
	case "发":
		return true, p.handleSend(c)
	}
	return false, nil
}

// resolve maps user input onto an emoji ID: known name, known emoji char,
// known ID, or any bare number.
func (p *Plugin) resolve(text string) (string, bool) {
	if e, ok := p.byName[text]; ok {
		return e.ID, true
	}
	if e, ok := p.byEmoji[text]; ok {
		return e.ID, true
	}
	if e, ok := p.byID[text]; ok {
		return e.ID, true
	}
	if _, err := strconv.Atoi(text); err == nil {
		return text, true
	}
	return "", false
}

func formatEntry(e assets.EmojiEntry) string {
	tag := "QQ"
	if e.Type == 2 {
		tag = "Emoji"
	}
	display := ""
	if e.Emoji != "" {
		display = e.Emoji + " "
	}
	return fmt.Sprintf("[%s] %s%s  (ID: %s)", tag, display, e.Name, e.ID)
}

func (p *Plugin) handleList(c *plugin.Context) error {
	botUin, botName, err := c.API.GetLoginInfo(c.Ctx)
	if err != nil {
		botUin, botName = c.API.SelfID(), "一印Bot"
	}

	var qq, unicode []assets.EmojiEntry
	for _, e := range p.table {
		if e.Type == 2 {
			unicode = append(unicode, e)
		} else {
			qq = append(qq, e)
		}
	}

	nodes := []onebot.Segment{onebot.TextNode(botName, botUin, fmt.Sprintf(
		"「贴表情」可用表情一览\n"+
			"━━━━━━━━━━━━━━━\n"+
			"用法：\n"+
			"  /贴 <ID/含义/emoji> [引用消息]\n"+
			"  /贴<数字>个 [引用消息]  → 随机贴N个\n"+
			"━━━━━━━━━━━━━━━\n"+
			"未收录的ID也可以直接用 /贴 <ID> 尝试\n"+
			"━━━━━━━━━━━━━━━\n"+
			"已收录 %d 个表情 (QQ系统: %d, Emoji: %d)",
		len(p.table), len(qq), len(unicode)))}

	nodes = append(nodes, chunkNodes(botName, botUin, "QQ系统表情", qq)...)
	nodes = append(nodes, chunkNodes(botName, botUin, "Emoji表情", unicode)...)
	return c.SendForward(nodes)
}

func chunkNodes(name string, uin int64, label string, entries []assets.EmojiEntry) []onebot.Segment {
	var nodes []onebot.Segment
	for i := 0; i < len(entries); i += listChunkSize {
		end := min(i+listChunkSize, len(entries))
		lines := []string{fmt.Sprintf("📦 %s (%d-%d)", label, i+1, end), ""}
		for _, e := range entries[i:end] {
			lines = append(lines, formatEntry(e))
		}
		nodes = append(nodes, onebot.TextNode(name, uin, strings.Join(lines, "\n")))
	}
	return nodes
}

func (p *Plugin) targetMessageID(c *plugin.Context) int64 {
	if id := c.Event.Message.ReplyID(); id != 0 {
		return id
	}
	return c.Event.MessageID
}

func (p *Plugin) handleStick(c *plugin.Context) error {
	text := strings.TrimSpace(c.Args)
	if text == "" {
		return nil
	}
	target := p.targetMessageID(c)

	if m := randomCountRe.FindStringSubmatch(text); m != nil {
		count, _ := strconv.Atoi(m[1])
		if count < 1 {
			return nil
		}
		count = min(count, maxRandomCount)
		for _, id := range rand.Perm(maxEmojiID)[:count] {
			if err := c.API.SetMessageReaction(c.Ctx, target, strconv.Itoa(id+1)); err != nil {
				log.Debug().Err(err).Int("emoji", id+1).Msg("reaction rejected")
			}
			time.Sleep(stickInterval)
		}
		return nil
	}

	id, ok := p.resolve(text)
	if !ok {
		return nil
	}
	if err := c.API.SetMessageReaction(c.Ctx, target, id); err != nil {
		log.Debug().Err(err).Str("emoji", id).Msg("reaction rejected")
	}
	return nil
}

func (p *Plugin) handleSend(c *plugin.Context) error {
	text := strings.TrimSpace(c.Args)
	if text == "" {
		return nil
	}
	if text == "随机" {
		return c.Send(onebot.Message{onebot.Face(rand.Intn(maxEmojiID) + 1)})
	}
	id, ok := p.resolve(text)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil
	}
	return c.Send(onebot.Message{onebot.Face(n)})
}
