// Package roleplay is the chat character: it watches group messages, always
// answers when @-mentioned and otherwise joins in at a low probability with a
// per-group cooldown. Conversation history is kept per group in storage.
package roleplay

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/llm"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

const fallbackReply = "唔……脑子里的证明过程断了，等一下"

type Plugin struct {
	cfg      config.RoleplayConfig
	llm      *llm.Client
	cooldown gcache.Cache
}

func New(cfg config.RoleplayConfig, client *llm.Client) *Plugin {
	return &Plugin{
		cfg:      cfg,
		llm:      client,
		cooldown: gcache.New(1024).LRU().Build(),
	}
}

func (p *Plugin) Key() string         { return "roleplay" }
func (p *Plugin) DisplayName() string { return "角色扮演" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) DefaultOff() bool    { return true }

// Triggers is empty: this plugin sees every group message the command
// plugins did not consume.
func (p *Plugin) Triggers() []string { return nil }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "@机器人 <消息>", Description: "和角色聊天，未被@时也会低概率随机插话（需 /启用 角色扮演）"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if !c.Event.IsGroup() || !p.llm.Configured() {
		return false, nil
	}
	if c.Event.UserID == c.API.SelfID() {
		return false, nil
	}

	group := c.Event.GroupID
	name := c.Event.Sender.DisplayName()
	if name == "" {
		name = fmt.Sprintf("%d", c.Event.UserID)
	}
	text := strings.TrimSpace(c.Event.PlainText())

	line := fmt.Sprintf("%s：%s", name, text)
	if text == "" {
		line = fmt.Sprintf("%s 发送了一条消息", name)
	}
	if err := c.Store.AppendRoleplayLine(group, "user", line, p.cfg.MaxContext); err != nil {
		return false, err
	}

	atMe := c.Event.Message.HasAt(c.API.SelfID())
	if !atMe {
		if _, err := p.cooldown.Get(group); err == nil {
			return false, nil
		}
		if rand.Float64() >= p.cfg.ReplyProbability {
			return false, nil
		}
	}

	reply, err := p.complete(c)
	if err != nil {
		log.Warn().Err(err).Int64("group", group).Msg("roleplay completion failed")
		if !atMe {
			return false, nil
		}
		reply = fallbackReply
	}
	reply = strings.Trim(strings.TrimSpace(reply), `"'`)
	if reply == "" {
		if !atMe {
			return false, nil
		}
		reply = fallbackReply
	}

	if err := c.Store.AppendRoleplayLine(group, "assistant", reply, p.cfg.MaxContext); err != nil {
		return false, err
	}
	p.cooldown.SetWithExpire(group, struct{}{}, time.Duration(p.cfg.CooldownSeconds)*time.Second)

	if atMe {
		return true, c.Send(onebot.Message{c.AtSender(), onebot.Text(" " + reply)})
	}
	return true, c.Reply(reply)
}

func (p *Plugin) complete(c *plugin.Context) (string, error) {
	history, err := c.Store.RoleplayHistory(c.Event.GroupID, p.cfg.MaxContext)
	if err != nil {
		return "", err
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: p.cfg.Prompt})
	for _, h := range history {
		messages = append(messages, llm.Message{Role: h.Role, Content: h.Content})
	}
	return p.llm.ChatCompletion(c.Ctx, messages, llm.Options{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxReplyTokens,
	})
}
