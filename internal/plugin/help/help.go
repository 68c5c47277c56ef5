// Package help implements @机器人 /help: the command list of every registered
// plugin, sent as one merged-forward message per feature.
package help

import (
	"fmt"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

type Plugin struct {
	registry []plugin.Plugin
}

func New() *Plugin { return &Plugin{} }

// SetRegistry installs the full plugin list once wiring is complete.
func (p *Plugin) SetRegistry(plugins []plugin.Plugin) {
	p.registry = plugins
}

func (p *Plugin) Key() string         { return "help" }
func (p *Plugin) DisplayName() string { return "帮助菜单" }
func (p *Plugin) Toggleable() bool    { return false }
func (p *Plugin) Triggers() []string  { return []string{"help"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "@机器人 /help", Description: "以合并转发消息展示全部功能菜单"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "help" {
		return false, nil
	}
	// The menu only answers direct mentions so a plain "/help" meant for
	// another bot in the group is left alone.
	if c.Event.IsGroup() && !c.Event.Message.HasAt(c.API.SelfID()) {
		return false, nil
	}

	botUin, botName, err := c.API.GetLoginInfo(c.Ctx)
	if err != nil {
		botUin, botName = c.API.SelfID(), "一印Bot"
	}

	var nodes []onebot.Segment
	for _, pl := range p.registry {
		commands := pl.Commands()
		if len(commands) == 0 {
			continue
		}
		lines := []string{fmt.Sprintf("📦 %s", pl.DisplayName())}
		for _, cmd := range commands {
			lines = append(lines, fmt.Sprintf("  %s\n    %s", cmd.Usage, cmd.Description))
		}
		nodes = append(nodes, onebot.TextNode(botName, botUin, strings.Join(lines, "\n")))
	}
	return true, c.SendForward(nodes)
}
