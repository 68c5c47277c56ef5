// Package choose implements the random picker: /选 A还是B[还是C...].
package choose

import (
	"math/rand"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/plugin"
)

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Key() string         { return "choose" }
func (p *Plugin) DisplayName() string { return "随机选择" }
func (p *Plugin) Toggleable() bool    { return false }
func (p *Plugin) Triggers() []string  { return []string{"选"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/选 <选项1>还是<选项2>[还是<选项3>...]", Description: "从给定的多个选项中随机选择一个"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "选" {
		return false, nil
	}
	raw := strings.TrimSpace(c.Args)
	if raw == "" {
		return true, c.Reply("用法：/选 <选项1>还是<选项2>[还是<选项3>...]\n示例：/选 火锅还是烧烤还是麻辣烫")
	}

	var options []string
	for _, opt := range strings.Split(raw, "还是") {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		return true, c.Reply("至少需要两个选项哦，用「还是」分隔\n示例：/选 火锅还是烧烤")
	}

	return true, c.Reply("我建议你选择：" + options[rand.Intn(len(options))])
}
