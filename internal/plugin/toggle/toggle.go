// Package toggle manages per-group feature switches: /功能列表, /启用 <名>,
// /禁用 <名>. The dispatcher consults the same storage table before routing
// events to toggleable plugins.
package toggle

import (
	"fmt"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/plugin"
)

// Feature is one switchable plugin, by registry key and display name.
// DefaultOff features start disabled until an admin enables them.
type Feature struct {
	Key         string
	DisplayName string
	DefaultOff  bool
}

type Plugin struct {
	features []Feature
	byName   map[string]Feature
}

func New() *Plugin {
	return &Plugin{byName: map[string]Feature{}}
}

// SetFeatures installs the toggleable feature list. Called once during
// wiring, after all plugins are constructed.
func (p *Plugin) SetFeatures(features []Feature) {
	p.features = features
	for _, f := range features {
		p.byName[f.DisplayName] = f
	}
}

func (p *Plugin) Key() string         { return "toggle" }
func (p *Plugin) DisplayName() string { return "功能开关" }
func (p *Plugin) Toggleable() bool    { return false }
func (p *Plugin) Triggers() []string  { return []string{"功能列表", "启用", "禁用"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/功能列表", Description: "查看当前群所有功能的启用/禁用状态"},
		{Usage: "/启用 <功能名>", Description: "在当前群启用指定功能（仅管理员/群主）"},
		{Usage: "/禁用 <功能名>", Description: "在当前群禁用指定功能（仅管理员/群主）"},
	}
}

func (p *Plugin) available() string {
	names := make([]string, 0, len(p.features))
	for _, f := range p.features {
		names = append(names, f.DisplayName)
	}
	return strings.Join(names, "、")
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if !c.Event.IsGroup() {
		return false, nil
	}
	switch c.Command {
	case "功能列表":
		return true, p.handleList(c)
	case "启用":
		return true, p.handleSwitch(c, false)
	case "禁用":
		return true, p.handleSwitch(c, true)
	}
	return false, nil
}

func (p *Plugin) handleList(c *plugin.Context) error {
	states, err := c.Store.FeatureStates(c.Event.GroupID)
	if err != nil {
		return err
	}

	lines := []string{"「本群功能状态」", ""}
	for _, f := range p.features {
		disabled := f.DefaultOff
		if explicit, ok := states[f.Key]; ok {
			disabled = explicit
		}
		status := "✅ 已启用"
		if disabled {
			status = "❌ 已禁用"
		}
		lines = append(lines, fmt.Sprintf("  %s  %s", f.DisplayName, status))
	}
	lines = append(lines, "", "管理员可使用：", "  /启用 <功能名>", "  /禁用 <功能名>")
	return c.Reply(strings.Join(lines, "\n"))
}

func (p *Plugin) handleSwitch(c *plugin.Context, disable bool) error {
	verb := "启用"
	if disable {
		verb = "禁用"
	}
	name := strings.TrimSpace(c.Args)
	if name == "" {
		return c.Reply(fmt.Sprintf("请指定要%s的功能名，可用功能：%s", verb, p.available()))
	}
	feature, ok := p.byName[name]
	if !ok {
		return c.Reply(fmt.Sprintf("未知功能「%s」，可用功能：%s", name, p.available()))
	}
	if !c.IsGroupAdmin() {
		return c.Reply(fmt.Sprintf("仅管理员/群主可%s功能", verb))
	}

	already, err := c.Store.FeatureDisabled(c.Event.GroupID, feature.Key, feature.DefaultOff)
	if err != nil {
		return err
	}
	if already == disable {
		state := "启用"
		if disable {
			state = "禁用"
		}
		return c.Reply(fmt.Sprintf("功能「%s」在本群已经是%s状态", name, state))
	}
	if err := c.Store.SetFeatureDisabled(c.Event.GroupID, feature.Key, disable); err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("已在本群%s功能「%s」✓", verb, name))
}
