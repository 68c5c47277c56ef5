// Package bot routes incoming gateway events to the feature plugins:
// command matching, per-group feature toggles, and the fallthrough to
// message-level plugins.
package bot

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/storage"
	"github.com/functionx37/yiyin-bot/internal/web"
)

// Bot is the event dispatcher.
type Bot struct {
	cfg   *config.Config
	store *storage.Store
	api   onebot.API
	http  *web.Client

	plugins  []plugin.Plugin
	byTrig   map[string]plugin.Plugin
	trigList []string
}

// New builds the dispatcher over an ordered plugin list. Plugins earlier in
// the list win trigger conflicts; trigger-less plugins run last, in order,
// on messages no command consumed.
func New(cfg *config.Config, store *storage.Store, api onebot.API, http *web.Client, plugins []plugin.Plugin) *Bot {
	b := &Bot{
		cfg:     cfg,
		store:   store,
		api:     api,
		http:    http,
		plugins: plugins,
		byTrig:  map[string]plugin.Plugin{},
	}
	for _, p := range plugins {
		for _, trig := range p.Triggers() {
			if _, taken := b.byTrig[trig]; taken {
				continue
			}
			b.byTrig[trig] = p
			b.trigList = append(b.trigList, trig)
		}
	}
	sort.Strings(b.trigList)
	return b
}

// Plugins returns the registered plugin list.
func (b *Bot) Plugins() []plugin.Plugin {
	return b.plugins
}

// HandleEvent processes one gateway event. The gateway server calls this on
// its own goroutine per event.
func (b *Bot) HandleEvent(ctx context.Context, ev *onebot.Event) {
	if ev.PostType != "message" {
		return
	}
	if ev.UserID == b.api.SelfID() && ev.UserID != 0 {
		return
	}

	c := &plugin.Context{
		Ctx:   ctx,
		Event: ev,
		API:   b.api,
		Store: b.store,
		Cfg:   b.cfg,
		HTTP:  b.http,
	}

	if name, args, ok := plugin.ParseCommand(ev.PlainText(), b.cfg.CommandPrefix, b.trigList); ok {
		owner := b.byTrig[name]
		switch {
		case b.allowed(owner, ev):
			c.Command, c.Args = name, args
			consumed, err := owner.Handle(c)
			if err != nil {
				log.Error().Err(err).Str("plugin", owner.Key()).Str("command", name).Msg("command handler failed")
			}
			if consumed {
				return
			}
			c.Command, c.Args = "", ""
		case plugin.IsDefaultOff(owner):
			// Commands of default-off features get an enable hint instead of
			// silence; explicitly disabled features stay quiet.
			hint := fmt.Sprintf("%s功能未启用，请管理员使用 /启用 %s 开启", owner.DisplayName(), owner.DisplayName())
			if err := b.api.SendGroupMessage(ctx, ev.GroupID, onebot.Message{onebot.Text(hint)}); err != nil {
				log.Warn().Err(err).Str("plugin", owner.Key()).Msg("enable hint failed")
			}
			return
		}
	}

	// Message-level plugins see what no command consumed.
	for _, p := range b.plugins {
		if len(p.Triggers()) > 0 || !b.allowed(p, ev) {
			continue
		}
		consumed, err := p.Handle(c)
		if err != nil {
			log.Error().Err(err).Str("plugin", p.Key()).Msg("message handler failed")
		}
		if consumed {
			return
		}
	}
}

// allowed applies the per-group feature toggle. Non-toggleable plugins and
// private chats always pass.
func (b *Bot) allowed(p plugin.Plugin, ev *onebot.Event) bool {
	if !p.Toggleable() || !ev.IsGroup() {
		return true
	}
	disabled, err := b.store.FeatureDisabled(ev.GroupID, p.Key(), plugin.IsDefaultOff(p))
	if err != nil {
		log.Warn().Err(err).Str("plugin", p.Key()).Msg("toggle lookup failed")
		return true
	}
	return !disabled
}
