// Package plugin defines the feature plugin contract and the per-event
// context handed to plugins by the dispatcher.
package plugin

import (
	"context"
	"strings"

	"github.com/functionx37/yiyin-bot/internal/config"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/storage"
	"github.com/functionx37/yiyin-bot/internal/web"
)

// Command documents one user-facing command for the help menu.
type Command struct {
	Usage       string
	Description string
}

// Plugin is one bot feature. Handle returns true when it consumed the event;
// the dispatcher stops at the first consumer.
type Plugin interface {
	// Key is the stable registry key, e.g. "tarot".
	Key() string
	// DisplayName is the user-visible feature name, e.g. "塔罗牌".
	DisplayName() string
	// Toggleable features can be disabled per group by admins.
	Toggleable() bool
	// Triggers are the literal command tokens the plugin owns, without the
	// prefix. Empty for message-level plugins that see unconsumed messages.
	Triggers() []string
	// Commands lists the plugin's commands for the help menu.
	Commands() []Command
	Handle(c *Context) (bool, error)
}

// DefaultOff is implemented by toggleable plugins that start disabled and
// must be enabled per group with /启用.
type DefaultOff interface {
	DefaultOff() bool
}

// IsDefaultOff reports whether a plugin starts disabled.
func IsDefaultOff(p Plugin) bool {
	d, ok := p.(DefaultOff)
	return ok && d.DefaultOff()
}

// Context carries one event through a plugin.
type Context struct {
	Ctx   context.Context
	Event *onebot.Event
	API   onebot.API
	Store *storage.Store
	Cfg   *config.Config
	HTTP  *web.Client

	// Command is the matched command name without the prefix, empty for
	// plain messages. Args is the trimmed remainder.
	Command string
	Args    string
}

// Reply sends a text reply to where the event came from.
func (c *Context) Reply(text string) error {
	return c.Send(onebot.Message{onebot.Text(text)})
}

// Send sends a message to where the event came from.
func (c *Context) Send(msg onebot.Message) error {
	if c.Event.IsGroup() {
		return c.API.SendGroupMessage(c.Ctx, c.Event.GroupID, msg)
	}
	return c.API.SendPrivateMessage(c.Ctx, c.Event.UserID, msg)
}

// SendForward sends a merged-forward message to where the event came from.
func (c *Context) SendForward(nodes []onebot.Segment) error {
	if c.Event.IsGroup() {
		return c.API.SendGroupForward(c.Ctx, c.Event.GroupID, nodes)
	}
	return c.API.SendPrivateForward(c.Ctx, c.Event.UserID, nodes)
}

// AtSender builds an @-mention of the event sender.
func (c *Context) AtSender() onebot.Segment {
	return onebot.At(c.Event.UserID)
}

// IsSuperuser reports whether the sender is a configured superuser.
func (c *Context) IsSuperuser() bool {
	return c.Cfg.IsSuperuser(c.Event.UserID)
}

// IsGroupAdmin reports whether the sender is a group admin or owner, or a
// superuser. Falls back to a member-info lookup when the event did not carry
// the role.
func (c *Context) IsGroupAdmin() bool {
	if c.IsSuperuser() {
		return true
	}
	if !c.Event.IsGroup() {
		return false
	}
	role := c.Event.Sender.Role
	if role == "" {
		info, err := c.API.GetGroupMemberInfo(c.Ctx, c.Event.GroupID, c.Event.UserID)
		if err != nil {
			return false
		}
		role = info.Role
	}
	return role == "admin" || role == "owner"
}

// ReplyTarget resolves the message quoted by this event, if any.
func (c *Context) ReplyTarget() (onebot.Message, onebot.Sender, bool) {
	id := c.Event.Message.ReplyID()
	if id == 0 {
		return nil, onebot.Sender{}, false
	}
	msg, sender, err := c.API.GetMessage(c.Ctx, id)
	if err != nil {
		return nil, onebot.Sender{}, false
	}
	return msg, sender, true
}

// ParseCommand matches raw text against the registered command names,
// longest name first, so "贴表情列表" wins over "贴". Returns the matched
// name and the trimmed remainder.
func ParseCommand(text, prefix string, names []string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if prefix != "" && !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	body := strings.TrimPrefix(text, prefix)
	best := ""
	for _, name := range names {
		if strings.HasPrefix(body, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, strings.TrimSpace(body[len(best):]), true
}
