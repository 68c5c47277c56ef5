// Package mohe sends 3-5 random mohe lines, one message at a time. Besides
// the /随机摩诃 command, a scheduler fires at up to two random times per day
// and broadcasts to every group that enabled the feature.
package mohe

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/resource"
	"github.com/functionx37/yiyin-bot/internal/storage"
)

type Plugin struct {
	res *resource.Dir
}

func New(res *resource.Dir) *Plugin { return &Plugin{res: res} }

func (p *Plugin) Key() string         { return "mohe" }
func (p *Plugin) DisplayName() string { return "摩诃" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) DefaultOff() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"随机摩诃"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/随机摩诃", Description: "逐条发送 3-5 条随机摩诃语录（需 /启用 摩诃）"},
	}
}

// item is one pool entry: a text line or an image file path.
type item struct {
	text string
	path string
}

func (p *Plugin) pool() []item {
	var out []item
	for _, line := range p.res.MoheLines() {
		out = append(out, item{text: line})
	}
	for _, path := range p.res.MoheImagePaths() {
		out = append(out, item{path: path})
	}
	return out
}

func (it item) message() (onebot.Message, error) {
	if it.path == "" {
		return onebot.Message{onebot.Text(it.text)}, nil
	}
	raw, err := os.ReadFile(it.path)
	if err != nil {
		return nil, err
	}
	return onebot.Message{onebot.ImageBytes(raw)}, nil
}

func pick(pool []item) []item {
	count := 3 + rand.Intn(3)
	if count > len(pool) {
		count = len(pool)
	}
	out := make([]item, 0, count)
	for _, i := range rand.Perm(len(pool))[:count] {
		out = append(out, pool[i])
	}
	return out
}

func sleepBetween(ctx context.Context, low, high time.Duration) {
	d := low + time.Duration(rand.Int63n(int64(high-low)))
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "随机摩诃" || !c.Event.IsGroup() {
		return false, nil
	}

	selected := pick(p.pool())
	for i, it := range selected {
		msg, err := it.message()
		if err != nil {
			continue
		}
		if err := c.Send(msg); err != nil {
			return true, err
		}
		if i < len(selected)-1 {
			sleepBetween(c.Ctx, time.Second, 3*time.Second)
		}
	}
	return true, nil
}

// Scheduler runs the daily auto broadcasts. Each day it draws up to two
// random times between 09:00 and 22:00 and fires the broadcast at each one.
type Scheduler struct {
	plugin *Plugin
	api    onebot.API
	store  *storage.Store
}

func NewScheduler(p *Plugin, api onebot.API, store *storage.Store) *Scheduler {
	return &Scheduler{plugin: p, api: api, store: store}
}

// Run blocks until ctx is done, rescheduling shortly after each midnight.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		now := time.Now()
		for _, at := range drawTimes(now) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(at)):
				s.broadcast(ctx)
			}
		}

		next := midnightReschedule(now)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
	}
}

// drawTimes picks two distinct hours in [9, 22) with random minutes, keeping
// only the ones still ahead of now, in order.
func drawTimes(now time.Time) []time.Time {
	hours := rand.Perm(13)[:2]
	if hours[0] > hours[1] {
		hours[0], hours[1] = hours[1], hours[0]
	}
	var out []time.Time
	for _, h := range hours {
		at := time.Date(now.Year(), now.Month(), now.Day(), 9+h, rand.Intn(60), 0, 0, now.Location())
		if at.After(now) {
			out = append(out, at)
		}
	}
	return out
}

func midnightReschedule(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func (s *Scheduler) broadcast(ctx context.Context) {
	groups, err := s.api.GetGroupList(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("mohe broadcast: group list unavailable")
		return
	}
	pool := s.plugin.pool()
	if len(pool) == 0 {
		return
	}

	for _, group := range groups {
		disabled, err := s.store.FeatureDisabled(group, s.plugin.Key(), s.plugin.DefaultOff())
		if err != nil || disabled {
			continue
		}

		selected := pick(pool)
		for i, it := range selected {
			msg, err := it.message()
			if err != nil {
				continue
			}
			if err := s.api.SendGroupMessage(ctx, group, msg); err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return
				}
				break
			}
			if i < len(selected)-1 {
				sleepBetween(ctx, time.Second, 3*time.Second)
			}
		}
		// Pause between groups.
		sleepBetween(ctx, 2*time.Second, 5*time.Second)
	}
}
