// Package tarot implements /抽塔罗牌: draw a random major arcana card with a
// random orientation. Card images come from the resource pack; a reversed
// draw rotates the image 180 degrees.
package tarot

import (
	"bytes"
	"fmt"
	"image/png"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/assets"
	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/resource"
)

type Plugin struct {
	res *resource.Dir
}

func New(res *resource.Dir) *Plugin { return &Plugin{res: res} }

func (p *Plugin) Key() string         { return "tarot" }
func (p *Plugin) DisplayName() string { return "塔罗牌" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"抽塔罗牌"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/抽塔罗牌", Description: "随机抽取大阿卡纳塔罗牌，随机正位/逆位"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "抽塔罗牌" {
		return false, nil
	}

	deck := assets.TarotDeck()
	card := deck[rand.Intn(len(deck))]
	upright := rand.Intn(2) == 0

	orientation, meaning := "正位", card.Upright
	if !upright {
		orientation, meaning = "逆位", card.Reversed
	}

	msg := onebot.Message{
		c.AtSender(),
		onebot.Text(fmt.Sprintf(" 抽到了：\n【%d】%s （%s）\n", card.ID, card.NameZH, card.NameEN)),
	}
	if img := p.cardImage(card.ID, upright); img != nil {
		msg = append(msg, onebot.ImageBytes(img))
	}
	msg = append(msg, onebot.Text(fmt.Sprintf("\n%s：%s", orientation, meaning)))

	return true, c.Send(msg)
}

func (p *Plugin) cardImage(id int, upright bool) []byte {
	raw, err := p.res.TarotImage(id)
	if err != nil {
		log.Debug().Int("card", id).Msg("tarot image missing from resource pack")
		return nil
	}
	if upright {
		return raw
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	var out bytes.Buffer
	if err := png.Encode(&out, imaging.Rotate180(img)); err != nil {
		return raw
	}
	return out.Bytes()
}
