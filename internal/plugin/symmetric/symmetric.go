// Package symmetric implements /对称: mirror an image around its vertical or
// horizontal midline. Animated GIFs are processed frame by frame.
package symmetric

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
)

const defaultDirection = "左"

var validDirections = map[string]bool{"左": true, "右": true, "上": true, "下": true}

type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Key() string         { return "symmetric" }
func (p *Plugin) DisplayName() string { return "对称图片" }
func (p *Plugin) Toggleable() bool    { return true }
func (p *Plugin) Triggers() []string  { return []string{"对称"} }

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Usage: "/对称 [左/右/上/下] [图片]", Description: "将图片按指定方向对称翻转，默认左，支持动图"},
	}
}

func (p *Plugin) Handle(c *plugin.Context) (bool, error) {
	if c.Command != "对称" {
		return false, nil
	}

	direction := defaultDirection
	if text := strings.TrimSpace(c.Args); text != "" {
		if first := string([]rune(text)[0]); validDirections[first] {
			direction = first
		}
	}

	urls := c.Event.Message.ImageURLs()
	if len(urls) == 0 {
		if msg, _, ok := c.ReplyTarget(); ok {
			urls = msg.ImageURLs()
		}
	}
	if len(urls) == 0 {
		return true, c.Reply("请附带图片或回复一张图片，例如：\n/对称 左 [图片]\n/对称 [图片]\n回复图片消息并发送 /对称 右")
	}

	raw, err := c.HTTP.Fetch(c.Ctx, urls[0])
	if err != nil {
		return true, c.Reply("图片下载失败，请稍后重试")
	}

	out, err := process(raw, direction)
	if err != nil {
		return true, c.Reply("无法识别的图片格式，请发送 PNG、JPG 或 GIF 图片")
	}
	return true, c.Send(onebot.Message{onebot.ImageBytes(out)})
}

func process(raw []byte, direction string) ([]byte, error) {
	if http.DetectContentType(raw) == "image/gif" {
		g, err := gif.DecodeAll(bytes.NewReader(raw))
		if err == nil && len(g.Image) > 1 {
			return processAnimated(g, direction)
		}
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, apply(imaging.Clone(img), direction)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// apply mirrors the kept half onto the other: 左 keeps the left half and
// mirrors it right, 右/上/下 analogously.
func apply(img *image.NRGBA, direction string) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch direction {
	case "左":
		half := w / 2
		kept := imaging.Crop(img, image.Rect(0, 0, half, h))
		out := imaging.New(half*2, h, color.NRGBA{})
		out = imaging.Paste(out, kept, image.Pt(0, 0))
		return imaging.Paste(out, imaging.FlipH(kept), image.Pt(half, 0))
	case "右":
		half := w / 2
		kept := imaging.Crop(img, image.Rect(w-half, 0, w, h))
		out := imaging.New(half*2, h, color.NRGBA{})
		out = imaging.Paste(out, imaging.FlipH(kept), image.Pt(0, 0))
		return imaging.Paste(out, kept, image.Pt(half, 0))
	case "上":
		half := h / 2
		kept := imaging.Crop(img, image.Rect(0, 0, w, half))
		out := imaging.New(w, half*2, color.NRGBA{})
		out = imaging.Paste(out, kept, image.Pt(0, 0))
		return imaging.Paste(out, imaging.FlipV(kept), image.Pt(0, half))
	case "下":
		half := h / 2
		kept := imaging.Crop(img, image.Rect(0, h-half, w, h))
		out := imaging.New(w, half*2, color.NRGBA{})
		out = imaging.Paste(out, imaging.FlipV(kept), image.Pt(0, 0))
		return imaging.Paste(out, kept, image.Pt(0, half))
	}
	return img
}

// processAnimated coalesces the GIF frames onto a shared canvas, mirrors each
// one, and re-encodes the result as a GIF.
func processAnimated(g *gif.GIF, direction string) ([]byte, error) {
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("gif has no frames")
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(bounds)

	out := &gif.GIF{LoopCount: g.LoopCount}
	for i, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		mirrored := apply(imaging.Clone(canvas), direction)
		pal := image.NewPaletted(mirrored.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, mirrored.Bounds(), mirrored, image.Point{})

		delay := 10
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = g.Delay[i]
		}
		out.Image = append(out.Image, pal)
		out.Delay = append(out.Delay, delay)
		out.Disposal = append(out.Disposal, gif.DisposalNone)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
