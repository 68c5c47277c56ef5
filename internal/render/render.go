// Package render draws the QQ-chat-style quote screenshots: round avatar,
// grey nickname, white bubble with a pointer, wrapped CJK text.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/functionx37/yiyin-bot/internal/resource"
)

const (
	bgGray      = 241
	avatarSize  = 85
	avatarX     = 50
	msgX        = 155
	bubblePadH  = 22
	bubblePadV  = 18
	bubbleRad   = 15
	lineGap     = 8
	topPad      = 30
	bottomPad   = 30
	nickGap     = 10
	pointerSize = 8
)

var (
	bgColor     = color.RGBA{bgGray, bgGray, bgGray, 255}
	bubbleColor = color.RGBA{255, 255, 255, 255}
	nickColor   = color.RGBA{149, 149, 149, 255}
	textColor   = color.RGBA{17, 17, 17, 255}
)

// Renderer holds the loaded font faces and canvas settings.
type Renderer struct {
	cfg      resource.RenderConfig
	textFace font.Face
	nickFace font.Face
	textSize int
}

// New loads the first parseable font from paths. Without a usable CJK font
// it falls back to the builtin basicfont, which renders ASCII only; the
// deployment is expected to mount fonts into the resource directory.
func New(paths []string, cfg resource.RenderConfig) *Renderer {
	r := &Renderer{cfg: cfg, textSize: cfg.TextFontSize}
	for _, p := range paths {
		text, err := loadFace(p, float64(cfg.TextFontSize))
		if err != nil {
			continue
		}
		nick, err := loadFace(p, float64(cfg.NickFontSize))
		if err != nil {
			continue
		}
		log.Info().Str("font", p).Msg("loaded render font")
		r.textFace, r.nickFace = text, nick
		return r
	}
	log.Warn().Msg("no usable CJK font found, falling back to basic font")
	r.textFace = basicfont.Face7x13
	r.nickFace = basicfont.Face7x13
	return r
}

func loadFace(path string, size float64) (font.Face, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	coll, err := opentype.ParseCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	f, err := coll.Font(0)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// charWidth measures one rune, estimating missing glyphs at the font size so
// emoji and rare characters still reserve sensible space.
func (r *Renderer) charWidth(face font.Face, ch rune) fixed.Int26_6 {
	// Zero-width joiners and variation selectors take no space.
	if ch == 0x200D || ch == 0xFE0E || ch == 0xFE0F || (ch >= 0xE0020 && ch <= 0xE007F) {
		return 0
	}
	adv, ok := face.GlyphAdvance(ch)
	if !ok || (adv < fixed.I(1) && ch > 255) {
		return fixed.I(r.textSize)
	}
	return adv
}

func (r *Renderer) measure(face font.Face, line string) fixed.Int26_6 {
	var w fixed.Int26_6
	for _, ch := range line {
		w += r.charWidth(face, ch)
	}
	return w
}

// wrap breaks text into lines no wider than maxWidth pixels, splitting at
// character granularity the way chat bubbles do.
func (r *Renderer) wrap(face font.Face, text string, maxWidth int) []string {
	limit := fixed.I(maxWidth)
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		var buf strings.Builder
		var cur fixed.Int26_6
		for _, ch := range paragraph {
			w := r.charWidth(face, ch)
			if cur+w > limit && buf.Len() > 0 {
				lines = append(lines, buf.String())
				buf.Reset()
				cur = 0
			}
			buf.WriteRune(ch)
			cur += w
		}
		if buf.Len() > 0 {
			lines = append(lines, buf.String())
		}
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

// ChatScreenshot renders a single chat message as a PNG.
func (r *Renderer) ChatScreenshot(avatar []byte, nickname, text string) ([]byte, error) {
	wrapped := r.wrap(r.textFace, text, r.cfg.MaxTextWidth)

	textMetrics := r.textFace.Metrics()
	lineH := (textMetrics.Ascent + textMetrics.Descent).Ceil()
	nickMetrics := r.nickFace.Metrics()
	nickH := (nickMetrics.Ascent + nickMetrics.Descent).Ceil()

	var maxLineW fixed.Int26_6
	for _, ln := range wrapped {
		if ln == "" {
			ln = " "
		}
		if w := r.measure(r.textFace, ln); w > maxLineW {
			maxLineW = w
		}
	}

	textBlockH := lineH*len(wrapped) + lineGap*(len(wrapped)-1)
	bubW := maxLineW.Ceil() + bubblePadH*2
	bubH := textBlockH + bubblePadV*2

	totalH := topPad + nickH + nickGap + bubH + bottomPad
	if floor := avatarSize + topPad + bottomPad; totalH < floor {
		totalH = floor
	}

	canvas := image.NewRGBA(image.Rect(0, 0, r.cfg.CanvasWidth, totalH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)

	r.drawAvatar(canvas, avatar)

	bubY := topPad + nickH + nickGap
	fillRoundedRect(canvas, image.Rect(msgX, bubY, msgX+bubW, bubY+bubH), bubbleRad, bubbleColor)
	drawPointer(canvas, msgX, bubY+15, bubbleColor)

	drawLine(canvas, r.nickFace, nickname, msgX, topPad+nickMetrics.Ascent.Ceil(), nickColor)

	ty := bubY + bubblePadV + textMetrics.Ascent.Ceil()
	for _, ln := range wrapped {
		if ln != "" {
			drawLine(canvas, r.textFace, ln, msgX+bubblePadH, ty, textColor)
		}
		ty += lineH + lineGap
	}

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *Renderer) drawAvatar(canvas *image.RGBA, avatar []byte) {
	var src image.Image
	if img, err := imaging.Decode(bytes.NewReader(avatar)); err == nil {
		src = img
	} else {
		src = image.NewUniform(color.RGBA{200, 200, 200, 255})
	}
	resized := imaging.Fill(toNRGBA(src), avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
	drawCircle(canvas, resized, avatarX, topPad, avatarSize)
}

func toNRGBA(src image.Image) *image.NRGBA {
	if img, ok := src.(*image.NRGBA); ok {
		return img
	}
	if src.Bounds().Empty() {
		return image.NewNRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	}
	return imaging.Clone(src)
}

// drawCircle composites a square image onto the canvas through a circular
// alpha mask.
func drawCircle(canvas *image.RGBA, src *image.NRGBA, x, y, size int) {
	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	c := float64(size-1) / 2
	rr := c * c
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			dx, dy := float64(px)-c, float64(py)-c
			if dx*dx+dy*dy <= rr {
				mask.SetAlpha(px, py, color.Alpha{255})
			}
		}
	}
	rect := image.Rect(x, y, x+size, y+size)
	draw.DrawMask(canvas, rect, src, image.Point{}, mask, image.Point{}, draw.Over)
}

func fillRoundedRect(canvas *image.RGBA, rect image.Rectangle, radius int, col color.Color) {
	rr := float64(radius) * float64(radius)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			inCorner := false
			var cx, cy int
			switch {
			case x < rect.Min.X+radius && y < rect.Min.Y+radius:
				cx, cy, inCorner = rect.Min.X+radius, rect.Min.Y+radius, true
			case x >= rect.Max.X-radius && y < rect.Min.Y+radius:
				cx, cy, inCorner = rect.Max.X-radius-1, rect.Min.Y+radius, true
			case x < rect.Min.X+radius && y >= rect.Max.Y-radius:
				cx, cy, inCorner = rect.Min.X+radius, rect.Max.Y-radius-1, true
			case x >= rect.Max.X-radius && y >= rect.Max.Y-radius:
				cx, cy, inCorner = rect.Max.X-radius-1, rect.Max.Y-radius-1, true
			}
			if inCorner {
				dx, dy := float64(x-cx), float64(y-cy)
				if dx*dx+dy*dy > rr {
					continue
				}
			}
			canvas.Set(x, y, col)
		}
	}
}

// drawPointer draws the small triangle on the bubble's left edge.
func drawPointer(canvas *image.RGBA, x, y int, col color.Color) {
	for dy := 0; dy <= pointerSize*2; dy++ {
		depth := dy
		if dy > pointerSize {
			depth = pointerSize*2 - dy
		}
		for dx := 0; dx <= depth+2; dx++ {
			canvas.Set(x-dx, y+dy, col)
		}
	}
}

func drawLine(canvas *image.RGBA, face font.Face, text string, x, baseline int, col color.Color) {
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
