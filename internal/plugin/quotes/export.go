package quotes

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/functionx37/yiyin-bot/internal/onebot"
	"github.com/functionx37/yiyin-bot/internal/plugin"
	"github.com/functionx37/yiyin-bot/internal/storage"
)

const (
	pdfPageWidth  = 210.0
	pdfPageHeight = 297.0
	pdfMargin     = 15.0
)

// handleExport builds a PDF of the group's quotes, optionally restricted to
// one member, and uploads it as a file.
func (p *Plugin) handleExport(c *plugin.Context) error {
	group := c.Event.GroupID

	var quotes []storage.Quote
	label := "all"
	if name := strings.TrimSpace(c.Args); name != "" {
		member, err := c.Store.ResolveMember(group, name)
		if errors.Is(err, storage.ErrNotFound) {
			return c.Reply(fmt.Sprintf("群友「%s」不存在，请先使用 /新增群友 %s 添加", name, name))
		}
		if err != nil {
			return err
		}
		quotes, err = c.Store.QuotesOfMember(member.ID)
		if err != nil {
			return err
		}
		label = fmt.Sprintf("member-%d", member.ID)
	} else {
		members, err := c.Store.ListMembers(group)
		if err != nil {
			return err
		}
		for _, m := range members {
			qs, err := c.Store.QuotesOfMember(m.ID)
			if err != nil {
				return err
			}
			quotes = append(quotes, qs...)
		}
	}
	if len(quotes) == 0 {
		return c.Reply("没有可导出的语录")
	}

	doc, count, err := p.buildPDF(quotes)
	if err != nil {
		return err
	}
	if count == 0 {
		return c.Reply("语录图片均已丢失，无法导出")
	}

	fileName := fmt.Sprintf("quotes-%d-%s.pdf", group, label)
	if err := c.Send(onebot.Message{onebot.FileBytes(fileName, doc)}); err != nil {
		return err
	}
	return c.Reply(fmt.Sprintf("已导出 %d 条语录 ✓", count))
}

// buildPDF lays the quote images out one per page with an ASCII caption.
// The core PDF fonts cannot render CJK, so captions carry the short ID only.
func (p *Plugin) buildPDF(quotes []storage.Quote) ([]byte, int, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)

	count := 0
	for _, q := range quotes {
		img, err := os.ReadFile(p.quotePath(&q))
		if err != nil {
			log.Warn().Str("id", q.ShortID).Msg("quote image missing, skipped in export")
			continue
		}
		imgType := imageTypeOf(q.FileName)
		opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
		name := fmt.Sprintf("quote-%s", q.ShortID)
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
		if pdf.Err() {
			return nil, 0, fmt.Errorf("export pdf: %s", pdf.Error())
		}

		pdf.AddPage()
		pdf.SetXY(pdfMargin, pdfMargin)
		pdf.CellFormat(0, 8, fmt.Sprintf("ID: %s    %s", q.ShortID, q.CreatedAt.Format("2006-01-02 15:04")),
			"", 1, "L", false, 0, "")

		w := pdfPageWidth - 2*pdfMargin
		h := w * info.Height() / info.Width()
		if maxH := pdfPageHeight - 2*pdfMargin - 12; h > maxH {
			w = w * maxH / h
			h = maxH
		}
		pdf.ImageOptions(name, pdfMargin, pdfMargin+12, w, h, false, opts, 0, "")
		count++
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, 0, fmt.Errorf("export pdf: %w", err)
	}
	return out.Bytes(), count, nil
}

func imageTypeOf(fileName string) string {
	switch {
	case strings.HasSuffix(fileName, ".jpg"), strings.HasSuffix(fileName, ".jpeg"):
		return "JPG"
	case strings.HasSuffix(fileName, ".gif"):
		return "GIF"
	default:
		return "PNG"
	}
}
