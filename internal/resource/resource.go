// Package resource manages the plugin resource directory (MEME_HOME in the
// deployment): a runtime-mounted volume holding fonts, render settings and
// image packs. At startup the directory is created and a packaged template
// is copied in only when absent, so operator edits are preserved.
package resource

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/functionx37/yiyin-bot/internal/assets"
)

//go:embed render.yml
var renderTemplate []byte

// RenderConfig is parsed from render.yml in the resource directory.
type RenderConfig struct {
	FontPaths    []string `yaml:"font_paths"`
	CanvasWidth  int      `yaml:"canvas_width"`
	MaxTextWidth int      `yaml:"max_text_width"`
	TextFontSize int      `yaml:"text_font_size"`
	NickFontSize int      `yaml:"nick_font_size"`
}

// Dir is an initialized resource directory.
type Dir struct {
	root   string
	Render RenderConfig
}

var imageSuffixes = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Ensure prepares the resource directory: creates it and its subdirectories,
// seeds render.yml from the packaged template when missing, and parses it.
func Ensure(root string) (*Dir, error) {
	for _, dir := range []string{root, filepath.Join(root, "fonts"), filepath.Join(root, "images", "tarot"), filepath.Join(root, "mohe")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create resource dir %s: %w", dir, err)
		}
	}

	cfgPath := filepath.Join(root, "render.yml")
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(cfgPath, renderTemplate, 0o644); err != nil {
			return nil, fmt.Errorf("seed render.yml: %w", err)
		}
		log.Info().Str("path", cfgPath).Msg("seeded render config template")
	}

	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	d := &Dir{root: root}
	if err := yaml.Unmarshal(raw, &d.Render); err != nil {
		return nil, fmt.Errorf("parse render.yml: %w", err)
	}
	d.fillRenderDefaults()
	return d, nil
}

func (d *Dir) fillRenderDefaults() {
	r := &d.Render
	if r.CanvasWidth <= 0 {
		r.CanvasWidth = 900
	}
	if r.MaxTextWidth <= 0 {
		r.MaxTextWidth = 600
	}
	if r.TextFontSize <= 0 {
		r.TextFontSize = 32
	}
	if r.NickFontSize <= 0 {
		r.NickFontSize = 22
	}
}

// Root returns the resource directory path.
func (d *Dir) Root() string {
	return d.root
}

// FontPaths returns the configured font candidates with relative entries
// resolved against the resource directory.
func (d *Dir) FontPaths() []string {
	out := make([]string, 0, len(d.Render.FontPaths))
	for _, p := range d.Render.FontPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(d.root, p)
		}
		out = append(out, p)
	}
	return out
}

// TarotImage loads the card image for the given major arcana ID, if the
// resource pack provides one.
func (d *Dir) TarotImage(id int) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, "images", "tarot", fmt.Sprintf("%d.png", id)))
}

// MoheLines returns the operator-provided mohe lines when mohe/mohe.json
// exists, otherwise the built-in default set.
func (d *Dir) MoheLines() []string {
	raw, err := os.ReadFile(filepath.Join(d.root, "mohe", "mohe.json"))
	if err != nil {
		return assets.DefaultMoheLines()
	}
	var lines []string
	if err := yaml.Unmarshal(raw, &lines); err != nil {
		log.Warn().Err(err).Msg("bad mohe.json in resource dir, using defaults")
		return assets.DefaultMoheLines()
	}
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return assets.DefaultMoheLines()
	}
	return out
}

// MoheImagePaths lists image files dropped into the mohe directory.
func (d *Dir) MoheImagePaths() []string {
	entries, err := os.ReadDir(filepath.Join(d.root, "mohe"))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageSuffixes[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(d.root, "mohe", e.Name()))
		}
	}
	sort.Strings(out)
	return out
}
