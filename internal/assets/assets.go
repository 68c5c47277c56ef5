// Package assets embeds the static data sets shipped with the bot: the major
// arcana tarot deck, the emoji reaction table and the default mohe lines.
package assets

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed documents/*.json
var documents embed.FS

// TarotCard is one major arcana card.
type TarotCard struct {
	ID       int    `json:"id"`
	NameZH   string `json:"name_zh"`
	NameEN   string `json:"name_en"`
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
}

// EmojiEntry is one reaction the emoji plugin knows by name. Type 1 is a QQ
// system face, type 2 a unicode emoji addressed by codepoint.
type EmojiEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji,omitempty"`
	Type  int    `json:"type"`
}

var (
	tarotOnce sync.Once
	tarotDeck []TarotCard

	emojiOnce sync.Once
	emojiList []EmojiEntry

	moheOnce  sync.Once
	moheLines []string
)

func mustLoad(name string, out any) {
	raw, err := documents.ReadFile("documents/" + name)
	if err != nil {
		panic(fmt.Sprintf("assets: missing embedded %s: %v", name, err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("assets: bad embedded %s: %v", name, err))
	}
}

// TarotDeck returns the embedded 22-card major arcana deck.
func TarotDeck() []TarotCard {
	tarotOnce.Do(func() { mustLoad("tarot.json", &tarotDeck) })
	return tarotDeck
}

// EmojiTable returns the embedded reaction table.
func EmojiTable() []EmojiEntry {
	emojiOnce.Do(func() { mustLoad("emoji_reactions.json", &emojiList) })
	return emojiList
}

// DefaultMoheLines returns the built-in mohe lines, used when the resource
// directory does not provide its own set.
func DefaultMoheLines() []string {
	moheOnce.Do(func() { mustLoad("mohe.json", &moheLines) })
	return moheLines
}
