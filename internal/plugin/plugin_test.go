package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommandLongestWins(t *testing.T) {
	names := []string{"贴", "贴表情列表", "发"}

	cmd, args, ok := ParseCommand("/贴表情列表", "/", names)
	assert.True(t, ok)
	assert.Equal(t, "贴表情列表", cmd)
	assert.Empty(t, args)

	cmd, args, ok = ParseCommand("/贴 微笑", "/", names)
	assert.True(t, ok)
	assert.Equal(t, "贴", cmd)
	assert.Equal(t, "微笑", args)
}

func TestParseCommandPrefixRequired(t *testing.T) {
	_, _, ok := ParseCommand("贴 微笑", "/", []string{"贴"})
	assert.False(t, ok)

	cmd, _, ok := ParseCommand("贴 微笑", "", []string{"贴"})
	assert.True(t, ok)
	assert.Equal(t, "贴", cmd)
}

func TestParseCommandNoMatch(t *testing.T) {
	_, _, ok := ParseCommand("/未知命令", "/", []string{"贴", "发"})
	assert.False(t, ok)
}

func TestParseCommandTrimsArgs(t *testing.T) {
	cmd, args, ok := ParseCommand("  /选 火锅还是烧烤  ", "/", []string{"选"})
	assert.True(t, ok)
	assert.Equal(t, "选", cmd)
	assert.Equal(t, "火锅还是烧烤", args)
}

func TestParseCommandAttachedNumber(t *testing.T) {
	cmd, args, ok := ParseCommand("/贴5个", "/", []string{"贴"})
	assert.True(t, ok)
	assert.Equal(t, "贴", cmd)
	assert.Equal(t, "5个", args)
}
