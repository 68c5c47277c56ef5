package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Upgrade())
	return s
}

func TestMembersAndAliases(t *testing.T) {
	s := newStore(t)

	m, err := s.AddMember(100, "小明")
	require.NoError(t, err)
	require.NoError(t, s.AddAlias(100, m.ID, "明明"))

	got, err := s.ResolveMember(100, "小明")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	got, err = s.ResolveMember(100, "明明")
	require.NoError(t, err)
	assert.Equal(t, "小明", got.Name)

	_, err = s.ResolveMember(100, "不存在")
	assert.ErrorIs(t, err, ErrNotFound)

	// Same name in another group is a different member.
	_, err = s.ResolveMember(200, "小明")
	assert.ErrorIs(t, err, ErrNotFound)

	owner, err := s.AliasOwner(100, "明明")
	require.NoError(t, err)
	assert.Equal(t, "小明", owner.Name)
}

func TestDuplicateMemberRejected(t *testing.T) {
	s := newStore(t)
	_, err := s.AddMember(100, "小明")
	require.NoError(t, err)
	_, err = s.AddMember(100, "小明")
	assert.Error(t, err)
}

func TestQuotes(t *testing.T) {
	s := newStore(t)
	m, err := s.AddMember(100, "小明")
	require.NoError(t, err)

	q1, err := s.AddQuote(100, m.ID, "a.png")
	require.NoError(t, err)
	assert.Len(t, q1.ShortID, 6)

	q2, err := s.AddQuote(100, m.ID, "b.png")
	require.NoError(t, err)
	assert.NotEqual(t, q1.ShortID, q2.ShortID)

	got, member, err := s.QuoteByShortID(100, q1.ShortID)
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.FileName)
	assert.Equal(t, "小明", member.Name)

	_, _, err = s.QuoteByShortID(100, "zzzzzz")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := s.QuotesOfMember(m.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rq, rm, err := s.RandomQuote(100, 0)
	require.NoError(t, err)
	assert.Equal(t, "小明", rm.Name)
	assert.Contains(t, []string{"a.png", "b.png"}, rq.FileName)

	require.NoError(t, s.DeleteQuote(q1.ID))
	_, _, err = s.QuoteByShortID(100, q1.ShortID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRandomQuoteEmptyGroup(t *testing.T) {
	s := newStore(t)
	_, _, err := s.RandomQuote(100, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMembers(t *testing.T) {
	s := newStore(t)
	m, err := s.AddMember(100, "小明")
	require.NoError(t, err)
	require.NoError(t, s.AddAlias(100, m.ID, "明明"))
	_, err = s.AddQuote(100, m.ID, "a.png")
	require.NoError(t, err)

	list, err := s.ListMembers(100)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"明明"}, list[0].Aliases)
	assert.Equal(t, int64(1), list[0].QuoteCount)
}

func TestFeatureToggles(t *testing.T) {
	s := newStore(t)

	// No row: the default applies.
	disabled, err := s.FeatureDisabled(100, "tarot", false)
	require.NoError(t, err)
	assert.False(t, disabled)
	disabled, err = s.FeatureDisabled(100, "mohe", true)
	require.NoError(t, err)
	assert.True(t, disabled)

	// Explicit rows win over defaults in both directions.
	require.NoError(t, s.SetFeatureDisabled(100, "tarot", true))
	disabled, err = s.FeatureDisabled(100, "tarot", false)
	require.NoError(t, err)
	assert.True(t, disabled)

	require.NoError(t, s.SetFeatureDisabled(100, "mohe", false))
	disabled, err = s.FeatureDisabled(100, "mohe", true)
	require.NoError(t, err)
	assert.False(t, disabled)

	// Idempotent, and per group.
	require.NoError(t, s.SetFeatureDisabled(100, "tarot", true))
	disabled, err = s.FeatureDisabled(200, "tarot", false)
	require.NoError(t, err)
	assert.False(t, disabled)

	states, err := s.FeatureStates(100)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"tarot": true, "mohe": false}, states)
}

func TestRoleplayHistoryTrimmed(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 10; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, s.AppendRoleplayLine(100, role, string(rune('a'+i)), 4))
	}

	lines, err := s.RoleplayHistory(100, 10)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	// Chronological order, oldest first.
	assert.Equal(t, "g", lines[0].Content)
	assert.Equal(t, "j", lines[3].Content)
}
