// Package storage persists quote records, feature toggles and roleplay
// history in a single SQLite database.
package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Member is a quote subject registered in a group.
type Member struct {
	ID        uint   `gorm:"primaryKey"`
	GroupID   int64  `gorm:"index:idx_member_group_name,unique"`
	Name      string `gorm:"index:idx_member_group_name,unique"`
	CreatedAt time.Time
}

// Alias maps an alternate name onto a member within a group.
type Alias struct {
	ID       uint   `gorm:"primaryKey"`
	GroupID  int64  `gorm:"index:idx_alias_group_name,unique"`
	Name     string `gorm:"index:idx_alias_group_name,unique"`
	MemberID uint   `gorm:"index"`
}

// Quote is one saved quote image, addressed by a short alphanumeric ID.
type Quote struct {
	ID        uint   `gorm:"primaryKey"`
	ShortID   string `gorm:"uniqueIndex"`
	GroupID   int64  `gorm:"index"`
	MemberID  uint   `gorm:"index"`
	FileName  string
	CreatedAt time.Time
}

// FeatureToggle records an explicit per-group feature state. Absence of a
// row means the feature is in its default state.
type FeatureToggle struct {
	ID       uint   `gorm:"primaryKey"`
	GroupID  int64  `gorm:"index:idx_toggle_group_feature,unique"`
	Feature  string `gorm:"index:idx_toggle_group_feature,unique"`
	Disabled bool
}

// RoleplayLine is one turn of a group's rolling conversation history.
type RoleplayLine struct {
	ID        uint  `gorm:"primaryKey"`
	GroupID   int64 `gorm:"index"`
	Role      string
	Content   string
	CreatedAt time.Time
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path. It does not
// migrate; call Upgrade for that.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Upgrade brings the schema to the current version. This backs the
// `orm upgrade` CLI command and runs again at serve startup; AutoMigrate is
// idempotent so both paths are safe.
func (s *Store) Upgrade() error {
	return s.db.AutoMigrate(
		&Member{},
		&Alias{},
		&Quote{},
		&FeatureToggle{},
		&RoleplayLine{},
	)
}

// ResolveMember finds a member by canonical name or alias.
func (s *Store) ResolveMember(groupID int64, name string) (*Member, error) {
	var m Member
	err := s.db.Where("group_id = ? AND name = ?", groupID, name).First(&m).Error
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var a Alias
	if err := s.db.Where("group_id = ? AND name = ?", groupID, name).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.db.First(&m, a.MemberID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMember registers a new member name in a group.
func (s *Store) AddMember(groupID int64, name string) (*Member, error) {
	m := Member{GroupID: groupID, Name: name}
	if err := s.db.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// AliasOwner returns the member a name is aliased to, or ErrNotFound.
func (s *Store) AliasOwner(groupID int64, name string) (*Member, error) {
	var a Alias
	if err := s.db.Where("group_id = ? AND name = ?", groupID, name).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var m Member
	if err := s.db.First(&m, a.MemberID).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// AddAlias attaches an alias to a member.
func (s *Store) AddAlias(groupID int64, memberID uint, alias string) error {
	return s.db.Create(&Alias{GroupID: groupID, Name: alias, MemberID: memberID}).Error
}

// MemberSummary is a listing row for /群友列表.
type MemberSummary struct {
	Member
	Aliases    []string
	QuoteCount int64
}

// ListMembers returns all members of a group with alias and quote counts.
func (s *Store) ListMembers(groupID int64) ([]MemberSummary, error) {
	var members []Member
	if err := s.db.Where("group_id = ?", groupID).Order("id").Find(&members).Error; err != nil {
		return nil, err
	}
	out := make([]MemberSummary, 0, len(members))
	for _, m := range members {
		var aliases []Alias
		if err := s.db.Where("member_id = ?", m.ID).Find(&aliases).Error; err != nil {
			return nil, err
		}
		names := make([]string, 0, len(aliases))
		for _, a := range aliases {
			names = append(names, a.Name)
		}
		var count int64
		if err := s.db.Model(&Quote{}).Where("member_id = ?", m.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		out = append(out, MemberSummary{Member: m, Aliases: names, QuoteCount: count})
	}
	return out, nil
}

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomShortID() string {
	b := make([]byte, 6)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(shortIDAlphabet))))
		if err != nil {
			n = big.NewInt(time.Now().UnixNano() % int64(len(shortIDAlphabet)))
		}
		b[i] = shortIDAlphabet[n.Int64()]
	}
	return string(b)
}

// AddQuote records a stored quote image and returns its generated short ID.
func (s *Store) AddQuote(groupID int64, memberID uint, fileName string) (*Quote, error) {
	for attempt := 0; attempt < 16; attempt++ {
		q := Quote{
			ShortID:  randomShortID(),
			GroupID:  groupID,
			MemberID: memberID,
			FileName: fileName,
		}
		err := s.db.Create(&q).Error
		if err == nil {
			return &q, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return nil, err
	}
	return nil, errors.New("storage: could not allocate unique quote id")
}

// QuoteByShortID looks up a quote and its member.
func (s *Store) QuoteByShortID(groupID int64, shortID string) (*Quote, *Member, error) {
	var q Quote
	if err := s.db.Where("group_id = ? AND short_id = ?", groupID, shortID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var m Member
	if err := s.db.First(&m, q.MemberID).Error; err != nil {
		return nil, nil, err
	}
	return &q, &m, nil
}

// QuotesOfMember returns all quotes recorded for a member.
func (s *Store) QuotesOfMember(memberID uint) ([]Quote, error) {
	var quotes []Quote
	if err := s.db.Where("member_id = ?", memberID).Order("id").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

// RandomQuote picks a random quote of the group, optionally restricted to one
// member (memberID > 0). Returns ErrNotFound when the pool is empty.
func (s *Store) RandomQuote(groupID int64, memberID uint) (*Quote, *Member, error) {
	q := s.db.Where("group_id = ?", groupID)
	if memberID > 0 {
		q = q.Where("member_id = ?", memberID)
	}
	var quote Quote
	if err := q.Order("RANDOM()").First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	var m Member
	if err := s.db.First(&m, quote.MemberID).Error; err != nil {
		return nil, nil, err
	}
	return &quote, &m, nil
}

// DeleteQuote removes a quote row.
func (s *Store) DeleteQuote(id uint) error {
	return s.db.Delete(&Quote{}, id).Error
}

// FeatureDisabled reports whether a feature is disabled in a group. Without
// an explicit toggle row the given default applies.
func (s *Store) FeatureDisabled(groupID int64, feature string, defaultDisabled bool) (bool, error) {
	var row FeatureToggle
	err := s.db.Where("group_id = ? AND feature = ?", groupID, feature).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultDisabled, nil
	}
	if err != nil {
		return defaultDisabled, err
	}
	return row.Disabled, nil
}

// FeatureStates lists the explicit per-group toggle states. Features without
// a row stay at their defaults.
func (s *Store) FeatureStates(groupID int64) (map[string]bool, error) {
	var rows []FeatureToggle
	if err := s.db.Where("group_id = ?", groupID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.Feature] = r.Disabled
	}
	return out, nil
}

// SetFeatureDisabled records an explicit feature state for a group,
// idempotently.
func (s *Store) SetFeatureDisabled(groupID int64, feature string, disabled bool) error {
	var row FeatureToggle
	err := s.db.Where("group_id = ? AND feature = ?", groupID, feature).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&FeatureToggle{GroupID: groupID, Feature: feature, Disabled: disabled}).Error
	}
	if err != nil {
		return err
	}
	if row.Disabled == disabled {
		return nil
	}
	row.Disabled = disabled
	return s.db.Save(&row).Error
}

// AppendRoleplayLine records one conversation turn and trims the history to
// maxKeep lines per group.
func (s *Store) AppendRoleplayLine(groupID int64, role, content string, maxKeep int) error {
	if err := s.db.Create(&RoleplayLine{GroupID: groupID, Role: role, Content: content}).Error; err != nil {
		return err
	}
	if maxKeep <= 0 {
		return nil
	}
	var count int64
	if err := s.db.Model(&RoleplayLine{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		return err
	}
	if count <= int64(maxKeep) {
		return nil
	}
	var cutoff RoleplayLine
	if err := s.db.Where("group_id = ?", groupID).
		Order("id DESC").Offset(maxKeep - 1).First(&cutoff).Error; err != nil {
		return err
	}
	return s.db.Where("group_id = ? AND id < ?", groupID, cutoff.ID).
		Delete(&RoleplayLine{}).Error
}

// RoleplayHistory returns the most recent lines in chronological order.
func (s *Store) RoleplayHistory(groupID int64, limit int) ([]RoleplayLine, error) {
	var lines []RoleplayLine
	if err := s.db.Where("group_id = ?", groupID).
		Order("id DESC").Limit(limit).Find(&lines).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}
