package domain

import (
	"errors"
	"time"
)

const (
	StartingLevel         = 1
	StartingExperience    = 0
	StartingCoins         = 100
	DefaultLanguageLevel  = "A1"
	LeaderboardSize       = 10
	minUsernameLength     = 3
	maxUsernameLength     = 50
	MinPasswordLength     = 6
	MaxEmailLength        = 254
	initialAccountVersion = 1
)

// LanguageLevels lists the accepted proficiency tags (CEFR).
var LanguageLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrValidation         = errors.New("validation failed")
	ErrVersionConflict    = errors.New("account was modified concurrently")
)

// Account is the persisted user record. PasswordHash never leaves the service
// layer; handlers render ports.ProfileView instead.
type Account struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	AvatarURL     string
	CharacterName string
	LanguageLevel string
	Level         int
	Experience    int64
	Coins         int64
	// Version is the optimistic-lock counter. Repositories only apply an
	// update when the stored version still equals this value.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount builds a freshly registered account with the starting
// progression values.
func NewAccount(username, email, passwordHash, characterName string, now time.Time) *Account {
	return &Account{
		Username:      username,
		Email:         email,
		PasswordHash:  passwordHash,
		CharacterName: characterName,
		LanguageLevel: DefaultLanguageLevel,
		Level:         StartingLevel,
		Experience:    StartingExperience,
		Coins:         StartingCoins,
		Version:       initialAccountVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Touch refreshes UpdatedAt, never letting it fall behind CreatedAt.
func (a *Account) Touch(now time.Time) {
	if now.Before(a.CreatedAt) {
		now = a.CreatedAt
	}
	a.UpdatedAt = now
}

// ValidUsername reports whether s satisfies the username length rule.
func ValidUsername(s string) bool {
	n := len([]rune(s))
	return n >= minUsernameLength && n <= maxUsernameLength
}

// ValidLanguageLevel reports whether s is one of LanguageLevels.
func ValidLanguageLevel(s string) bool {
	for _, l := range LanguageLevels {
		if l == s {
			return true
		}
	}
	return false
}
