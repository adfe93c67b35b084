package ports

import (
	"context"
	"time"
)

// RegisterInput is the DTO passed from the transport layer to AuthService.Register.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	CharacterName string
}

// LoginResult carries the issued session token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	AccountID int64
}

// ProfileView is the public projection of an account. It never carries the
// password hash.
type ProfileView struct {
	ID                   int64
	Username             string
	Email                string
	AvatarURL            string
	CharacterName        string
	Level                int
	Experience           int64
	Coins                int64
	CurrentLanguageLevel string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ProfilePatch is a partial update. A nil field is left unchanged.
type ProfilePatch struct {
	Username             *string
	Email                *string
	AvatarURL            *string
	CharacterName        *string
	CurrentLanguageLevel *string
}

// GrantInput carries an experience or coin grant.
type GrantInput struct {
	AccountID int64
	Amount    int64
	// IdempotencyKey, when set, makes a retried grant a no-op.
	IdempotencyKey string
}

// GrantResult is returned by both grant operations.
type GrantResult struct {
	Profile ProfileView
	// LeveledUp and BonusCoins are only meaningful for experience grants.
	LeveledUp  bool
	BonusCoins int64
	// Replayed is true when the idempotency key was already used and the
	// grant was not applied again.
	Replayed bool
}

// LeaderboardEntry is one row of the leaderboard. Email and password are
// deliberately absent.
type LeaderboardEntry struct {
	Rank       int
	ID         int64
	Username   string
	Level      int
	Experience int64
	Coins      int64
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*ProfileView, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// AccountService defines the profile and progression use cases.
type AccountService interface {
	GetProfile(ctx context.Context, id int64) (*ProfileView, error)
	UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (*ProfileView, error)
	GrantExperience(ctx context.Context, input GrantInput) (*GrantResult, error)
	GrantCoins(ctx context.Context, input GrantInput) (*GrantResult, error)
	Leaderboard(ctx context.Context) ([]LeaderboardEntry, error)
}
