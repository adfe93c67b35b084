package handler

import "time"

// --- Request types ---

type registerRequest struct {
	Username      string `json:"username" validate:"required,notblank,min=3,max=50"`
	Email         string `json:"email" validate:"required,notblank,max=254,email"`
	Password      string `json:"password" validate:"required,min=6"`
	CharacterName string `json:"characterName" validate:"max=50"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

// updateProfileRequest uses pointers so absent fields stay unchanged.
type updateProfileRequest struct {
	Username             *string `json:"username" validate:"omitempty,notblank,min=3,max=50"`
	Email                *string `json:"email" validate:"omitempty,notblank,max=254,email"`
	AvatarURL            *string `json:"avatarUrl" validate:"omitempty,max=2048"`
	CharacterName        *string `json:"characterName" validate:"omitempty,max=50"`
	CurrentLanguageLevel *string `json:"currentLanguageLevel" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
}

// --- Response types ---

type profileResponse struct {
	ID                   int64     `json:"id"`
	Username             string    `json:"username"`
	Email                string    `json:"email"`
	AvatarURL            string    `json:"avatarUrl"`
	CharacterName        string    `json:"characterName"`
	Level                int       `json:"level"`
	Experience           int64     `json:"experience"`
	Coins                int64     `json:"coins"`
	CurrentLanguageLevel string    `json:"currentLanguageLevel"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type leaderboardEntryResponse struct {
	Rank       int    `json:"rank"`
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`
	Coins      int64  `json:"coins"`
}
