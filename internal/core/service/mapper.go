package service

import (
	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

func toProfileView(a *domain.Account) *ports.ProfileView {
	return &ports.ProfileView{
		ID:                   a.ID,
		Username:             a.Username,
		Email:                a.Email,
		AvatarURL:            a.AvatarURL,
		CharacterName:        a.CharacterName,
		Level:                a.Level,
		Experience:           a.Experience,
		Coins:                a.Coins,
		CurrentLanguageLevel: a.LanguageLevel,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toLeaderboard(accounts []*domain.Account) []ports.LeaderboardEntry {
	out := make([]ports.LeaderboardEntry, 0, len(accounts))
	for i, a := range accounts {
		out = append(out, ports.LeaderboardEntry{
			Rank:       i + 1,
			ID:         a.ID,
			Username:   a.Username,
			Level:      a.Level,
			Experience: a.Experience,
			Coins:      a.Coins,
		})
	}
	return out
}
