package handler

import (
	"github.com/englishadventure/user-service/internal/core/ports"
)

func toProfileResponse(v *ports.ProfileView) profileResponse {
	return profileResponse{
		ID:                   v.ID,
		Username:             v.Username,
		Email:                v.Email,
		AvatarURL:            v.AvatarURL,
		CharacterName:        v.CharacterName,
		Level:                v.Level,
		Experience:           v.Experience,
		Coins:                v.Coins,
		CurrentLanguageLevel: v.CurrentLanguageLevel,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	}
}

func toLeaderboardResponse(entries []ports.LeaderboardEntry) []leaderboardEntryResponse {
	out := make([]leaderboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, leaderboardEntryResponse{
			Rank:       e.Rank,
			ID:         e.ID,
			Username:   e.Username,
			Level:      e.Level,
			Experience: e.Experience,
			Coins:      e.Coins,
		})
	}
	return out
}

func toProfilePatch(r updateProfileRequest) ports.ProfilePatch {
	return ports.ProfilePatch{
		Username:             r.Username,
		Email:                r.Email,
		AvatarURL:            r.AvatarURL,
		CharacterName:        r.CharacterName,
		CurrentLanguageLevel: r.CurrentLanguageLevel,
	}
}
