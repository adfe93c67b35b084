package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

// maxUpdateAttempts bounds the read-modify-write retries on version conflicts.
const maxUpdateAttempts = 5

const (
	grantScopeExperience = "experience"
	grantScopeCoins      = "coins"
)

// GrantDeduper abstracts the idempotency-key store (Redis).
type GrantDeduper interface {
	// Claim records key for the account and scope. It returns false when the
	// key was already claimed.
	Claim(ctx context.Context, scope string, accountID int64, key string) (bool, error)
	// Release forgets a claim so a failed grant can be retried with the same key.
	Release(ctx context.Context, scope string, accountID int64, key string) error
}

type accountService struct {
	repo   ports.AccountRepository
	dedup  GrantDeduper
	events ports.EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewAccountService returns an AccountService implementation.
func NewAccountService(
	repo ports.AccountRepository,
	dedup GrantDeduper,
	events ports.EventPublisher,
	log zerolog.Logger,
) ports.AccountService {
	return &accountService{
		repo:   repo,
		dedup:  dedup,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

func (s *accountService) GetProfile(ctx context.Context, id int64) (*ports.ProfileView, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProfileView(account), nil
}

// UpdateProfile applies the non-nil fields of patch. New usernames and emails
// must not belong to another account.
func (s *accountService) UpdateProfile(ctx context.Context, id int64, patch ports.ProfilePatch) (*ports.ProfileView, error) {
	if patch.Username != nil {
		if err := checkUsername(*patch.Username); err != nil {
			return nil, err
		}
		if err := s.ensureAvailable(ctx, id, "username", *patch.Username, s.repo.FindByUsername); err != nil {
			return nil, err
		}
	}
	if patch.Email != nil {
		if err := checkEmail(*patch.Email); err != nil {
			return nil, err
		}
		if err := s.ensureAvailable(ctx, id, "email", *patch.Email, s.repo.FindByEmail); err != nil {
			return nil, err
		}
	}
	if patch.CurrentLanguageLevel != nil {
		if err := checkLanguageLevel(*patch.CurrentLanguageLevel); err != nil {
			return nil, err
		}
	}

	updated, err := s.mutate(ctx, id, func(a *domain.Account) error {
		if patch.Username != nil {
			a.Username = *patch.Username
		}
		if patch.Email != nil {
			a.Email = *patch.Email
		}
		if patch.AvatarURL != nil {
			a.AvatarURL = *patch.AvatarURL
		}
		if patch.CharacterName != nil {
			a.CharacterName = *patch.CharacterName
		}
		if patch.CurrentLanguageLevel != nil {
			a.LanguageLevel = *patch.CurrentLanguageLevel
		}
		a.Touch(s.now().UTC())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toProfileView(updated), nil
}

// GrantExperience adds experience and applies any resulting level-up.
func (s *accountService) GrantExperience(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	if in.Amount < 0 {
		return nil, invalid("experience must not be negative")
	}

	var progression domain.Progression
	result, err := s.grant(ctx, grantScopeExperience, in, func(a *domain.Account) error {
		p, err := a.GrantExperience(in.Amount, s.now().UTC())
		progression = p
		return err
	})
	if err != nil || result.Replayed {
		return result, err
	}

	result.LeveledUp = progression.LeveledUp
	result.BonusCoins = progression.BonusCoins
	if progression.LeveledUp {
		s.log.Info().
			Int64("account_id", in.AccountID).
			Int("from_level", progression.PreviousLevel).
			Int("to_level", progression.Level).
			Msg("account leveled up")
		publishEvent(ctx, s.events, s.log, domain.AccountEvent{
			Type:       domain.EventAccountLeveledUp,
			AccountID:  result.Profile.ID,
			Username:   result.Profile.Username,
			Level:      result.Profile.Level,
			Experience: result.Profile.Experience,
			Coins:      result.Profile.Coins,
			OccurredAt: result.Profile.UpdatedAt,
		})
	}
	return result, nil
}

// GrantCoins adds amount to the coin balance. Negative amounts are allowed.
func (s *accountService) GrantCoins(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	return s.grant(ctx, grantScopeCoins, in, func(a *domain.Account) error {
		return a.GrantCoins(in.Amount, s.now().UTC())
	})
}

func (s *accountService) Leaderboard(ctx context.Context) ([]ports.LeaderboardEntry, error) {
	top, err := s.repo.TopByExperience(ctx, domain.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return toLeaderboard(top), nil
}

// grant runs apply under the optimistic lock, guarded by the idempotency key
// when one is supplied. A failed dedup lookup is logged and the grant proceeds.
func (s *accountService) grant(ctx context.Context, scope string, in ports.GrantInput, apply func(*domain.Account) error) (*ports.GrantResult, error) {
	claimed := false
	if in.IdempotencyKey != "" {
		ok, err := s.dedup.Claim(ctx, scope, in.AccountID, in.IdempotencyKey)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Int64("account_id", in.AccountID).Str("scope", scope).Msg("idempotency check failed, processing anyway")
		case !ok:
			s.log.Debug().Int64("account_id", in.AccountID).Str("scope", scope).Str("key", in.IdempotencyKey).Msg("replayed grant skipped")
			view, err := s.GetProfile(ctx, in.AccountID)
			if err != nil {
				return nil, err
			}
			return &ports.GrantResult{Profile: *view, Replayed: true}, nil
		default:
			claimed = true
		}
	}

	updated, err := s.mutate(ctx, in.AccountID, apply)
	if err != nil {
		if claimed {
			if relErr := s.dedup.Release(ctx, scope, in.AccountID, in.IdempotencyKey); relErr != nil {
				s.log.Warn().Err(relErr).Int64("account_id", in.AccountID).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}
	return &ports.GrantResult{Profile: *toProfileView(updated)}, nil
}

// mutate re-reads the account and re-applies fn until the versioned update
// succeeds or maxUpdateAttempts is exhausted.
func (s *accountService) mutate(ctx context.Context, id int64, fn func(*domain.Account) error) (*domain.Account, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		account, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(account); err != nil {
			return nil, err
		}

		err = s.repo.Update(ctx, account)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("update account %d: %w", id, err)
		}
		s.log.Debug().Int64("account_id", id).Int("attempt", attempt).Msg("version conflict, retrying")
	}
	return nil, fmt.Errorf("update account %d after %d attempts: %w", id, maxUpdateAttempts, domain.ErrVersionConflict)
}

func (s *accountService) ensureAvailable(
	ctx context.Context,
	id int64,
	field, value string,
	find func(context.Context, string) (*domain.Account, error),
) error {
	other, err := find(ctx, value)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup %s: %w", field, err)
	case other.ID != id:
		return fmt.Errorf("%w: %s is already registered", domain.ErrAccountExists, field)
	default:
		return nil
	}
}
