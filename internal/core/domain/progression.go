package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	ExperiencePerLevel = 100
	// LevelUpBonusCoins is awarded once per level-up grant, however many
	// levels the grant crosses.
	// TODO: confirm with product whether the bonus should scale with levels gained.
	LevelUpBonusCoins = 10
)

// Progression describes the outcome of a single experience grant.
type Progression struct {
	PreviousLevel int
	Level         int
	LeveledUp     bool
	BonusCoins    int64
}

// LevelForExperience returns the level an account with xp experience targets.
func LevelForExperience(xp int64) int {
	return int(xp/ExperiencePerLevel) + 1
}

// GrantExperience adds amount to the account's experience and raises the
// level when the new target exceeds the stored one. A level-up pays a fixed
// LevelUpBonusCoins. The stored level never decreases. A grant that would
// overflow experience or coins is rejected and leaves the account unchanged.
func (a *Account) GrantExperience(amount int64, now time.Time) (Progression, error) {
	if amount < 0 {
		return Progression{}, fmt.Errorf("%w: experience must not be negative", ErrValidation)
	}
	xp, ok := addInt64(a.Experience, amount)
	if !ok {
		return Progression{}, fmt.Errorf("%w: experience grant is too large", ErrValidation)
	}

	p := Progression{PreviousLevel: a.Level, Level: a.Level}
	target := LevelForExperience(xp)
	coins := a.Coins
	if target > a.Level {
		if coins, ok = addInt64(a.Coins, LevelUpBonusCoins); !ok {
			return Progression{}, fmt.Errorf("%w: coin balance is too large", ErrValidation)
		}
		p.Level = target
		p.LeveledUp = true
		p.BonusCoins = LevelUpBonusCoins
	}

	a.Experience = xp
	a.Level = p.Level
	a.Coins = coins
	a.Touch(now)
	return p, nil
}

// GrantCoins adds amount (possibly negative) to the coin balance. Balances
// are not clamped at zero, but must stay within int64.
func (a *Account) GrantCoins(amount int64, now time.Time) error {
	coins, ok := addInt64(a.Coins, amount)
	if !ok {
		return fmt.Errorf("%w: coin grant is out of range", ErrValidation)
	}
	a.Coins = coins
	a.Touch(now)
	return nil
}

// addInt64 returns x+y and false when the sum overflows.
func addInt64(x, y int64) (int64, bool) {
	if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
		return 0, false
	}
	return x + y, true
}
