package domain

import "time"

// AccountEventType names an account lifecycle event published to other services.
type AccountEventType string

const (
	EventAccountRegistered AccountEventType = "account.registered"
	EventAccountLeveledUp  AccountEventType = "account.leveled_up"
)

// AccountEvent is emitted after a state change has been persisted.
type AccountEvent struct {
	Type       AccountEventType `json:"type"`
	AccountID  int64            `json:"accountId"`
	Username   string           `json:"username"`
	Level      int              `json:"level"`
	Experience int64            `json:"experience"`
	Coins      int64            `json:"coins"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// NewAccountEvent snapshots the account's progression into an event.
func NewAccountEvent(t AccountEventType, a *Account, at time.Time) AccountEvent {
	return AccountEvent{
		Type:       t,
		AccountID:  a.ID,
		Username:   a.Username,
		Level:      a.Level,
		Experience: a.Experience,
		Coins:      a.Coins,
		OccurredAt: at,
	}
}
