package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/englishadventure/user-service/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubAccountRepo is an in-memory AccountRepository honouring version checks.
type stubAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	nextID   int64

	// conflicts makes the next N updates fail with ErrVersionConflict.
	conflicts int
	updates   int
	findErr   error
	updateErr error
	topErr    error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func (r *stubAccountRepo) seed(a *domain.Account) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := cloneAccount(a)
	c.ID = r.nextID
	r.accounts[c.ID] = c
	return cloneAccount(c)
}

func (r *stubAccountRepo) get(id int64) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAccount(r.accounts[id])
}

func (r *stubAccountRepo) Create(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Username == a.Username || existing.Email == a.Email {
			return nil, domain.ErrAccountExists
		}
	}
	r.nextID++
	c := cloneAccount(a)
	c.ID = r.nextID
	r.accounts[c.ID] = c
	return cloneAccount(c), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) findBy(match func(*domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, a := range r.accounts {
		if match(a) {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	return r.findBy(func(a *domain.Account) bool { return a.Username == username })
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.findBy(func(a *domain.Account) bool { return a.Email == email })
}

func (r *stubAccountRepo) Update(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrVersionConflict
	}
	stored, ok := r.accounts[a.ID]
	if !ok || stored.Version != a.Version {
		return domain.ErrVersionConflict
	}
	a.Version++
	r.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (r *stubAccountRepo) TopByExperience(_ context.Context, limit int) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topErr != nil {
		return nil, r.topErr
	}
	var out []*domain.Account
	for _, a := range r.accounts {
		out = append(out, cloneAccount(a))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.Experience > b.Experience || (a.Experience == b.Experience && a.ID < b.ID) {
				break
			}
			out[j-1], out[j] = b, a
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubPublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.AccountEvent
}

func (p *stubPublisher) Publish(_ context.Context, e domain.AccountEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type stubDeduper struct {
	claimed  map[string]bool
	claimErr error
	released []string
}

func newStubDeduper() *stubDeduper {
	return &stubDeduper{claimed: make(map[string]bool)}
}

func (d *stubDeduper) Claim(_ context.Context, scope string, _ int64, key string) (bool, error) {
	if d.claimErr != nil {
		return false, d.claimErr
	}
	k := scope + ":" + key
	if d.claimed[k] {
		return false, nil
	}
	d.claimed[k] = true
	return true, nil
}

func (d *stubDeduper) Release(_ context.Context, scope string, _ int64, key string) error {
	k := scope + ":" + key
	delete(d.claimed, k)
	d.released = append(d.released, k)
	return nil
}

type stubTokens struct {
	err error
}

func (s stubTokens) Issue(accountID int64, username string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "token-" + username, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// longEmail is well formed but longer than domain.MaxEmailLength.
func longEmail() string {
	return "player@" + strings.Repeat("adventure.", 25) + "com"
}
