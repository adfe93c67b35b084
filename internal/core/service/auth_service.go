package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

// TokenIssuer signs session tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(accountID int64, username string) (string, time.Time, error)
}

// AuthService implements registration and login.
type AuthService struct {
	repo       ports.AccountRepository
	tokens     TokenIssuer
	events     ports.EventPublisher
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time

	// dummyHash is compared against when the username is unknown so both
	// failure paths pay for a bcrypt comparison.
	dummyHash []byte
}

func NewAuthService(
	repo ports.AccountRepository,
	tokens TokenIssuer,
	events ports.EventPublisher,
	bcryptCost int,
	log zerolog.Logger,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		events:     events,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
		dummyHash:  dummy,
	}
}

// Register validates the input, enforces email and username uniqueness and
// persists a new account with the starting progression.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.ProfileView, error) {
	if err := checkUsername(in.Username); err != nil {
		return nil, err
	}
	if err := checkEmail(in.Email); err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	if err := s.ensureFree(ctx, "email", in.Email, s.repo.FindByEmail); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, "username", in.Username, s.repo.FindByUsername); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.NewAccount(in.Username, in.Email, string(hash), in.CharacterName, now)

	created, err := s.repo.Create(ctx, account)
	if errors.Is(err, domain.ErrAccountExists) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	publishEvent(ctx, s.events, s.log, domain.NewAccountEvent(domain.EventAccountRegistered, created, now))
	s.log.Info().Int64("account_id", created.ID).Str("username", created.Username).Msg("account registered")

	return toProfileView(created), nil
}

// Login verifies the credentials and issues a session token. An unknown
// username and a wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, account.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt, AccountID: account.ID}, nil
}

func (s *AuthService) ensureFree(
	ctx context.Context,
	field, value string,
	find func(context.Context, string) (*domain.Account, error),
) error {
	_, err := find(ctx, value)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s is already registered", domain.ErrAccountExists, field)
	case errors.Is(err, domain.ErrAccountNotFound):
		return nil
	default:
		return fmt.Errorf("lookup %s: %w", field, err)
	}
}
