package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/englishadventure/user-service/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.ProfileView, error)
	loginFn    func(ctx context.Context, username, password string) (*ports.LoginResult, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.ProfileView, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

type stubAccountService struct {
	getFn         func(ctx context.Context, id int64) (*ports.ProfileView, error)
	updateFn      func(ctx context.Context, id int64, patch ports.ProfilePatch) (*ports.ProfileView, error)
	grantXPFn     func(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error)
	grantCoinsFn  func(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error)
	leaderboardFn func(ctx context.Context) ([]ports.LeaderboardEntry, error)
}

func (s *stubAccountService) GetProfile(ctx context.Context, id int64) (*ports.ProfileView, error) {
	return s.getFn(ctx, id)
}

func (s *stubAccountService) UpdateProfile(ctx context.Context, id int64, patch ports.ProfilePatch) (*ports.ProfileView, error) {
	return s.updateFn(ctx, id, patch)
}

func (s *stubAccountService) GrantExperience(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	return s.grantXPFn(ctx, in)
}

func (s *stubAccountService) GrantCoins(ctx context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	return s.grantCoinsFn(ctx, in)
}

func (s *stubAccountService) Leaderboard(ctx context.Context) ([]ports.LeaderboardEntry, error) {
	return s.leaderboardFn(ctx)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newJSONContext builds a context for method/target with an optional JSON body.
func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// longEmail is well formed but longer than the 254 characters a mailbox allows.
func longEmail() string {
	return "player@" + strings.Repeat("adventure.", 25) + "com"
}

func sampleView(id int64) *ports.ProfileView {
	return &ports.ProfileView{
		ID:                   id,
		Username:             "alice",
		Email:                "alice@example.com",
		Level:                1,
		Coins:                100,
		CurrentLanguageLevel: "A1",
	}
}
