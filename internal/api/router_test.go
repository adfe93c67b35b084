package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/api/handler"
	"github.com/englishadventure/user-service/internal/api/middleware"
	"github.com/englishadventure/user-service/internal/auth"
	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubAuthService struct {
	registerErr error
	loginErr    error
}

func (s *stubAuthService) Register(_ context.Context, in ports.RegisterInput) (*ports.ProfileView, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &ports.ProfileView{ID: 1, Username: in.Username, Email: in.Email, Level: 1, Coins: 100}, nil
}

func (s *stubAuthService) Login(_ context.Context, _, _ string) (*ports.LoginResult, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &ports.LoginResult{Token: "tok", ExpiresAt: time.Now().Add(time.Hour), AccountID: 1}, nil
}

type stubAccountService struct {
	err error
}

func (s *stubAccountService) GetProfile(_ context.Context, id int64) (*ports.ProfileView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.ProfileView{ID: id, Username: "alice"}, nil
}

func (s *stubAccountService) UpdateProfile(_ context.Context, id int64, _ ports.ProfilePatch) (*ports.ProfileView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.ProfileView{ID: id}, nil
}

func (s *stubAccountService) GrantExperience(_ context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.GrantResult{Profile: ports.ProfileView{ID: in.AccountID, Experience: in.Amount}}, nil
}

func (s *stubAccountService) GrantCoins(_ context.Context, in ports.GrantInput) (*ports.GrantResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ports.GrantResult{Profile: ports.ProfileView{ID: in.AccountID, Coins: 100 + in.Amount}}, nil
}

func (s *stubAccountService) Leaderboard(context.Context) ([]ports.LeaderboardEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []ports.LeaderboardEntry{{Rank: 1, ID: 1, Username: "alice"}}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const testSecret = "router-secret"

func newTestRouter(authSvc ports.AuthService, accountSvc ports.AccountService) *echo.Echo {
	reg := prometheus.NewRegistry()
	return NewRouter(Deps{
		Log:            zerolog.Nop(),
		APIPrefix:      "/api",
		AuthService:    authSvc,
		AccountService: accountSvc,
		Tokens:         auth.NewTokenIssuer(testSecret, time.Hour),
		LoginLimiter:   middleware.NewRateLimiter(0.001, 2, zerolog.Nop()),
		Readiness: []handler.DependencyCheck{
			{Name: "store", Ping: func(context.Context) error { return nil }},
		},
		Registerer: reg,
		Gatherer:   reg,
	})
}

func do(e *echo.Echo, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected error envelope, got %q", rec.Body.String())
	}
	return resp.Error
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRouter_StatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		authErr  error
		acctErr  error
		method   string
		target   string
		body     string
		wantCode int
	}{
		{"register ok", nil, nil, http.MethodPost, "/api/users/register",
			`{"username":"alice","email":"a@example.com","password":"secret1"}`, http.StatusOK},
		{"register invalid", nil, nil, http.MethodPost, "/api/users/register",
			`{"username":"al","email":"a@example.com","password":"secret1"}`, http.StatusBadRequest},
		{"register duplicate", fmt.Errorf("%w: email is already registered", domain.ErrAccountExists), nil,
			http.MethodPost, "/api/users/register",
			`{"username":"alice","email":"a@example.com","password":"secret1"}`, http.StatusConflict},
		{"login bad credentials", domain.ErrInvalidCredentials, nil, http.MethodPost, "/api/users/login",
			`{"username":"alice","password":"nope"}`, http.StatusUnauthorized},
		{"profile not found", nil, domain.ErrAccountNotFound, http.MethodGet, "/api/users/profile/9", "", http.StatusNotFound},
		{"profile bad id", nil, nil, http.MethodGet, "/api/users/profile/abc", "", http.StatusBadRequest},
		{"grant conflict", nil, domain.ErrVersionConflict, http.MethodPut, "/api/users/1/coins?coins=5", "", http.StatusConflict},
		{"grant negative xp", nil, domain.ErrValidation, http.MethodPut, "/api/users/1/experience?experience=-1", "", http.StatusBadRequest},
		{"grant ok", nil, nil, http.MethodPut, "/api/users/1/experience?experience=40", "", http.StatusOK},
		{"leaderboard failure", nil, fmt.Errorf("db down"), http.MethodGet, "/api/users/leaderboard", "", http.StatusInternalServerError},
		{"leaderboard ok", nil, nil, http.MethodGet, "/api/users/leaderboard", "", http.StatusOK},
		{"unknown route", nil, nil, http.MethodGet, "/api/users/nope/nope", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestRouter(&stubAuthService{registerErr: tc.authErr, loginErr: tc.authErr}, &stubAccountService{err: tc.acctErr})

			rec := do(e, tc.method, tc.target, tc.body, nil)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d (%s)", tc.wantCode, rec.Code, rec.Body.String())
			}
			if tc.wantCode >= 400 && errorMessage(t, rec) == "" {
				t.Fatal("expected a non-empty error message")
			}
		})
	}
}

func TestRouter_InternalErrorsAreNotLeaked(t *testing.T) {
	e := newTestRouter(&stubAuthService{}, &stubAccountService{err: fmt.Errorf("pq: password authentication failed")})

	rec := do(e, http.MethodGet, "/api/users/leaderboard", "", nil)
	if msg := errorMessage(t, rec); msg != "internal server error" {
		t.Fatalf("expected generic message, got %q", msg)
	}
}

func TestRouter_ProfileMe(t *testing.T) {
	e := newTestRouter(&stubAuthService{}, &stubAccountService{})

	if rec := do(e, http.MethodGet, "/api/users/profile/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, _, err := auth.NewTokenIssuer(testSecret, time.Hour).Issue(42, "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec := do(e, http.MethodGet, "/api/users/profile/me", "", map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["id"] != float64(42) {
		t.Fatalf("expected profile of account 42, got %v", resp["id"])
	}
}

func TestRouter_LoginThrottled(t *testing.T) {
	e := newTestRouter(&stubAuthService{}, &stubAccountService{})
	body := `{"username":"alice","password":"secret1"}`
	ip := map[string]string{echo.HeaderXRealIP: "198.51.100.7"}

	for i := 0; i < 2; i++ {
		if rec := do(e, http.MethodPost, "/api/users/login", body, ip); rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := do(e, http.MethodPost, "/api/users/login", body, ip)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	other := map[string]string{echo.HeaderXRealIP: "198.51.100.8"}
	if rec := do(e, http.MethodPost, "/api/users/login", body, other); rec.Code != http.StatusOK {
		t.Fatalf("other clients must not be throttled, got %d", rec.Code)
	}
}

func TestRouter_OperationalRoutes(t *testing.T) {
	e := newTestRouter(&stubAuthService{}, &stubAccountService{})

	for _, target := range []string{"/health", "/health/ready", "/metrics"} {
		if rec := do(e, http.MethodGet, target, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, rec.Code)
		}
	}

	do(e, http.MethodGet, "/api/users/leaderboard", "", nil)
	rec := do(e, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected echo request metrics in /metrics output")
	}
}

func TestRouter_EmptyPrefix(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewRouter(Deps{
		Log:            zerolog.Nop(),
		AuthService:    &stubAuthService{},
		AccountService: &stubAccountService{},
		Tokens:         auth.NewTokenIssuer(testSecret, time.Hour),
		LoginLimiter:   middleware.NewRateLimiter(1, 1, zerolog.Nop()),
		Registerer:     reg,
		Gatherer:       reg,
	})

	if rec := do(e, http.MethodGet, "/users/leaderboard", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without prefix, got %d", rec.Code)
	}
}
