package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/englishadventure/user-service/internal/api/metrics"
	"github.com/englishadventure/user-service/internal/core/domain"
	"github.com/englishadventure/user-service/internal/core/ports"
)

const (
	// HeaderIdempotencyKey makes grant requests safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplayed is set on responses to a replayed grant.
	HeaderIdempotentReplayed = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 128
)

// AccountHandler handles HTTP requests for profiles, grants and the leaderboard.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// GetProfile returns an account's public profile.
//
// @Summary      Get a profile
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  profileResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/profile/{id} [get]
func (h *AccountHandler) GetProfile(c echo.Context) error {
	id, err := pathAccountID(c)
	if err != nil {
		return err
	}

	view, err := h.service.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(view))
}

// GetMyProfile returns the profile of the authenticated account.
//
// @Summary      Get the caller's profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  profileResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/profile/me [get]
func (h *AccountHandler) GetMyProfile(c echo.Context) error {
	id, err := ctxAccountID(c)
	if err != nil {
		return err
	}

	view, err := h.service.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(view))
}

// UpdateProfile applies a partial profile update.
//
// @Summary      Update a profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      int                   true  "Account ID"
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  profileResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /users/profile/{id} [put]
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	id, err := pathAccountID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	view, err := h.service.UpdateProfile(c.Request().Context(), id, toProfilePatch(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfileResponse(view))
}

// GrantExperience adds experience points and applies any level-up.
//
// @Summary      Grant experience
// @Tags         users
// @Produce      json
// @Param        id               path      int     true   "Account ID"
// @Param        experience       query     int     true   "Experience to add (>= 0)"
// @Param        Idempotency-Key  header    string  false  "Makes retries safe"
// @Success      200              {object}  profileResponse
// @Failure      400              {object}  map[string]string
// @Failure      404              {object}  map[string]string
// @Failure      409              {object}  map[string]string
// @Router       /users/{id}/experience [put]
func (h *AccountHandler) GrantExperience(c echo.Context) error {
	in, err := grantInput(c, "experience")
	if err != nil {
		return err
	}

	res, err := h.service.GrantExperience(c.Request().Context(), in)
	if err != nil {
		recordGrantFailure("experience", err)
		return err
	}

	if res.Replayed {
		metrics.GrantOutcomesTotal.WithLabelValues("experience", "replayed").Inc()
		c.Response().Header().Set(HeaderIdempotentReplayed, "true")
	} else {
		metrics.ExperienceGrantedTotal.Add(float64(in.Amount))
		if res.LeveledUp {
			metrics.LevelUpsTotal.Inc()
		}
	}
	return c.JSON(http.StatusOK, toProfileResponse(&res.Profile))
}

// GrantCoins adds (or with a negative amount, removes) coins.
//
// @Summary      Grant coins
// @Tags         users
// @Produce      json
// @Param        id               path      int     true   "Account ID"
// @Param        coins            query     int     true   "Coins to add, may be negative"
// @Param        Idempotency-Key  header    string  false  "Makes retries safe"
// @Success      200              {object}  profileResponse
// @Failure      400              {object}  map[string]string
// @Failure      404              {object}  map[string]string
// @Failure      409              {object}  map[string]string
// @Router       /users/{id}/coins [put]
func (h *AccountHandler) GrantCoins(c echo.Context) error {
	in, err := grantInput(c, "coins")
	if err != nil {
		return err
	}

	res, err := h.service.GrantCoins(c.Request().Context(), in)
	if err != nil {
		recordGrantFailure("coins", err)
		return err
	}

	if res.Replayed {
		metrics.GrantOutcomesTotal.WithLabelValues("coins", "replayed").Inc()
		c.Response().Header().Set(HeaderIdempotentReplayed, "true")
	} else {
		direction := "credit"
		if in.Amount < 0 {
			direction = "debit"
		}
		metrics.CoinGrantsTotal.WithLabelValues(direction).Inc()
	}
	return c.JSON(http.StatusOK, toProfileResponse(&res.Profile))
}

// Leaderboard returns the top accounts by experience.
//
// @Summary      Leaderboard
// @Tags         users
// @Produce      json
// @Success      200  {array}   leaderboardEntryResponse
// @Failure      500  {object}  map[string]string
// @Router       /users/leaderboard [get]
func (h *AccountHandler) Leaderboard(c echo.Context) error {
	entries, err := h.service.Leaderboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toLeaderboardResponse(entries))
}

func grantInput(c echo.Context, param string) (ports.GrantInput, error) {
	id, err := pathAccountID(c)
	if err != nil {
		return ports.GrantInput{}, err
	}
	amount, err := queryAmount(c, param)
	if err != nil {
		return ports.GrantInput{}, err
	}

	key := c.Request().Header.Get(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return ports.GrantInput{}, echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key is too long")
	}
	return ports.GrantInput{AccountID: id, Amount: amount, IdempotencyKey: key}, nil
}

func recordGrantFailure(kind string, err error) {
	if errors.Is(err, domain.ErrVersionConflict) {
		metrics.GrantOutcomesTotal.WithLabelValues(kind, "conflict").Inc()
	}
}
