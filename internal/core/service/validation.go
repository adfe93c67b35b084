package service

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/englishadventure/user-service/internal/core/domain"
)

var validate = validator.New()

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrValidation}, args...)...)
}

func checkUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return invalid("username is required")
	}
	if !domain.ValidUsername(username) {
		return invalid("username must be between 3 and 50 characters")
	}
	return nil
}

func checkEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid("email is required")
	}
	if len(email) > domain.MaxEmailLength {
		return invalid("email must be at most %d characters", domain.MaxEmailLength)
	}
	if validate.Var(email, "email") != nil {
		return invalid("email must be a valid email address")
	}
	return nil
}

func checkPassword(password string) error {
	if len(password) < domain.MinPasswordLength {
		return invalid("password must be at least %d characters", domain.MinPasswordLength)
	}
	return nil
}

func checkLanguageLevel(level string) error {
	if !domain.ValidLanguageLevel(level) {
		return invalid("currentLanguageLevel must be one of %s", strings.Join(domain.LanguageLevels, ", "))
	}
	return nil
}
