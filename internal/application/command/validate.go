// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskquest/taskquest-bot/internal/application/gamification"
	"github.com/taskquest/taskquest-bot/internal/domain/achievement"
	"github.com/taskquest/taskquest-bot/internal/domain/shared"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct tag validation and maps failures to shared.ErrValidation.
func validateStruct(domain string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domain, "Validate", shared.ErrValidation, "invalid input", err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeField(fe))
	}
	return shared.NewDomainError(domain, "Validate", shared.ErrValidation, strings.Join(parts, "; "))
}

func describeField(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// Gamifier is the part of the gamification engine commands depend on.
type Gamifier interface {
	AddXP(ctx context.Context, userID shared.UserID, amount int, reason string) (gamification.XPResult, error)
	UpdateStreak(ctx context.Context, userID shared.UserID) (user.StreakResult, error)
	IncrementCompleted(ctx context.Context, userID shared.UserID) (int, error)
	IncrementCreated(ctx context.Context, userID shared.UserID) (int, error)
	CheckAndUnlockAchievements(ctx context.Context, userID shared.UserID, t *achievement.TaskSnapshot) ([]achievement.ID, error)
	ApplyAchievementRewards(ctx context.Context, userID shared.UserID, ids []achievement.ID) (gamification.XPResult, error)
}
