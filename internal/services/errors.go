package services

import (
	"context"
	"errors"

	"quicktask/backend/internal/models"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("user already exists with that email")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrForbidden          = errors.New("not authorized to access this task")
)

// ValidationError reports the first offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type identityKey struct{}

func WithIdentity(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

func IdentityFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(identityKey{}).(*models.User)
	return user, ok && user != nil
}
