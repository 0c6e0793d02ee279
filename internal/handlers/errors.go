package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

const invalidBodyMessage = "Invalid request body"

// bindingMessages is keyed by the validator's struct namespace. Every rule
// on a field reports the same message.
var bindingMessages = map[string]string{
	"RegistrationRequest.Name":     "Name is required",
	"RegistrationRequest.Email":    "Please provide a valid email",
	"RegistrationRequest.Password": "Password must be at least 6 characters",
	"LoginRequest.Email":           "Please provide a valid email",
	"LoginRequest.Password":        "Password is required",
}

func respondError(c *gin.Context, log zerolog.Logger, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(c, http.StatusBadRequest, "validation_error", validationErr.Message)
	case errors.Is(err, services.ErrEmailTaken):
		writeError(c, http.StatusBadRequest, "email_taken", "User already exists with that email")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, services.ErrInvalidToken), errors.Is(err, services.ErrUserNotFound):
		writeError(c, http.StatusUnauthorized, "unauthorized", "Not authorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(c, http.StatusForbidden, "forbidden", "Not authorized")
	case errors.Is(err, services.ErrTaskNotFound):
		writeError(c, http.StatusNotFound, "not_found", "Task not found")
	default:
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		writeError(c, http.StatusInternalServerError, "internal_error", "Server error")
	}
}

// respondBindingError reports the first failing field of a request body.
func respondBindingError(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, "validation_error", bindingMessage(err))
}

func bindingMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		if message, ok := bindingMessages[first.StructNamespace()]; ok {
			return message
		}
		return first.Field() + " is invalid"
	}

	var patchErr *models.PatchFieldError
	if errors.As(err, &patchErr) {
		return patchErr.Error()
	}
	return invalidBodyMessage
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
