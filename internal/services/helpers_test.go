package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quicktask/backend/internal/config"
	"quicktask/backend/internal/database"
	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

const testSecret = "test-secret"

func newTestPool(t *testing.T) *database.DatabasePool {
	t.Helper()
	pool, err := database.NewInMemoryPool()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func newTestHasher(t *testing.T) *services.PasswordHasherImpl {
	t.Helper()
	hasher, err := services.NewPasswordHasher(services.PasswordSchemeBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	return hasher
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:  testSecret,
		TokenTTL:   7 * 24 * time.Hour,
		CookieName: "token",
	}
}

func createTestUser(t *testing.T, pool *database.DatabasePool, hasher services.PasswordHasher, email string) *models.User {
	t.Helper()
	svc := services.NewRegisterService(pool.DB, hasher)
	user, err := svc.RegisterUser(context.Background(), services.RegistrationRequest{
		Name:     "User " + email,
		Email:    email,
		Password: "pw123456",
	})
	require.NoError(t, err)
	return user
}

func insertTask(t *testing.T, pool *database.DatabasePool, owner uuid.UUID, task models.Task) models.Task {
	t.Helper()
	task.UserID = owner
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == "" {
		task.Status = models.StatusTodo
	}
	require.NoError(t, pool.DB.Create(&task).Error)
	return task
}

func ptr[T any](v T) *T {
	return &v
}
