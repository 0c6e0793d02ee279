package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quicktask/backend/internal/config"
	"quicktask/backend/internal/database"
	"quicktask/backend/internal/handlers"
	"quicktask/backend/internal/middleware"
	"quicktask/backend/internal/services"
)

type testEnv struct {
	router *gin.Engine
	pool   *database.DatabasePool
	auth   *services.AuthServiceImpl
}

func newTestEnv(t *testing.T, production bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewInMemoryPool()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	hasher, err := services.NewPasswordHasher(services.PasswordSchemeBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	authCfg := config.AuthConfig{JWTSecret: "handler-secret", TokenTTL: 7 * 24 * time.Hour, CookieName: "token"}
	logger := zerolog.Nop()

	authService := services.NewAuthService(pool.DB, authCfg, hasher)
	registerService := services.NewRegisterService(pool.DB, hasher)
	dashboardService := services.NewDashboardService(pool.DB, nil, nil, 14, logger)
	taskService := services.NewCachedTaskService(services.NewTaskService(pool.DB), dashboardService, nil, logger)

	authHandler := handlers.NewAuthHandler(authService, registerService, handlers.CookieConfig{
		Name:       authCfg.CookieName,
		MaxAge:     authCfg.TokenTTL,
		Production: production,
	}, logger)
	taskHandler := handlers.NewTaskHandler(taskService, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger)

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(logger))
	guard := middleware.AuthMiddleware(authService, authCfg.CookieName, logger)

	api := router.Group("/api")
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", guard, authHandler.Me)

	tasks := api.Group("/tasks", guard)
	tasks.GET("", taskHandler.GetTasks)
	tasks.POST("", taskHandler.CreateTask)
	tasks.GET("/:id", taskHandler.GetTaskByID)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)

	api.GET("/dashboard", guard, dashboardHandler.GetDashboard)
	api.GET("/dashboard/summary", guard, dashboardHandler.GetSummary)

	return &testEnv{router: router, pool: pool, auth: authService}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// register creates a user over HTTP and returns the issued token.
func (e *testEnv) register(t *testing.T, name, email string) handlers.AuthResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "pw123456",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp handlers.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, w, &body)
	return body["message"]
}
