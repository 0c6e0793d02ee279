package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quicktask/backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRecoveryWithLog_NoPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RecoveryWithLog(zerolog.Nop()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestRecoveryWithLog_WithPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	router := gin.New()
	router.Use(middleware.RecoveryWithLog(zerolog.New(&logs)))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req, _ := http.NewRequest("GET", "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	expectedError := `{"error":"internal_error","message":"Server error"}`
	if w.Body.String() != expectedError {
		t.Errorf("Expected error message %s, got %s", expectedError, w.Body.String())
	}

	if !strings.Contains(logs.String(), "test panic") {
		t.Errorf("Expected panic value in log, got %s", logs.String())
	}
}

func TestRequestLogger_LevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	router := gin.New()
	router.Use(middleware.RequestLogger(zerolog.New(&logs)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	tests := []struct {
		path  string
		level string
	}{
		{"/ok?x=1", `"level":"info"`},
		{"/missing", `"level":"warn"`},
		{"/broken", `"level":"error"`},
	}

	for _, tt := range tests {
		logs.Reset()
		req, _ := http.NewRequest("GET", tt.path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		line := logs.String()
		if !strings.Contains(line, tt.level) {
			t.Errorf("%s: expected %s in %s", tt.path, tt.level, line)
		}
		if !strings.Contains(line, `"path":"`+tt.path+`"`) {
			t.Errorf("%s: expected path in %s", tt.path, line)
		}
	}
}
