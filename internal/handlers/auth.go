package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/config"
	"quicktask/backend/internal/middleware"
	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

type AuthHandler struct {
	authService     services.AuthService
	registerService services.RegisterService
	cookie          CookieConfig
	logger          zerolog.Logger
}

// CookieConfig describes the session cookie. Production cookies are Secure
// with SameSite=None so a separately hosted frontend can send them.
type CookieConfig struct {
	Name       string
	MaxAge     time.Duration
	Production bool
}

func CookieConfigFromConfig(cfg *config.Config) CookieConfig {
	return CookieConfig{
		Name:       cfg.Auth.CookieName,
		MaxAge:     cfg.Auth.TokenTTL,
		Production: cfg.IsProduction(),
	}
}

type AuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

func NewAuthHandler(authService services.AuthService, registerService services.RegisterService, cookie CookieConfig, logger zerolog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandler{
		authService:     authService,
		registerService: registerService,
		cookie:          cookie,
		logger:          logger.With().Str("component", "auth_handler").Logger(),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := h.registerService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	h.startSession(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	user, err := h.authService.AuthenticateCredentials(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.startSession(c, http.StatusOK, user)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "Not authorized, no token")
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

// Logout only clears the cookie; issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) startSession(c *gin.Context, status int, user *models.User) {
	token, err := h.authService.IssueToken(user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.setCookie(c, token, int(h.cookie.MaxAge.Seconds()))
	profile := user.Profile()
	c.JSON(status, AuthResponse{
		ID:    profile.ID,
		Name:  profile.Name,
		Email: profile.Email,
		Token: token,
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	if h.cookie.Production {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Production, true)
}
