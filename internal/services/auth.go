package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"quicktask/backend/internal/config"
	"quicktask/backend/internal/models"
)

type AuthService interface {
	IssueToken(userID uuid.UUID) (string, error)
	VerifyToken(token string) (uuid.UUID, error)
	AuthenticateCredentials(ctx context.Context, email, password string) (*models.User, error)
	ResolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type TokenClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

type AuthServiceImpl struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	hasher PasswordHasher
	now    func() time.Time
}

type AuthOption func(*AuthServiceImpl)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthServiceImpl) {
		s.now = now
	}
}

func NewAuthService(db *gorm.DB, cfg config.AuthConfig, hasher PasswordHasher, opts ...AuthOption) *AuthServiceImpl {
	s := &AuthServiceImpl{
		db:     db,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthServiceImpl) IssueToken(userID uuid.UUID) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := TokenClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthServiceImpl) VerifyToken(tokenString string) (uuid.UUID, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.UserID)
	if err != nil || userID.IsNil() {
		return uuid.Nil, fmt.Errorf("%w: bad id claim", ErrInvalidToken)
	}
	return userID, nil
}

func (s *AuthServiceImpl) AuthenticateCredentials(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.hasher.CompareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	ok, err := s.hasher.Compare(user.Password, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) ResolveUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Select(models.PublicUserColumns).
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return &user, nil
}
