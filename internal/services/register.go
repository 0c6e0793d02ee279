package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"quicktask/backend/internal/models"
)

type RegistrationRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterService interface {
	RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error)
}

type RegisterServiceImpl struct {
	db     *gorm.DB
	hasher PasswordHasher
}

func NewRegisterService(db *gorm.DB, hasher PasswordHasher) *RegisterServiceImpl {
	return &RegisterServiceImpl{db: db, hasher: hasher}
}

func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, req RegistrationRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", "Name is required")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check existing email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:     name,
		Email:    req.Email,
		Password: hashedPassword,
	}
	if err := db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
