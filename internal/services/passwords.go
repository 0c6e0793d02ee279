package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordSchemeBcrypt   = "bcrypt"
	PasswordSchemeArgon2id = "argon2id"

	// bcrypt only reads the first 72 bytes of a password.
	bcryptMaxPasswordBytes = 72
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare reports whether password matches hash. The scheme is taken
	// from the stored hash, not from the hasher's configured scheme.
	Compare(hash, password string) (bool, error)
	// CompareDummy burns the same work as a real comparison for lookups
	// that found no user.
	CompareDummy(password string)
}

type PasswordHasherImpl struct {
	scheme    string
	cost      int
	dummyHash string
}

func NewPasswordHasher(scheme string, cost int) (*PasswordHasherImpl, error) {
	if scheme == "" {
		scheme = PasswordSchemeBcrypt
	}
	if scheme != PasswordSchemeBcrypt && scheme != PasswordSchemeArgon2id {
		return nil, fmt.Errorf("unsupported password scheme %q", scheme)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	h := &PasswordHasherImpl{scheme: scheme, cost: cost}
	dummy, err := h.Hash("quicktask-dummy-password")
	if err != nil {
		return nil, err
	}
	h.dummyHash = dummy
	return h, nil
}

func (h *PasswordHasherImpl) Hash(password string) (string, error) {
	if h.scheme == PasswordSchemeArgon2id {
		return argon2id.CreateHash(password, argon2id.DefaultParams)
	}
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *PasswordHasherImpl) Compare(hash, password string) (bool, error) {
	if strings.HasPrefix(hash, "$argon2id$") {
		return argon2id.ComparePasswordAndHash(password, hash)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *PasswordHasherImpl) CompareDummy(password string) {
	_, _ = h.Compare(h.dummyHash, password)
}

// bcryptInput truncates long passwords instead of letting bcrypt reject
// them, so any password accepted at registration can log in.
func bcryptInput(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxPasswordBytes {
		b = b[:bcryptMaxPasswordBytes]
	}
	return b
}
