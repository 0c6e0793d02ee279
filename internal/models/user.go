package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Tasks []Task `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// PublicUserColumns lists every column except the password hash.
var PublicUserColumns = []string{"id", "name", "email", "created_at", "updated_at"}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id
	}
	return nil
}

// Profile is the externally visible view of a user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
	}
}
