package entity

import (
	"fmt"
	"strings"
	"time"

	"crawford.app/podcastserver/pkg/apperror"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the role names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q, expected one of user, lecturer, admin: %w", s, apperror.ErrInvalidInput)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleLecturer, RoleAdmin:
		return true
	}
	return false
}

// CanPublish reports whether the role may create podcasts and live streams.
func (r Role) CanPublish() bool {
	return r == RoleLecturer || r == RoleAdmin
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	Role         Role      `gorm:"size:20;not null;index" json:"role"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsAdmin is derived from Role and never stored.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanManage reports whether u may modify a record owned by ownerID.
func (u *User) CanManage(ownerID uint) bool {
	return u != nil && (u.ID == ownerID || u.IsAdmin())
}
