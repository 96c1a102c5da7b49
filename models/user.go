package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus represents the account state of a mini-program user
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Known roles. Role is free text in storage; these are the values the gateway acts on.
const (
	RoleUser  = "user"
	RoleVIP   = "vip"
	RoleAdmin = "admin"
)

// User represents an end user identified by a WeChat openid
type User struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OpenID      string     `json:"openid" db:"openid"`
	UnionID     *string    `json:"unionid,omitempty" db:"union_id"`
	SessionKey  string     `json:"-" db:"session_key"`
	Nickname    string     `json:"nickname,omitempty" db:"nickname"`
	AvatarURL   string     `json:"avatar_url,omitempty" db:"avatar_url"`
	Status      UserStatus `json:"status" db:"status"`
	Role        *string    `json:"role,omitempty" db:"role"` // nil for legacy accounts
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates an active user with the default role
func NewUser(openID, sessionKey string) *User {
	now := time.Now()
	role := RoleUser
	return &User{
		ID:          uuid.New(),
		OpenID:      openID,
		SessionKey:  sessionKey,
		Status:      UserStatusActive,
		Role:        &role,
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsActive returns true if the account is not disabled
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// RoleName returns the role or an empty string when unset
func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return *u.Role
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.RoleName() == RoleAdmin
}

// SessionType returns the credential type a login for this user should carry
func (u *User) SessionType() string {
	if u.IsAdmin() {
		return SessionTypeAdmin
	}
	return SessionTypeUser
}
