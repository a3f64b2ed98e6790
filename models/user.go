package models

import (
	"time"
)

// Role is the single role claim carried by a profile. It is fixed at registration.
type Role string

const (
	RoleResearcher    Role = "researcher"
	RoleReviewer      Role = "reviewer"
	RoleCoordinator   Role = "coordinator"
	RoleDirector      Role = "director"
	RoleVicePresident Role = "vice_president"
)

// Roles lists every role in display order.
var Roles = []Role{RoleResearcher, RoleReviewer, RoleCoordinator, RoleDirector, RoleVicePresident}

func (r Role) Valid() bool {
	switch r {
	case RoleResearcher, RoleReviewer, RoleCoordinator, RoleDirector, RoleVicePresident:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

type UserProfile struct {
	ID           string    `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	FullName     string    `gorm:"column:full_name" json:"full_name"`
	Role         Role      `gorm:"column:role;type:varchar(32)" json:"role"`
	Department   *string   `gorm:"column:department" json:"department"`
	Email        string    `gorm:"column:email;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

// UserSession is one signed-in device. Deleting the row revokes the bearer token that carries its ID.
type UserSession struct {
	ID        string    `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	UserID    string    `gorm:"column:user_id;type:char(36);index" json:"user_id"`
	UserAgent string    `gorm:"column:user_agent" json:"user_agent"`
	IPAddress string    `gorm:"column:ip_address" json:"ip_address"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at" json:"expires_at"`
}

// TableName overrides
func (UserProfile) TableName() string {
	return "user_profiles"
}

func (UserSession) TableName() string {
	return "user_sessions"
}
