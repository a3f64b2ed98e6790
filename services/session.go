package services

import (
	"time"

	"research-grant-api/models"
)

// Session is the authenticated caller. It is created by AuthService on sign-in or token
// verification and handed explicitly to every workflow operation and dashboard load.
type Session struct {
	ID        string      `json:"session_id"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func newSession(sessionID string, profile *models.UserProfile, expiresAt time.Time) *Session {
	return &Session{
		ID:        sessionID,
		UserID:    profile.ID,
		Role:      profile.Role,
		FullName:  profile.FullName,
		Email:     profile.Email,
		ExpiresAt: expiresAt,
	}
}

// ClientMeta describes the device a session was opened from.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}
