package controllers

import (
	"net/http"

	"research-grant-api/authz"
	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthController struct {
	auth  *services.AuthService
	authz *authz.Authorizer
}

func NewAuthController(auth *services.AuthService, az *authz.Authorizer) *AuthController {
	return &AuthController{auth: auth, authz: az}
}

// Register creates a profile. The caller signs in separately.
func (ac *AuthController) Register(c *gin.Context) {
	var form services.SignUpForm
	if !bindJSON(c, &form) {
		return
	}

	profile, err := ac.auth.SignUp(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    profile,
		"message": "Registration successful",
	})
}

// Login handles user authentication
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := ac.auth.SignIn(c.Request.Context(), req.Email, req.Password, services.ClientMeta{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   result.Token,
		"session": result.Session,
		"user":    result.Profile,
		"message": "Login successful",
	})
}

// Logout revokes the current session
func (ac *AuthController) Logout(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	if err := ac.auth.SignOut(c.Request.Context(), session); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// LogoutAll revokes every session of the current user
func (ac *AuthController) LogoutAll(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	n, err := ac.auth.SignOutAll(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "Logged out from all devices",
		"revoked_sessions": n,
	})
}

// GetProfile returns current user profile
func (ac *AuthController) GetProfile(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	profile, err := ac.auth.Profile(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	permissions := []string{}
	for _, p := range ac.authz.Permissions(session.Role) {
		permissions = append(permissions, p[0]+":"+p[1])
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        profile,
		"session":     session,
		"permissions": permissions,
	})
}
