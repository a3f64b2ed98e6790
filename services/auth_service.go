package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-grant-api/models"
	"research-grant-api/store"
	"research-grant-api/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "research-grant-api"

var errInvalidCredentials = &AuthError{Message: "Invalid email or password"}

// Claims is the JWT payload. RegisteredClaims.ID carries the session id.
type Claims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService is the identity provider: registration, sign-in and revocable sessions.
type AuthService struct {
	store  store.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *logrus.Entry
}

// NewAuthService signs tokens with secret and keeps sessions alive for ttl.
func NewAuthService(st store.Store, secret string, ttl time.Duration, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.WithField("component", "auth"),
	}
}

// SignInResult is returned on successful authentication.
type SignInResult struct {
	Token   string              `json:"token"`
	Session *Session            `json:"session"`
	Profile *models.UserProfile `json:"user"`
}

// HashPassword bcrypts a password after checking its length.
func HashPassword(password string) (string, error) {
	if ok, msg := utils.ValidatePassword(password); !ok {
		return "", fieldError("password", msg)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignUp registers a new profile. Duplicate emails are reported as AuthError.
func (s *AuthService) SignUp(ctx context.Context, form SignUpForm) (profile *models.UserProfile, err error) {
	defer func() { recordOperation("sign_up", err) }()

	if err := form.validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(form.Password)
	if err != nil {
		return nil, err
	}

	profile = &models.UserProfile{
		ID:           uuid.NewString(),
		FullName:     form.FullName,
		Role:         form.Role,
		Department:   form.Department,
		Email:        form.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.store.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &AuthError{Message: "Email is already registered"}
		}
		return nil, s.storeFailure("create profile", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": profile.ID,
		"role":    profile.Role,
	}).Info("profile registered")
	return profile, nil
}

// SignIn verifies credentials, persists a session row and issues a bearer token for it.
func (s *AuthService) SignIn(ctx context.Context, email, password string, meta ClientMeta) (result *SignInResult, err error) {
	defer func() { recordOperation("sign_in", err) }()

	email = utils.NormalizeEmail(email)
	if !utils.ValidateEmail(email) || password == "" {
		return nil, errInvalidCredentials
	}

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, s.storeFailure("get profile by email", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	now := s.now()
	row := &models.UserSession{
		ID:        uuid.NewString(),
		UserID:    profile.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, row); err != nil {
		return nil, s.storeFailure("create session", err)
	}

	token, err := s.issueToken(profile, row)
	if err != nil {
		return nil, err
	}

	return &SignInResult{
		Token:   token,
		Session: newSession(row.ID, profile, row.ExpiresAt),
		Profile: profile,
	}, nil
}

func (s *AuthService) issueToken(profile *models.UserProfile, row *models.UserSession) (string, error) {
	claims := Claims{
		UserID: profile.ID,
		Email:  profile.Email,
		Role:   profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        row.ID,
			Subject:   profile.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(row.CreatedAt),
			NotBefore: jwt.NewNumericDate(row.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// CurrentSession resolves a bearer token into a Session. The token must verify and its
// session row must still exist, so a signed-out token is rejected before it expires.
func (s *AuthService) CurrentSession(ctx context.Context, tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, &AuthError{Message: "Invalid or expired token"}
	}

	row, err := s.store.GetSession(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AuthError{Message: "Session has been signed out"}
	}
	if err != nil {
		return nil, s.storeFailure("get session", err)
	}
	if row.UserID != claims.UserID || !s.now().Before(row.ExpiresAt) {
		return nil, &AuthError{Message: "Invalid or expired token"}
	}

	profile, err := s.store.GetProfile(ctx, row.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &AuthError{Message: "User not found"}
	}
	if err != nil {
		return nil, s.storeFailure("get profile", err)
	}

	return newSession(row.ID, profile, row.ExpiresAt), nil
}

// SignOut tears down the caller's session. Signing out twice is not an error.
func (s *AuthService) SignOut(ctx context.Context, session *Session) (err error) {
	defer func() { recordOperation("sign_out", err) }()

	if session == nil {
		return &AuthError{Message: "Not signed in"}
	}
	if err := s.store.DeleteSession(ctx, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return s.storeFailure("delete session", err)
	}
	return nil
}

// SignOutAll revokes every session belonging to the caller and returns how many were removed.
func (s *AuthService) SignOutAll(ctx context.Context, session *Session) (n int64, err error) {
	defer func() { recordOperation("sign_out_all", err) }()

	if session == nil {
		return 0, &AuthError{Message: "Not signed in"}
	}
	n, err = s.store.DeleteUserSessions(ctx, session.UserID)
	if err != nil {
		return 0, s.storeFailure("delete user sessions", err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":  session.UserID,
		"sessions": n,
	}).Info("signed out everywhere")
	return n, nil
}

// Profile returns the caller's current profile row.
func (s *AuthService) Profile(ctx context.Context, session *Session) (*models.UserProfile, error) {
	profile, err := s.store.GetProfile(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "profile", ID: session.UserID}
	}
	if err != nil {
		return nil, s.storeFailure("get profile", err)
	}
	return profile, nil
}

func (s *AuthService) storeFailure(op string, err error) error {
	s.logger.WithError(err).WithField("op", op).Error("store operation failed")
	return &StoreError{Op: op, Err: err}
}
