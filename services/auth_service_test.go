package services

import (
	"testing"
	"time"

	"research-grant-api/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignUpSignInAndSignOut(t *testing.T) {
	f := newFixture(t)
	dept := "  Hydrology "

	profile, err := f.auth.SignUp(f.ctx, SignUpForm{
		Email:      "  Ada@Example.EDU ",
		Password:   "long-enough",
		FullName:   "Ada Lovelace",
		Department: &dept,
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.edu", profile.Email)
	require.Equal(t, models.RoleResearcher, profile.Role)
	require.Equal(t, "Hydrology", *profile.Department)
	require.NotEqual(t, "long-enough", profile.PasswordHash)

	result, err := f.auth.SignIn(f.ctx, "ADA@example.edu", "long-enough", ClientMeta{UserAgent: "test", IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.Equal(t, profile.ID, result.Session.UserID)

	session, err := f.auth.CurrentSession(f.ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, result.Session.ID, session.ID)
	require.Equal(t, models.RoleResearcher, session.Role)

	require.NoError(t, f.auth.SignOut(f.ctx, session))

	_, err = f.auth.CurrentSession(f.ctx, result.Token)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	// signing out twice is harmless
	require.NoError(t, f.auth.SignOut(f.ctx, session))
}

func TestSignUpRejectsDuplicateEmailAndWeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.SignUp(f.ctx, SignUpForm{Email: "a@example.edu", Password: "long-enough", FullName: "A"})
	require.NoError(t, err)

	_, err = f.auth.SignUp(f.ctx, SignUpForm{Email: "A@example.edu", Password: "long-enough", FullName: "A2"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	_, err = f.auth.SignUp(f.ctx, SignUpForm{Email: "b@example.edu", Password: "short", FullName: "B"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	require.Contains(t, validation.Fields, "password")

	_, err = f.auth.SignUp(f.ctx, SignUpForm{Email: "not-an-email", Password: "long-enough", FullName: "C"})
	require.ErrorAs(t, err, &validation)
	require.Contains(t, validation.Fields, "email")

	_, err = f.auth.SignUp(f.ctx, SignUpForm{Email: "d@example.edu", Password: "long-enough", FullName: "D", Role: "dean"})
	require.ErrorAs(t, err, &validation)
	require.Contains(t, validation.Fields, "role")
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.register(t, models.RoleDirector, "dana")

	cases := map[string][2]string{
		"wrong password": {"dana@example.edu", "incorrect-horse"},
		"unknown email":  {"nobody@example.edu", "correct-horse"},
		"empty password": {"dana@example.edu", ""},
		"malformed":      {"dana", "correct-horse"},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.SignIn(f.ctx, creds[0], creds[1], ClientMeta{})
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, "Invalid email or password", authErr.Message)
		})
	}
}

func TestCurrentSessionRejectsExpiredAndForeignTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, models.RoleReviewer, "rex")

	result, err := f.auth.SignIn(f.ctx, "rex@example.edu", "correct-horse", ClientMeta{})
	require.NoError(t, err)

	forged := NewAuthService(f.store, "other-secret", time.Hour, f.logger)
	_, err = forged.CurrentSession(f.ctx, result.Token)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: result.Session.UserID})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = f.auth.CurrentSession(f.ctx, raw)
	require.ErrorAs(t, err, &authErr)

	later := result.Session.ExpiresAt.Add(time.Minute)
	f.auth.now = func() time.Time { return later }
	_, err = f.auth.CurrentSession(f.ctx, result.Token)
	require.ErrorAs(t, err, &authErr)
}

func TestSignOutAllRevokesEverySession(t *testing.T) {
	f := newFixture(t)
	f.register(t, models.RoleCoordinator, "cora")

	first, err := f.auth.SignIn(f.ctx, "cora@example.edu", "correct-horse", ClientMeta{UserAgent: "laptop"})
	require.NoError(t, err)
	second, err := f.auth.SignIn(f.ctx, "cora@example.edu", "correct-horse", ClientMeta{UserAgent: "phone"})
	require.NoError(t, err)

	n, err := f.auth.SignOutAll(f.ctx, first.Session)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	for _, token := range []string{first.Token, second.Token} {
		_, err := f.auth.CurrentSession(f.ctx, token)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
	}
}

func TestProfileReturnsCurrentRow(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, models.RoleVicePresident, "victor")

	profile, err := f.auth.Profile(f.ctx, session)
	require.NoError(t, err)
	require.Equal(t, "victor@example.edu", profile.Email)
	require.Equal(t, models.RoleVicePresident, profile.Role)
}
