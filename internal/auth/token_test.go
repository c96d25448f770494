package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/models"
)

func newIssuer(t *testing.T, secret string, now time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(secret, DefaultTTL)
	require.NoError(t, err)
	return issuer.WithClock(func() time.Time { return now })
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t, "secret", now)
	user := models.User{ID: primitive.NewObjectID(), Role: models.RoleVendor}

	token, issued, err := issuer.Issue(user)
	require.NoError(t, err)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, models.RoleVendor, got.Role)
	assert.Equal(t, issued.TokenID, got.TokenID)
	assert.NotEmpty(t, got.TokenID)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), got.ExpiresAt.Unix())
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	token, _, err := newIssuer(t, "secret", now).Issue(models.User{ID: primitive.NewObjectID(), Role: models.RoleCustomer})
	require.NoError(t, err)

	later := newIssuer(t, "secret", now.Add(25*time.Hour))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Now()
	token, _, err := newIssuer(t, "secret", now).Issue(models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = newIssuer(t, "other", now).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		ID:   primitive.NewObjectID().Hex(),
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newIssuer(t, "secret", time.Now()).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		ID:   primitive.NewObjectID().Hex(),
		Role: "Superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = newIssuer(t, "secret", time.Now()).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	for _, header := range []string{"", "Bearer", "Bearer   ", "Basic abc", "abc.def.ghi"} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingToken, header)
	}
}
