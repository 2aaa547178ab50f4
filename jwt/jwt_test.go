package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"dentalshop/models"
	"dentalshop/testutil"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewManager(key)
}

func TestGenerateAndParseToken(t *testing.T) {
	m := newManager(t)
	token, err := m.GenerateToken(7, models.RoleAdmin, time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	other, err := m.GenerateToken(7, models.RoleAdmin, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestParseTokenRejects(t *testing.T) {
	m := newManager(t)

	expired, err := m.GenerateToken(1, models.RoleCustomer, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = m.ParseToken(expired)
	assert.ErrorIs(t, err, gojwt.ErrTokenExpired)

	foreign, err := newManager(t).GenerateToken(1, models.RoleCustomer, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = m.ParseToken(foreign)
	assert.Error(t, err)

	hmac, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"userID": 1}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseToken(hmac)
	assert.Error(t, err)
}

func TestVerifyTokenChecksDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	m := newManager(t)
	expiresAt := time.Now().Add(time.Hour)

	token, err := m.GenerateToken(3, models.RoleCustomer, expiresAt)
	require.NoError(t, err)

	_, _, err = m.VerifyToken(token, db)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	row := models.LoginToken{Token: token, UserID: 3, Role: models.RoleCustomer, ExpirationTime: expiresAt}
	require.NoError(t, db.Create(&row).Error)

	claims, loginToken, err := m.VerifyToken(token, db)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	assert.Equal(t, row.ID, loginToken.ID)

	require.NoError(t, db.Delete(&row).Error)
	_, _, err = m.VerifyToken(token, db)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestGenerateKeyPairAndLoad(t *testing.T) {
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "keys", "private_key.pem")
	publicPath := filepath.Join(dir, "keys", "public_key.pem")
	require.NoError(t, GenerateKeyPair(privatePath, publicPath, 2048))

	m, err := LoadManager(privatePath, publicPath)
	require.NoError(t, err)

	token, err := m.GenerateToken(1, models.RoleCustomer, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = m.ParseToken(token)
	assert.NoError(t, err)

	_, err = LoadManager(filepath.Join(dir, "missing.pem"), publicPath)
	assert.Error(t, err)
}
