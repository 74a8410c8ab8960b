package auth

import (
	"testing"
	"time"

	"vidrelay/app/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Bot.AdminIDs = []int64{42}
	cfg.JWT = config.JWTConfig{Secret: "secret", ExpireTime: 24, Issuer: "vidrelay"}
	return cfg
}

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(testConfig())

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.AdminID)
	assert.Equal(t, "42", claims.Subject)

	_, err = svc.GenerateToken(7)
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cfg := testConfig()
	svc := NewJWTService(cfg)
	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	other := testConfig()
	other.JWT.Secret = "other"
	_, err = NewJWTService(other).ValidateToken(token)
	assert.Error(t, err)

	// 从管理员列表移除后令牌失效
	cfg.Bot.AdminIDs = nil
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	cfg := testConfig()
	svc := NewJWTService(cfg)

	fresh, err := svc.GenerateToken(42)
	require.NoError(t, err)
	_, err = svc.RefreshToken(fresh)
	assert.Error(t, err, "远未过期的令牌不需要刷新")

	claims := Claims{
		AdminID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
			Issuer:    cfg.JWT.Issuer,
		},
	}
	expiring, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	require.NoError(t, err)

	renewed, err := svc.RefreshToken(expiring)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed)
}
