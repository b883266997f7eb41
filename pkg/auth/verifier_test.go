package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/config"
)

var jwtCfg = config.JWTConfig{Secret: "s3cret", Issuer: "https://auth.iliria.test", Audience: "authenticated"}

func signed(t *testing.T, cfg config.JWTConfig, p Principal, at time.Time) string {
	t.Helper()
	tok, err := Sign(cfg, p, at, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestVerifyReturnsPrincipal(t *testing.T) {
	v, err := NewVerifier(jwtCfg)
	require.NoError(t, err)
	want := Principal{UserID: uuid.New(), Email: "arta@iliria.test", Role: "authenticated"}

	got, err := v.Verify(signed(t, jwtCfg, want, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewVerifier(jwtCfg)
	require.NoError(t, err)
	user := Principal{UserID: uuid.New(), Role: "authenticated"}

	otherIssuer := jwtCfg
	otherIssuer.Issuer = "https://elsewhere.test"
	otherAudience := jwtCfg
	otherAudience.Audience = "service_role"
	otherKey := jwtCfg
	otherKey.Secret = "not-it"

	cases := map[string]string{
		"empty":          "",
		"garbage":        "a.b.c",
		"other issuer":   signed(t, otherIssuer, user, time.Now()),
		"other audience": signed(t, otherAudience, user, time.Now()),
		"other key":      signed(t, otherKey, user, time.Now()),
		"expired":        signed(t, jwtCfg, user, time.Now().Add(-2*time.Hour)),
		"anonymous":      signed(t, jwtCfg, Principal{UserID: uuid.New(), Role: RoleAnonymous}, time.Now()),
		"nil subject":    signed(t, jwtCfg, Principal{Role: "authenticated"}, time.Now()),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.Error(t, err)
		})
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	v, err := NewVerifier(jwtCfg)
	require.NoError(t, err)
	claims := tokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    jwtCfg.Issuer,
		Audience:  jwt.ClaimStrings{jwtCfg.Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(jwtCfg.Secret))
	require.NoError(t, err)

	_, err = v.Verify(tok)
	assert.Error(t, err)
}

func TestVerifierWithoutAudienceSkipsTheCheck(t *testing.T) {
	cfg := jwtCfg
	cfg.Audience = ""
	v, err := NewVerifier(cfg)
	require.NoError(t, err)

	_, err = v.Verify(signed(t, jwtCfg, Principal{UserID: uuid.New()}, time.Now()))
	assert.NoError(t, err)
}

func TestNewVerifierNeedsSecretAndIssuer(t *testing.T) {
	_, err := NewVerifier(config.JWTConfig{Issuer: "x"})
	assert.Error(t, err)
	_, err = NewVerifier(config.JWTConfig{Secret: "x"})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("  bearer abc.def.ghi ")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	for _, h := range []string{"", "abc.def.ghi", "Basic dXNlcjpwYXNz", "Bearer   "} {
		_, err := BearerToken(h)
		assert.ErrorIs(t, err, ErrNoToken, h)
	}
}
