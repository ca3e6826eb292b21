package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuedAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestTokenCodec_IssueAndVerify(t *testing.T) {
	t.Parallel()

	codec := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt))
	subject := uuid.New()

	token, err := codec.Issue(subject)
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
	assert.True(t, claims.IssuedAt.Equal(issuedAt))
	assert.Equal(t, TokenTTL, claims.ExpiresAt.Sub(claims.IssuedAt))
}

func TestTokenCodec_TokensForDifferentSubjectsDiffer(t *testing.T) {
	t.Parallel()

	codec := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt))

	first, err := codec.Issue(uuid.New())
	require.NoError(t, err)
	second, err := codec.Issue(uuid.New())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenCodec_ValidUntilExpiry(t *testing.T) {
	t.Parallel()

	token, err := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt)).Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt.Add(TokenTTL - time.Second))).Verify(token)
	assert.NoError(t, err)

	_, err = NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt.Add(TokenTTL + time.Second))).Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenCodec("secret-a").WithClock(fixedClock(issuedAt)).Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenCodec("secret-b").WithClock(fixedClock(issuedAt)).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenCodec_SignatureCheckedBeforeExpiry(t *testing.T) {
	t.Parallel()

	token, err := NewTokenCodec("secret-a").WithClock(fixedClock(issuedAt)).Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenCodec("secret-b").WithClock(fixedClock(issuedAt.Add(48 * time.Hour))).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	codec := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt))
	for name, token := range map[string]string{"none": unsigned, "HS512": hs512} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSignature, name)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	t.Parallel()

	codec := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt))

	for _, token := range []string{"", "garbage", "a.b.c", "only.two"} {
		_, err := codec.Verify(token)
		assert.ErrorIs(t, err, ErrMalformedCredential, token)
	}
}

func TestTokenCodec_SubjectMustBeUserID(t *testing.T) {
	t.Parallel()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt)).Verify(token)
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func TestTokenCodec_ExpiryRequired(t *testing.T) {
	t.Parallel()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: uuid.NewString(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt)).Verify(token)
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func decodeSegment(t *testing.T, segment string) map[string]any {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestTokenCodec_WireFormat(t *testing.T) {
	t.Parallel()

	subject := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	codec := NewTokenCodec("test-secret").WithClock(fixedClock(issuedAt))

	token, err := codec.Issue(subject)
	require.NoError(t, err)

	segments := strings.Split(token, ".")
	require.Len(t, segments, 3)

	header := decodeSegment(t, segments[0])
	assert.Equal(t, "HS256", header["alg"])

	claims := decodeSegment(t, segments[1])
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"sub", "iat", "exp"}, keys)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", claims["sub"])
	assert.EqualValues(t, issuedAt.Unix(), claims["iat"])
	assert.EqualValues(t, 86400, claims["exp"].(float64)-claims["iat"].(float64))

	_, err = codec.WithClock(fixedClock(issuedAt.Add(24*time.Hour + time.Second))).Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
