package security

import (
	"crypto/sha256"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"github.com/torvix/backend/internal/apperr"
)

// =============================================================================
// Credential store
// =============================================================================

func TestCredentialStorePBKDF2(t *testing.T) {
	store, err := NewCredentialStore(SchemePBKDF2)
	require.NoError(t, err)

	hash, err := store.Hash("pw12345678")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$pbkdf2-sha256$29000$"))

	assert.True(t, store.Verify("pw12345678", hash))
	assert.False(t, store.Verify("pw12345679", hash))

	again, err := store.Hash("pw12345678")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ between hashes")
}

func TestCredentialStoreVerifiesPasslibHash(t *testing.T) {
	store, err := NewCredentialStore("")
	require.NoError(t, err)

	salt := []byte("0123456789abcdef")
	key := pbkdf2.Key([]byte("secret"), salt, 1000, 32, sha256.New)
	hash := "$pbkdf2-sha256$1000$" + ab64.EncodeToString(salt) + "$" + ab64.EncodeToString(key)

	assert.True(t, store.Verify("secret", hash))
}

func TestCredentialStoreBcrypt(t *testing.T) {
	store, err := NewCredentialStore(SchemeBcrypt)
	require.NoError(t, err)

	hash, err := store.Hash("pw12345678")
	require.NoError(t, err)
	assert.True(t, store.Verify("pw12345678", hash))

	_, err = store.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	// Either scheme verifies hashes of the other.
	pbkdf, _ := NewCredentialStore(SchemePBKDF2)
	assert.True(t, pbkdf.Verify("pw12345678", hash))
}

func TestCredentialStoreRejectsEmptyAndMalformed(t *testing.T) {
	store, _ := NewCredentialStore(SchemePBKDF2)

	_, err := store.Hash("")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	for _, stored := range []string{
		"",
		"plaintext",
		"$pbkdf2-sha256$",
		"$pbkdf2-sha256$abc$salt$hash",
		"$pbkdf2-sha256$1000$!!$!!",
		"$2b$10$short",
	} {
		assert.False(t, store.Verify("pw12345678", stored), stored)
	}

	hash, _ := store.Hash("pw12345678")
	assert.False(t, store.Verify("", hash))
}

func TestNewCredentialStoreUnknownScheme(t *testing.T) {
	_, err := NewCredentialStore("md5")
	assert.Error(t, err)
}

// =============================================================================
// Token codec
// =============================================================================

func newCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("test-secret", "HS256")
	require.NoError(t, err)
	return codec
}

func TestTokenRoundTrip(t *testing.T) {
	codec := newCodec(t)
	now := time.Now().Truncate(time.Second)

	raw, err := codec.Encode(Claims{
		Subject:   "42",
		Type:      TokenTypeAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Extra:     map[string]any{ClaimSessionID: "c0ffee"},
	})
	require.NoError(t, err)

	claims, err := codec.Decode(raw, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, "c0ffee", claims.SessionID())
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestTokenReservedExtraClaim(t *testing.T) {
	codec := newCodec(t)
	for _, key := range []string{"sub", "iat", "exp", "type"} {
		_, err := codec.Encode(Claims{
			Subject:   "1",
			Type:      TokenTypeAccess,
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Minute),
			Extra:     map[string]any{key: "x"},
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, key)
	}
}

func TestTokenDecodeFailures(t *testing.T) {
	codec := newCodec(t)
	now := time.Now()

	valid := func(tokenType string) string {
		raw, err := codec.Encode(Claims{Subject: "7", Type: tokenType, IssuedAt: now, ExpiresAt: now.Add(time.Minute)})
		require.NoError(t, err)
		return raw
	}

	t.Run("wrong type", func(t *testing.T) {
		_, err := codec.Decode(valid(TokenTypeRefresh), TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		raw, err := codec.Encode(Claims{Subject: "7", Type: TokenTypeAccess, IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
		require.NoError(t, err)
		_, err = codec.Decode(raw, TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("clock moved past expiry", func(t *testing.T) {
		raw := valid(TokenTypeAccess)
		later, _ := NewTokenCodec("test-secret", "HS256")
		later.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
		_, err := later.Decode(raw, TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad signature", func(t *testing.T) {
		other, _ := NewTokenCodec("other-secret", "HS256")
		_, err := other.Decode(valid(TokenTypeAccess), TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("algorithm mismatch", func(t *testing.T) {
		other, _ := NewTokenCodec("test-secret", "HS512")
		_, err := other.Decode(valid(TokenTypeAccess), TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		raw, err := codec.Encode(Claims{Type: TokenTypeAccess, IssuedAt: now, ExpiresAt: now.Add(time.Minute)})
		require.NoError(t, err)
		_, err = codec.Decode(raw, TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7", "type": TokenTypeAccess}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = codec.Decode(raw, TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Decode("not.a.token", TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewTokenCodecRejectsNonHMAC(t *testing.T) {
	_, err := NewTokenCodec("secret", "RS256")
	assert.Error(t, err)
	_, err = NewTokenCodec("", "HS256")
	assert.Error(t, err)
}

func TestTokenHash(t *testing.T) {
	codec := newCodec(t)

	hash := codec.HashToken("raw-refresh-token")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, codec.HashToken("raw-refresh-token"))
	assert.True(t, codec.VerifyTokenHash("raw-refresh-token", hash))
	assert.False(t, codec.VerifyTokenHash("other-token", hash))
	assert.False(t, codec.VerifyTokenHash("raw-refresh-token", ""))

	other, _ := NewTokenCodec("other-secret", "HS256")
	assert.NotEqual(t, hash, other.HashToken("raw-refresh-token"))
}
