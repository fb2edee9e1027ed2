package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"

	"github.com/torvix/backend/internal/apperr"
)

const (
	SchemePBKDF2 = "pbkdf2_sha256"
	SchemeBcrypt = "bcrypt"

	pbkdf2Prefix = "$pbkdf2-sha256$"
	pbkdf2Rounds = 29000
	saltSize     = 16
	keySize      = 32
)

// ab64 is the passlib "adapted base64" alphabet: standard base64 with '.'
// in place of '+' and no padding. Hashes written by the previous backend
// keep verifying.
var ab64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789./").WithPadding(base64.NoPadding)

// CredentialStore hashes and verifies user passwords.
type CredentialStore struct {
	scheme string
}

func NewCredentialStore(scheme string) (*CredentialStore, error) {
	switch scheme {
	case "", SchemePBKDF2:
		return &CredentialStore{scheme: SchemePBKDF2}, nil
	case SchemeBcrypt:
		return &CredentialStore{scheme: SchemeBcrypt}, nil
	default:
		return nil, fmt.Errorf("unsupported password scheme %q", scheme)
	}
}

// Hash returns a salted hash of password in the configured scheme.
func (s *CredentialStore) Hash(password string) (string, error) {
	if password == "" {
		return "", apperr.InvalidInput("Password must not be empty")
	}

	if s.scheme == SchemeBcrypt {
		if len(password) > 72 {
			return "", apperr.InvalidInput("Password is too long")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("failed to hash password: %w", err)
		}
		return string(hash), nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, keySize, sha256.New)
	return pbkdf2Prefix + strconv.Itoa(pbkdf2Rounds) + "$" + ab64.EncodeToString(salt) + "$" + ab64.EncodeToString(key), nil
}

// Verify reports whether password matches stored. Malformed hashes and empty
// inputs never match.
func (s *CredentialStore) Verify(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}
	switch {
	case strings.HasPrefix(stored, pbkdf2Prefix):
		return verifyPBKDF2(password, stored)
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	default:
		return false
	}
}

func verifyPBKDF2(password, stored string) bool {
	parts := strings.Split(strings.TrimPrefix(stored, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return false
	}
	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 {
		return false
	}
	salt, err := ab64.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := ab64.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
