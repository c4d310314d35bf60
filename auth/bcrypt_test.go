package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kalinanews/newsroom/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *auth.BcryptHasher {
	t.Helper()
	h, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestHashPassword(t *testing.T) {
	hasher := newTestHasher(t)

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  auth.ErrNoEmptyString,
		},
		{
			name:     "Longer than 72 bytes",
			password: strings.Repeat("a", 73),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.HashPassword(tt.password)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
			assert.NoError(t, hasher.ComparePasswordAndHash(tt.password, hash))
		})
	}
}

func TestLongPasswords(t *testing.T) {
	hasher := newTestHasher(t)

	long := strings.Repeat("a", 73)
	hash, err := hasher.HashPassword(long)
	require.NoError(t, err)
	assert.True(t, hasher.VerifyPassword(long, hash))

	// bytes past the bcrypt limit still count
	tail := strings.Repeat("a", 90) + "b"
	hash, err = hasher.HashPassword(tail)
	require.NoError(t, err)
	assert.True(t, hasher.VerifyPassword(tail, hash))
	assert.False(t, hasher.VerifyPassword(strings.Repeat("a", 90)+"c", hash))
	assert.False(t, hasher.VerifyPassword(tail[:72], hash))

	// 40 runes, 80 bytes
	phrase := strings.Repeat("ü", 40)
	hash, err = hasher.HashPassword(phrase)
	require.NoError(t, err)
	assert.True(t, hasher.VerifyPassword(phrase, hash))
}

func TestHashIsSalted(t *testing.T) {
	hasher := newTestHasher(t)

	a, err := hasher.HashPassword("same-secret")
	require.NoError(t, err)
	b, err := hasher.HashPassword("same-secret")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, hasher.VerifyPassword("same-secret", a))
	assert.True(t, hasher.VerifyPassword("same-secret", b))
}

func TestVerifyPassword(t *testing.T) {
	hasher := newTestHasher(t)
	password := "testPassword123!"
	hash, err := hasher.HashPassword(password)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"Matching password", password, hash, true},
		{"Different password", "wrongPassword", hash, false},
		{"Empty password", "", hash, false},
		{"Malformed hash", password, "not-a-hash", false},
		{"Other scheme", password, "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA", false},
		{"Empty hash", password, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.VerifyPassword(tt.password, tt.hash))
		})
	}
}

func TestComparePasswordAndHashErrors(t *testing.T) {
	hasher := newTestHasher(t)
	hash, err := hasher.HashPassword("right")
	require.NoError(t, err)

	err = hasher.ComparePasswordAndHash("wrong", hash)
	assert.True(t, errors.Is(err, auth.ErrMismatchedHashAndPassword))

	err = hasher.ComparePasswordAndHash("right", "garbage")
	assert.True(t, errors.Is(err, auth.ErrMismatchedHashAndPassword))
}

func TestNewBcryptHasherCost(t *testing.T) {
	_, err := auth.NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	_, err = auth.NewBcryptHasher(2)
	assert.Error(t, err)

	h, err := auth.NewBcryptHasher(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h.Cost(), bcrypt.DefaultCost)
}
