package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used when no cost is configured
const DefaultBcryptCost = 12

// bcryptMaxBytes is the longest secret bcrypt accepts
const bcryptMaxBytes = 72

// BcryptHasher is the bcrypt backed PasswordAuthenticator
type BcryptHasher struct {
	cost int

	// dummy is compared against when a login identifier matches no
	// account, so both paths spend one bcrypt comparison.
	dummyOnce sync.Once
	dummy     []byte
}

var _ PasswordAuthenticator = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher with the given cost. A zero cost
// selects the build default.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Cost returns the configured work factor
func (b *BcryptHasher) Cost() int {
	return b.cost
}

// HashPassword will generate a salted password hash
func (b *BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword(secret(password), b.cost)
	if err != nil {
		return "", WithCause(Derivef(ErrValidation, "password could not be hashed"), err)
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (b *BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), secret(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return WithCause(ErrMismatchedHashAndPassword, err)
	}
	return nil
}

// VerifyPassword is the boolean form of ComparePasswordAndHash.
// Hashes from other schemes or malformed hashes verify as false.
func (b *BcryptHasher) VerifyPassword(password, hash string) bool {
	return b.ComparePasswordAndHash(password, hash) == nil
}

// burn spends a comparison against the dummy hash
func (b *BcryptHasher) burn(password string) {
	b.dummyOnce.Do(func() {
		b.dummy, _ = bcrypt.GenerateFromPassword([]byte("newsroom-dummy-secret"), b.cost)
	})
	_ = bcrypt.CompareHashAndPassword(b.dummy, secret(password))
}

// secret returns the bytes handed to bcrypt. Passwords over the bcrypt
// limit are replaced by their base64 encoded SHA-256 digest, so every byte
// still counts and multi byte passphrases are not rejected.
func secret(password string) []byte {
	if len(password) <= bcryptMaxBytes {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
