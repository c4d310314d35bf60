//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds are slow enough that the production cost times out test suites
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
