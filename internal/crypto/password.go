package crypto

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches the cost the accounts were originally hashed with.
const DefaultCost = 10

// Hash returns a bcrypt hash of the given password. A cost outside bcrypt's
// accepted range falls back to DefaultCost.
func Hash(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns true if the provided password matches the given bcrypt hash.
func Compare(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
