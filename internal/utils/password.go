package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong: bcrypt only reads the first 72 bytes.
var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// normalizeCost falls back to bcrypt.DefaultCost outside bcrypt's range.
func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > 72 {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), normalizeCost(cost))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was made with a cost other than the
// configured one, so it should be replaced after the next good login.
func NeedsRehash(hash string, cost int) bool {
	got, err := bcrypt.Cost([]byte(hash))
	return err != nil || got != normalizeCost(cost)
}
