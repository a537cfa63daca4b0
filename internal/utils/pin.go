package utils

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost   = 12
	MinPINLength = 4
	MaxPINLength = 12
)

var ErrWeakPIN = errors.New("pin must be 4 to 12 digits")

// HashPIN returns the bcrypt hash stored in RESET_PIN_HASH.
func HashPIN(pin string) (string, error) {
	if !validPIN(pin) {
		return "", ErrWeakPIN
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return string(hashed), nil
}

// CheckPIN reports whether pin matches hashedPIN. An empty hash never matches.
func CheckPIN(hashedPIN, pin string) bool {
	if hashedPIN == "" || pin == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedPIN), []byte(pin))
	return err == nil
}

func validPIN(pin string) bool {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return false
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
