package utils

import (
	"errors"

	nanoid "github.com/jaevor/go-nanoid"
)

// GenerateSecureToken returns a URL-safe random token of length characters.
func GenerateSecureToken(length int) (string, error) {
	if length < 16 {
		return "", errors.New("invalid token length")
	}
	gen, err := nanoid.Standard(length)
	if err != nil {
		return "", err
	}
	return gen(), nil
}
