package token

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const (
	// DefaultTokenLength is the number of base62 characters in a default token (~190 bits).
	DefaultTokenLength = 32

	// DefaultNumericLength is the number of digits in a numeric token.
	DefaultNumericLength = 8

	base62Alphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	numericAlphabet = "0123456789"
)

// Generator produces a new unguessable token.
type Generator func() (string, error)

// NewGenerator returns a base62 generator producing length characters.
func NewGenerator(length int) Generator {
	if length <= 0 {
		length = DefaultTokenLength
	}
	return func() (string, error) {
		return randomString(base62Alphabet, length)
	}
}

// NewNumericGenerator returns a generator of decimal tokens, suited to channels
// where users type the token by hand. Keep the TTL short when using it.
func NewNumericGenerator(digits int) Generator {
	if digits <= 0 {
		digits = DefaultNumericLength
	}
	return func() (string, error) {
		return randomString(numericAlphabet, digits)
	}
}

// Generate returns a default base62 token.
func Generate() (string, error) {
	return NewGenerator(DefaultTokenLength)()
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "randomString rand.Int")
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
