// Package password generates, persists, and retrieves the secret used to
// lock and unlock the lockbox.
package password

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Alphabet is the set of characters generated passwords are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of characters in a generated password.
const Length = 20

// Generate returns a new random password read from crypto/rand.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(src io.Reader) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(src, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}
