// Package security generates and verifies operator API keys.
package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	KeyPrefix = "nq_"
	Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	keyLength = 32
)

// GenerateKey returns a new random API key and its hash. Only the hash is
// stored on the server.
func GenerateKey() (key, hash string, err error) {
	id, err := gonanoid.Generate(Alphabet, keyLength)
	if err != nil {
		return "", "", err
	}
	key = KeyPrefix + id
	return key, HashKey(key), nil
}

// HashKey returns the hex SHA-256 of key.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}

// Verify reports whether key hashes to hash.
func Verify(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashKey(key)), []byte(hash)) == 1
}
