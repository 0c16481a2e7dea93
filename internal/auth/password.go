// Package auth implements the password KDF: PBKDF2-SHA256 with a
// per-password random salt, stored as iterations$salt$digest.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 260_000
	saltSize   = 16
	keySize    = 32
)

// HashPassword derives a stretched digest for password with a fresh
// random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	return fmt.Sprintf("%d$%s$%s",
		iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// VerifyPassword reports whether password matches the stored hash.
// Malformed hashes verify as false with an error.
func VerifyPassword(stored, password string) (bool, error) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return false, fmt.Errorf("parsing password hash: want 3 fields, got %d", len(parts))
	}
	iters, err := strconv.Atoi(parts[0])
	if err != nil || iters <= 0 {
		return false, fmt.Errorf("parsing password hash iterations %q", parts[0])
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decoding password hash salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("decoding password hash digest: %w", err)
	}
	got := pbkdf2.Key([]byte(password), salt, iters, len(want), sha256.New)
	return hmac.Equal(got, want), nil
}
