// Package auth provides password hashing, bearer-session validation, and
// login throttling, grounded on the original implementation's
// api/middleware/{auth.rs,login_attempt.rs} for exact semantics (this
// system has no oauth2-proxy upstream to delegate to, unlike the teacher).
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
)

// Argon2id parameters. time=1, memory=64MiB, parallelism=4 keep
// single-request login latency low under the service's worker-pool model.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword returns an encoded Argon2id hash in the standard
// $argon2id$v=19$m=...,t=...,p=...$salt$hash form.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperrors.Internal("AUTH_SALT_GENERATION_FAILED", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
	return encoded, nil
}

// VerifyPassword checks password against an encoded hash produced by
// HashPassword, using a constant-time comparison on the derived key.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, apperrors.Validation("AUTH_MALFORMED_HASH", "unrecognized password hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, apperrors.Validation("AUTH_MALFORMED_HASH", "unrecognized password hash version")
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, apperrors.Validation("AUTH_MALFORMED_HASH", "unrecognized password hash params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, apperrors.Validation("AUTH_MALFORMED_HASH", "invalid salt encoding")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, apperrors.Validation("AUTH_MALFORMED_HASH", "invalid hash encoding")
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
