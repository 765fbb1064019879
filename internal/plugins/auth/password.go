package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// argon2id parameters tuned for a self-hosted application running on
// modest hardware (2-4 CPU cores, 2-4 GB RAM). These follow OWASP
// recommendations for argon2id: memory=64MB, iterations=3, parallelism=4.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// hashPassword creates an argon2id hash of the given password. The output
// format is: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
// This format is compatible with most argon2 libraries and allows self-
// contained verification without separate salt storage.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	// Encode to the standard PHC string format.
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash)

	return encoded, nil
}

// verifyPassword checks a plaintext password against a stored hash string.
// Current hashes are argon2id; hashes written by earlier generations of the
// service use pbkdf2-sha256 and still verify, so existing accounts keep
// working until needsRehash triggers an upgrade on their next login.
func verifyPassword(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$pbkdf2-sha256$"):
		return verifyLegacyPBKDF2(password, encodedHash)
	default:
		return false
	}
}

// needsRehash reports whether a stored hash uses a scheme older than
// argon2id and should be replaced once the plaintext is available again.
func needsRehash(encodedHash string) bool {
	return !strings.HasPrefix(encodedHash, "$argon2id$")
}

// verifyArgon2id checks a password against an argon2id PHC hash string.
func verifyArgon2id(password, encodedHash string) bool {
	// Parse the encoded hash to extract parameters, salt, and hash.
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// Compute the hash of the provided password with the same parameters.
	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1
}

// verifyLegacyPBKDF2 checks a password against a passlib-style
// pbkdf2-sha256 hash: $pbkdf2-sha256$<rounds>$<salt>$<checksum>, where salt
// and checksum use passlib's adapted base64 alphabet ('.' instead of '+',
// no padding).
func verifyLegacyPBKDF2(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return false
	}

	var rounds int
	if _, err := fmt.Sscanf(parts[2], "%d", &rounds); err != nil || rounds <= 0 {
		return false
	}

	salt, err := decodeAB64(parts[3])
	if err != nil {
		return false
	}

	expected, err := decodeAB64(parts[4])
	if err != nil {
		return false
	}

	computed := pbkdf2.Key([]byte(password), salt, rounds, len(expected), sha256.New)

	return subtle.ConstantTimeCompare(expected, computed) == 1
}

// decodeAB64 decodes passlib's adapted base64 encoding.
func decodeAB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}
