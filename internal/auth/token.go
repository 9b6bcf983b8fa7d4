package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// sessionSecretBytes is the entropy of the bearer secret (256 bits)
const sessionSecretBytes = 32

// GenerateSessionSecret creates the random bearer secret for a new session.
// The plaintext is returned to the client once; only its hash is stored.
func GenerateSessionSecret() (string, error) {
	buf := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSessionSecret returns the SHA-256 hex digest stored server-side.
// Unlike passwords, the secret already carries full entropy, so a fast
// hash is sufficient and keeps validation off the bcrypt hot path.
func HashSessionSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a presented secret against a stored hash in
// constant time.
func SecretMatches(storedHash, secret string) bool {
	presented := HashSessionSecret(secret)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(presented)) == 1
}

// ParseSessionToken splits the wire form "<sessionID>.<secret>" into its
// parts. The session ID is public; the secret is not.
func ParseSessionToken(token string) (sessionID, secret string, err error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed session token")
	}
	return parts[0], parts[1], nil
}
