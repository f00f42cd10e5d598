package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// generateSecret returns a random URL-safe token, used by `init` to
// seed auth.jwt_secret so `jqawk serve`/`jqawk token create` work
// without the operator picking a secret by hand.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// hashPassphrase bcrypt-hashes the passphrase stored alongside
// auth.jwt_secret in jqawk.yaml, gating `token create` so minting a
// bearer token requires knowing the passphrase even when jqawk.yaml
// is readable on disk.
func hashPassphrase(passphrase string) (string, error) {
	if len(passphrase) > 72 {
		return "", fmt.Errorf("passphrase exceeds maximum length of 72 bytes")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// checkPassphrase reports whether passphrase matches hash.
func checkPassphrase(passphrase, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)) == nil
}
