// Package keys derives deterministic symmetric key material from an
// authenticated identity or, for records predating identity-derived
// keys, from an explicit passphrase.
package keys

import (
	"crypto/sha256"
	"fmt"

	"github.com/vkotelnikov/credvault/internal/models"
)

// FromIdentity derives key material by hashing a stable tuple of identity
// attributes: subject id, primary contact address and account-creation
// time. The same identity always yields the same material, within a
// session and across sessions. The material is never persisted.
func FromIdentity(ident *models.Identity) ([]byte, error) {
	if ident == nil || ident.ID == "" {
		return nil, models.ErrAuthenticationRequired
	}
	tuple := fmt.Sprintf("%s|%s|%d", ident.ID, ident.Contact, ident.CreatedAt.UTC().Unix())
	sum := sha256.Sum256([]byte(tuple))
	return sum[:], nil
}

// FromPassphrase derives key material from an explicit passphrase.
// This is the legacy strategy: records created before identity-derived
// keys existed depend on it for decryption, so it stays indefinitely.
func FromPassphrase(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}
