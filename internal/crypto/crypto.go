// Package crypto implements authenticated envelope encryption for
// credential values. Key material is stretched with PBKDF2-SHA256 and a
// per-call random salt, then used with AES-256-GCM under a per-call
// random nonce. The engine is pure and stateless.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vkotelnikov/credvault/internal/models"
)

const (
	// saltSize is the envelope salt length in bytes (128 bits).
	saltSize = 16
	// nonceSize is the AES-GCM nonce length in bytes (96 bits).
	nonceSize = 12
	// keySize is the stretched AES key length in bytes (256 bits).
	keySize = 32
	// iterations is the PBKDF2 round count.
	iterations = 100_000
)

// passwordAlphabet is the character set for generated passwords.
const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789" +
	"!@#$%^&*()-_=+[]{}<>?"

// Encrypt encrypts plaintext under the given key material and returns a
// complete envelope. Every call draws a fresh salt and nonce from the
// CSPRNG, so two calls with identical inputs never produce identical
// salt, iv or ciphertext.
func Encrypt(plaintext, keyMaterial []byte) (models.Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: generate salt: %v", models.ErrEncryptionUnavailable, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return models.Envelope{}, fmt.Errorf("%w: generate nonce: %v", models.ErrEncryptionUnavailable, err)
	}

	aead, err := newAEAD(keyMaterial, salt)
	if err != nil {
		return models.Envelope{}, err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return models.Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Salt:       base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Decrypt re-derives the key from the stored salt and authenticates and
// decrypts the envelope. Any integrity-tag mismatch, whether from a wrong
// key or corrupted data, returns ErrDecryptionFailed with no signal
// distinguishing the two causes. A partial envelope fails the same way.
func Decrypt(env models.Envelope, keyMaterial []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, models.ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, models.ErrDecryptionFailed
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, models.ErrDecryptionFailed
	}

	aead, err := newAEAD(keyMaterial, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, models.ErrDecryptionFailed
	}
	return plaintext, nil
}

// newAEAD stretches keyMaterial with the given salt into an AES-256 key
// and builds a GCM AEAD. Fails closed if the primitives are unavailable.
func newAEAD(keyMaterial, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(keyMaterial, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: create cipher: %v", models.ErrEncryptionUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: create AEAD: %v", models.ErrEncryptionUnavailable, err)
	}
	return aead, nil
}

// GeneratePassword returns a CSPRNG-backed password of the given length
// drawn from a broad alphabet of upper/lower case letters, digits and
// symbols.
func GeneratePassword(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("password length must be positive, got %d", length)
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("%w: generate password: %v", models.ErrEncryptionUnavailable, err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Hash returns a hex-encoded one-way SHA-256 digest of value, for
// non-reversible comparisons.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
