package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotelnikov/credvault/internal/keys"
	"github.com/vkotelnikov/credvault/internal/models"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := keys.FromPassphrase("test passphrase")

	cases := []struct {
		name      string
		plaintext string
	}{
		{"short", "p@ss"},
		{"empty", ""},
		{"unicode", "пароль-🔑"},
		{"long", strings.Repeat("secret ", 1000)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Encrypt([]byte(tc.plaintext), key)
			require.NoError(t, err)

			got, err := Decrypt(env, key)
			require.NoError(t, err)
			assert.Equal(t, tc.plaintext, string(got))
		})
	}
}

func TestEncrypt_SemanticSecurity(t *testing.T) {
	key := keys.FromPassphrase("test passphrase")
	plaintext := []byte("identical plaintext")

	first, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	second, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEncrypt_EnvelopeSizes(t *testing.T) {
	env, err := Encrypt([]byte("x"), keys.FromPassphrase("k"))
	require.NoError(t, err)

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	require.NoError(t, err)
	assert.Len(t, salt, 16)

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	key := keys.FromPassphrase("test passphrase")
	env, err := Encrypt([]byte("sensitive"), key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	require.NoError(t, err)
	raw[0] ^= 0x01
	env.Ciphertext = base64.StdEncoding.EncodeToString(raw)

	_, err = Decrypt(env, key)
	assert.ErrorIs(t, err, models.ErrDecryptionFailed)
}

func TestDecrypt_TamperedIV(t *testing.T) {
	key := keys.FromPassphrase("test passphrase")
	env, err := Encrypt([]byte("sensitive"), key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x80
	env.IV = base64.StdEncoding.EncodeToString(raw)

	_, err = Decrypt(env, key)
	assert.ErrorIs(t, err, models.ErrDecryptionFailed)
}

func TestDecrypt_WrongKey(t *testing.T) {
	env, err := Encrypt([]byte("sensitive"), keys.FromPassphrase("key one"))
	require.NoError(t, err)

	_, err = Decrypt(env, keys.FromPassphrase("key two"))
	assert.ErrorIs(t, err, models.ErrDecryptionFailed)
}

func TestDecrypt_PartialEnvelope(t *testing.T) {
	key := keys.FromPassphrase("test passphrase")
	env, err := Encrypt([]byte("sensitive"), key)
	require.NoError(t, err)

	cases := []struct {
		name string
		env  models.Envelope
	}{
		{"missing salt", models.Envelope{Ciphertext: env.Ciphertext, IV: env.IV}},
		{"missing iv", models.Envelope{Ciphertext: env.Ciphertext, Salt: env.Salt}},
		{"missing ciphertext", models.Envelope{IV: env.IV, Salt: env.Salt}},
		{"all empty", models.Envelope{}},
		{"garbage base64", models.Envelope{Ciphertext: "!!!", IV: env.IV, Salt: env.Salt}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decrypt(tc.env, key)
			assert.ErrorIs(t, err, models.ErrDecryptionFailed)
		})
	}
}

func TestDecrypt_LegacyPassphraseKey(t *testing.T) {
	// Records encrypted under the passphrase strategy must stay readable.
	legacy := keys.FromPassphrase("pre-identity passphrase")
	env, err := Encrypt([]byte("old record"), legacy)
	require.NoError(t, err)

	got, err := Decrypt(env, keys.FromPassphrase("pre-identity passphrase"))
	require.NoError(t, err)
	assert.Equal(t, "old record", string(got))
}

func TestGeneratePassword(t *testing.T) {
	p1, err := GeneratePassword(32)
	require.NoError(t, err)
	assert.Len(t, p1, 32)

	p2, err := GeneratePassword(32)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	for _, r := range p1 {
		assert.Contains(t, passwordAlphabet, string(r))
	}

	_, err = GeneratePassword(0)
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	h1 := Hash("value")
	h2 := Hash("value")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, Hash("other"))
	assert.NotContains(t, h1, "value")
}
