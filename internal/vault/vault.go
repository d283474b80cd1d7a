// Package vault encrypts account secrets at rest. The cipher key lives
// in the OS keyring, so a copied accounts file is undecryptable for any
// other user or machine.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/99designs/keyring"
)

const (
	serviceName = "mailpdf"
	keyItem     = "vault-key"
	keySize     = 32 // AES-256
)

// ErrCryptoFailure indicates a secret could not be decrypted, typically
// because the ciphertext is malformed or was protected under a different
// key (store file copied from another user/machine).
var ErrCryptoFailure = errors.New("secret decryption failed")

// Vault protects and unprotects secret strings with AES-256-GCM.
type Vault struct {
	key []byte
}

// New creates a Vault with an explicit key. Keys shorter than 32 bytes
// are zero-padded.
func New(key []byte) *Vault {
	k := make([]byte, keySize)
	copy(k, key)
	return &Vault{key: k}
}

// Open loads the vault key from the OS keyring, generating and storing
// a fresh random key on first use.
func Open() (*Vault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailpdf/keys",
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	item, err := ring.Get(keyItem)
	if err == nil {
		return New(item.Data), nil
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, fmt.Errorf("reading vault key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating vault key: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: keyItem, Data: key}); err != nil {
		return nil, fmt.Errorf("storing vault key: %w", err)
	}
	return New(key), nil
}

// Protect encrypts plain and returns a base64 opaque string. The empty
// string maps to the empty string.
func (v *Vault) Protect(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("protect: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("protect: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("protect: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect decrypts an opaque string produced by Protect. The empty
// string maps to the empty string. Malformed or foreign-key input fails
// with ErrCryptoFailure.
func (v *Vault) Unprotect(opaque string) (string, error) {
	if opaque == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return "", ErrCryptoFailure
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", ErrCryptoFailure
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrCryptoFailure
	}

	if len(sealed) < gcm.NonceSize() {
		return "", ErrCryptoFailure
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCryptoFailure
	}
	return string(plain), nil
}
