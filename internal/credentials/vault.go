// Package credentials stores the provider API key encrypted at rest. The key
// is sealed with AES-256-GCM under a key derived from the user's passphrase
// via PBKDF2, and written to a single JSON envelope file.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Iterations follows the current OWASP recommendation for
// PBKDF2-HMAC-SHA256.
const pbkdf2Iterations = 600_000

const (
	keyLen   = 32 // AES-256
	saltLen  = 16
	fileMode = 0o600
)

// ErrNotFound is returned by Load when no credential has been saved yet.
var ErrNotFound = errors.New("no stored credential")

// ErrDecrypt is returned by Load when the envelope cannot be opened, most
// commonly because the passphrase is wrong.
var ErrDecrypt = errors.New("credential decryption failed")

// envelope is the on-disk format. Salt and nonce are public; only the
// ciphertext is secret.
type envelope struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Iterations int    `json:"iterations"`
}

// Vault seals and unseals a single credential at a fixed file path.
type Vault struct {
	path       string
	passphrase string
}

// NewVault creates a vault rooted at path. The file and its parent
// directory are created lazily on the first Save.
func NewVault(path, passphrase string) *Vault {
	return &Vault{path: path, passphrase: passphrase}
}

// Save encrypts the credential and writes the envelope, replacing any
// previous one. A fresh salt and nonce are generated on every save.
func (v *Vault) Save(credential string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credentials: generate salt: %w", err)
	}

	aead, err := v.aead(salt, pbkdf2Iterations)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credentials: generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(credential), nil)

	env := envelope{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Iterations: pbkdf2Iterations,
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials: marshal envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("credentials: create vault directory: %w", err)
	}
	if err := os.WriteFile(v.path, raw, fileMode); err != nil {
		return fmt.Errorf("credentials: write envelope: %w", err)
	}
	return nil
}

// Load reads the envelope and decrypts the credential.
// Returns [ErrNotFound] when no envelope exists and [ErrDecrypt] when the
// passphrase does not open it.
func (v *Vault) Load() (string, error) {
	raw, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("credentials: read envelope: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("credentials: parse envelope: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return "", fmt.Errorf("credentials: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("credentials: decode nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("credentials: decode ciphertext: %w", err)
	}

	iterations := env.Iterations
	if iterations <= 0 {
		iterations = pbkdf2Iterations
	}

	aead, err := v.aead(salt, iterations)
	if err != nil {
		return "", err
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce length", ErrDecrypt)
	}

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// Has reports whether an envelope file exists, without attempting to open it.
func (v *Vault) Has() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Clear removes the stored envelope. Clearing an empty vault is a no-op.
func (v *Vault) Clear() error {
	if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credentials: remove envelope: %w", err)
	}
	return nil
}

// aead derives the AES-256 key from the passphrase and salt and wraps it in
// a GCM cipher.
func (v *Vault) aead(salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(v.passphrase), salt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credentials: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credentials: gcm: %w", err)
	}
	return aead, nil
}
