// Package keyring seals wallet private keys at rest.
//
// The AEAD key comes from the ENCRYPTION_KEY environment variable when set,
// otherwise from a key file in the data directory that is generated on first
// run. Sealed values are base64(nonce || ciphertext).
package keyring

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyFileName is the data-dir file holding the generated AEAD key.
const KeyFileName = "encryption.key"

// Keyring seals and opens credential strings with XChaCha20-Poly1305.
type Keyring struct {
	aead cipher.AEAD
}

// New builds a Keyring. base64Key, when non-empty, must decode to 32 bytes.
// Otherwise the key is read from dataDir/encryption.key, creating it with a
// fresh random key on first run.
func New(base64Key, dataDir string) (*Keyring, error) {
	var key []byte
	var err error
	if strings.TrimSpace(base64Key) != "" {
		key, err = decodeKey(base64Key)
		if err != nil {
			return nil, fmt.Errorf("environment key: %w", err)
		}
	} else {
		key, err = loadOrCreateKey(filepath.Join(dataDir, KeyFileName))
		if err != nil {
			return nil, err
		}
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build aead: %w", err)
	}
	return &Keyring{aead: aead}, nil
}

// Seal encrypts secret and returns a base64 blob safe to store.
func (k *Keyring) Seal(secret string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := k.aead.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal.
func (k *Keyring) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", errors.New("credential blob too short")
	}
	nonce, ct := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plain, err := k.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return string(plain), nil
}

func decodeKey(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key is %d bytes, want %d", len(key), chacha20poly1305.KeySize)
	}
	return key, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, derr := decodeKey(string(data))
		if derr != nil {
			return nil, fmt.Errorf("key file %s: %w", path, derr)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}
