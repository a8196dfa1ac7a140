package destination

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sealer encrypts and decrypts per-user destination credentials at rest.
//
// Each integration row stores a random salt; the sealing key is derived from
// the server master secret and that salt with HKDF-SHA256, so a leaked row
// cannot be decrypted for another user and rotating the master secret
// invalidates everything at once.
type Sealer struct {
	masterSecret []byte
}

// NewSealer creates a sealer from the server master secret. The secret must
// be at least 32 bytes.
func NewSealer(masterSecret []byte) (*Sealer, error) {
	if len(masterSecret) < 32 {
		return nil, fmt.Errorf("master secret too short: need at least 32 bytes, got %d", len(masterSecret))
	}
	return &Sealer{masterSecret: masterSecret}, nil
}

const saltSize = 16

// hkdf info string binds derived keys to this use.
var sealInfo = []byte("rmirror/integration-credentials/v1")

// NewSalt generates a fresh per-integration salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

func (s *Sealer) deriveKey(salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, s.masterSecret, salt, sealInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// Seal encrypts the credential settings with AES-256-GCM under the key
// derived from salt. The nonce is prepended to the returned blob.
func (s *Sealer) Seal(settings map[string]string, salt []byte) ([]byte, error) {
	plaintext, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(blob, salt []byte) (map[string]string, error) {
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("credential blob too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	var settings map[string]string
	if err := json.Unmarshal(plaintext, &settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return settings, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}
