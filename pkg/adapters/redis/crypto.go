package redis

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// Cipher encrypts session payloads at rest. Journey sessions carry mobile
// numbers and account references, so a shared Redis should never see them
// in the clear.
type Cipher struct {
	// active is the key used for encrypting new payloads.
	active []byte

	// fallbacks are old keys tried when decryption with the active key
	// fails. This enables zero-downtime key rotation.
	fallbacks [][]byte
}

// NewCipher builds an AES-256-GCM cipher. Keys must be 32 bytes; fallback
// keys are tried in order on decryption.
func NewCipher(activeKey []byte, fallbackKeys ...[]byte) (*Cipher, error) {
	if len(activeKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	for _, k := range fallbackKeys {
		if len(k) != 32 {
			return nil, errors.New("fallback keys must be 32 bytes (AES-256)")
		}
	}
	return &Cipher{active: activeKey, fallbacks: fallbackKeys}, nil
}

func (c *Cipher) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.active)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open tries the active key first, then each fallback in order.
func (c *Cipher) open(ciphertext []byte) ([]byte, error) {
	if plain, err := openWithKey(ciphertext, c.active); err == nil {
		return plain, nil
	}
	for _, key := range c.fallbacks {
		if plain, err := openWithKey(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func openWithKey(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
