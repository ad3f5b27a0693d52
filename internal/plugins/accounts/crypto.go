package accounts

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// errShortCiphertext is returned when stored bytes cannot hold a nonce.
var errShortCiphertext = errors.New("ciphertext too short")

// passwordCipher seals SMTP passwords with AES-256-GCM. The key is the
// SHA-256 of the application secret so any secret length works. Sealed
// output is [nonce][ciphertext+tag].
type passwordCipher struct {
	aead cipher.AEAD
}

func newPasswordCipher(secret string) (*passwordCipher, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &passwordCipher{aead: aead}, nil
}

// seal encrypts a password. Empty input yields nil so "no password" is
// stored as NULL.
func (p *passwordCipher) seal(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, []byte(password), nil), nil
}

// open reverses seal.
func (p *passwordCipher) open(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	n := p.aead.NonceSize()
	if len(sealed) < n {
		return "", errShortCiphertext
	}
	plain, err := p.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plain), nil
}
