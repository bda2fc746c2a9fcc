package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// DataProtector encrypts values before they are stored, using AES-GCM with the ENCRYPTIONKEY.
type DataProtector struct {
	aead cipher.AEAD
}

// NewDataProtector creates a DataProtector for a 16, 24 or 32 bytes key.
func NewDataProtector(key string) (*DataProtector, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &DataProtector{aead: aead}, nil
}

// Encrypt returns the hex encoded nonce and ciphertext of plaintext.
func (d *DataProtector) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	// The nonce is stored as a prefix of the sealed data.
	return hex.EncodeToString(d.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

func (d *DataProtector) Decrypt(encrypted string) ([]byte, error) {
	enc, err := hex.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}
	nonceSize := d.aead.NonceSize()
	if len(enc) < nonceSize {
		return nil, fmt.Errorf("encrypted value is too short")
	}
	nonce, ciphertext := enc[:nonceSize], enc[nonceSize:]
	return d.aead.Open(nil, nonce, ciphertext, nil)
}
