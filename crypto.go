package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Container layout: salt (32) + nonce (16) + tag (16) + ciphertext.
// There is no version byte or magic number, and the browser-side decryptor
// reads the same layout, so none of these values may change.
const (
	saltSize   = 32
	nonceSize  = 16
	tagSize    = 16
	keySize    = 32 // AES-256
	iterations = 100000

	headerSize = saltSize + nonceSize + tagSize
)

// randReader is the entropy source for salts and nonces.
var randReader io.Reader = rand.Reader

// deriveKey derives a 256-bit key from a password using PBKDF2-HMAC-SHA256
func deriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// seal encrypts plaintext with AES-256-GCM under a key derived from password.
// Returns: salt (32 bytes) + nonce (16 bytes) + tag (16 bytes) + ciphertext
func seal(plaintext, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, newValidationError("password", ErrEmptyPassword)
	}

	blob := make([]byte, headerSize+len(plaintext))
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]

	if _, err := io.ReadFull(randReader, salt); err != nil {
		return nil, newEncryptionError("generate salt", err)
	}
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, newEncryptionError("generate nonce", err)
	}

	key := deriveKey(password, salt)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, newEncryptionError("init cipher", err)
	}

	// GCM appends the tag after the ciphertext; the container wants it first.
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	n := len(sealed) - tagSize
	copy(blob[saltSize+nonceSize:headerSize], sealed[n:])
	copy(blob[headerSize:], sealed[:n])

	return blob, nil
}

// checkContainer rejects blobs that cannot hold salt, nonce and tag
func checkContainer(blob []byte) error {
	if len(blob) < headerSize {
		return &MalformedContainerError{
			Size:    len(blob),
			Message: fmt.Sprintf("need at least %d bytes for salt, nonce and tag", headerSize),
		}
	}
	return nil
}

// open reverses seal. Nothing is returned unless the tag verifies.
func open(blob, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, newValidationError("password", ErrEmptyPassword)
	}

	if err := checkContainer(blob); err != nil {
		return nil, err
	}

	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+nonceSize]
	tag := blob[saltSize+nonceSize : headerSize]
	ciphertext := blob[headerSize:]

	key := deriveKey(password, salt)
	defer zeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, newEncryptionError("init cipher", err)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &AuthenticationError{Message: "wrong password or file has been modified"}
	}

	return plaintext, nil
}
