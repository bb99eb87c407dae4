package store

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/attendly/faceattend/pkg/encoding"
)

const (
	nonceSize = 24
	keySize   = 32
)

// deriveKey derives the encoding encryption key from machine-specific
// information, tying the stored biometrics to this host.
func deriveKey() ([keySize]byte, error) {
	var key [keySize]byte
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("faceattend-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])
	return key, nil
}

// sealVector serializes a vector and encrypts it when encryption is on.
func (s *Store) sealVector(v encoding.Vector) ([]byte, error) {
	plain := vectorBytes(v)
	if !s.encrypted {
		return plain, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// openVector decrypts (when enabled) and deserializes a vector blob.
func (s *Store) openVector(blob []byte) (encoding.Vector, error) {
	if !s.encrypted {
		return bytesVector(blob)
	}

	if len(blob) < nonceSize {
		return encoding.Vector{}, ErrEncryption
	}
	var nonce [nonceSize]byte
	copy(nonce[:], blob[:nonceSize])

	plain, ok := secretbox.Open(nil, blob[nonceSize:], &nonce, &s.key)
	if !ok {
		return encoding.Vector{}, ErrEncryption
	}
	return bytesVector(plain)
}
