package crypto

import (
	dbtypes "github.com/qba10/secretsd/internal/dbus"
)

// PlainSession implements the "plain" algorithm (no transport encryption)
type PlainSession struct{}

// NewPlainSession creates a new plain text session. The exchange output
// is empty.
func NewPlainSession() (*PlainSession, []byte, error) {
	return &PlainSession{}, []byte{}, nil
}

// Algorithm returns "plain"
func (s *PlainSession) Algorithm() string {
	return dbtypes.AlgorithmPlain
}

// Encrypt returns the plaintext as-is with an empty IV
func (s *PlainSession) Encrypt(plaintext []byte) (parameters, ciphertext []byte, err error) {
	return []byte{}, plaintext, nil
}

// Decrypt returns the ciphertext as-is
func (s *PlainSession) Decrypt(parameters, ciphertext []byte) (plaintext []byte, err error) {
	return ciphertext, nil
}

// Close is a no-op for plain sessions
func (s *PlainSession) Close() error {
	return nil
}
