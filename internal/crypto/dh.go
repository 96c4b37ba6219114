package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// AlgorithmDHAES identifies DH key agreement over MODP-1024 with
// AES-128-CBC transport encryption.
const AlgorithmDHAES = "dh-ietf1024-sha256-aes128-cbc-pkcs7"

// dhGroupBytes is the wire size of public values and shared secrets:
// 1024 bits, big-endian, leading zeros preserved.
const dhGroupBytes = 128

// RFC 2409 MODP group 2 (1024-bit), generator 2
var (
	dhPrime = func() *big.Int {
		p, _ := new(big.Int).SetString(
			"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1"+
				"29024E088A67CC74020BBEA63B139B22514A08798E3404DD"+
				"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245"+
				"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED"+
				"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381"+
				"FFFFFFFFFFFFFFFF", 16)
		return p
	}()
	dhGenerator = big.NewInt(2)
)

// DHSession implements DH key exchange with AES-128-CBC encryption
type DHSession struct {
	privateKey *big.Int
	publicKey  *big.Int
	aesKey     []byte
}

// NewDHSession creates a new DH session. clientPublic is the client's
// public value as big-endian bytes. The returned output is our public
// value encoded as exactly 128 bytes.
func NewDHSession(clientPublic []byte) (*DHSession, []byte, error) {
	privateKey, err := rand.Int(rand.Reader, dhPrime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	publicKey := new(big.Int).Exp(dhGenerator, privateKey, dhPrime)

	clientPub := new(big.Int).SetBytes(clientPublic)
	sharedSecret := new(big.Int).Exp(clientPub, privateKey, dhPrime)

	// HKDF-SHA256 with empty salt and empty info over the group-width
	// encoding of the shared secret.
	hkdfReader := hkdf.New(sha256.New, padToGroup(sharedSecret), nil, nil)
	aesKey := make([]byte, 16)
	if _, err := hkdfReader.Read(aesKey); err != nil {
		return nil, nil, fmt.Errorf("HKDF failed: %w", err)
	}

	session := &DHSession{
		privateKey: privateKey,
		publicKey:  publicKey,
		aesKey:     aesKey,
	}

	return session, padToGroup(publicKey), nil
}

// padToGroup encodes v as exactly 128 big-endian bytes, zero-padded on
// the left.
func padToGroup(v *big.Int) []byte {
	raw := v.Bytes()
	padded := make([]byte, dhGroupBytes)
	copy(padded[dhGroupBytes-len(raw):], raw)
	return padded
}

// Algorithm returns the algorithm name
func (s *DHSession) Algorithm() string {
	return AlgorithmDHAES
}

// Encrypt encrypts plaintext using AES-128-CBC with PKCS7 padding.
// Returns a fresh random IV as parameters and the ciphertext.
func (s *DHSession) Encrypt(plaintext []byte) (parameters, ciphertext []byte, err error) {
	block, err := aes.NewCipher(s.aesKey)
	if err != nil {
		return nil, nil, err
	}

	padded := pkcs7Pad(plaintext)

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	ciphertext = make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)

	return iv, ciphertext, nil
}

// Decrypt decrypts ciphertext using AES-128-CBC with PKCS7 padding.
// parameters contains the IV.
func (s *DHSession) Decrypt(parameters, ciphertext []byte) (plaintext []byte, err error) {
	if len(parameters) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length: %d", len(parameters))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("invalid ciphertext length: %d", len(ciphertext))
	}

	block, err := aes.NewCipher(s.aesKey)
	if err != nil {
		return nil, err
	}

	decrypted := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, parameters)
	mode.CryptBlocks(decrypted, ciphertext)

	return pkcs7Unpad(decrypted)
}

// Close zeroes the key material
func (s *DHSession) Close() error {
	for i := range s.aesKey {
		s.aesKey[i] = 0
	}
	return nil
}

// pkcs7Pad always adds between 1 and 16 bytes of padding
func pkcs7Pad(data []byte) []byte {
	padLen := aes.BlockSize - (len(data) % aes.BlockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty decrypted data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding: padLen=%d", padLen)
	}
	for i := len(data) - padLen; i < len(data); i++ {
		if data[i] != byte(padLen) {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
