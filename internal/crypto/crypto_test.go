package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"

	"golang.org/x/crypto/hkdf"
)

func TestPlainSession(t *testing.T) {
	session, output, err := NewSession("plain", nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	if len(output) != 0 {
		t.Errorf("Expected empty output, got %v", output)
	}

	if session.Algorithm() != "plain" {
		t.Errorf("Expected algorithm 'plain', got %s", session.Algorithm())
	}
}

func TestPlainEncryptDecrypt(t *testing.T) {
	session, _, err := NewSession("plain", nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	plaintext := []byte("hunter2")

	params, ciphertext, err := session.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if len(params) != 0 {
		t.Errorf("Expected empty params, got %v", params)
	}

	if !bytes.Equal(ciphertext, plaintext) {
		t.Errorf("Expected ciphertext to equal plaintext for plain algorithm")
	}

	decrypted, err := session.Decrypt(params, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Expected decrypted to equal plaintext")
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, _, err := NewSession("rot13", nil)
	if err == nil {
		t.Error("Expected error for unsupported algorithm")
	}
}

func TestSupportedAlgorithms(t *testing.T) {
	algorithms := SupportedAlgorithms()
	if len(algorithms) != 2 {
		t.Errorf("Expected two supported algorithms, got %v", algorithms)
	}
}

// clientSide simulates the client half of the DH exchange: it passes the
// client public value to daemonOutput and returns the AES key derived
// from the daemon's reply.
func clientSide(t *testing.T, daemonOutput func(clientPublic []byte) []byte) []byte {
	t.Helper()

	priv, err := rand.Int(rand.Reader, dhPrime)
	if err != nil {
		t.Fatalf("rand.Int failed: %v", err)
	}
	pub := new(big.Int).Exp(dhGenerator, priv, dhPrime)

	serverPub := daemonOutput(padToGroup(pub))
	if len(serverPub) != dhGroupBytes {
		t.Fatalf("Expected %d byte server public value, got %d", dhGroupBytes, len(serverPub))
	}

	shared := new(big.Int).Exp(new(big.Int).SetBytes(serverPub), priv, dhPrime)
	key := make([]byte, 16)
	if _, err := hkdf.New(sha256.New, padToGroup(shared), nil, nil).Read(key); err != nil {
		t.Fatalf("client HKDF failed: %v", err)
	}
	return key
}

func TestDHKeyExchange(t *testing.T) {
	var session *DHSession

	clientKey := clientSide(t, func(clientPublic []byte) []byte {
		s, output, err := NewDHSession(clientPublic)
		if err != nil {
			t.Fatalf("NewDHSession failed: %v", err)
		}
		session = s
		return output
	})
	defer session.Close()

	if !bytes.Equal(clientKey, session.aesKey) {
		t.Error("Client and daemon derived different keys")
	}
}

func TestDHEncryptDecrypt(t *testing.T) {
	var session *DHSession
	clientSide(t, func(clientPublic []byte) []byte {
		s, output, err := NewDHSession(clientPublic)
		if err != nil {
			t.Fatalf("NewDHSession failed: %v", err)
		}
		session = s
		return output
	})
	defer session.Close()

	cases := [][]byte{
		[]byte("hunter2"),
		[]byte(""),
		bytes.Repeat([]byte{0xab}, 16),
		bytes.Repeat([]byte{0x00}, 33),
	}

	for _, plaintext := range cases {
		iv, ciphertext, err := session.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if len(iv) != aes.BlockSize {
			t.Errorf("Expected %d byte IV, got %d", aes.BlockSize, len(iv))
		}
		if len(ciphertext)%aes.BlockSize != 0 {
			t.Errorf("Ciphertext not block aligned: %d", len(ciphertext))
		}
		// PKCS7 always pads, so ciphertext is strictly longer
		if len(ciphertext) <= len(plaintext) {
			t.Errorf("Expected padding to extend %d plaintext bytes, got %d", len(plaintext), len(ciphertext))
		}

		decrypted, err := session.Decrypt(iv, ciphertext)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Errorf("Round trip mismatch: got %v, want %v", decrypted, plaintext)
		}
	}
}

func TestDHDecryptBadInput(t *testing.T) {
	var session *DHSession
	clientSide(t, func(clientPublic []byte) []byte {
		s, output, err := NewDHSession(clientPublic)
		if err != nil {
			t.Fatalf("NewDHSession failed: %v", err)
		}
		session = s
		return output
	})
	defer session.Close()

	if _, err := session.Decrypt([]byte{1, 2, 3}, make([]byte, 16)); err == nil {
		t.Error("Expected error for short IV")
	}
	if _, err := session.Decrypt(make([]byte, 16), make([]byte, 15)); err == nil {
		t.Error("Expected error for unaligned ciphertext")
	}
	if _, err := session.Decrypt(make([]byte, 16), nil); err == nil {
		t.Error("Expected error for empty ciphertext")
	}
}

func TestDHDecryptBadPadding(t *testing.T) {
	var session *DHSession
	clientSide(t, func(clientPublic []byte) []byte {
		s, output, err := NewDHSession(clientPublic)
		if err != nil {
			t.Fatalf("NewDHSession failed: %v", err)
		}
		session = s
		return output
	})
	defer session.Close()

	// Encrypt a block of garbage directly, bypassing padding
	block, err := aes.NewCipher(session.aesKey)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	iv := make([]byte, aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize)
	// All-zero plaintext decrypts to a zero final byte, which is
	// invalid PKCS7
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, make([]byte, aes.BlockSize))

	if _, err := session.Decrypt(iv, ciphertext); err == nil {
		t.Error("Expected error for invalid padding")
	}
}

func TestDHPublicValueEncoding(t *testing.T) {
	// Small client public values must still produce 128-byte outputs
	// with leading zeros preserved.
	small := padToGroup(big.NewInt(2))
	session, output, err := NewDHSession(small)
	if err != nil {
		t.Fatalf("NewDHSession failed: %v", err)
	}
	defer session.Close()

	if len(output) != dhGroupBytes {
		t.Errorf("Expected %d byte output, got %d", dhGroupBytes, len(output))
	}
}

func TestPKCS7Pad(t *testing.T) {
	for n := 0; n < 48; n++ {
		padded := pkcs7Pad(make([]byte, n))
		add := len(padded) - n
		if add < 1 || add > aes.BlockSize {
			t.Fatalf("Padding for length %d added %d bytes", n, add)
		}
		if len(padded)%aes.BlockSize != 0 {
			t.Fatalf("Padded length %d not block aligned", len(padded))
		}
		out, err := pkcs7Unpad(padded)
		if err != nil {
			t.Fatalf("Unpad failed for length %d: %v", n, err)
		}
		if len(out) != n {
			t.Fatalf("Unpad returned %d bytes, want %d", len(out), n)
		}
	}
}
