package cryptobox

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func testKey(t *testing.T) []byte {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	box, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plaintext := []byte("tenant object-store secret")
	wire, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := box.Decrypt(wire)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}

	if parts := strings.Split(wire, "."); len(parts) != 3 {
		t.Fatalf("wire format expected 3 fields, got %d: %q", len(parts), wire)
	}
}

func TestDecrypt_WrongFieldCount(t *testing.T) {
	box, _ := New(testKey(t))
	if _, err := box.Decrypt("onlyonefield"); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecrypt_TamperedTagFailsVerification(t *testing.T) {
	box, _ := New(testKey(t))
	wire, _ := box.Encrypt([]byte("secret"))
	parts := strings.Split(wire, ".")
	parts[1] = "AAAAAAAAAAAAAAAAAAAAAA==" // wrong tag, still 16 bytes decoded
	tampered := strings.Join(parts, ".")

	if _, err := box.Decrypt(tampered); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestDecrypt_WrongKeyFailsVerification(t *testing.T) {
	box, _ := New(testKey(t))
	wire, _ := box.Encrypt([]byte("secret"))

	other, _ := New(testKey(t))
	if _, err := other.Decrypt(wire); err != ErrInvalidCiphertext {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestNew_RejectsWrongKeySize(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Fatalf("expected error for 16-byte key")
	}
}
