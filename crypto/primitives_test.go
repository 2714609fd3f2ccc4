package crypto

import (
	"bytes"
	"testing"
)

func TestConstantTimeEqEqualBytes(t *testing.T) {
	a := []byte("identical secret")
	b := []byte("identical secret")
	if !ConstantTimeEq(a, b) {
		t.Fatal("expected equal byte slices to compare equal")
	}
}

func TestConstantTimeEqDifferentBytes(t *testing.T) {
	if ConstantTimeEq([]byte("aaaa"), []byte("aaab")) {
		t.Fatal("expected differing byte slices to compare unequal")
	}
}

func TestConstantTimeEqDifferentLengths(t *testing.T) {
	if ConstantTimeEq([]byte("short"), []byte("a longer string")) {
		t.Fatal("expected differently-lengthed slices to compare unequal")
	}
}

func TestAES256GCMRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("seal me and open me back up")

	sealed, err := AES256GCMSeal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed output must not contain the plaintext verbatim")
	}

	opened, err := AES256GCMOpen(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestAES256GCMOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	sealed, err := AES256GCMSeal(key, []byte("authentic data"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := AES256GCMOpen(key, sealed); err == nil {
		t.Fatal("expected tampered ciphertext to fail authentication")
	}
}

func TestAES256GCMSealProducesDistinctNoncesPerCall(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("same plaintext every time")

	a, err := AES256GCMSeal(key, plaintext)
	if err != nil {
		t.Fatalf("seal a: %v", err)
	}
	b, err := AES256GCMSeal(key, plaintext)
	if err != nil {
		t.Fatalf("seal b: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("sealing the same plaintext twice must not produce identical ciphertext (nonce reuse)")
	}
}

func TestPBKDF2HMACSha256Deterministic(t *testing.T) {
	password := []byte("correct horse battery staple")
	salt := []byte("fixed salt value")

	a := PBKDF2HMACSha256(password, salt, 1000, 32)
	b := PBKDF2HMACSha256(password, salt, 1000, 32)
	if !bytes.Equal(a, b) {
		t.Fatal("PBKDF2 must be deterministic for the same inputs")
	}

	c := PBKDF2HMACSha256(password, []byte("different salt"), 1000, 32)
	if bytes.Equal(a, c) {
		t.Fatal("different salts must produce different derived keys")
	}
}

func TestRandBytesLengthAndVariance(t *testing.T) {
	a, err := RandBytes(32)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(a))
	}

	b, err := RandBytes(32)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two independent RandBytes calls produced identical output")
	}
}
