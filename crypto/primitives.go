package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// csprng is the source used by RandBytes. Tests may override it to get
// deterministic output; production code should never touch it.
var csprng io.Reader = rand.Reader

var ErrRandBytesFailed = errors.New("failed reading from random source")

// RandBytes returns n cryptographically random bytes from the platform CSPRNG.
func RandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(csprng, buf); err != nil {
		return nil, ErrRandBytesFailed
	}
	return buf, nil
}

func Sha256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func Sha512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

func HMACSha256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func HMACSha512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func PBKDF2HMACSha256(password, salt []byte, iters, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iters, keyLen, sha256.New)
}

func PBKDF2HMACSha512(password, salt []byte, iters, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iters, keyLen, sha512.New)
}

// AES256GCMSeal encrypts plaintext with a freshly-generated 12-byte nonce,
// which it prepends to the returned ciphertext.
func AES256GCMSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// AES256GCMOpen expects the same nonce-prepended layout AES256GCMSeal produces.
func AES256GCMOpen(key, ciphertext []byte) ([]byte, error) {
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
	nonce, ct := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}

// ConstantTimeEq reports whether a and b are equal in time proportional to
// their length, regardless of where they first differ.
func ConstantTimeEq(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
