// Package securestore is the file-backed secret store the wallet keeps its
// mnemonic, seed and per-mint access tokens in. Every record is encrypted at
// rest with AES-256-GCM under a key either derived from a user password via
// PBKDF2-HMAC-SHA256, or randomly generated when no password is supplied; the
// latter is weaker (the key itself lives next to the data it protects) but
// keeps the wallet usable without a password prompt.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nutvault/walletcore/crypto"
)

const (
	envelopeVersion  = 0x01
	pbkdfRounds      = 200_000
	keyLen           = 32
	encExt           = ".enc"
	keyContainerFile = "keycontainer.json"
	accessTokensKind = "access_tokens"
)

// keyContainer is the sidecar file describing how to derive (or, in the
// no-password case, directly holding) the envelope key. No password-derived
// key material is ever written to disk; only the salt and round count are.
type keyContainer struct {
	Metadata    string `json:"metadata"`
	Salt        []byte `json:"salt,omitempty"`
	PBKDFRounds int    `json:"pbkdf_rounds,omitempty"`
	Key         []byte `json:"key,omitempty"`
}

// Store is a directory of encrypted records plus the key container that
// unlocks them. The directory is created with 0o700 permissions; every
// record file with 0o600.
type Store struct {
	dir string
	key []byte
}

// Open unlocks the store at dir, creating a fresh key container there if
// none exists yet. password may be empty, in which case a random key is
// generated (or, when re-opening, is read straight from the container).
func Open(dir, password string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("securestore: creating store dir: %v", err)
	}

	containerPath := filepath.Join(dir, keyContainerFile)
	data, err := os.ReadFile(containerPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		container, key, err := buildKeyContainer(password)
		if err != nil {
			return nil, err
		}
		if err := writeKeyContainer(containerPath, container); err != nil {
			return nil, err
		}
		return &Store{dir: dir, key: key}, nil
	case err != nil:
		return nil, fmt.Errorf("securestore: reading key container: %v", err)
	}

	var container keyContainer
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("securestore: parsing key container: %v", err)
	}

	var key []byte
	if len(container.Salt) > 0 {
		if password == "" {
			return nil, errors.New("securestore: password required to unlock store")
		}
		key = crypto.PBKDF2HMACSha256([]byte(password), container.Salt, container.PBKDFRounds, keyLen)
	} else {
		key = container.Key
	}

	return &Store{dir: dir, key: key}, nil
}

func buildKeyContainer(password string) (*keyContainer, []byte, error) {
	if password != "" {
		salt, err := crypto.RandBytes(32)
		if err != nil {
			return nil, nil, err
		}
		key := crypto.PBKDF2HMACSha256([]byte(password), salt, pbkdfRounds, keyLen)
		return &keyContainer{
			Metadata:    "pbkdf2-hmac-sha256",
			Salt:        salt,
			PBKDFRounds: pbkdfRounds,
		}, key, nil
	}

	key, err := crypto.RandBytes(keyLen)
	if err != nil {
		return nil, nil, err
	}
	return &keyContainer{
		Metadata: "raw random key; no password set, weaker at-rest confidentiality against filesystem theft",
		Key:      key,
	}, key, nil
}

func writeKeyContainer(path string, container *keyContainer) error {
	data, err := json.Marshal(container)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (s *Store) path(kind string) string {
	return filepath.Join(s.dir, kind+encExt)
}

// Save encrypts data and writes it under kind, overwriting any prior record.
func (s *Store) Save(kind string, data []byte) error {
	envelope, err := seal(s.key, data)
	if err != nil {
		return fmt.Errorf("securestore: sealing %q: %v", kind, err)
	}
	if err := os.WriteFile(s.path(kind), envelope, 0o600); err != nil {
		return fmt.Errorf("securestore: writing %q: %v", kind, err)
	}
	return nil
}

// Load decrypts and returns the record stored under kind.
func (s *Store) Load(kind string) ([]byte, error) {
	envelope, err := os.ReadFile(s.path(kind))
	if err != nil {
		return nil, err
	}
	plaintext, err := open(s.key, envelope)
	if err != nil {
		return nil, fmt.Errorf("securestore: opening %q: %v", kind, err)
	}
	return plaintext, nil
}

// Delete removes the record stored under kind. Deleting an absent record is
// not an error.
func (s *Store) Delete(kind string) error {
	err := os.Remove(s.path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// AccessTokens is the mint_url -> token-list record NUT-22-style mint access
// tokens are kept in, encrypted as a single envelope blob.
type AccessTokens map[string][]string

func (s *Store) SaveAccessTokens(tokens AccessTokens) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return s.Save(accessTokensKind, data)
}

func (s *Store) LoadAccessTokens() (AccessTokens, error) {
	data, err := s.Load(accessTokensKind)
	if errors.Is(err, os.ErrNotExist) {
		return AccessTokens{}, nil
	}
	if err != nil {
		return nil, err
	}
	var tokens AccessTokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// RotateMasterKey re-derives a fresh envelope key (from newPassword, or a
// fresh random key if newPassword is empty), re-encrypts every record under
// it, and atomically replaces the store directory. On any failure before the
// final rename the original directory is left untouched.
func (s *Store) RotateMasterKey(newPassword string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	plaintexts := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), encExt) {
			continue
		}
		kind := strings.TrimSuffix(entry.Name(), encExt)
		data, err := s.Load(kind)
		if err != nil {
			return fmt.Errorf("securestore: rotate: reading %q: %v", kind, err)
		}
		plaintexts[kind] = data
	}

	container, newKey, err := buildKeyContainer(newPassword)
	if err != nil {
		return err
	}

	tempDir := s.dir + ".rotate-tmp"
	if err := os.RemoveAll(tempDir); err != nil {
		return err
	}
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return err
	}

	if err := writeKeyContainer(filepath.Join(tempDir, keyContainerFile), container); err != nil {
		return err
	}
	for kind, data := range plaintexts {
		envelope, err := seal(newKey, data)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(tempDir, kind+encExt), envelope, 0o600); err != nil {
			return err
		}
	}

	backupDir := s.dir + ".rotate-old"
	if err := os.RemoveAll(backupDir); err != nil {
		return err
	}
	if err := os.Rename(s.dir, backupDir); err != nil {
		return fmt.Errorf("securestore: rotate: swapping out old store: %v", err)
	}
	if err := os.Rename(tempDir, s.dir); err != nil {
		// best-effort revert so the store is left usable under the old key
		_ = os.Rename(backupDir, s.dir)
		return fmt.Errorf("securestore: rotate: swapping in new store: %v", err)
	}
	_ = os.RemoveAll(backupDir)

	s.key = newKey
	return nil
}

// seal produces [version][nonce_len][nonce][ciphertext||tag]. AES256GCMSeal
// already prepends its nonce to the ciphertext, so sealing only needs to add
// the version and nonce-length header in front of that.
func seal(key, plaintext []byte) ([]byte, error) {
	sealed, err := crypto.AES256GCMSeal(key, plaintext)
	if err != nil {
		return nil, err
	}
	const nonceLen = 12
	out := make([]byte, 0, 2+len(sealed))
	out = append(out, envelopeVersion, byte(nonceLen))
	out = append(out, sealed...)
	return out, nil
}

func open(key, envelope []byte) ([]byte, error) {
	if len(envelope) < 2 {
		return nil, errors.New("envelope too short")
	}
	version := envelope[0]
	if version != envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", version)
	}
	nonceLen := int(envelope[1])
	rest := envelope[2:]
	if len(rest) < nonceLen {
		return nil, errors.New("envelope truncated")
	}
	return crypto.AES256GCMOpen(key, rest)
}

// SensitiveBytes wraps a decrypted secret buffer and best-effort zeroizes it
// on Close: zero, then random, then zero again. This cannot defeat compiler
// reordering or copies the hardware/runtime made elsewhere in memory; it
// only bounds the window the plaintext sits at a known address.
type SensitiveBytes struct {
	b []byte
}

func NewSensitiveBytes(b []byte) *SensitiveBytes {
	return &SensitiveBytes{b: b}
}

func (s *SensitiveBytes) Bytes() []byte {
	return s.b
}

func (s *SensitiveBytes) Close() error {
	if s.b == nil {
		return nil
	}
	for i := range s.b {
		s.b[i] = 0
	}
	if _, err := io.ReadFull(rand.Reader, s.b); err != nil {
		return err
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
	return nil
}

// ErrUnsupportedOperation is returned by KeychainBackend implementations on
// platforms with no OS keychain / secret-service integration wired in.
var ErrUnsupportedOperation = errors.New("keychain backend not supported on this platform")

// KeychainBackend is the capability interface an OS-provided secret store
// (macOS Keychain, Secret Service, Windows Credential Manager) would
// implement. Items are keyed by "<service>.<kind>"; no envelope versioning
// is needed since the OS backend provides its own integrity guarantees.
type KeychainBackend interface {
	Save(service, kind string, data []byte) error
	Load(service, kind string) ([]byte, error)
	Delete(service, kind string) error
}

// UnsupportedKeychainBackend is the default KeychainBackend: every operation
// fails with ErrUnsupportedOperation. It lets callers depend on
// KeychainBackend unconditionally without a platform build tag for each OS
// integration this module does not (yet) ship.
type UnsupportedKeychainBackend struct{}

func (UnsupportedKeychainBackend) Save(service, kind string, data []byte) error {
	return ErrUnsupportedOperation
}

func (UnsupportedKeychainBackend) Load(service, kind string) ([]byte, error) {
	return nil, ErrUnsupportedOperation
}

func (UnsupportedKeychainBackend) Delete(service, kind string) error {
	return ErrUnsupportedOperation
}
