// Package secure implements at-rest encryption for GetSecure/SetSecure
// preference values (§4.3), using NaCl secretbox from golang.org/x/crypto --
// the teacher's go.mod already carries golang.org/x/crypto; this package is
// the one caller that exercises it directly rather than transitively.
package secure

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/nacl/secretbox"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
)

const keySize = 32

// Store is a process-wide singleton wrapping LibraryStore's
// secure_preferences table, its lifetime tied to app start/teardown as
// required by §5.
type Store struct {
	key    [keySize]byte
	backend preferenceBackend
}

// preferenceBackend is the subset of library.Store this package depends on,
// kept narrow so tests can fake it without a real SQLite file.
type preferenceBackend interface {
	GetSecurePreference(ctx context.Context, key string) (nonce, ciphertext []byte, ok bool, err error)
	SetSecurePreference(ctx context.Context, key string, nonce, ciphertext []byte) error
}

// New derives the box key from a hex-encoded master key (loaded from the
// app's config/keychain, out of scope here) and wraps backend.
func New(masterKeyHex string, backend preferenceBackend) (*Store, error) {
	raw, err := hex.DecodeString(masterKeyHex)
	if err != nil || len(raw) != keySize {
		return nil, moosyncerrors.ConfigError("secure store master key must be 32 bytes hex-encoded")
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &Store{key: key, backend: backend}, nil
}

// Set encrypts value and stores it under "extension.<package>.<key>" or a
// bare key for host-owned secrets.
func (s *Store) Set(ctx context.Context, key, value string) error {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return moosyncerrors.IOError(err)
	}
	sealed := secretbox.Seal(nil, []byte(value), &nonce, &s.key)
	if err := s.backend.SetSecurePreference(ctx, key, nonce[:], sealed); err != nil {
		return err
	}
	return nil
}

// Get decrypts and returns the stored value, or ok=false if absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	nonceBytes, ciphertext, ok, err := s.backend.GetSecurePreference(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)
	plain, ok := secretbox.Open(nil, ciphertext, &nonce, &s.key)
	if !ok {
		return "", false, moosyncerrors.New(moosyncerrors.KindCache, "secure preference could not be decrypted")
	}
	return string(plain), true, nil
}
