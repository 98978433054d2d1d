package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"wagate/internal/util/memzero"
)

// envelopeVersion is the newest sealed-bundle format this package reads.
const envelopeVersion = 1

var errWrongPassphrase = errors.New("wrong passphrase or corrupted credentials")

// envelope is a passphrase-sealed credential bundle as stored on disk.
type envelope struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

type kdfParams struct{ N, R, P int }

// defaultKDF is the scrypt cost used for new envelopes.
var defaultKDF = kdfParams{N: 1 << 15, R: 8, P: 1}

// seal encrypts plain under a key derived from passphrase and a fresh salt.
// The salt doubles as associated data.
func seal(passphrase string, plain []byte, kdf kdfParams) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := newAEAD(passphrase, salt, kdf)
	if err != nil {
		return nil, err
	}
	// Zero nonce: every envelope gets its own salt and therefore its own key.
	nonce := make([]byte, chacha20poly1305.NonceSize)
	return json.Marshal(envelope{
		V:      envelopeVersion,
		Salt:   salt,
		N:      kdf.N,
		R:      kdf.R,
		P:      kdf.P,
		Cipher: aead.Seal(nil, nonce, plain, salt),
	})
}

// open reverses seal.
func open(passphrase string, sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", env.V)
	}
	aead, err := newAEAD(passphrase, env.Salt, kdfParams{N: env.N, R: env.R, P: env.P})
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	plain, err := aead.Open(nil, nonce, env.Cipher, env.Salt)
	if err != nil {
		return nil, errWrongPassphrase
	}
	return plain, nil
}

func newAEAD(passphrase string, salt []byte, kdf kdfParams) (cipher.AEAD, error) {
	secret := []byte(passphrase)
	defer memzero.Zero(secret)
	key, err := scrypt.Key(secret, salt, kdf.N, kdf.R, kdf.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer memzero.Zero(key)
	return chacha20poly1305.New(key)
}
