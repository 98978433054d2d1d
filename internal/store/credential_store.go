package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"wagate/internal/domain"
	"wagate/internal/util/memzero"
)

var errInvalidSessionID = errors.New("invalid session id")

// CredentialFileStore persists one session identity as a JSON file named
// after the session id. With a passphrase the file is sealed in an
// scrypt/chacha20poly1305 envelope.
type CredentialFileStore struct {
	dir        string
	sessionID  domain.SessionID
	passphrase string
	kdf        kdfParams
	now        func() time.Time
	mu         sync.Mutex
}

// Option configures a CredentialFileStore.
type Option func(*CredentialFileStore)

// WithPassphrase seals the stored pairing record with passphrase. The
// transport's device database, which holds the device keys, is outside the
// envelope.
func WithPassphrase(passphrase string) Option {
	return func(s *CredentialFileStore) { s.passphrase = passphrase }
}

// WithClock overrides the time source used for identity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CredentialFileStore) { s.now = now }
}

// NewCredentialFileStore returns a store for sessionID rooted at dir.
func NewCredentialFileStore(dir string, sessionID domain.SessionID, opts ...Option) *CredentialFileStore {
	s := &CredentialFileStore{dir: dir, sessionID: sessionID, kdf: defaultKDF, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file that holds the bundle.
func (s *CredentialFileStore) Path() string {
	name := s.sessionID.String() + ".json"
	if s.passphrase != "" {
		name += ".enc"
	}
	return filepath.Join(s.dir, name)
}

// Load reads the persisted identity. A missing file yields a fresh identity.
func (s *CredentialFileStore) Load(ctx context.Context) (domain.SessionIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return domain.SessionIdentity{}, &domain.StorageError{Op: "load", Err: err}
	}
	b, err := readFile(s.Path())
	if err != nil {
		return domain.SessionIdentity{}, &domain.StorageError{Op: "load", Err: err}
	}
	if b == nil {
		return domain.NewSessionIdentity(s.sessionID, s.now().UTC()), nil
	}
	if s.passphrase != "" {
		if b, err = open(s.passphrase, b); err != nil {
			return domain.SessionIdentity{}, &domain.StorageError{Op: "load", Err: err}
		}
		defer memzero.Zero(b)
	}
	var id domain.SessionIdentity
	if err := json.Unmarshal(b, &id); err != nil {
		return domain.SessionIdentity{}, &domain.StorageError{Op: "load", Err: fmt.Errorf("corrupt bundle: %w", err)}
	}
	if id.SessionID != s.sessionID {
		return domain.SessionIdentity{}, &domain.StorageError{
			Op:  "load",
			Err: fmt.Errorf("bundle belongs to session %q", id.SessionID),
		}
	}
	return id, nil
}

// Save overwrites the persisted identity. It returns only after the data has
// been synced to disk.
func (s *CredentialFileStore) Save(ctx context.Context, id domain.SessionIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	id.SessionID = s.sessionID
	id.UpdatedAt = s.now().UTC()
	if id.CreatedAt.IsZero() {
		id.CreatedAt = id.UpdatedAt
	}
	raw, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	if s.passphrase != "" {
		plain := raw
		raw, err = seal(s.passphrase, plain, s.kdf)
		memzero.Zero(plain)
		if err != nil {
			return &domain.StorageError{Op: "save", Err: err}
		}
	}
	if err := writeFile(s.Path(), raw, 0o600); err != nil {
		return &domain.StorageError{Op: "save", Err: err}
	}
	return nil
}

// Wipe deletes the persisted identity. Wiping a missing file is a no-op.
func (s *CredentialFileStore) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx); err != nil {
		return &domain.StorageError{Op: "wipe", Err: err}
	}
	if err := removeFile(s.Path()); err != nil {
		return &domain.StorageError{Op: "wipe", Err: err}
	}
	return nil
}

func (s *CredentialFileStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := s.sessionID.String()
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", errInvalidSessionID, id)
	}
	return nil
}

// Compile-time assertion that CredentialFileStore implements domain.CredentialStore.
var _ domain.CredentialStore = (*CredentialFileStore)(nil)
