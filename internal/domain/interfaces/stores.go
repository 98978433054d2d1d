package interfaces

import (
	"context"

	domaintypes "wagate/internal/domain/types"
)

// CredentialStore persists the credential bundle of one session identity.
type CredentialStore interface {
	// Load returns the persisted identity, or a fresh unpaired identity when
	// nothing has been stored yet.
	Load(ctx context.Context) (domaintypes.SessionIdentity, error)
	// Save durably overwrites the persisted identity before returning.
	Save(ctx context.Context, identity domaintypes.SessionIdentity) error
	// Wipe removes all persisted material. Wiping an empty store is a no-op.
	Wipe(ctx context.Context) error
}
