package interfaces

import (
	"context"

	domaintypes "wagate/internal/domain/types"
)

// TransportEvents receives callbacks from one transport handle. The
// transport must deliver them one at a time, in arrival order.
type TransportEvents interface {
	CredentialsUpdated(identity domaintypes.SessionIdentity) error
	ConnectionStateChanged(update domaintypes.ConnectionUpdate)
	MessagesReceived(batch domaintypes.MessageBatch)
}

// Transport opens connections to the messaging network.
type Transport interface {
	// Open builds a handle for identity without touching the network.
	// Events for the handle go to events.
	Open(identity domaintypes.SessionIdentity, events TransportEvents) (Handle, error)
}

// Handle is one transport connection.
type Handle interface {
	// Connect dials the network. Connection progress is reported through
	// TransportEvents.
	Connect(ctx context.Context) error
	Send(ctx context.Context, to string, payload domaintypes.Payload) (domaintypes.Receipt, error)
	// Logout asks the network to revoke this device.
	Logout(ctx context.Context) error
	Close() error
}

// IdentityPurger is implemented by transports that keep their own copy of
// device material and must forget it when credentials are wiped.
type IdentityPurger interface {
	Purge(ctx context.Context, identity domaintypes.SessionIdentity) error
}

// EventPublisher fans session events out to subscribers.
type EventPublisher interface {
	Publish(event domaintypes.Event)
}
