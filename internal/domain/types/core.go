package types

// SessionID names one persisted session identity. The gateway runs exactly
// one session per process, keyed by this value.
type SessionID string

// String returns the string form of the session identifier.
func (id SessionID) String() string { return string(id) }

// MessageID is the transport-assigned identifier of a sent or received message.
type MessageID string

// String returns the string form of the message identifier.
func (id MessageID) String() string { return string(id) }
