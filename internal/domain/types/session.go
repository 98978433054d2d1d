package types

import "time"

// ConnectionStatus is the lifecycle state of the single transport connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusAwaitingQR
	StatusAuthenticated
)

var statusNames = map[ConnectionStatus]string{
	StatusDisconnected:  "disconnected",
	StatusConnecting:    "connecting",
	StatusAwaitingQR:    "awaiting_qr",
	StatusAuthenticated: "authenticated",
}

// String returns the wire form of the status.
func (s ConnectionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s ConnectionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// QRChallenge is a pairing code presented while no valid credentials exist.
// A newer challenge always replaces an older one.
type QRChallenge struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// RetryState tracks reconnect attempts since the last successful
// authentication.
type RetryState struct {
	Attempt   int           `json:"attempt"`
	NextDelay time.Duration `json:"next_delay"`
}

// CloseCause classifies why the transport connection ended.
type CloseCause string

const (
	CauseLoggedOut        CloseCause = "logged-out"
	CauseConnectionLost   CloseCause = "connection-lost"
	CauseConnectFailed    CloseCause = "connect-failed"
	CauseStreamReplaced   CloseCause = "stream-replaced"
	CauseStreamError      CloseCause = "stream-error"
	CauseQRTimeout        CloseCause = "qr-timeout"
	CauseClientOutdated   CloseCause = "client-outdated"
	CauseTemporaryBan     CloseCause = "temporary-ban"
	CauseRetriesExhausted CloseCause = "retries-exhausted"
	CauseLocalLogout      CloseCause = "local-logout"
)

// Terminal reports whether the remote side revoked the session. Terminal
// closes require a fresh pairing; every other cause is recoverable by
// reconnecting with the stored credentials.
func (c CloseCause) Terminal() bool { return c == CauseLoggedOut }

// ConnectionState is the kind of a transport connection update.
type ConnectionState int

const (
	ConnectionQR ConnectionState = iota
	ConnectionOpen
	ConnectionClosed
)

// ConnectionUpdate is what the transport reports when its connection changes.
// QR is set for ConnectionQR, Cause for ConnectionClosed.
type ConnectionUpdate struct {
	State ConnectionState
	QR    string
	Cause CloseCause
	Err   error
}
