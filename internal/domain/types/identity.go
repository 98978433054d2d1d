package types

import "time"

// SessionIdentity is the pairing record for one session. Me stays empty
// until the device has been paired. Device keys are not part of it: the
// transport keeps them in its own device store, keyed by Me.
type SessionIdentity struct {
	SessionID      SessionID `json:"session_id"`
	Me             string    `json:"me,omitempty"`
	RegistrationID uint32    `json:"registration_id,omitempty"`
	Platform       string    `json:"platform,omitempty"`
	PushName       string    `json:"push_name,omitempty"`
	BusinessName   string    `json:"business_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewSessionIdentity returns a fresh, unpaired identity.
func NewSessionIdentity(id SessionID, now time.Time) SessionIdentity {
	return SessionIdentity{SessionID: id, CreatedAt: now, UpdatedAt: now}
}

// Paired reports whether the identity has completed device pairing.
func (s SessionIdentity) Paired() bool { return s.Me != "" }
