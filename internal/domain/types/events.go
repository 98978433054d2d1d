package types

// Event is one of StatusChanged, QRIssued or MessageReceived.
type Event interface {
	EventName() string
}

// StatusChanged is published on every connection status transition.
type StatusChanged struct {
	From  ConnectionStatus `json:"from"`
	To    ConnectionStatus `json:"to"`
	Cause CloseCause       `json:"cause,omitempty"`
}

// QRIssued is published whenever a new pairing challenge supersedes the
// previous one.
type QRIssued struct {
	Challenge QRChallenge `json:"challenge"`
}

// MessageReceived carries one normalized inbound message.
type MessageReceived struct {
	Message InboundMessage `json:"message"`
}

func (StatusChanged) EventName() string   { return "status" }
func (QRIssued) EventName() string        { return "qr" }
func (MessageReceived) EventName() string { return "message" }
