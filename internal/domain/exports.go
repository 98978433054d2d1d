package domain

import (
	interfaces "wagate/internal/domain/interfaces"
	types "wagate/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	SessionID        = types.SessionID
	MessageID        = types.MessageID
	SessionIdentity  = types.SessionIdentity
	ConnectionStatus = types.ConnectionStatus
	QRChallenge      = types.QRChallenge
	RetryState       = types.RetryState
	CloseCause       = types.CloseCause
	ConnectionState  = types.ConnectionState
	ConnectionUpdate = types.ConnectionUpdate
	OutboundMessage  = types.OutboundMessage
	TextMessage      = types.TextMessage
	ImageMessage     = types.ImageMessage
	DocumentMessage  = types.DocumentMessage
	LinkMessage      = types.LinkMessage
	PayloadKind      = types.PayloadKind
	LinkPreview      = types.LinkPreview
	Payload          = types.Payload
	Receipt          = types.Receipt
	RawMessage       = types.RawMessage
	MessageBatch     = types.MessageBatch
	InboundMessage   = types.InboundMessage
	Event            = types.Event
	StatusChanged    = types.StatusChanged
	QRIssued         = types.QRIssued
	MessageReceived  = types.MessageReceived
)

// Interface aliases expose contracts from the interfaces subpackage.
type (
	CredentialStore = interfaces.CredentialStore
	TransportEvents = interfaces.TransportEvents
	Transport       = interfaces.Transport
	Handle          = interfaces.Handle
	IdentityPurger  = interfaces.IdentityPurger
	EventPublisher  = interfaces.EventPublisher
)

const (
	StatusDisconnected  = types.StatusDisconnected
	StatusConnecting    = types.StatusConnecting
	StatusAwaitingQR    = types.StatusAwaitingQR
	StatusAuthenticated = types.StatusAuthenticated

	ConnectionQR     = types.ConnectionQR
	ConnectionOpen   = types.ConnectionOpen
	ConnectionClosed = types.ConnectionClosed

	CauseLoggedOut        = types.CauseLoggedOut
	CauseConnectionLost   = types.CauseConnectionLost
	CauseConnectFailed    = types.CauseConnectFailed
	CauseStreamReplaced   = types.CauseStreamReplaced
	CauseStreamError      = types.CauseStreamError
	CauseQRTimeout        = types.CauseQRTimeout
	CauseClientOutdated   = types.CauseClientOutdated
	CauseTemporaryBan     = types.CauseTemporaryBan
	CauseRetriesExhausted = types.CauseRetriesExhausted
	CauseLocalLogout      = types.CauseLocalLogout

	PayloadText     = types.PayloadText
	PayloadImage    = types.PayloadImage
	PayloadDocument = types.PayloadDocument
	PayloadLink     = types.PayloadLink
)

// NewSessionIdentity returns a fresh, unpaired identity.
var NewSessionIdentity = types.NewSessionIdentity
