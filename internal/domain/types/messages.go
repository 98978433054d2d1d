package types

import "time"

// OutboundMessage is one of TextMessage, ImageMessage, DocumentMessage or
// LinkMessage. Values are immutable and never persisted.
type OutboundMessage interface {
	Destination() string
	outbound()
}

// TextMessage is a plain text message.
type TextMessage struct {
	To   string
	Text string
}

// ImageMessage sends the image found at URL with a caption.
type ImageMessage struct {
	To      string
	URL     string
	Caption string
}

// DocumentMessage sends the file found at URL. Mimetype defaults to
// application/pdf when empty.
type DocumentMessage struct {
	To       string
	URL      string
	Caption  string
	Mimetype string
	FileName string
}

// LinkMessage sends Text with a rich preview pointing at URL.
type LinkMessage struct {
	To   string
	URL  string
	Text string
}

func (m TextMessage) Destination() string     { return m.To }
func (m ImageMessage) Destination() string    { return m.To }
func (m DocumentMessage) Destination() string { return m.To }
func (m LinkMessage) Destination() string     { return m.To }

func (TextMessage) outbound()     {}
func (ImageMessage) outbound()    {}
func (DocumentMessage) outbound() {}
func (LinkMessage) outbound()     {}

// PayloadKind selects how a Payload is rendered on the wire.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadImage
	PayloadDocument
	PayloadLink
)

// LinkPreview is the external-reply card attached to a link message.
type LinkPreview struct {
	Title     string
	Body      string
	MediaURL  string
	MediaType int32
}

// Payload is the transport-neutral form of an outbound message.
type Payload struct {
	Kind     PayloadKind
	Text     string
	Caption  string
	MediaURL string
	Mimetype string
	FileName string
	Preview  *LinkPreview
}

// Receipt is returned for every accepted submission.
type Receipt struct {
	ID          MessageID `json:"id"`
	Destination string    `json:"destination"`
	Timestamp   time.Time `json:"timestamp"`
}

// RawMessage is an inbound message as the transport decoded it.
type RawMessage struct {
	ID        MessageID
	RemoteID  string
	FromMe    bool
	Text      string
	Timestamp time.Time
}

// MessageBatch groups messages delivered together. Live is false for
// history replays.
type MessageBatch struct {
	Messages []RawMessage
	Live     bool
}

// InboundMessage is the normalized form republished to listeners.
type InboundMessage struct {
	ID        MessageID `json:"id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}
