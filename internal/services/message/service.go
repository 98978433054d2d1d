package message

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
	"wagate/internal/phone"
)

// DefaultDocumentMimetype is used when a document message names none.
const DefaultDocumentMimetype = "application/pdf"

// LinkPreviewMediaType is the external-reply media type for a link card.
const LinkPreviewMediaType int32 = 2

// Connection exposes the live handle of an authenticated session.
type Connection interface {
	ActiveHandle() (domain.Handle, error)
}

// Service turns outbound messages into exactly one transport submission.
//
// It holds no state of its own: every call reads the current handle from
// the Connection, so concurrent sends only contend inside the transport.
type Service struct {
	conn Connection
	plan phone.Plan
	log  *logrus.Entry
}

// New constructs a message Service.
func New(conn Connection, plan phone.Plan, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.WithField("component", "message")
	}
	return &Service{conn: conn, plan: plan, log: log}
}

// Send submits msg once. It fails with domain.ErrNotAuthenticated before
// touching the transport when the session is not authenticated, and wraps
// transport rejections in *domain.SendError. There is no retry.
func (s *Service) Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error) {
	h, err := s.conn.ActiveHandle()
	if err != nil {
		return domain.Receipt{}, err
	}

	to := s.plan.Canonicalize(msg.Destination())
	if to == "" {
		return domain.Receipt{}, &domain.MissingParameterError{Field: "phone"}
	}
	payload, err := Render(msg)
	if err != nil {
		return domain.Receipt{}, err
	}

	receipt, err := h.Send(ctx, to, payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"to":   to,
			"kind": payload.Kind,
		}).WithError(err).Warn("Send failed")
		return domain.Receipt{}, &domain.SendError{Destination: to, Err: err}
	}
	if receipt.Destination == "" {
		receipt.Destination = to
	}
	s.log.WithFields(logrus.Fields{
		"to": to,
		"id": receipt.ID,
	}).Debug("Message sent")
	return receipt, nil
}

// Render builds the transport-neutral payload for msg.
func Render(msg domain.OutboundMessage) (domain.Payload, error) {
	switch m := msg.(type) {
	case domain.TextMessage:
		return domain.Payload{Kind: domain.PayloadText, Text: m.Text}, nil
	case domain.ImageMessage:
		return domain.Payload{Kind: domain.PayloadImage, MediaURL: m.URL, Caption: m.Caption}, nil
	case domain.DocumentMessage:
		mimetype := m.Mimetype
		if mimetype == "" {
			mimetype = DefaultDocumentMimetype
		}
		return domain.Payload{
			Kind:     domain.PayloadDocument,
			MediaURL: m.URL,
			Caption:  m.Caption,
			Mimetype: mimetype,
			FileName: m.FileName,
		}, nil
	case domain.LinkMessage:
		return domain.Payload{
			Kind: domain.PayloadLink,
			Text: m.Text,
			Preview: &domain.LinkPreview{
				Title:     m.Text,
				MediaURL:  m.URL,
				MediaType: LinkPreviewMediaType,
			},
		}, nil
	default:
		return domain.Payload{}, fmt.Errorf("unsupported message type %T", msg)
	}
}
