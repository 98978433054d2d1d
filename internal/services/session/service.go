package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// Lifecycle is the part of the connection supervisor the facade drives.
type Lifecycle interface {
	Initialize(ctx context.Context) error
	Logout(ctx context.Context) error
	Status() domain.ConnectionStatus
	CurrentQR() (domain.QRChallenge, bool)
}

// Sender submits outbound messages.
type Sender interface {
	Send(ctx context.Context, msg domain.OutboundMessage) (domain.Receipt, error)
}

// Subscriber hands out event streams.
type Subscriber interface {
	Subscribe(buffer int) (<-chan domain.Event, func())
}

// Service is the single entry point used by the HTTP API.
//
// It validates request parameters, then delegates: sends go to the
// dispatcher, lifecycle calls to the supervisor, subscriptions to the event
// bus. A missing parameter is reported before anything else is checked, so
// a malformed request never reveals the connection state.
type Service struct {
	lifecycle Lifecycle
	sender    Sender
	events    Subscriber
	log       *logrus.Entry
}

// New constructs a session Service.
func New(lifecycle Lifecycle, sender Sender, events Subscriber, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.WithField("component", "session")
	}
	return &Service{lifecycle: lifecycle, sender: sender, events: events, log: log}
}

// Initialize starts the session. See connection.Supervisor.Initialize.
func (s *Service) Initialize(ctx context.Context) error {
	return s.lifecycle.Initialize(ctx)
}

// SendText sends a plain text message.
func (s *Service) SendText(ctx context.Context, phone, text string) (domain.Receipt, error) {
	if err := require("phone", phone, "text", text); err != nil {
		return domain.Receipt{}, err
	}
	return s.sender.Send(ctx, domain.TextMessage{To: phone, Text: text})
}

// SendImage sends the image at fileURL with a caption.
func (s *Service) SendImage(ctx context.Context, phone, fileURL, caption string) (domain.Receipt, error) {
	if err := require("phone", phone, "file", fileURL, "text", caption); err != nil {
		return domain.Receipt{}, err
	}
	return s.sender.Send(ctx, domain.ImageMessage{To: phone, URL: fileURL, Caption: caption})
}

// SendDocument sends the file at fileURL. mimetype and fileName are
// optional.
func (s *Service) SendDocument(ctx context.Context, phone, fileURL, caption, mimetype, fileName string) (domain.Receipt, error) {
	if err := require("phone", phone, "file", fileURL, "text", caption); err != nil {
		return domain.Receipt{}, err
	}
	return s.sender.Send(ctx, domain.DocumentMessage{
		To:       phone,
		URL:      fileURL,
		Caption:  caption,
		Mimetype: mimetype,
		FileName: fileName,
	})
}

// SendLink sends text with a preview card for link.
func (s *Service) SendLink(ctx context.Context, phone, link, text string) (domain.Receipt, error) {
	if err := require("phone", phone, "link", link, "text", text); err != nil {
		return domain.Receipt{}, err
	}
	return s.sender.Send(ctx, domain.LinkMessage{To: phone, URL: link, Text: text})
}

// Status reports the connection status.
func (s *Service) Status() domain.ConnectionStatus { return s.lifecycle.Status() }

// Authenticated reports whether messages can be sent.
func (s *Service) Authenticated() bool {
	return s.lifecycle.Status() == domain.StatusAuthenticated
}

// CurrentQR returns the pending pairing challenge, if any.
func (s *Service) CurrentQR() (domain.QRChallenge, bool) { return s.lifecycle.CurrentQR() }

// Logout revokes the device and wipes the credentials.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.lifecycle.Logout(ctx); err != nil {
		s.log.WithError(err).Error("Logout failed")
		return err
	}
	return nil
}

// Subscribe returns a stream of session events and its cancel function.
func (s *Service) Subscribe(buffer int) (<-chan domain.Event, func()) {
	return s.events.Subscribe(buffer)
}

// require takes name/value pairs and reports the first empty value.
func require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return &domain.MissingParameterError{Field: pairs[i]}
		}
	}
	return nil
}
