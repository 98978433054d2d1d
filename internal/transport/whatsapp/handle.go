package whatsapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"wagate/internal/domain"
)

// handle is one whatsmeow client. Events are forwarded to the supervisor
// from whatsmeow's dispatcher goroutine, which delivers them in order.
type handle struct {
	client   *whatsmeow.Client
	events   domain.TransportEvents
	fetcher  *mediaFetcher
	log      *logrus.Entry
	ctx      context.Context
	cancel   context.CancelFunc
	closeOne sync.Once

	mu       sync.Mutex
	identity domain.SessionIdentity
}

// Connect starts the QR flow for unpaired devices and dials.
func (h *handle) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.client.Store.ID == nil {
		qrs, err := h.client.GetQRChannel(h.ctx)
		if err != nil {
			return fmt.Errorf("qr channel: %w", err)
		}
		go h.forwardQR(qrs)
	}
	if err := h.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (h *handle) forwardQR(qrs <-chan whatsmeow.QRChannelItem) {
	for item := range qrs {
		update, ok := qrUpdate(item)
		if !ok {
			continue
		}
		if update.State == domain.ConnectionQR {
			h.log.Debug("QR code issued")
		}
		h.events.ConnectionStateChanged(update)
	}
}

// Send renders payload, uploading media first, and submits it once.
func (h *handle) Send(ctx context.Context, to string, payload domain.Payload) (domain.Receipt, error) {
	jid := types.NewJID(to, types.DefaultUserServer)

	var up *uploaded
	switch payload.Kind {
	case domain.PayloadImage, domain.PayloadDocument:
		var err error
		up, err = h.upload(ctx, payload)
		if err != nil {
			return domain.Receipt{}, err
		}
	}

	msg, err := buildMessage(payload, up)
	if err != nil {
		return domain.Receipt{}, err
	}
	resp, err := h.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return domain.Receipt{}, err
	}
	ts := resp.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.Receipt{
		ID:          domain.MessageID(resp.ID),
		Destination: to,
		Timestamp:   ts.UTC(),
	}, nil
}

func (h *handle) upload(ctx context.Context, payload domain.Payload) (*uploaded, error) {
	data, detected, err := h.fetcher.fetch(ctx, payload.MediaURL)
	if err != nil {
		return nil, err
	}
	mediaType := whatsmeow.MediaImage
	if payload.Kind == domain.PayloadDocument {
		mediaType = whatsmeow.MediaDocument
	}
	resp, err := h.client.Upload(ctx, data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return &uploaded{resp: resp, mimetype: detected}, nil
}

// Logout revokes the device on the server.
func (h *handle) Logout(ctx context.Context) error {
	return h.client.Logout(ctx)
}

// Close stops the QR flow and disconnects. Disconnect runs on its own
// goroutine because Close is called from inside event callbacks.
func (h *handle) Close() error {
	h.closeOne.Do(func() {
		h.cancel()
		go h.client.Disconnect()
	})
	return nil
}

func (h *handle) onEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		h.mu.Lock()
		id := h.identity
		h.mu.Unlock()
		id.Me = e.ID.String()
		id.Platform = e.Platform
		id.BusinessName = e.BusinessName
		h.updateCredentials(id)
	case *events.Connected:
		h.updateCredentials(h.storeIdentity())
		h.events.ConnectionStateChanged(domain.ConnectionUpdate{State: domain.ConnectionOpen})
	case *events.Message:
		batch := domain.MessageBatch{
			Live:     e.SourceWebMsg == nil,
			Messages: []domain.RawMessage{rawFromEvent(e)},
		}
		h.resolveSenders(batch)
		h.events.MessagesReceived(batch)
	case *events.HistorySync:
		batch := historyBatch(e)
		h.resolveSenders(batch)
		h.events.MessagesReceived(batch)
	default:
		if update, ok := closeUpdate(evt); ok {
			h.events.ConnectionStateChanged(update)
		}
	}
}

// resolveSenders maps LID senders to phone numbers through the device's
// LID store.
func (h *handle) resolveSenders(batch domain.MessageBatch) {
	lids := h.client.Store.LIDs
	if lids == nil {
		return
	}
	if n := resolveLIDs(h.ctx, batch.Messages, lids.GetPNForLID); n > 0 {
		h.log.WithField("unresolved", n).Warn("Sender LID has no known phone number")
	}
}

func (h *handle) updateCredentials(id domain.SessionIdentity) {
	id.UpdatedAt = time.Now().UTC()
	if err := h.events.CredentialsUpdated(id); err != nil {
		h.log.WithError(err).Error("Credential update not persisted")
		return
	}
	h.mu.Lock()
	h.identity = id
	h.mu.Unlock()
}

// storeIdentity reads the paired device fields from whatsmeow's store.
func (h *handle) storeIdentity() domain.SessionIdentity {
	h.mu.Lock()
	id := h.identity
	h.mu.Unlock()

	dev := h.client.Store
	if dev.ID != nil {
		id.Me = dev.ID.String()
	}
	id.RegistrationID = dev.RegistrationID
	if dev.Platform != "" {
		id.Platform = dev.Platform
	}
	if dev.PushName != "" {
		id.PushName = dev.PushName
	}
	if dev.BusinessName != "" {
		id.BusinessName = dev.BusinessName
	}
	return id
}

var _ domain.Handle = (*handle)(nil)
