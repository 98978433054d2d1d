package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"wagate/internal/config"
	"wagate/internal/domain"
	"wagate/internal/events"
	"wagate/internal/httpapi"
	"wagate/internal/services/connection"
	"wagate/internal/services/inbound"
	"wagate/internal/services/message"
	"wagate/internal/services/session"
	"wagate/internal/store"
	"wagate/internal/transport/whatsapp"
	"wagate/internal/webhook"
)

// Wire bundles the stores, services and servers of one gateway.
type Wire struct {
	Log         *logrus.Entry
	Bus         *events.Bus
	Credentials domain.CredentialStore
	Transport   domain.Transport
	Supervisor  *connection.Supervisor
	Messages    *message.Service
	Session     *session.Service
	API         *httpapi.Server
	// Webhook is nil when forwarding is disabled.
	Webhook *webhook.Forwarder

	closeTransport func() error
}

// NewWire constructs the dependency graph from cfg. It opens the device
// database but does not connect.
func NewWire(ctx context.Context, cfg config.Config) (*Wire, error) {
	return newWire(ctx, cfg, func(ctx context.Context, log *logrus.Entry) (transport, error) {
		return whatsapp.New(ctx, TransportConfig(cfg), log)
	})
}

type transport interface {
	domain.Transport
	Close() error
}

type transportFactory func(ctx context.Context, log *logrus.Entry) (transport, error)

func newWire(ctx context.Context, cfg config.Config, open transportFactory) (*Wire, error) {
	logger := logrus.StandardLogger()
	log := logger.WithField("session", cfg.SessionID)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Credentials and the device database
	creds := store.NewCredentialFileStore(
		cfg.CredentialsDir(),
		domain.SessionID(cfg.SessionID),
		store.WithPassphrase(cfg.Passphrase),
	)
	tr, err := open(ctx, log.WithField("component", "whatsapp"))
	if err != nil {
		return nil, err
	}

	bus := events.New(log.WithField("component", "events"))
	plan := PhonePlan(cfg.Phone)

	// Lifecycle and messaging
	router := inbound.New(plan, bus, log.WithField("component", "inbound"))
	sup := connection.New(creds, tr, bus,
		connection.WithBackoff(ReconnectPolicy(cfg.Reconnect)),
		connection.WithInbound(router),
		connection.WithLogger(log.WithField("component", "connection")),
	)
	msgs := message.New(sup, plan, log.WithField("component", "message"))
	sess := session.New(sup, msgs, bus, log.WithField("component", "session"))

	// Outer surfaces
	api := httpapi.New(sess, apiOptions(cfg.HTTP), log.WithField("component", "http"))
	var fwd *webhook.Forwarder
	if cfg.Webhook.Enabled {
		fwd = webhook.New(cfg.Webhook.URL, cfg.Webhook.Timeout, log.WithField("component", "webhook"))
	}

	return &Wire{
		Log:            log,
		Bus:            bus,
		Credentials:    creds,
		Transport:      tr,
		Supervisor:     sup,
		Messages:       msgs,
		Session:        sess,
		API:            api,
		Webhook:        fwd,
		closeTransport: tr.Close,
	}, nil
}

// Close stops the supervisor, keeping credentials, then releases the
// device database and the event bus.
func (w *Wire) Close() error {
	w.Supervisor.Shutdown()
	w.Bus.Close()
	var errs []error
	if w.closeTransport != nil {
		if err := w.closeTransport(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	return errors.Join(errs...)
}
