package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"wagate/internal/domain"
	"wagate/internal/logging"
)

// Config selects the device database and client presentation.
type Config struct {
	// Dialect is "sqlite3" or "postgres".
	Dialect string
	// Address is the database DSN.
	Address string
	// DeviceName is shown in the phone's linked devices list.
	DeviceName string
	// MediaTimeout bounds fetching image and document locators.
	MediaTimeout time.Duration
	// MaxMediaBytes caps fetched media. Zero means DefaultMaxMediaBytes.
	MaxMediaBytes int64
}

// DefaultMaxMediaBytes is the largest media file fetched for upload.
const DefaultMaxMediaBytes = 64 << 20

// Transport opens whatsmeow clients backed by one device container.
type Transport struct {
	container *sqlstore.Container
	fetcher   *mediaFetcher
	log       *logrus.Entry
	waLog     waLog.Logger
}

// New opens (and migrates) the device database.
func New(ctx context.Context, cfg Config, log *logrus.Entry) (*Transport, error) {
	if log == nil {
		log = logrus.WithField("component", "whatsapp")
	}
	switch cfg.Dialect {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported device store dialect %q", cfg.Dialect)
	}
	if cfg.DeviceName != "" {
		store.SetOSInfo(cfg.DeviceName, [3]uint32{1, 0, 0})
	}

	dbLog := logging.Whatsmeow(log, "database")
	container, err := sqlstore.New(ctx, cfg.Dialect, cfg.Address, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}

	timeout := cfg.MediaTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := cfg.MaxMediaBytes
	if limit <= 0 {
		limit = DefaultMaxMediaBytes
	}
	return &Transport{
		container: container,
		fetcher:   &mediaFetcher{client: &http.Client{Timeout: timeout}, limit: limit},
		log:       log,
		waLog:     logging.Whatsmeow(log, "client"),
	}, nil
}

// Open loads the device for identity, or a new one when the identity is
// unpaired or its device is gone, and wraps it in an unconnected client.
func (t *Transport) Open(identity domain.SessionIdentity, events domain.TransportEvents) (domain.Handle, error) {
	ctx := context.Background()
	device, err := t.device(ctx, identity)
	if err != nil {
		return nil, err
	}

	client := whatsmeow.NewClient(device, t.waLog)
	client.EnableAutoReconnect = false

	hctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		client:   client,
		identity: identity,
		events:   events,
		fetcher:  t.fetcher,
		log:      t.log.WithField("session", identity.SessionID),
		ctx:      hctx,
		cancel:   cancel,
	}
	client.AddEventHandler(h.onEvent)
	return h, nil
}

// Purge deletes the whatsmeow device that belonged to identity.
func (t *Transport) Purge(ctx context.Context, identity domain.SessionIdentity) error {
	if !identity.Paired() {
		return nil
	}
	jid, err := types.ParseJID(identity.Me)
	if err != nil {
		return fmt.Errorf("parse device id %q: %w", identity.Me, err)
	}
	device, err := t.container.GetDevice(ctx, jid)
	if err != nil {
		return fmt.Errorf("load device %s: %w", jid, err)
	}
	if device == nil {
		return nil
	}
	if err := t.container.DeleteDevice(ctx, device); err != nil {
		return fmt.Errorf("delete device %s: %w", jid, err)
	}
	t.log.WithField("device", jid.String()).Info("Device material purged")
	return nil
}

// Close releases the device database.
func (t *Transport) Close() error {
	return t.container.Close()
}

func (t *Transport) device(ctx context.Context, identity domain.SessionIdentity) (*store.Device, error) {
	if !identity.Paired() {
		return t.container.NewDevice(), nil
	}
	jid, err := types.ParseJID(identity.Me)
	if err != nil {
		return nil, fmt.Errorf("parse device id %q: %w", identity.Me, err)
	}
	device, err := t.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", jid, err)
	}
	if device == nil {
		t.log.WithField("device", jid.String()).Warn("Stored device missing, pairing a new one")
		return t.container.NewDevice(), nil
	}
	return device, nil
}

var (
	_ domain.Transport      = (*Transport)(nil)
	_ domain.IdentityPurger = (*Transport)(nil)
)
