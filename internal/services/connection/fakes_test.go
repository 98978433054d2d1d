package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// opLog records the order of credential and transport operations.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, fmt.Sprintf(format, args...))
}

func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type memCreds struct {
	mu        sync.Mutex
	sessionID domain.SessionID
	stored    *domain.SessionIdentity
	loadErr   error
	wipeErr   error
	loads     int
	log       *opLog
}

func (c *memCreds) Load(context.Context) (domain.SessionIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	c.log.add("load")
	if c.loadErr != nil {
		return domain.SessionIdentity{}, c.loadErr
	}
	if c.stored == nil {
		return domain.NewSessionIdentity(c.sessionID, time.Unix(0, 0)), nil
	}
	return *c.stored, nil
}

func (c *memCreds) Save(_ context.Context, id domain.SessionIdentity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.add("save %s", id.Me)
	c.stored = &id
	return nil
}

func (c *memCreds) Wipe(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.add("wipe")
	if c.wipeErr != nil {
		return c.wipeErr
	}
	c.stored = nil
	return nil
}

func (c *memCreds) current() *domain.SessionIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored
}

type fakeHandle struct {
	mu         sync.Mutex
	index      int
	identity   domain.SessionIdentity
	events     domain.TransportEvents
	connectErr error
	logoutErr  error
	connects   int
	logouts    int
	closes     int
	sent       []domain.Payload
}

func (h *fakeHandle) Connect(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
	return h.connectErr
}

func (h *fakeHandle) Send(_ context.Context, to string, p domain.Payload) (domain.Receipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, p)
	return domain.Receipt{ID: "id", Destination: to}, nil
}

func (h *fakeHandle) Logout(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logouts++
	return h.logoutErr
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *fakeHandle) counts() (connects, logouts, closes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connects, h.logouts, h.closes
}

// Helpers that play the transport side of a handle.

func (h *fakeHandle) qr(code string) {
	h.events.ConnectionStateChanged(domain.ConnectionUpdate{State: domain.ConnectionQR, QR: code})
}

func (h *fakeHandle) pair(me string) error {
	id := h.identity
	id.Me = me
	return h.events.CredentialsUpdated(id)
}

func (h *fakeHandle) open() {
	h.events.ConnectionStateChanged(domain.ConnectionUpdate{State: domain.ConnectionOpen})
}

func (h *fakeHandle) close(cause domain.CloseCause) {
	h.events.ConnectionStateChanged(domain.ConnectionUpdate{State: domain.ConnectionClosed, Cause: cause})
}

type fakeTransport struct {
	mu         sync.Mutex
	handles    []*fakeHandle
	openErr    error
	connectErr error
	purged     []string
	log        *opLog
}

func (t *fakeTransport) Open(id domain.SessionIdentity, events domain.TransportEvents) (domain.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.add("open %s", id.Me)
	if t.openErr != nil {
		return nil, t.openErr
	}
	h := &fakeHandle{index: len(t.handles), identity: id, events: events, connectErr: t.connectErr}
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTransport) Purge(_ context.Context, id domain.SessionIdentity) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.add("purge %s", id.Me)
	t.purged = append(t.purged, id.Me)
	return nil
}

func (t *fakeTransport) opened() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

func (t *fakeTransport) last() *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handles[len(t.handles)-1]
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending returns timers that were neither stopped nor fired.
func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the only pending timer. It panics when there is not exactly
// one, which is what every test expects.
func (s *fakeScheduler) fireNext() time.Duration {
	p := s.pending()
	if len(p) != 1 {
		panic(fmt.Sprintf("expected one pending timer, got %d", len(p)))
	}
	p[0].fired = true
	p[0].f()
	return p[0].delay
}

// all returns every timer ever scheduled, including stopped ones.
func (s *fakeScheduler) all() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTimer(nil), s.timers...)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) statuses() []domain.StatusChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusChanged
	for _, ev := range r.events {
		if sc, ok := ev.(domain.StatusChanged); ok {
			out = append(out, sc)
		}
	}
	return out
}

func (r *recorder) qrs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if q, ok := ev.(domain.QRIssued); ok {
			out = append(out, q.Challenge.Code)
		}
	}
	return out
}

type batchSink struct {
	mu      sync.Mutex
	batches []domain.MessageBatch
}

func (s *batchSink) Route(b domain.MessageBatch) []domain.InboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return nil
}

type harness struct {
	sup       *Supervisor
	creds     *memCreds
	transport *fakeTransport
	sched     *fakeScheduler
	events    *recorder
	inbound   *batchSink
	ops       *opLog
}

func newHarness(opts ...Option) *harness {
	ops := &opLog{}
	h := &harness{
		creds:     &memCreds{sessionID: "test", log: ops},
		transport: &fakeTransport{log: ops},
		sched:     &fakeScheduler{},
		events:    &recorder{},
		inbound:   &batchSink{},
		ops:       ops,
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	base := []Option{
		WithScheduler(h.sched),
		WithInbound(h.inbound),
		WithLogger(logrus.NewEntry(logger)),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	}
	h.sup = New(h.creds, h.transport, h.events, append(base, opts...)...)
	return h
}

// authenticate initializes and drives the first handle through pairing.
func (h *harness) authenticate() *fakeHandle {
	if err := h.sup.Initialize(context.Background()); err != nil {
		panic(err)
	}
	fh := h.transport.last()
	fh.qr("pair-me")
	if err := fh.pair("551187654321@s.whatsapp.net"); err != nil {
		panic(err)
	}
	fh.open()
	return fh
}

var errBoom = errors.New("boom")
