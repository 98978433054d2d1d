package connection

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// InboundSink consumes message batches from the live handle.
type InboundSink interface {
	Route(batch domain.MessageBatch) []domain.InboundMessage
}

// Supervisor owns the transport handle and the connection state machine.
type Supervisor struct {
	creds     domain.CredentialStore
	transport domain.Transport
	publisher domain.EventPublisher
	inbound   InboundSink
	backoff   Backoff
	sched     Scheduler
	now       func() time.Time
	log       *logrus.Entry

	// opMu serializes Initialize, Logout and timer-driven reconnects.
	opMu sync.Mutex

	// mu guards everything below. status and handle always change together.
	mu         sync.Mutex
	status     domain.ConnectionStatus
	handle     domain.Handle
	generation uint64
	identity   domain.SessionIdentity
	qr         *domain.QRChallenge
	retry      domain.RetryState
	timer      Timer
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithBackoff sets the reconnect policy.
func WithBackoff(b Backoff) Option { return func(s *Supervisor) { s.backoff = b } }

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(sched Scheduler) Option { return func(s *Supervisor) { s.sched = sched } }

// WithInbound routes inbound batches from the live handle to sink.
func WithInbound(sink InboundSink) Option { return func(s *Supervisor) { s.inbound = sink } }

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option { return func(s *Supervisor) { s.log = log } }

// WithClock overrides the time source used to stamp QR challenges.
func WithClock(now func() time.Time) Option { return func(s *Supervisor) { s.now = now } }

// New returns a Disconnected supervisor.
func New(
	creds domain.CredentialStore,
	transport domain.Transport,
	publisher domain.EventPublisher,
	opts ...Option,
) *Supervisor {
	s := &Supervisor{
		creds:     creds,
		transport: transport,
		publisher: publisher,
		backoff:   DefaultBackoff,
		sched:     RealScheduler(),
		now:       time.Now,
		log:       logrus.WithField("component", "connection"),
		status:    domain.StatusDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the credential bundle and opens a connection. It is a
// no-op while a handle already exists. Only credential storage failures are
// returned; connection failures are retried in the background and are
// observable through Status.
func (s *Supervisor) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.initialize(ctx)
}

func (s *Supervisor) initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.handle != nil {
		status := s.status
		s.mu.Unlock()
		s.log.WithField("status", status).Debug("Initialize ignored, connection already active")
		return nil
	}
	s.mu.Unlock()

	id, err := s.creds.Load(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to load credentials")
		return err
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.identity = id
	s.retry = domain.RetryState{}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session": id.SessionID,
		"paired":  id.Paired(),
	}).Info("Initializing session")

	s.connect(ctx)
	return nil
}

// connect opens and dials a new handle. Callers hold opMu.
func (s *Supervisor) connect(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	h, err := s.transport.Open(s.identity, &handleEvents{s: s, gen: gen})
	if err != nil {
		s.log.WithError(err).WithField("generation", gen).Error("Failed to open transport")
		s.setStatusLocked(domain.StatusDisconnected, domain.CauseConnectFailed)
		s.scheduleReconnectLocked(gen)
		s.mu.Unlock()
		return
	}
	s.handle = h
	s.setStatusLocked(domain.StatusConnecting, "")
	s.mu.Unlock()

	if err := h.Connect(ctx); err != nil {
		s.handleClose(gen, domain.ConnectionUpdate{
			State: domain.ConnectionClosed,
			Cause: domain.CauseConnectFailed,
			Err:   err,
		})
	}
}

// Logout revokes the device when a handle exists, tears the connection
// down and wipes the credentials. The supervisor stays Disconnected until
// Initialize is called again. A failed protocol-level logout is logged and
// does not stop the local teardown; only a credential wipe failure is
// returned.
func (s *Supervisor) Logout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.stopTimerLocked()
	// Invalidate callbacks from the handle we are about to close, so the
	// logged-out close it reports does not trigger a fresh pairing.
	s.generation++
	h := s.handle
	s.mu.Unlock()

	if h != nil {
		if err := h.Logout(ctx); err != nil {
			s.log.WithError(&domain.LogoutError{Err: err}).Warn("Protocol logout failed, closing anyway")
		} else {
			s.log.Info("Logged out successfully")
		}
		if err := h.Close(); err != nil {
			s.log.WithError(err).Debug("Closing transport handle failed")
		}
	} else {
		s.log.Info("No active connection to disconnect")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = nil
	s.qr = nil
	s.retry = domain.RetryState{}
	s.setStatusLocked(domain.StatusDisconnected, domain.CauseLocalLogout)
	return s.wipeLocked(ctx)
}

// Shutdown closes the connection without logging out or touching the
// credentials. Pending reconnects are cancelled.
func (s *Supervisor) Shutdown() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.stopTimerLocked()
	s.generation++
	h := s.handle
	s.handle = nil
	s.qr = nil
	s.setStatusLocked(domain.StatusDisconnected, "")
	s.mu.Unlock()

	if h != nil {
		if err := h.Close(); err != nil {
			s.log.WithError(err).Debug("Closing transport handle failed")
		}
	}
}

// Status returns the current connection status.
func (s *Supervisor) Status() domain.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentQR returns the pending pairing challenge, if any.
func (s *Supervisor) CurrentQR() (domain.QRChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.qr == nil {
		return domain.QRChallenge{}, false
	}
	return *s.qr, true
}

// Retry returns the reconnect bookkeeping.
func (s *Supervisor) Retry() domain.RetryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retry
}

// Identity returns the in-memory credential bundle.
func (s *Supervisor) Identity() domain.SessionIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ActiveHandle returns the live handle when the session is authenticated.
// It only inspects state; the caller uses the handle outside any lock.
func (s *Supervisor) ActiveHandle() (domain.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusAuthenticated || s.handle == nil || !s.identity.Paired() {
		return nil, domain.ErrNotAuthenticated
	}
	return s.handle, nil
}

// currentLocked reports whether gen still owns the live handle.
func (s *Supervisor) currentLocked(gen uint64) bool {
	return gen == s.generation && s.handle != nil
}

func (s *Supervisor) credentialsUpdated(gen uint64, id domain.SessionIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		s.log.WithField("generation", gen).Debug("Ignoring credentials from superseded handle")
		return nil
	}
	id.SessionID = s.identity.SessionID
	if id.CreatedAt.IsZero() {
		id.CreatedAt = s.identity.CreatedAt
	}
	if err := s.creds.Save(context.Background(), id); err != nil {
		s.log.WithError(err).Error("Failed to persist credentials")
		return err
	}
	s.identity = id
	s.log.WithField("me", id.Me).Debug("Credentials persisted")
	return nil
}

func (s *Supervisor) connectionStateChanged(gen uint64, u domain.ConnectionUpdate) {
	switch u.State {
	case domain.ConnectionQR:
		s.handleQR(gen, u.QR)
	case domain.ConnectionOpen:
		s.handleOpen(gen)
	case domain.ConnectionClosed:
		s.handleClose(gen, u)
	}
}

func (s *Supervisor) handleQR(gen uint64, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}
	if s.status != domain.StatusConnecting && s.status != domain.StatusAwaitingQR {
		s.log.WithField("status", s.status).Warn("Ignoring QR challenge outside pairing")
		return
	}
	challenge := domain.QRChallenge{Code: code, IssuedAt: s.now().UTC()}
	s.qr = &challenge
	s.setStatusLocked(domain.StatusAwaitingQR, "")
	s.log.Info("New QR code received")
	s.publish(domain.QRIssued{Challenge: challenge})
}

func (s *Supervisor) handleOpen(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}
	s.qr = nil
	s.retry = domain.RetryState{}
	s.setStatusLocked(domain.StatusAuthenticated, "")
	s.log.WithField("me", s.identity.Me).Info("Connection established")
}

func (s *Supervisor) handleClose(gen uint64, u domain.ConnectionUpdate) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"generation": gen,
			"cause":      u.Cause,
		}).Debug("Ignoring close from superseded handle")
		return
	}
	h := s.handle
	s.handle = nil
	s.setStatusLocked(domain.StatusDisconnected, u.Cause)

	entry := s.log.WithFields(logrus.Fields{"generation": gen, "cause": u.Cause})
	if u.Err != nil {
		entry = entry.WithError(u.Err)
	}

	if u.Cause.Terminal() {
		entry.Warn("Logged out by remote, wiping credentials for a fresh pairing")
		s.qr = nil
		if err := s.wipeLocked(context.Background()); err != nil {
			s.log.WithError(err).Error("Credential wipe failed, staying disconnected")
		} else {
			s.stopTimerLocked()
			s.timer = s.sched.AfterFunc(0, func() { s.reinitialize(gen) })
		}
	} else {
		entry.Info("Connection closed")
		s.scheduleReconnectLocked(gen)
	}
	s.mu.Unlock()

	if err := h.Close(); err != nil {
		s.log.WithError(err).Debug("Closing transport handle failed")
	}
}

func (s *Supervisor) messagesReceived(gen uint64, batch domain.MessageBatch) {
	s.mu.Lock()
	current := s.currentLocked(gen)
	s.mu.Unlock()
	if !current || s.inbound == nil {
		return
	}
	s.inbound.Route(batch)
}

// scheduleReconnectLocked arms the backoff timer for gen.
func (s *Supervisor) scheduleReconnectLocked(gen uint64) {
	if s.backoff.Exhausted(s.retry.Attempt) {
		s.log.WithField("attempts", s.retry.Attempt).Error("Reconnect attempts exhausted, waiting for Initialize")
		s.setStatusLocked(domain.StatusDisconnected, domain.CauseRetriesExhausted)
		return
	}
	s.stopTimerLocked()
	delay := s.backoff.Delay(s.retry.Attempt)
	s.retry.NextDelay = delay
	s.timer = s.sched.AfterFunc(delay, func() { s.reconnect(gen) })
	s.log.WithFields(logrus.Fields{
		"attempt": s.retry.Attempt,
		"delay":   delay,
	}).Info("Reconnect scheduled")
}

func (s *Supervisor) reconnect(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.generation || s.handle != nil || s.status != domain.StatusDisconnected {
		s.mu.Unlock()
		s.log.WithField("generation", gen).Debug("Reconnect superseded")
		return
	}
	s.timer = nil
	s.retry.Attempt++
	s.mu.Unlock()

	s.connect(context.Background())
}

func (s *Supervisor) reinitialize(gen uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if gen != s.generation || s.handle != nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	if err := s.initialize(context.Background()); err != nil {
		s.log.WithError(err).Error("Reinitialize after remote logout failed")
	}
}

// wipeLocked deletes the credentials, lets the transport forget its device
// material and resets the in-memory identity to a fresh one.
func (s *Supervisor) wipeLocked(ctx context.Context) error {
	old := s.identity
	if err := s.creds.Wipe(ctx); err != nil {
		return err
	}
	if purger, ok := s.transport.(domain.IdentityPurger); ok && old.Paired() {
		if err := purger.Purge(ctx, old); err != nil {
			s.log.WithError(err).Warn("Transport purge failed")
		}
	}
	s.identity = domain.NewSessionIdentity(old.SessionID, s.now().UTC())
	return nil
}

func (s *Supervisor) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.retry.NextDelay = 0
}

func (s *Supervisor) setStatusLocked(to domain.ConnectionStatus, cause domain.CloseCause) {
	from := s.status
	if from == to && cause == "" {
		return
	}
	s.status = to
	s.log.WithFields(logrus.Fields{
		"from":  from,
		"to":    to,
		"cause": cause,
	}).Debug("Status changed")
	s.publish(domain.StatusChanged{From: from, To: to, Cause: cause})
}

func (s *Supervisor) publish(ev domain.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
}

// handleEvents binds transport callbacks to the generation of one handle.
type handleEvents struct {
	s   *Supervisor
	gen uint64
}

func (e *handleEvents) CredentialsUpdated(id domain.SessionIdentity) error {
	return e.s.credentialsUpdated(e.gen, id)
}

func (e *handleEvents) ConnectionStateChanged(u domain.ConnectionUpdate) {
	e.s.connectionStateChanged(e.gen, u)
}

func (e *handleEvents) MessagesReceived(batch domain.MessageBatch) {
	e.s.messagesReceived(e.gen, batch)
}

var _ domain.TransportEvents = (*handleEvents)(nil)
