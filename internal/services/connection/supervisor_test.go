package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagate/internal/domain"
)

func TestInitialize_OpensFreshSession(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.sup.Initialize(context.Background()))

	require.Equal(t, 1, h.transport.opened())
	fh := h.transport.last()
	assert.False(t, fh.identity.Paired())
	connects, _, _ := fh.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, domain.StatusConnecting, h.sup.Status())

	_, err := h.sup.ActiveHandle()
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestInitialize_IsNoOpWhileConnected(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.sup.Initialize(context.Background()))
	require.NoError(t, h.sup.Initialize(context.Background()))

	assert.Equal(t, 1, h.transport.opened())
}

func TestInitialize_StorageErrorIsReturned(t *testing.T) {
	h := newHarness()
	h.creds.loadErr = &domain.StorageError{Op: "load", Err: errBoom}

	err := h.sup.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsStorageError(err))
	assert.Zero(t, h.transport.opened())
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	assert.Empty(t, h.sched.pending())
}

func TestQR_LatestChallengeSupersedes(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.sup.Initialize(context.Background()))
	fh := h.transport.last()

	_, ok := h.sup.CurrentQR()
	assert.False(t, ok)

	fh.qr("first")
	fh.qr("second")

	qr, ok := h.sup.CurrentQR()
	require.True(t, ok)
	assert.Equal(t, "second", qr.Code)
	assert.Equal(t, domain.StatusAwaitingQR, h.sup.Status())
	assert.Equal(t, []string{"first", "second"}, h.events.qrs())
}

func TestOpen_AuthenticatesAndClearsQR(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	assert.Equal(t, domain.StatusAuthenticated, h.sup.Status())
	_, ok := h.sup.CurrentQR()
	assert.False(t, ok)

	active, err := h.sup.ActiveHandle()
	require.NoError(t, err)
	assert.Same(t, fh, active)

	stored := h.creds.current()
	require.NotNil(t, stored)
	assert.Equal(t, "551187654321@s.whatsapp.net", stored.Me)
	assert.Equal(t, domain.SessionID("test"), stored.SessionID)
	assert.Equal(t, stored.Me, h.sup.Identity().Me)
}

func TestRecoverableClose_BackoffDelays(t *testing.T) {
	h := newHarness()
	h.authenticate()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for n, delay := range want {
		h.transport.last().close(domain.CauseConnectionLost)
		assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
		assert.Equal(t, delay, h.sup.Retry().NextDelay, "attempt %d", n)

		fired := h.sched.fireNext()
		assert.Equal(t, delay, fired, "attempt %d", n)
		assert.Equal(t, n+1, h.sup.Retry().Attempt)
		assert.Equal(t, domain.StatusConnecting, h.sup.Status())
	}

	assert.Equal(t, 1+len(want), h.transport.opened())
	// Reconnects reuse the loaded identity instead of reading the store again.
	assert.Equal(t, 1, h.creds.loads)
	assert.True(t, h.transport.last().identity.Paired())
}

func TestRecoverableClose_ResetsAfterOpen(t *testing.T) {
	h := newHarness()
	h.authenticate()

	h.transport.last().close(domain.CauseConnectionLost)
	h.sched.fireNext()
	h.transport.last().close(domain.CauseStreamError)
	h.sched.fireNext()
	require.Equal(t, 2, h.sup.Retry().Attempt)

	h.transport.last().open()
	assert.Equal(t, domain.RetryState{}, h.sup.Retry())

	h.transport.last().close(domain.CauseConnectionLost)
	assert.Equal(t, time.Second, h.sched.fireNext())
}

func TestRecoverableClose_ClosesOldHandle(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	fh.close(domain.CauseConnectionLost)

	_, _, closes := fh.counts()
	assert.Equal(t, 1, closes)
	_, err := h.sup.ActiveHandle()
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestConnectFailure_IsRecoverable(t *testing.T) {
	h := newHarness()
	h.transport.connectErr = errBoom

	require.NoError(t, h.sup.Initialize(context.Background()))
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	assert.Equal(t, time.Second, h.sched.fireNext())
	assert.Equal(t, 2, h.transport.opened())
}

func TestOpenFailure_IsRecoverable(t *testing.T) {
	h := newHarness()
	h.transport.openErr = errBoom

	require.NoError(t, h.sup.Initialize(context.Background()))
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	require.Len(t, h.sched.pending(), 1)

	h.transport.openErr = nil
	h.sched.fireNext()
	assert.Equal(t, 1, h.transport.opened())
	assert.Equal(t, domain.StatusConnecting, h.sup.Status())
}

func TestMaxRetries_StopsReconnecting(t *testing.T) {
	h := newHarness(WithBackoff(Backoff{Base: time.Second, Max: 30 * time.Second, MaxRetries: 2}))
	h.transport.connectErr = errBoom

	require.NoError(t, h.sup.Initialize(context.Background()))
	assert.Equal(t, time.Second, h.sched.fireNext())
	assert.Equal(t, 2*time.Second, h.sched.fireNext())

	assert.Empty(t, h.sched.pending())
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	statuses := h.events.statuses()
	assert.Equal(t, domain.CauseRetriesExhausted, statuses[len(statuses)-1].Cause)

	// Initialize starts over with a fresh attempt budget.
	h.transport.connectErr = nil
	require.NoError(t, h.sup.Initialize(context.Background()))
	assert.Equal(t, domain.StatusConnecting, h.sup.Status())
	assert.Equal(t, 0, h.sup.Retry().Attempt)
}

func TestTerminalClose_WipesThenStartsFreshPairing(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	fh.close(domain.CauseLoggedOut)

	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	assert.Nil(t, h.creds.current())
	assert.False(t, h.sup.Identity().Paired())
	assert.Equal(t, []string{"551187654321@s.whatsapp.net"}, h.transport.purged)

	assert.Equal(t, time.Duration(0), h.sched.fireNext())

	require.Equal(t, 2, h.transport.opened())
	fresh := h.transport.last()
	assert.False(t, fresh.identity.Paired())
	assert.Equal(t, domain.StatusConnecting, h.sup.Status())

	ops := h.ops.snapshot()
	wipeAt, reopenAt := -1, -1
	for i, op := range ops {
		if op == "wipe" && wipeAt < 0 {
			wipeAt = i
		}
		if op == "open " && i > 0 {
			reopenAt = i
		}
	}
	require.GreaterOrEqual(t, wipeAt, 0)
	assert.Less(t, wipeAt, reopenAt, "credentials must be wiped before the next session opens: %v", ops)

	fresh.qr("new-pairing")
	qr, ok := h.sup.CurrentQR()
	require.True(t, ok)
	assert.Equal(t, "new-pairing", qr.Code)
}

func TestTerminalClose_WipeFailureStaysDisconnected(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()
	h.creds.wipeErr = errBoom

	fh.close(domain.CauseLoggedOut)

	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	assert.Empty(t, h.sched.pending())
}

func TestTerminalThenRecoverableClose_SingleHandle(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	fh.close(domain.CauseLoggedOut)
	fh.close(domain.CauseConnectionLost)

	require.Len(t, h.sched.pending(), 1)
	h.sched.fireNext()

	assert.Equal(t, 2, h.transport.opened())
	assert.Equal(t, domain.StatusConnecting, h.sup.Status())
	assert.Empty(t, h.sched.pending())

	// A timer that slipped through Stop must still find itself superseded.
	for _, timer := range h.sched.all() {
		timer.f()
	}
	assert.Equal(t, 2, h.transport.opened())
}

func TestLogout_SwallowsProtocolErrorAndStaysDisconnected(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()
	fh.logoutErr = errBoom

	require.NoError(t, h.sup.Logout(context.Background()))

	_, logouts, closes := fh.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, 1, closes)
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
	assert.Nil(t, h.creds.current())
	assert.Empty(t, h.sched.pending())

	// The logged-out close the network reports afterwards is stale.
	fh.close(domain.CauseLoggedOut)
	assert.Empty(t, h.sched.pending())
	assert.Equal(t, 1, h.transport.opened())

	statuses := h.events.statuses()
	assert.Equal(t, domain.CauseLocalLogout, statuses[len(statuses)-1].Cause)
}

func TestLogout_WithoutConnection(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.sup.Logout(context.Background()))
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
}

func TestLogout_WipeFailureIsReturned(t *testing.T) {
	h := newHarness()
	h.authenticate()
	h.creds.wipeErr = &domain.StorageError{Op: "wipe", Err: errBoom}

	err := h.sup.Logout(context.Background())
	assert.True(t, domain.IsStorageError(err))
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
}

func TestLogout_CancelsPendingReconnect(t *testing.T) {
	h := newHarness()
	h.authenticate()
	h.transport.last().close(domain.CauseConnectionLost)
	timers := h.sched.pending()
	require.Len(t, timers, 1)

	require.NoError(t, h.sup.Logout(context.Background()))
	assert.True(t, timers[0].stopped)

	// Even if the timer fires anyway it must not open a handle.
	timers[0].f()
	assert.Equal(t, 1, h.transport.opened())
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
}

func TestInitialize_SupersedesPendingReconnect(t *testing.T) {
	h := newHarness()
	h.authenticate()
	h.transport.last().close(domain.CauseConnectionLost)
	stale := h.sched.pending()[0]

	require.NoError(t, h.sup.Initialize(context.Background()))
	assert.Equal(t, 2, h.transport.opened())

	stale.f()
	assert.Equal(t, 2, h.transport.opened())
}

func TestShutdown_KeepsCredentials(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	h.sup.Shutdown()

	_, logouts, closes := fh.counts()
	assert.Zero(t, logouts)
	assert.Equal(t, 1, closes)
	assert.NotNil(t, h.creds.current())
	assert.Equal(t, domain.StatusDisconnected, h.sup.Status())
}

func TestStaleHandleEventsAreIgnored(t *testing.T) {
	h := newHarness()
	old := h.authenticate()
	old.close(domain.CauseConnectionLost)
	h.sched.fireNext()

	old.open()
	old.qr("stale")
	require.NoError(t, old.pair("someone-else"))
	old.events.MessagesReceived(domain.MessageBatch{Live: true})

	assert.Equal(t, domain.StatusConnecting, h.sup.Status())
	_, ok := h.sup.CurrentQR()
	assert.False(t, ok)
	assert.Equal(t, "551187654321@s.whatsapp.net", h.creds.current().Me)
	assert.Empty(t, h.inbound.batches)
}

func TestMessagesFromLiveHandleAreRouted(t *testing.T) {
	h := newHarness()
	fh := h.authenticate()

	fh.events.MessagesReceived(domain.MessageBatch{Live: true, Messages: []domain.RawMessage{{Text: "hi"}}})

	require.Len(t, h.inbound.batches, 1)
	assert.Equal(t, "hi", h.inbound.batches[0].Messages[0].Text)
}

func TestConcurrentStatusReadsDuringTransitions(t *testing.T) {
	h := newHarness()
	h.authenticate()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = h.sup.Status()
				_, _ = h.sup.ActiveHandle()
			}
		}()
	}
	for i := 0; i < 20; i++ {
		h.transport.last().close(domain.CauseConnectionLost)
		h.sched.fireNext()
		h.transport.last().open()
	}
	wg.Wait()
	assert.Equal(t, domain.StatusAuthenticated, h.sup.Status())
}
