package checkin

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"kiosk/entity"
	"kiosk/gateway"
)

type clockMock struct {
	lock sync.Mutex
	now  time.Time
}

func newClockMock() *clockMock {
	return &clockMock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clockMock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *clockMock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type listenerMock struct {
	lock           sync.Mutex
	issued         []entity.Badge
	failed         map[string]error
	correlationIDs []string
}

func (l *listenerMock) BadgeIssued(ctx context.Context, badge entity.Badge) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.issued = append(l.issued, badge)
	l.correlationIDs = append(l.correlationIDs, log.CorrelationIDFromContext(ctx))
}

func (l *listenerMock) BadgeRequestFailed(ctx context.Context, ticketID string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.failed == nil {
		l.failed = make(map[string]error)
	}
	l.failed[ticketID] = err
	l.correlationIDs = append(l.correlationIDs, log.CorrelationIDFromContext(ctx))
}

func (l *listenerMock) CorrelationIDs() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.correlationIDs...)
}

func (l *listenerMock) Failed(ticketID string) (error, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	err, ok := l.failed[ticketID]
	return err, ok
}

type fixture struct {
	lifecycle *Lifecycle
	badges    *gateway.BadgeMock
	sink      *gateway.PDFSinkMock
	listener  *listenerMock
	clock     *clockMock
}

func newFixture(t *testing.T, config Config) fixture {
	t.Helper()

	f := fixture{
		badges: &gateway.BadgeMock{
			Badges: map[string]entity.Badge{
				"TKT-001": {TicketID: "TKT-001", Name: "A", PDFBase64: "JVBERi0="},
				"TKT-002": {TicketID: "TKT-002", Name: "B", PDFBase64: "JVBERi0="},
			},
			Errors: map[string]error{
				"TKT-403":   entity.ErrForbidden,
				"TKT-500":   &entity.ServerError{Status: http.StatusInternalServerError, Detail: "boom"},
				"TKT-NET":   &entity.NetworkError{Err: errors.New("connection refused")},
				"TKT-NOPDF": entity.ErrInvalidResponse,
			},
		},
		sink:     &gateway.PDFSinkMock{},
		listener: &listenerMock{},
		clock:    newClockMock(),
	}
	config.Now = f.clock.Now

	f.lifecycle = New(f.badges, f.sink, f.listener, config)
	t.Cleanup(f.lifecycle.Close)

	return f
}

func waitForState(t *testing.T, l *Lifecycle, state State) Snapshot {
	t.Helper()

	var snapshot Snapshot
	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			snapshot = l.Snapshot()
			assert.Equal(t, state, snapshot.State)
		},
		time.Second,
		5*time.Millisecond,
	)

	return snapshot
}

func TestLifecycle_ScanToConfirmToAccept(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t, Config{})

	require.True(t, f.lifecycle.HandleScan("TKT-001"))

	snapshot := waitForState(t, f.lifecycle, StateConfirm)
	require.NotNil(t, snapshot.Badge)
	assert.Equal(t, "A", snapshot.Badge.Name)
	assert.Equal(t, "TKT-001", snapshot.TicketID)

	assert.False(t, f.lifecycle.HandleScan("TKT-002"), "confirm screen keeps the gate locked")

	require.NoError(t, f.lifecycle.Accept(context.Background()))

	assert.Equal(t, StateIdle, f.lifecycle.Snapshot().State)
	assert.Equal(t, []gateway.SavedPDF{{FileName: "badge_TKT-001.pdf", PDFBase64: "JVBERi0="}}, f.sink.SavedFiles())
	assert.Len(t, f.listener.issued, 1)

	assert.ErrorIs(t, f.lifecycle.Accept(context.Background()), ErrNotConfirming, "accept is not repeatable")
	assert.Len(t, f.sink.SavedFiles(), 1)

	assert.True(t, f.lifecycle.HandleScan("TKT-002"), "gate unlocks after accept")
	waitForState(t, f.lifecycle, StateConfirm)
}

func TestLifecycle_LoadingState(t *testing.T) {
	f := newFixture(t, Config{})
	f.badges.Block = make(chan struct{})

	require.True(t, f.lifecycle.HandleScan("TKT-2026-MKVIV4CK-D9C4FB27"))

	snapshot := f.lifecycle.Snapshot()
	assert.Equal(t, StateLoading, snapshot.State)
	assert.Equal(t, "TKT-2026-MKVIV4CK-D9C4FB27", snapshot.TicketID)

	close(f.badges.Block)
	waitForState(t, f.lifecycle, StateError)
}

func TestLifecycle_SingleRequestInFlight(t *testing.T) {
	f := newFixture(t, Config{})
	f.badges.Block = make(chan struct{})

	var wg sync.WaitGroup
	admitted := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				admitted <- f.lifecycle.HandleScan("TKT-001")
			} else {
				admitted <- f.lifecycle.HandleScan("TKT-002")
			}
		}(i)
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)

	close(f.badges.Block)
	waitForState(t, f.lifecycle, StateConfirm)
	assert.Equal(t, 1, f.badges.RequestCount())
}

func TestLifecycle_Errors(t *testing.T) {
	testCases := []struct {
		ticketID string
		message  string
	}{
		{ticketID: "TKT-404", message: "Ticket not found"},
		{ticketID: "TKT-403", message: "Not permitted to view this badge"},
		{ticketID: "TKT-500", message: "Server error 500: boom"},
		{ticketID: "TKT-NET", message: "Network error while fetching the badge"},
		{ticketID: "TKT-NOPDF", message: "Invalid server response (no PDF)"},
	}

	for _, tc := range testCases {
		t.Run(tc.ticketID, func(t *testing.T) {
			f := newFixture(t, Config{})

			require.True(t, f.lifecycle.HandleScan(tc.ticketID))

			snapshot := waitForState(t, f.lifecycle, StateError)
			assert.Equal(t, tc.message, snapshot.Error)
			assert.Equal(t, tc.ticketID, snapshot.TicketID)
			assert.Nil(t, snapshot.Badge)

			_, reported := f.listener.Failed(tc.ticketID)
			assert.True(t, reported)
			assert.Empty(t, f.sink.SavedFiles())
		})
	}
}

func TestLifecycle_NotFoundThenRescanAfterCooldown(t *testing.T) {
	f := newFixture(t, Config{})

	require.True(t, f.lifecycle.HandleScan("TKT-404"))
	waitForState(t, f.lifecycle, StateError)

	assert.False(t, f.lifecycle.HandleScan("TKT-404"), "same ticket inside cooldown")

	f.clock.Advance(2 * time.Second)
	assert.True(t, f.lifecycle.HandleScan("TKT-404"), "lock was released on error")
	waitForState(t, f.lifecycle, StateError)

	assert.Equal(t, 2, f.badges.RequestCount())
}

func TestLifecycle_DifferentTicketReplacesError(t *testing.T) {
	f := newFixture(t, Config{})

	require.True(t, f.lifecycle.HandleScan("TKT-404"))
	waitForState(t, f.lifecycle, StateError)

	require.True(t, f.lifecycle.HandleScan("TKT-001"))
	snapshot := waitForState(t, f.lifecycle, StateConfirm)
	assert.Equal(t, "TKT-001", snapshot.TicketID)
}

func TestLifecycle_Dismiss(t *testing.T) {
	t.Run("confirm", func(t *testing.T) {
		f := newFixture(t, Config{})

		require.True(t, f.lifecycle.HandleScan("TKT-001"))
		waitForState(t, f.lifecycle, StateConfirm)

		f.lifecycle.Dismiss()

		snapshot := f.lifecycle.Snapshot()
		assert.Equal(t, StateIdle, snapshot.State)
		assert.Nil(t, snapshot.Badge)
		assert.Empty(t, f.sink.SavedFiles())

		assert.False(t, f.lifecycle.HandleScan("TKT-001"), "cooldown still applies after dismiss")
		assert.True(t, f.lifecycle.HandleScan("TKT-002"))
	})

	t.Run("error", func(t *testing.T) {
		f := newFixture(t, Config{})

		require.True(t, f.lifecycle.HandleScan("TKT-500"))
		waitForState(t, f.lifecycle, StateError)

		f.lifecycle.Dismiss()

		snapshot := f.lifecycle.Snapshot()
		assert.Equal(t, StateIdle, snapshot.State)
		assert.Empty(t, snapshot.Error)
	})

	t.Run("loading_is_not_dismissable", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.badges.Block = make(chan struct{})
		defer close(f.badges.Block)

		require.True(t, f.lifecycle.HandleScan("TKT-001"))
		f.lifecycle.Dismiss()

		assert.Equal(t, StateLoading, f.lifecycle.Snapshot().State)
	})
}

func TestLifecycle_CloseWhileLoading(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t, Config{})
	f.badges.Block = make(chan struct{})

	var lock sync.Mutex
	var observed []State
	f.lifecycle.Subscribe(func(s Snapshot) {
		lock.Lock()
		defer lock.Unlock()
		observed = append(observed, s.State)
	})

	require.True(t, f.lifecycle.HandleScan("TKT-001"))
	require.Eventually(t, func() bool { return f.badges.RequestCount() == 1 }, time.Second, 5*time.Millisecond)

	f.lifecycle.Close()

	// the blocked fetch returns through ctx cancellation
	time.Sleep(50 * time.Millisecond)

	lock.Lock()
	assert.Equal(t, []State{StateLoading}, observed)
	lock.Unlock()

	assert.Equal(t, StateIdle, f.lifecycle.Snapshot().State)
	_, reported := f.listener.Failed("TKT-001")
	assert.False(t, reported, "cancellation is not an error")

	assert.False(t, f.lifecycle.HandleScan("TKT-002"), "closed lifecycle ignores scans")
}

func TestLifecycle_ResetWhileLoading(t *testing.T) {
	f := newFixture(t, Config{})
	f.badges.Block = make(chan struct{})

	require.True(t, f.lifecycle.HandleScan("TKT-001"))
	require.Eventually(t, func() bool { return f.badges.RequestCount() == 1 }, time.Second, 5*time.Millisecond)

	f.lifecycle.Reset()
	assert.Equal(t, StateIdle, f.lifecycle.Snapshot().State)

	// reset forgets the last ticket, so it may be scanned again right away
	close(f.badges.Block)
	require.True(t, f.lifecycle.HandleScan("TKT-001"))

	snapshot := waitForState(t, f.lifecycle, StateConfirm)
	assert.Equal(t, "TKT-001", snapshot.TicketID)
}

func TestLifecycle_AutoDismiss(t *testing.T) {
	f := newFixture(t, Config{AutoDismiss: 20 * time.Millisecond})

	var lock sync.Mutex
	var observed []State
	f.lifecycle.Subscribe(func(s Snapshot) {
		lock.Lock()
		defer lock.Unlock()
		observed = append(observed, s.State)
	})

	require.True(t, f.lifecycle.HandleScan("TKT-404"))

	require.EventuallyWithT(t, func(t *assert.CollectT) {
		lock.Lock()
		defer lock.Unlock()
		assert.Equal(t, []State{StateLoading, StateError, StateIdle}, observed)
	}, time.Second, 5*time.Millisecond)
}

func TestLifecycle_AcceptSinkFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.sink.Err = errors.New("disk full")

	require.True(t, f.lifecycle.HandleScan("TKT-001"))
	waitForState(t, f.lifecycle, StateConfirm)

	err := f.lifecycle.Accept(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateIdle, f.lifecycle.Snapshot().State)
	assert.Empty(t, f.listener.issued)
}

func TestLifecycle_IgnoresEmptyScans(t *testing.T) {
	f := newFixture(t, Config{})

	assert.False(t, f.lifecycle.HandleScan(""))
	assert.False(t, f.lifecycle.HandleScan("   "))
	assert.Equal(t, StateIdle, f.lifecycle.Snapshot().State)
	assert.Equal(t, 0, f.badges.RequestCount())
}

func TestLifecycle_ListenerGetsScanCorrelationID(t *testing.T) {
	f := newFixture(t, Config{})

	require.True(t, f.lifecycle.HandleScan("TKT-NET"))
	waitForState(t, f.lifecycle, StateError)
	require.Eventually(t, func() bool { return len(f.listener.CorrelationIDs()) == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, f.lifecycle.HandleScan("TKT-001"))
	waitForState(t, f.lifecycle, StateConfirm)

	acceptCtx := log.ContextWithCorrelationID(context.Background(), "http-request")
	require.NoError(t, f.lifecycle.Accept(acceptCtx))

	correlationIDs := f.listener.CorrelationIDs()
	require.Len(t, correlationIDs, 2)
	assert.NotEmpty(t, correlationIDs[0])
	assert.NotEqual(t, correlationIDs[0], correlationIDs[1], "each scan is its own request")
	assert.NotEqual(t, "http-request", correlationIDs[1], "accept continues the scan that fetched the badge")
	assert.NotContains(t, correlationIDs[1], "gen_")
}
