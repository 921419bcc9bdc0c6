package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"kiosk/entity"
	"kiosk/metrics"
	"kiosk/scan"
)

var ErrNotConfirming = errors.New("no badge is waiting for confirmation")

type BadgeFetcher interface {
	FetchBadge(ctx context.Context, ticketID string) (entity.Badge, error)
}

type PDFSink interface {
	SavePDF(ctx context.Context, pdfBase64, filename string) error
}

// Listener is told about finished badge requests. It is called outside the
// lifecycle lock.
type Listener interface {
	BadgeIssued(ctx context.Context, badge entity.Badge)
	BadgeRequestFailed(ctx context.Context, ticketID string, err error)
}

type Config struct {
	// Cooldown is the window in which the same ticket is not admitted twice.
	Cooldown time.Duration
	// RequestTimeout bounds a single badge request. Zero leaves it to the fetcher.
	RequestTimeout time.Duration
	// AutoDismiss returns an error screen to idle after this delay. Zero disables it.
	AutoDismiss time.Duration

	Now func() time.Time
}

// Lifecycle owns the scan gate and the badge request state machine of one
// kiosk screen. All transitions happen under one mutex, so admission is a
// single check-and-set and at most one request is in flight.
type Lifecycle struct {
	fetcher  BadgeFetcher
	sink     PDFSink
	listener Listener
	config   Config

	ctx  context.Context
	stop context.CancelFunc

	mu           sync.Mutex
	gate         *scan.Gate
	snapshot     Snapshot
	requestID    uint64
	requestCorr  string
	cancel       context.CancelFunc
	dismissTimer *time.Timer
	closed       bool
	observers    map[int]func(Snapshot)
	nextObserver int
}

func New(fetcher BadgeFetcher, sink PDFSink, listener Listener, config Config) *Lifecycle {
	if fetcher == nil {
		panic("fetcher is nil")
	}
	if sink == nil {
		panic("sink is nil")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	ctx, stop := context.WithCancel(context.Background())

	return &Lifecycle{
		fetcher:   fetcher,
		sink:      sink,
		listener:  listener,
		config:    config,
		ctx:       ctx,
		stop:      stop,
		gate:      scan.NewGate(config.Cooldown),
		snapshot:  Snapshot{State: StateIdle},
		observers: make(map[int]func(Snapshot)),
	}
}

// HandleScan feeds one decoded text into the gate. It reports whether the
// scan started a badge request.
func (l *Lifecycle) HandleScan(raw string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}

	ticketID, err := l.gate.Admit(raw, l.config.Now())
	if err != nil {
		metrics.ScansReceived.WithLabelValues(scanOutcome(err)).Inc()
		log.FromContext(l.ctx).WithError(err).Debug("Scan ignored")
		return false
	}
	metrics.ScansReceived.WithLabelValues("admitted").Inc()

	l.stopDismissTimer()

	correlationID := shortuuid.New()
	ctx := log.ContextWithCorrelationID(l.ctx, correlationID)
	ctx = log.ToContext(ctx, logrus.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"ticket_id":      ticketID,
	}))

	var cancel context.CancelFunc
	if l.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.config.RequestTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	l.requestID++
	l.requestCorr = correlationID
	l.cancel = cancel
	l.transition(Snapshot{State: StateLoading, TicketID: ticketID})

	log.FromContext(ctx).Info("Scan admitted, requesting badge")

	go l.fetch(ctx, l.requestID, ticketID)

	return true
}

func (l *Lifecycle) fetch(ctx context.Context, requestID uint64, ticketID string) {
	ctx, span := otel.Tracer("kiosk").Start(ctx, "badge request")
	span.SetAttributes(attribute.String("ticket_id", ticketID))
	defer span.End()

	start := time.Now()
	badge, err := l.fetcher.FetchBadge(ctx, ticketID)
	metrics.BadgeRequestDuration.Observe(time.Since(start).Seconds())

	if err == nil && badge.PDFBase64 == "" {
		err = fmt.Errorf("badge without pdf: %w", entity.ErrInvalidResponse)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	l.finish(ctx, requestID, ticketID, badge, err)
}

func (l *Lifecycle) finish(ctx context.Context, requestID uint64, ticketID string, badge entity.Badge, err error) {
	logger := log.FromContext(ctx)

	l.mu.Lock()

	if l.closed || requestID != l.requestID || l.snapshot.State != StateLoading {
		l.mu.Unlock()
		metrics.BadgeRequests.WithLabelValues("cancelled").Inc()
		logger.Debug("Dropping result of a superseded badge request")
		return
	}

	l.cancel()
	l.cancel = nil

	metrics.BadgeRequests.WithLabelValues(resultLabel(err)).Inc()

	if errors.Is(err, context.Canceled) {
		// cancelled without Reset or Close, nobody is watching this request anymore
		l.gate.Release()
		l.snapshot = Snapshot{State: StateIdle}
		l.mu.Unlock()
		logger.Info("Badge request cancelled")
		return
	}

	if err != nil {
		l.gate.Release()
		l.transition(Snapshot{
			State:    StateError,
			TicketID: ticketID,
			Error:    ErrorMessage(err),
			Err:      err,
		})
		l.startDismissTimer(requestID)
		l.mu.Unlock()

		logger.WithError(err).Warn("Badge request failed")
		if l.listener != nil {
			// the request context is already cancelled at this point
			l.listener.BadgeRequestFailed(context.WithoutCancel(ctx), ticketID, err)
		}
		return
	}

	if badge.TicketID == "" {
		badge.TicketID = ticketID
	}
	l.transition(Snapshot{State: StateConfirm, TicketID: ticketID, Badge: &badge})
	l.mu.Unlock()

	logger.WithField("name", badge.Name).Info("Badge ready for confirmation")
}

// Accept saves the badge waiting for confirmation through the PDF sink and
// returns the kiosk to idle.
func (l *Lifecycle) Accept(ctx context.Context) error {
	l.mu.Lock()

	if l.closed || l.snapshot.State != StateConfirm || l.snapshot.Badge == nil {
		l.mu.Unlock()
		return ErrNotConfirming
	}

	badge := *l.snapshot.Badge
	correlationID := l.requestCorr
	l.gate.Release()
	l.transition(Snapshot{State: StateIdle})
	l.mu.Unlock()

	// saving and the issued event belong to the scan that produced the badge
	ctx = log.ContextWithCorrelationID(ctx, correlationID)
	ctx = log.ToContext(ctx, log.FromContext(ctx).WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"ticket_id":      badge.TicketID,
	}))

	if err := l.sink.SavePDF(ctx, badge.PDFBase64, badge.FileName()); err != nil {
		return fmt.Errorf("could not save badge for ticket %s: %w", badge.TicketID, err)
	}

	if l.listener != nil {
		l.listener.BadgeIssued(ctx, badge)
	}

	return nil
}

// Dismiss closes a confirmation or error screen without saving anything.
func (l *Lifecycle) Dismiss() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	switch l.snapshot.State {
	case StateConfirm, StateError:
		l.stopDismissTimer()
		l.gate.Release()
		l.transition(Snapshot{State: StateIdle})
	}
}

// Reset cancels any in-flight request and returns to idle with a fresh gate.
// The cancelled request never reports back.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.abort()
	l.transition(Snapshot{State: StateIdle})
}

// Close tears the lifecycle down: the in-flight request is cancelled, the
// timer is stopped and no observer is called again.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	l.abort()
	l.snapshot = Snapshot{State: StateIdle}
	l.observers = make(map[int]func(Snapshot))
	l.stop()
}

func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshot
}

// Subscribe registers fn for every state transition. fn runs while the
// lifecycle lock is held, so it must not call back into the Lifecycle.
func (l *Lifecycle) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextObserver
	l.nextObserver++
	l.observers[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.observers, id)
	}
}

// Run closes the lifecycle once ctx is done.
func (l *Lifecycle) Run(ctx context.Context) error {
	<-ctx.Done()
	l.Close()
	return nil
}

func (l *Lifecycle) abort() {
	l.requestID++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.stopDismissTimer()
	l.gate.Reset()
}

func (l *Lifecycle) transition(next Snapshot) {
	l.snapshot = next
	for _, fn := range l.observers {
		fn(next)
	}
}

func (l *Lifecycle) startDismissTimer(requestID uint64) {
	if l.config.AutoDismiss <= 0 {
		return
	}

	l.dismissTimer = time.AfterFunc(l.config.AutoDismiss, func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if l.closed || l.requestID != requestID || l.snapshot.State != StateError {
			return
		}
		l.dismissTimer = nil
		l.transition(Snapshot{State: StateIdle})
	})
}

func (l *Lifecycle) stopDismissTimer() {
	if l.dismissTimer != nil {
		l.dismissTimer.Stop()
		l.dismissTimer = nil
	}
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, scan.ErrEmptyScan):
		return "empty"
	case errors.Is(err, scan.ErrGateLocked):
		return "locked"
	case errors.Is(err, scan.ErrCooldown):
		return "cooldown"
	default:
		return "rejected"
	}
}
