package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/locks"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/metrics"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-repositories"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

type BookingServiceConfig struct {
	PollOnPartialDispatch     bool
	AlertOpsOnPartialDispatch bool
}

// BookingService runs one customer request end to end: eligibility, fan-out,
// reconciliation and the outcome gate. Sessions outlive the HTTP request that
// created them, so polling runs on the service's own context.
type BookingService struct {
	backend    clients.BackendClient
	ids        *BookingIDGenerator
	dispatcher *Dispatcher
	reconciler *Reconciler
	gate       *OutcomeGate
	notifier   *NotificationService
	audit      repositories.BookingAuditRepository
	lock       locks.PollLock
	registry   *SessionRegistry
	cfg        BookingServiceConfig

	baseCtx context.Context
	stop    context.CancelFunc
	now     func() time.Time
}

func NewBookingService(
	backend clients.BackendClient,
	reconciler *Reconciler,
	gate *OutcomeGate,
	notifier *NotificationService,
	audit repositories.BookingAuditRepository,
	lock locks.PollLock,
	registry *SessionRegistry,
	cfg BookingServiceConfig,
) *BookingService {
	ctx, stop := context.WithCancel(context.Background())
	return &BookingService{
		backend:    backend,
		ids:        NewBookingIDGenerator(),
		dispatcher: NewDispatcher(backend),
		reconciler: reconciler,
		gate:       gate,
		notifier:   notifier,
		audit:      audit,
		lock:       lock,
		registry:   registry,
		cfg:        cfg,
		baseCtx:    ctx,
		stop:       stop,
		now:        time.Now,
	}
}

// CreateBooking fans the request out to every eligible worker and starts
// resolving it. On a partial dispatch the returned error wraps
// ErrDispatchFailed; the view is still returned when polling went ahead.
func (s *BookingService) CreateBooking(ctx context.Context, userID int64, req *models.ServiceRequest) (*SessionView, *DispatchResult, error) {
	roster, err := s.backend.ListWorkers(ctx)
	if err != nil {
		utils.Logger.WithError(err).Warn("Worker roster unavailable")
		return nil, nil, fmt.Errorf("%w: %w", internal_utils.ErrNoEligibleWorkers, err)
	}

	eligible := Eligible(roster, req.CategoryID)
	if len(eligible) == 0 {
		metrics.IncOutcome("no_eligible_workers")
		utils.Logger.WithFields(logrus.Fields{
			"category_id": req.CategoryID,
			"roster":      len(roster),
		}).Info("No eligible workers for request")
		return nil, nil, internal_utils.ErrNoEligibleWorkers
	}

	bookingID, err := s.ids.NewBookingID()
	if err != nil {
		return nil, nil, err
	}
	log := utils.BookingLogger(bookingID)

	result, dispatchErr := s.dispatcher.Dispatch(ctx, req, userID, eligible, bookingID)
	if result != nil {
		s.recordDispatch(ctx, userID, result)
	}
	if dispatchErr != nil {
		if result == nil || len(result.Succeeded) == 0 {
			return nil, result, dispatchErr
		}
		if s.cfg.AlertOpsOnPartialDispatch {
			if err := s.notifier.AlertPartialDispatch(ctx, result); err != nil {
				log.WithError(err).Warn("Failed to alert ops about partial dispatch")
			}
		}
		if !s.cfg.PollOnPartialDispatch {
			return nil, result, dispatchErr
		}
		log.Warn("Partial dispatch, polling the live records anyway")
	}

	sess := newSession(bookingID, userID, *req, roster, s.now())
	sess.dispatch = result
	if err := s.registry.Register(sess); err != nil {
		return nil, result, err
	}

	ttl := constants.DefaultPollTimeout
	if s.reconciler.Timeout() > 0 {
		ttl = s.reconciler.Timeout()
	}
	release, err := s.lock.Acquire(ctx, bookingID, ttl+constants.PollLockTTLSlack)
	if err != nil {
		s.registry.Remove(bookingID)
		if errors.Is(err, internal_utils.ErrPollLockHeld) {
			return nil, result, internal_utils.ErrAlreadyResolving
		}
		return nil, result, err
	}

	startedAt := s.now()
	sess.mu.Lock()
	sess.release = release
	sess.handle = s.reconciler.Resolve(s.baseCtx, bookingID, userID,
		func(snap PollSnapshot) { s.onSnapshot(sess, snap) },
		func(o Outcome) { s.onTerminal(sess, o, startedAt) },
	)
	sess.mu.Unlock()

	view := sess.View()
	return &view, result, dispatchErr
}

func (s *BookingService) GetBooking(userID int64, bookingID string) (*SessionView, error) {
	sess, err := s.sessionFor(userID, bookingID)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &view, nil
}

// CancelBooking stops polling. Calling it again, or after an outcome, only
// returns the current view.
func (s *BookingService) CancelBooking(ctx context.Context, userID int64, bookingID string) (*SessionView, error) {
	sess, err := s.sessionFor(userID, bookingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	handle := sess.handle
	sess.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}

	sess.mu.Lock()
	cancelled := false
	if sess.gate.State == GateAwaitingOutcome && sess.outcome == nil {
		sess.gate = GateResult{State: GateCancelled}
		sess.updatedAt = s.now()
		cancelled = true
	}
	sess.mu.Unlock()

	if cancelled {
		metrics.IncOutcome("cancelled")
		utils.BookingLogger(bookingID).Info("Polling cancelled by customer")
		s.releaseLock(ctx, sess)
		sess.markResolved()
	}
	view := sess.View()
	return &view, nil
}

// RetryPayment runs another payment attempt under the same booking id.
func (s *BookingService) RetryPayment(ctx context.Context, userID int64, bookingID string) (*SessionView, error) {
	sess, err := s.sessionFor(userID, bookingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.paymentInFlight {
		sess.mu.Unlock()
		return nil, internal_utils.ErrPaymentInFlight
	}
	if sess.gate.State != GatePaymentFailed {
		sess.mu.Unlock()
		return nil, internal_utils.ErrPaymentNotAvailable
	}
	sess.paymentInFlight = true
	sess.gate = GateResult{State: GatePaymentPending}
	req := sess.Request
	sess.mu.Unlock()

	res, payErr := s.gate.OpenPayment(ctx, bookingID, &req)
	s.setGate(sess, res)
	if payErr != nil {
		view := sess.View()
		return &view, payErr
	}
	view := sess.View()
	return &view, nil
}

// CancelPayment ends the flow without mutating any booking record.
func (s *BookingService) CancelPayment(userID int64, bookingID string) (*SessionView, error) {
	sess, err := s.sessionFor(userID, bookingID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.paymentInFlight {
		sess.mu.Unlock()
		return nil, internal_utils.ErrPaymentInFlight
	}
	if sess.gate.State != GatePaymentFailed {
		sess.mu.Unlock()
		return nil, internal_utils.ErrPaymentNotAvailable
	}
	sess.gate = s.gate.CancelPayment(bookingID)
	sess.updatedAt = s.now()
	sess.mu.Unlock()

	s.recordOutcome(context.Background(), &repositories.OutcomeAudit{
		BookingID:  bookingID,
		Outcome:    string(GatePaymentCancelled),
		ResolvedAt: s.now(),
	})
	view := sess.View()
	return &view, nil
}

// SweepSessions evicts settled sessions older than retention.
func (s *BookingService) SweepSessions(retention time.Duration) int {
	return s.registry.Sweep(retention)
}

// Close stops every live poller and releases their locks.
func (s *BookingService) Close(ctx context.Context) {
	s.stop()
	for _, sess := range s.registry.All() {
		sess.mu.Lock()
		handle := sess.handle
		sess.mu.Unlock()
		if handle != nil {
			handle.Cancel()
		}
		s.releaseLock(ctx, sess)
	}
}

// ---------------------------------------------------------------------------
// callbacks
// ---------------------------------------------------------------------------

func (s *BookingService) onSnapshot(sess *Session, snap PollSnapshot) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.snapshot = &snap
	sess.updatedAt = s.now()
}

// onTerminal runs on the poll goroutine; the gate is applied on a separate
// goroutine so a slow payment never holds the poll handle.
func (s *BookingService) onTerminal(sess *Session, o Outcome, startedAt time.Time) {
	metrics.ObserveResolveDuration(s.now().Sub(startedAt))

	sess.mu.Lock()
	if sess.gate.State == GateCancelled {
		sess.mu.Unlock()
		return
	}
	sess.outcome = &o
	sess.updatedAt = s.now()
	if o.IsConfirmed() && sess.Request.Flow == models.FlowServiceSeeker {
		sess.paymentInFlight = true
		sess.gate = GateResult{State: GatePaymentPending}
	}
	req := sess.Request
	roster := sess.roster
	sess.mu.Unlock()

	audit := &repositories.OutcomeAudit{BookingID: sess.BookingID, ResolvedAt: s.now()}
	switch {
	case o.IsConfirmed():
		metrics.IncOutcome("confirmed")
		audit.Outcome = string(OutcomeConfirmed)
		audit.WorkerID = utils.Ptr(o.Record.WorkerID)
	case o.TimedOut():
		metrics.IncOutcome("timeout")
		audit.Outcome = string(GateTimedOut)
		audit.Reason = utils.Ptr(o.Reason)
	default:
		metrics.IncOutcome("no_workers")
		audit.Outcome = string(GateNoWorkers)
		audit.Reason = utils.Ptr(o.Reason)
	}

	go func() {
		defer sess.markResolved()
		ctx := s.baseCtx
		s.releaseLock(ctx, sess)
		s.recordOutcome(ctx, audit)

		res, err := s.gate.Apply(ctx, &req, o, roster)
		if err != nil && res.State == "" {
			utils.BookingLogger(sess.BookingID).WithError(err).Error("Outcome gate failed")
			return
		}
		s.setGate(sess, res)
	}()
}

func (s *BookingService) setGate(sess *Session, res GateResult) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.gate = res
	sess.paymentInFlight = false
	sess.updatedAt = s.now()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (s *BookingService) sessionFor(userID int64, bookingID string) (*Session, error) {
	sess, err := s.registry.Get(bookingID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, internal_utils.ErrSessionNotFound
	}
	return sess, nil
}

func (s *BookingService) releaseLock(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	release := sess.release
	sess.release = nil
	sess.mu.Unlock()
	if release == nil {
		return
	}
	if err := release(context.WithoutCancel(ctx)); err != nil {
		utils.BookingLogger(sess.BookingID).WithError(err).Warn("Failed to release poll lock")
	}
}

func (s *BookingService) recordDispatch(ctx context.Context, userID int64, result *DispatchResult) {
	rows := make([]*repositories.DispatchAudit, 0, len(result.Succeeded)+len(result.Failed))
	for _, workerID := range result.Succeeded {
		metrics.IncDispatchCall("succeeded")
		rows = append(rows, &repositories.DispatchAudit{
			BookingID: result.BookingID,
			WorkerID:  workerID,
			UserID:    userID,
			Succeeded: true,
		})
	}
	for _, f := range result.Failed {
		metrics.IncDispatchCall("failed")
		rows = append(rows, &repositories.DispatchAudit{
			BookingID:    result.BookingID,
			WorkerID:     f.WorkerID,
			UserID:       userID,
			ErrorMessage: utils.Ptr(f.Error),
		})
	}
	if err := s.audit.RecordDispatch(context.WithoutCancel(ctx), rows); err != nil {
		utils.BookingLogger(result.BookingID).WithError(err).Warn("Failed to record dispatch audit")
	}
}

func (s *BookingService) recordOutcome(ctx context.Context, row *repositories.OutcomeAudit) {
	if err := s.audit.RecordOutcome(context.WithoutCancel(ctx), row); err != nil {
		utils.BookingLogger(row.BookingID).WithError(err).Warn("Failed to record outcome audit")
	}
}
