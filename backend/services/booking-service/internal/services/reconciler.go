package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/metrics"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

type OutcomeKind string

const (
	OutcomeConfirmed OutcomeKind = "confirmed"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the single authoritative result of a logical booking.
type Outcome struct {
	Kind   OutcomeKind           `json:"kind"`
	Record *models.BookingRecord `json:"record,omitempty"`
	Reason string                `json:"reason,omitempty"`
	Err    error                 `json:"-"`
}

func Confirmed(rec models.BookingRecord) Outcome {
	return Outcome{Kind: OutcomeConfirmed, Record: &rec}
}

func FailedNoWorkers() Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: constants.ReasonNoWorkers, Err: internal_utils.ErrNoEligibleWorkers}
}

func FailedTimeout() Outcome {
	return Outcome{Kind: OutcomeFailed, Reason: constants.ReasonTimeout, Err: internal_utils.ErrPollTimedOut}
}

func (o Outcome) IsConfirmed() bool { return o.Kind == OutcomeConfirmed }
func (o Outcome) TimedOut() bool    { return o.Kind == OutcomeFailed && o.Reason == constants.ReasonTimeout }
func (o Outcome) NoWorkers() bool   { return o.Kind == OutcomeFailed && o.Reason == constants.ReasonNoWorkers }

// PollSnapshot is the set of records sharing one booking id as seen on one tick.
type PollSnapshot struct {
	BookingID string                 `json:"booking_id"`
	Records   []models.BookingRecord `json:"records"`
	FetchedAt time.Time              `json:"fetched_at"`
	Tick      int                    `json:"tick"`
}

// EvaluateSnapshot applies the resolution policy to one snapshot. Confirmed
// is checked before Failed, so an Accepted record wins over any number of
// rejections in the same snapshot.
func EvaluateSnapshot(records []models.BookingRecord) (Outcome, bool) {
	for _, rec := range records {
		if rec.Status == models.BookingStatusAccepted {
			return Confirmed(rec), true
		}
	}
	if len(records) == 0 {
		return Outcome{}, false
	}
	for _, rec := range records {
		if rec.Status != models.BookingStatusRejectedOrMissed {
			return Outcome{}, false
		}
	}
	return FailedNoWorkers(), true
}

// ---------------------------------------------------------------------------
// PollHandle
// ---------------------------------------------------------------------------

// PollHandle owns one running reconciliation loop. Its timers and the
// in-flight fetch are released on every exit path.
type PollHandle struct {
	bookingID string
	cancel    context.CancelFunc
	done      chan struct{}

	// mu is held by the loop from the stopped check through the fetch and
	// any callback, so Cancel returning means nothing new can start.
	mu         sync.Mutex
	stopped    atomic.Bool
	inCallback atomic.Bool

	outcomeMu sync.Mutex
	outcome   *Outcome
}

func (h *PollHandle) BookingID() string { return h.bookingID }

// Cancel stops polling. It is idempotent, safe after a terminal outcome and
// safe from inside onUpdate/onTerminal.
func (h *PollHandle) Cancel() {
	h.cancel()
	h.stopped.Store(true)
	if h.inCallback.Load() {
		return
	}
	// Wait out an in-flight fetch or callback.
	h.mu.Lock()
	defer h.mu.Unlock()
}

// Done is closed once the loop has exited.
func (h *PollHandle) Done() <-chan struct{} { return h.done }

// Outcome returns the terminal outcome, if one was reached.
func (h *PollHandle) Outcome() (Outcome, bool) {
	h.outcomeMu.Lock()
	defer h.outcomeMu.Unlock()
	if h.outcome == nil {
		return Outcome{}, false
	}
	return *h.outcome, true
}

func (h *PollHandle) setOutcome(o Outcome) {
	h.outcomeMu.Lock()
	defer h.outcomeMu.Unlock()
	h.outcome = &o
}

func (h *PollHandle) callback(fn func()) {
	h.inCallback.Store(true)
	defer h.inCallback.Store(false)
	fn()
}

// ---------------------------------------------------------------------------
// Reconciler
// ---------------------------------------------------------------------------

type Reconciler struct {
	backend  clients.BackendClient
	interval time.Duration
	timeout  time.Duration
}

// NewReconciler builds a poller. timeout <= 0 means no deadline.
func NewReconciler(backend clients.BackendClient, interval, timeout time.Duration) *Reconciler {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	return &Reconciler{backend: backend, interval: interval, timeout: timeout}
}

func (r *Reconciler) Interval() time.Duration { return r.interval }
func (r *Reconciler) Timeout() time.Duration  { return r.timeout }

// Resolve starts polling every record of userID tagged with bookingID. The
// first fetch happens one interval after the call. onUpdate (optional) sees
// every successful snapshot; onTerminal (optional) is called at most once.
func (r *Reconciler) Resolve(
	ctx context.Context,
	bookingID string,
	userID int64,
	onUpdate func(PollSnapshot),
	onTerminal func(Outcome),
) *PollHandle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		bookingID: bookingID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go r.run(runCtx, h, userID, onUpdate, onTerminal)
	return h
}

func (r *Reconciler) run(
	ctx context.Context,
	h *PollHandle,
	userID int64,
	onUpdate func(PollSnapshot),
	onTerminal func(Outcome),
) {
	defer close(h.done)
	defer h.cancel()

	log := utils.BookingLogger(h.bookingID)
	log.WithFields(logrus.Fields{
		"interval": r.interval,
		"timeout":  r.timeout,
	}).Info("Polling started")

	var (
		deadline   <-chan time.Time
		deadlineAt time.Time
	)
	if r.timeout > 0 {
		deadlineAt = time.Now().Add(r.timeout)
		deadlineTimer := time.NewTimer(r.timeout)
		defer deadlineTimer.Stop()
		deadline = deadlineTimer.C
	}
	tick := time.NewTimer(r.interval)
	defer tick.Stop()

	finish := func(o Outcome) {
		h.setOutcome(o)
		if onTerminal != nil {
			h.callback(func() { onTerminal(o) })
		}
	}

	timedOut := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.stopped.Load() {
			return
		}
		log.Warn("Polling timed out")
		finish(FailedTimeout())
	}

	for n := 1; ; n++ {
		// The deadline wins over a tick that became ready at the same time.
		select {
		case <-deadline:
			timedOut()
			return
		default:
		}

		select {
		case <-ctx.Done():
			log.Debug("Polling cancelled")
			return
		case <-deadline:
			timedOut()
			return
		case <-tick.C:
		}

		h.mu.Lock()
		if h.stopped.Load() {
			h.mu.Unlock()
			return
		}

		snap, err := r.fetch(ctx, deadlineAt, h.bookingID, userID, n)
		if h.stopped.Load() || ctx.Err() != nil {
			h.mu.Unlock()
			return
		}
		if err != nil {
			metrics.IncPollFetch("error")
			log.WithError(err).WithField("tick", n).Warn("Poll fetch failed, still waiting")
			h.mu.Unlock()
			tick.Reset(r.interval)
			continue
		}
		metrics.IncPollFetch("ok")

		if onUpdate != nil {
			h.callback(func() { onUpdate(snap) })
			if h.stopped.Load() {
				h.mu.Unlock()
				return
			}
		}

		if outcome, terminal := EvaluateSnapshot(snap.Records); terminal {
			log.WithFields(logrus.Fields{
				"tick":    n,
				"outcome": outcome.Kind,
				"reason":  outcome.Reason,
			}).Info("Booking resolved")
			finish(outcome)
			h.mu.Unlock()
			return
		}

		log.WithFields(logrus.Fields{"tick": n, "records": len(snap.Records)}).Debug("Still waiting")
		h.mu.Unlock()
		tick.Reset(r.interval)
	}
}

// fetch issues one GET bounded by both the poll deadline and a per-fetch cap.
func (r *Reconciler) fetch(
	ctx context.Context,
	deadlineAt time.Time,
	bookingID string,
	userID int64,
	tick int,
) (PollSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, constants.PollFetchTimeout)
	defer cancel()
	if !deadlineAt.IsZero() {
		var cancelDeadline context.CancelFunc
		fetchCtx, cancelDeadline = context.WithDeadline(fetchCtx, deadlineAt)
		defer cancelDeadline()
	}

	all, err := r.backend.ListBookings(fetchCtx, userID, true)
	if err != nil {
		return PollSnapshot{}, err
	}
	records := make([]models.BookingRecord, 0, len(all))
	for _, rec := range all {
		if rec.BookingID == bookingID {
			records = append(records, rec)
		}
	}
	return PollSnapshot{
		BookingID: bookingID,
		Records:   records,
		FetchedAt: time.Now(),
		Tick:      tick,
	}, nil
}
