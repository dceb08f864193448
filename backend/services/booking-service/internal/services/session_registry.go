package services

import (
	"sync"
	"time"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/locks"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/metrics"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
)

// Session is everything the service knows about one logical booking while
// it is being resolved.
type Session struct {
	BookingID string
	UserID    int64
	Request   models.ServiceRequest
	CreatedAt time.Time

	mu              sync.Mutex
	roster          []models.Worker
	dispatch        *DispatchResult
	snapshot        *PollSnapshot
	outcome         *Outcome
	gate            GateResult
	paymentInFlight bool
	updatedAt       time.Time
	handle          *PollHandle
	release         locks.ReleaseFunc

	resolved     chan struct{}
	resolvedOnce sync.Once
}

func newSession(bookingID string, userID int64, req models.ServiceRequest, roster []models.Worker, now time.Time) *Session {
	return &Session{
		BookingID: bookingID,
		UserID:    userID,
		Request:   req,
		CreatedAt: now,
		roster:    roster,
		gate:      GateResult{State: GateAwaitingOutcome},
		updatedAt: now,
		resolved:  make(chan struct{}),
	}
}

// Resolved is closed once the first outcome has gone through the gate, or
// the session was cancelled before that.
func (s *Session) Resolved() <-chan struct{} { return s.resolved }

func (s *Session) markResolved() {
	s.resolvedOnce.Do(func() { close(s.resolved) })
}

// SessionView is the read model served to the client.
type SessionView struct {
	BookingID string          `json:"booking_id"`
	State     GateState       `json:"state"`
	Reason    string          `json:"reason,omitempty"`
	Dispatch  *DispatchResult `json:"dispatch,omitempty"`
	Snapshot  *PollSnapshot   `json:"snapshot,omitempty"`
	Outcome   *Outcome        `json:"outcome,omitempty"`
	Contact   *WorkerContact  `json:"contact,omitempty"`
	PaymentID string          `json:"payment_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		BookingID: s.BookingID,
		State:     s.gate.State,
		Reason:    s.gate.Reason,
		Dispatch:  s.dispatch,
		Snapshot:  s.snapshot,
		Outcome:   s.outcome,
		Contact:   s.gate.Contact,
		PaymentID: s.gate.PaymentID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}

func (s *Session) State() GateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.State
}

// settled is true when nothing will happen to the session without a new
// client call, so the sweeper may evict it.
func (s *Session) settled() bool {
	return s.gate.State.Terminal() || (s.gate.State == GatePaymentFailed && !s.paymentInFlight)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// SessionRegistry enforces one live resolution per booking id in-process.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session), now: time.Now}
}

// Register adds s. A second session for a booking id that is still being
// resolved is rejected.
func (r *SessionRegistry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.BookingID]; ok {
		existing.mu.Lock()
		done := existing.settled()
		existing.mu.Unlock()
		if !done {
			return internal_utils.ErrAlreadyResolving
		}
	}
	r.sessions[s.BookingID] = s
	metrics.SetActiveSessions(len(r.sessions))
	return nil
}

func (r *SessionRegistry) Get(bookingID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[bookingID]
	if !ok {
		return nil, internal_utils.ErrSessionNotFound
	}
	return s, nil
}

func (r *SessionRegistry) Remove(bookingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, bookingID)
	metrics.SetActiveSessions(len(r.sessions))
}

func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts settled sessions untouched for longer than retention and
// returns how many were removed.
func (r *SessionRegistry) Sweep(retention time.Duration) int {
	cutoff := r.now().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		evict := s.settled() && s.updatedAt.Before(cutoff)
		s.mu.Unlock()
		if evict {
			delete(r.sessions, id)
			removed++
		}
	}
	metrics.SetActiveSessions(len(r.sessions))
	return removed
}

// All returns a snapshot of the registered sessions.
func (r *SessionRegistry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
