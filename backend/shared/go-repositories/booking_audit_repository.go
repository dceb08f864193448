package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

// DispatchAudit records one per-worker creation call of a fan-out.
type DispatchAudit struct {
	ID           uuid.UUID
	BookingID    string
	WorkerID     int64
	UserID       int64
	Succeeded    bool
	ErrorMessage *string
	CreatedAt    time.Time
}

// OutcomeAudit records how a logical booking converged.
type OutcomeAudit struct {
	BookingID  string
	Outcome    string
	WorkerID   *int64
	Reason     *string
	ResolvedAt time.Time
}

type BookingAuditRepository interface {
	RecordDispatch(ctx context.Context, rows []*DispatchAudit) error
	RecordOutcome(ctx context.Context, outcome *OutcomeAudit) error
	ListDispatch(ctx context.Context, bookingID string) ([]*DispatchAudit, error)
	GetOutcome(ctx context.Context, bookingID string) (*OutcomeAudit, error)
}

// ---------------------------------------------------------------------------
// Postgres
// ---------------------------------------------------------------------------

type bookingAuditRepo struct {
	db DB
}

func NewBookingAuditRepository(db DB) BookingAuditRepository {
	return &bookingAuditRepo{db: db}
}

func (r *bookingAuditRepo) RecordDispatch(ctx context.Context, rows []*DispatchAudit) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		batch.Queue(`
            INSERT INTO booking_dispatch_audit (
                id, booking_id, worker_id, user_id, succeeded, error_message, created_at
            ) VALUES ($1,$2,$3,$4,$5,$6,NOW())
        `,
			row.ID,
			row.BookingID,
			row.WorkerID,
			row.UserID,
			row.Succeeded,
			row.ErrorMessage,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert dispatch audit: %w", err)
		}
	}
	return nil
}

func (r *bookingAuditRepo) RecordOutcome(ctx context.Context, o *OutcomeAudit) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO booking_outcome_audit (
            booking_id, outcome, worker_id, reason, resolved_at
        ) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (booking_id) DO UPDATE
        SET outcome = EXCLUDED.outcome,
            worker_id = EXCLUDED.worker_id,
            reason = EXCLUDED.reason,
            resolved_at = EXCLUDED.resolved_at
    `,
		o.BookingID,
		o.Outcome,
		o.WorkerID,
		o.Reason,
		o.ResolvedAt,
	)
	return err
}

func (r *bookingAuditRepo) ListDispatch(ctx context.Context, bookingID string) ([]*DispatchAudit, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, booking_id, worker_id, user_id, succeeded, error_message, created_at
        FROM booking_dispatch_audit
        WHERE booking_id = $1
        ORDER BY created_at, worker_id
    `, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*DispatchAudit
	for rows.Next() {
		var a DispatchAudit
		if err := rows.Scan(
			&a.ID,
			&a.BookingID,
			&a.WorkerID,
			&a.UserID,
			&a.Succeeded,
			&a.ErrorMessage,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *bookingAuditRepo) GetOutcome(ctx context.Context, bookingID string) (*OutcomeAudit, error) {
	row := r.db.QueryRow(ctx, `
        SELECT booking_id, outcome, worker_id, reason, resolved_at
        FROM booking_outcome_audit
        WHERE booking_id = $1
    `, bookingID)

	var o OutcomeAudit
	err := row.Scan(&o.BookingID, &o.Outcome, &o.WorkerID, &o.Reason, &o.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ---------------------------------------------------------------------------
// In-memory (no DB_URL configured, and tests)
// ---------------------------------------------------------------------------

type memoryBookingAuditRepo struct {
	mu       sync.RWMutex
	dispatch map[string][]*DispatchAudit
	outcomes map[string]*OutcomeAudit
}

func NewMemoryBookingAuditRepository() BookingAuditRepository {
	return &memoryBookingAuditRepo{
		dispatch: make(map[string][]*DispatchAudit),
		outcomes: make(map[string]*OutcomeAudit),
	}
}

func (r *memoryBookingAuditRepo) RecordDispatch(_ context.Context, rows []*DispatchAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, row := range rows {
		cp := *row
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		cp.CreatedAt = now
		r.dispatch[cp.BookingID] = append(r.dispatch[cp.BookingID], &cp)
	}
	return nil
}

func (r *memoryBookingAuditRepo) RecordOutcome(_ context.Context, o *OutcomeAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.outcomes[o.BookingID] = &cp
	return nil
}

func (r *memoryBookingAuditRepo) ListDispatch(_ context.Context, bookingID string) ([]*DispatchAudit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*DispatchAudit, 0, len(r.dispatch[bookingID]))
	for _, a := range r.dispatch[bookingID] {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (r *memoryBookingAuditRepo) GetOutcome(_ context.Context, bookingID string) (*OutcomeAudit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.outcomes[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}
