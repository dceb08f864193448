package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/metrics"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
)

type GateState string

const (
	GateAwaitingOutcome  GateState = "awaiting_outcome"
	GatePaymentPending   GateState = "payment_pending"
	GatePaid             GateState = "paid"
	GatePaymentFailed    GateState = "payment_failed"
	GatePaymentCancelled GateState = "payment_cancelled"
	GateContactRevealed  GateState = "contact_revealed"
	GateNoWorkers        GateState = "no_workers"
	GateTimedOut         GateState = "timed_out"
	GateCancelled        GateState = "cancelled"
)

// Terminal reports whether no further transition can happen from s.
func (s GateState) Terminal() bool {
	switch s {
	case GatePaid, GatePaymentCancelled, GateContactRevealed, GateNoWorkers, GateTimedOut, GateCancelled:
		return true
	}
	return false
}

type WorkerContact struct {
	WorkerID    int64  `json:"worker_id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// GateResult is what the outcome gate produced for one step.
type GateResult struct {
	State           GateState      `json:"state"`
	Reason          string         `json:"reason,omitempty"`
	PaymentID       string         `json:"payment_id,omitempty"`
	PaymentRecorded bool           `json:"payment_recorded,omitempty"`
	Contact         *WorkerContact `json:"contact,omitempty"`
}

type GateConfig struct {
	Currency            string
	SendConfirmationSMS bool
}

// OutcomeGate turns a terminal outcome into payment collection or a
// contact reveal. It is stateless; the session tracks which step it is on.
type OutcomeGate struct {
	backend  clients.BackendClient
	payments PaymentProvider
	notifier *NotificationService
	cfg      GateConfig
	newKey   func() string
}

func NewOutcomeGate(
	backend clients.BackendClient,
	payments PaymentProvider,
	notifier *NotificationService,
	cfg GateConfig,
) *OutcomeGate {
	if cfg.Currency == "" {
		cfg.Currency = constants.DefaultCurrency
	}
	return &OutcomeGate{
		backend:  backend,
		payments: payments,
		notifier: notifier,
		cfg:      cfg,
		newKey:   uuid.NewString,
	}
}

// Apply consumes the reconciler's terminal outcome. For a confirmed
// service-seeker booking it runs the first payment attempt.
func (g *OutcomeGate) Apply(
	ctx context.Context,
	req *models.ServiceRequest,
	outcome Outcome,
	roster []models.Worker,
) (GateResult, error) {
	switch {
	case outcome.NoWorkers():
		return GateResult{State: GateNoWorkers, Reason: outcome.Reason}, nil
	case outcome.TimedOut():
		return GateResult{State: GateTimedOut, Reason: outcome.Reason}, nil
	case !outcome.IsConfirmed() || outcome.Record == nil:
		return GateResult{}, fmt.Errorf("outcome gate: unexpected outcome %q", outcome.Kind)
	}

	rec := outcome.Record
	if req.Flow == models.FlowDirectory {
		return g.revealContact(ctx, req, rec, roster), nil
	}
	return g.OpenPayment(ctx, rec.BookingID, req)
}

// OpenPayment runs one payment attempt for bookingID. Every attempt uses a
// fresh idempotency key; a retry never creates a new logical booking.
func (g *OutcomeGate) OpenPayment(ctx context.Context, bookingID string, req *models.ServiceRequest) (GateResult, error) {
	log := utils.BookingLogger(bookingID)
	opts := PaymentOptions{
		BookingID:       bookingID,
		AmountMinor:     ToMinorUnits(req.Amount),
		Currency:        g.cfg.Currency,
		Description:     paymentDescription(bookingID, req),
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  g.newKey(),
	}

	res, err := g.payments.Open(ctx, opts)
	if err != nil {
		reason := PaymentFailureReason(err)
		metrics.IncPayment("failed")
		log.WithError(err).WithField("reason", reason).Warn("Payment attempt failed")
		return GateResult{State: GatePaymentFailed, Reason: reason}, err
	}
	metrics.IncPayment("paid")

	result := GateResult{State: GatePaid, PaymentID: res.PaymentID, PaymentRecorded: true}
	if err := g.backend.MarkPaid(ctx, bookingID, req.Amount, res.PaymentID); err != nil {
		// The charge went through, so the state stays paid. A retry here would
		// charge again under a new idempotency key.
		result.PaymentRecorded = false
		log.WithError(err).WithField("payment_id", res.PaymentID).Error("Payment captured but backend update failed")
	}
	log.WithFields(logrus.Fields{
		"payment_id":   res.PaymentID,
		"amount_minor": opts.AmountMinor,
	}).Info("Payment completed")
	return result, nil
}

// CancelPayment ends the flow without touching any booking record.
func (g *OutcomeGate) CancelPayment(bookingID string) GateResult {
	metrics.IncPayment("cancelled")
	utils.BookingLogger(bookingID).Info("Payment cancelled by customer")
	return GateResult{State: GatePaymentCancelled}
}

func (g *OutcomeGate) revealContact(
	ctx context.Context,
	req *models.ServiceRequest,
	rec *models.BookingRecord,
	roster []models.Worker,
) GateResult {
	contact := WorkerContact{WorkerID: rec.WorkerID}
	for _, w := range roster {
		if w.ID == rec.WorkerID {
			contact.Name = w.Name
			contact.PhoneNumber = w.PhoneNumber
			break
		}
	}

	if g.cfg.SendConfirmationSMS {
		if err := g.notifier.NotifyBookingConfirmed(ctx, req.ContactNumber, contact, rec.BookingID); err != nil {
			utils.BookingLogger(rec.BookingID).WithError(err).Warn("Failed to send confirmation SMS")
		}
	}
	return GateResult{State: GateContactRevealed, Contact: &contact}
}

func paymentDescription(bookingID string, req *models.ServiceRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return fmt.Sprintf(constants.PaymentDescriptionFallback, bookingID)
}
