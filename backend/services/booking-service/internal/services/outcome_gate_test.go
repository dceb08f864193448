package services

import (
	"context"
	"testing"

	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-testhelpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"499.50", 49950},
		{"10", 1000},
		{"0.005", 1},
		{"0.004", 0},
		{"19.999", 2000},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func confirmedOutcome(bookingID string, workerID int64) Outcome {
	return Confirmed(models.BookingRecord{ID: 1, BookingID: bookingID, WorkerID: workerID, Status: models.BookingStatusAccepted})
}

func TestOutcomeGate_PaymentSuccessMarksPaidOnce(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	seedRecords(t, fb, "bk1700000000", testWorkers()[:2])
	payments := &fakePayments{}
	gate := NewOutcomeGate(newTestClient(fb), payments, nil, GateConfig{Currency: "inr"})

	res, err := gate.Apply(context.Background(), testRequest(models.FlowServiceSeeker), confirmedOutcome("bk1700000000", 2), testWorkers())
	require.NoError(t, err)
	assert.Equal(t, GatePaid, res.State)
	assert.Equal(t, "pi_test_1", res.PaymentID)
	assert.True(t, res.PaymentRecorded)

	attempts := payments.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, "bk1700000000", attempts[0].BookingID)
	assert.Equal(t, int64(49950), attempts[0].AmountMinor)
	assert.Equal(t, "inr", attempts[0].Currency)
	assert.Equal(t, "Leaking kitchen tap", attempts[0].Description)
	assert.NotEmpty(t, attempts[0].IdempotencyKey)

	calls := fb.Payments()
	require.Len(t, calls, 1)
	assert.Equal(t, "bk1700000000", calls[0].BookingID)
	assert.Equal(t, 1, calls[0].PaymentStatus)
	assert.Equal(t, "499.50", calls[0].Amount.String())
	assert.Equal(t, "pi_test_1", calls[0].PaymentID)
}

func TestOutcomeGate_PaymentFailureThenRetryReusesBookingID(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	seedRecords(t, fb, "bk1700000001", testWorkers()[:1])
	payments := &fakePayments{failures: []string{"card declined"}}
	gate := NewOutcomeGate(newTestClient(fb), payments, nil, GateConfig{})

	req := testRequest(models.FlowServiceSeeker)
	res, err := gate.Apply(context.Background(), req, confirmedOutcome("bk1700000001", 1), nil)
	require.ErrorIs(t, err, internal_utils.ErrPaymentFailed)
	assert.Equal(t, GatePaymentFailed, res.State)
	assert.Equal(t, "card declined", res.Reason)
	assert.Empty(t, fb.Payments(), "a failed payment must not touch the booking")

	res, err = gate.OpenPayment(context.Background(), "bk1700000001", req)
	require.NoError(t, err)
	assert.Equal(t, GatePaid, res.State)

	attempts := payments.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, attempts[0].BookingID, attempts[1].BookingID)
	assert.NotEqual(t, attempts[0].IdempotencyKey, attempts[1].IdempotencyKey)
	assert.Equal(t, "inr", attempts[0].Currency)
	assert.Len(t, fb.Payments(), 1)
	assert.Len(t, fb.Records("bk1700000001"), 1, "no new logical booking on retry")
}

func TestOutcomeGate_CancelPaymentLeavesBookingAlone(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	seedRecords(t, fb, "bk1700000002", testWorkers()[:1])
	gate := NewOutcomeGate(newTestClient(fb), &fakePayments{}, nil, GateConfig{})

	res := gate.CancelPayment("bk1700000002")
	assert.Equal(t, GatePaymentCancelled, res.State)
	assert.True(t, res.State.Terminal())
	assert.Empty(t, fb.Payments())
	assert.Zero(t, fb.StatusCalls())
	assert.Equal(t, models.BookingStatusPending, fb.Records("bk1700000002")[0].Status)
}

func TestOutcomeGate_DirectoryRevealsContact(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	sms := &fakeSMS{}
	payments := &fakePayments{}
	gate := NewOutcomeGate(newTestClient(fb), payments, NewNotificationService(sms, nil), GateConfig{SendConfirmationSMS: true})

	res, err := gate.Apply(context.Background(), testRequest(models.FlowDirectory), confirmedOutcome("bk1700000003", 2), testWorkers())
	require.NoError(t, err)
	assert.Equal(t, GateContactRevealed, res.State)
	require.NotNil(t, res.Contact)
	assert.Equal(t, "Ben", res.Contact.Name)
	assert.Equal(t, "+912222222222", res.Contact.PhoneNumber)
	assert.Empty(t, payments.Attempts())

	sent := sms.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+919999999999", sent[0].to)
	assert.Contains(t, sent[0].body, "Ben")
	assert.Contains(t, sent[0].body, "bk1700000003")
}

func TestOutcomeGate_DirectoryWithoutSMSFlag(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	sms := &fakeSMS{}
	gate := NewOutcomeGate(newTestClient(fb), &fakePayments{}, NewNotificationService(sms, nil), GateConfig{})

	res, err := gate.Apply(context.Background(), testRequest(models.FlowDirectory), confirmedOutcome("bk1", 1), testWorkers())
	require.NoError(t, err)
	assert.Equal(t, GateContactRevealed, res.State)
	assert.Empty(t, sms.Sent())
}

func TestOutcomeGate_FailedOutcomesAreDistinct(t *testing.T) {
	gate := NewOutcomeGate(nil, &fakePayments{}, nil, GateConfig{})

	res, err := gate.Apply(context.Background(), testRequest(models.FlowServiceSeeker), FailedNoWorkers(), nil)
	require.NoError(t, err)
	assert.Equal(t, GateNoWorkers, res.State)
	assert.Equal(t, "no workers available", res.Reason)

	res, err = gate.Apply(context.Background(), testRequest(models.FlowServiceSeeker), FailedTimeout(), nil)
	require.NoError(t, err)
	assert.Equal(t, GateTimedOut, res.State)
	assert.NotEqual(t, GateNoWorkers, res.State)
}

func TestNotificationService_AlertPartialDispatch(t *testing.T) {
	email := &fakeEmail{}
	n := NewNotificationService(nil, email)

	err := n.AlertPartialDispatch(context.Background(), &DispatchResult{
		BookingID: "bk1700000000",
		Succeeded: []int64{1, 3},
		Failed:    []DispatchFailure{{WorkerID: 2, Error: "HTTP 500"}},
	})
	require.NoError(t, err)

	sent := email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "team@thepoofapp.com", sent[0].toEmail)
	assert.Contains(t, sent[0].subject, "bk1700000000")
	assert.Contains(t, sent[0].plain, "worker 2: HTTP 500")
}

func TestNotificationService_NilSendersAreSkipped(t *testing.T) {
	var n *NotificationService
	assert.NoError(t, n.AlertPartialDispatch(context.Background(), &DispatchResult{}))
	assert.NoError(t, NewNotificationService(nil, nil).NotifyBookingConfirmed(context.Background(), "+1", WorkerContact{}, "bk1"))
}

func TestNotificationService_RejectsNonE164(t *testing.T) {
	sms := &fakeSMS{}
	err := NewNotificationService(sms, nil).NotifyBookingConfirmed(context.Background(), "99999 99999", WorkerContact{Name: "Ben"}, "bk1")
	assert.Error(t, err)
	assert.Empty(t, sms.Sent())
}
