package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-testhelpers"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/shopspring/decimal"
)

const (
	testUserID   int64 = 42
	testInterval       = 20 * time.Millisecond
)

func init() {
	utils.DiscardLogs()
}

func testWorkers() []models.Worker {
	return []models.Worker{
		{ID: 1, Name: "Asha", PhoneNumber: "+911111111111", SkillIDs: "3,7"},
		{ID: 2, Name: "Ben", PhoneNumber: "+912222222222", SkillIDs: " 7 , 9"},
		{ID: 3, Name: "Chen", PhoneNumber: "+913333333333", SkillIDs: "7"},
		{ID: 4, Name: "Dee", PhoneNumber: "+914444444444", SkillIDs: "abc,,"},
	}
}

func testRequest(flow models.BookingFlow) *models.ServiceRequest {
	return &models.ServiceRequest{
		CategoryID:      7,
		Instant:         true,
		Location:        models.WorkLocation{Address: "12 MG Road"},
		Description:     "Leaking kitchen tap",
		ContactName:     "Priya",
		ContactNumber:   "+919999999999",
		Flow:            flow,
		Amount:          decimal.RequireFromString("499.50"),
		PaymentMethodID: "pm_card_visa",
	}
}

func newTestClient(fb *testhelpers.FakeBackend) *clients.HTTPBackendClient {
	return clients.NewHTTPBackendClient(fb.URL(), "", 2*time.Second)
}

// seedRecords creates Pending records for workers under bookingID.
func seedRecords(t *testing.T, fb *testhelpers.FakeBackend, bookingID string, workers []models.Worker) {
	t.Helper()
	d := NewDispatcher(newTestClient(fb))
	if _, err := d.Dispatch(context.Background(), testRequest(models.FlowDirectory), testUserID, workers, bookingID); err != nil {
		t.Fatalf("seed records: %v", err)
	}
}

func waitDone(t *testing.T, h *PollHandle, within time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(within):
		t.Fatalf("poll for %s did not finish within %v", h.BookingID(), within)
	}
}

// fakePayments scripts provider results per attempt.
type fakePayments struct {
	mu       sync.Mutex
	failures []string
	attempts []PaymentOptions
}

func (f *fakePayments) Open(_ context.Context, opts PaymentOptions) (PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, opts)
	n := len(f.attempts)
	if n <= len(f.failures) && f.failures[n-1] != "" {
		return PaymentResult{}, &PaymentError{Reason: f.failures[n-1]}
	}
	return PaymentResult{PaymentID: fmt.Sprintf("pi_test_%d", n)}, nil
}

func (f *fakePayments) Attempts() []PaymentOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PaymentOptions(nil), f.attempts...)
}

type sentSMS struct {
	to, body string
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return nil
}

func (f *fakeSMS) Sent() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type sentEmail struct {
	toEmail, subject, plain string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeEmail) SendEmail(_ context.Context, _, toEmail, subject, plain, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{toEmail: toEmail, subject: subject, plain: plain})
	return nil
}

func (f *fakeEmail) Sent() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}
