package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-testhelpers"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	utils.DiscardLogs()
}

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// countingServer answers the first failures calls with status, then
// responds with body.
func countingServer(t *testing.T, failures int, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failures {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"success":false,"message":"busy"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestListWorkers_DecodesEnvelope(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t,
		models.Worker{ID: 1, Name: "Asha", PhoneNumber: "+911111111111", SkillIDs: testhelpers.SkillString(3, 7)},
		models.Worker{ID: 2, Name: "Ben", PhoneNumber: "+912222222222", SkillIDs: "9"},
	)
	fb.RequireToken("secret")
	c := NewHTTPBackendClient(fb.URL(), "secret", time.Second)

	workers, err := c.ListWorkers(context.Background())
	require.NoError(t, err)
	require.Len(t, workers, 2)
	assert.Equal(t, "Asha", workers[0].Name)
	assert.True(t, workers[0].HasSkill(7))
	assert.False(t, workers[1].HasSkill(7))
}

func TestClient_MissingTokenIsRejected(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	fb.RequireToken("secret")
	c := NewHTTPBackendClient(fb.URL(), "", time.Second)

	_, err := c.ListWorkers(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestCreateBooking_SuccessFalseIsRejected(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	fb.RejectCreateFor(5, "worker unavailable")
	c := NewHTTPBackendClient(fb.URL(), "", time.Second)

	err := c.CreateBooking(context.Background(), models.NewBookingRecord{BookingID: "bk1", WorkerID: 5, UserID: 42})
	assert.ErrorIs(t, err, ErrBackendRejected)
	assert.Contains(t, err.Error(), "worker unavailable")
	assert.Empty(t, fb.Records("bk1"))
}

func TestCreateBooking_IsNeverRetried(t *testing.T) {
	srv, calls := countingServer(t, 5, http.StatusServiceUnavailable, `{"success":true}`)
	c := NewHTTPBackendClientWithRetry(srv.URL, "", time.Second, fastRetry())

	err := c.CreateBooking(context.Background(), models.NewBookingRecord{BookingID: "bk1", WorkerID: 1})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListBookings_RetriesTransientStatus(t *testing.T) {
	srv, calls := countingServer(t, 2, http.StatusServiceUnavailable,
		`{"success":true,"data":[{"id":9,"booking_id":"bk1","worker_id":3,"user_id":42,"status":1}]}`)
	c := NewHTTPBackendClientWithRetry(srv.URL, "", time.Second, fastRetry())

	records, err := c.ListBookings(context.Background(), 42, true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.BookingStatusAccepted, records[0].Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestListBookings_GivesUpAfterMaxRetries(t *testing.T) {
	srv, calls := countingServer(t, 10, http.StatusBadGateway, `{"success":true}`)
	c := NewHTTPBackendClientWithRetry(srv.URL, "", time.Second, fastRetry())

	_, err := c.ListBookings(context.Background(), 42, false)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestListBookings_DoesNotRetryClientErrors(t *testing.T) {
	srv, calls := countingServer(t, 10, http.StatusBadRequest, `{"success":true}`)
	c := NewHTTPBackendClientWithRetry(srv.URL, "", time.Second, fastRetry())

	_, err := c.ListBookings(context.Background(), 42, false)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListBookings_SendsQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"success":true,"data":[]}`)
	}))
	t.Cleanup(srv.Close)

	records, err := NewHTTPBackendClient(srv.URL, "", time.Second).ListBookings(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "skip_payment_check=true&user_id=42", query)
}

func TestClient_TransportFailureIsExternal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := fastRetry()
	cfg.MaxRetries = 0
	_, err := NewHTTPBackendClientWithRetry(url, "", time.Second, cfg).ListWorkers(context.Background())
	assert.True(t, errors.Is(err, utils.ErrExternalServiceFailure))
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	c := NewHTTPBackendClient(fb.URL(), "", time.Second)
	require.NoError(t, c.CreateBooking(context.Background(), models.NewBookingRecord{
		BookingID: "bk1", WorkerID: 1, UserID: 42, Status: models.BookingStatusPending,
	}))
	rec := fb.Records("bk1")[0]

	require.NoError(t, c.UpdateStatus(context.Background(), rec.ID, StatusUpdate{Status: models.BookingStatusAccepted}))
	require.NoError(t, c.UpdateStatus(context.Background(), rec.ID, StatusUpdate{Status: models.BookingStatusInProgress}))
	require.NoError(t, c.UpdateStatus(context.Background(), rec.ID, StatusUpdate{Status: models.BookingStatusCompleted}))

	err := c.UpdateStatus(context.Background(), rec.ID, StatusUpdate{Status: models.BookingStatusPending})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
	assert.Equal(t, 4, fb.StatusCalls())
}

func TestMarkPaid_SendsFixedPointAmount(t *testing.T) {
	var body map[string]json.RawMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"success":true,"message":"ok"}`)
	}))
	t.Cleanup(srv.Close)

	err := NewHTTPBackendClient(srv.URL, "", time.Second).MarkPaid(context.Background(), "bk1700000000", decimal.RequireFromString("499.5"), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "/bookings/bk1700000000/payment", path)
	assert.Equal(t, "1", string(body["payment_status"]))
	assert.Equal(t, "499.50", string(body["amount"]))
	assert.Equal(t, `"pi_1"`, string(body["payment_id"]))
}
