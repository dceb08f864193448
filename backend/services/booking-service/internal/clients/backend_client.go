// backend/services/booking-service/internal/clients/backend_client.go

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrBackendRejected is returned when the backend answers 2xx with success=false.
var ErrBackendRejected = errors.New("backend_rejected")

// BackendClient is the booking service collaborator. Everything that actually
// flips a record's status lives behind it.
type BackendClient interface {
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	CreateBooking(ctx context.Context, rec models.NewBookingRecord) error
	ListBookings(ctx context.Context, userID int64, skipPaymentCheck bool) ([]models.BookingRecord, error)
	UpdateStatus(ctx context.Context, recordID int64, update StatusUpdate) error
	MarkPaid(ctx context.Context, bookingID string, amount decimal.Decimal, paymentID string) error
}

// StatusUpdate is the worker-side transition body for PUT /bookings/{id}/status.
type StatusUpdate struct {
	Status         models.BookingStatus `json:"status"`
	CancelReason   *string              `json:"cancel_reason,omitempty"`
	RescheduleDate *string              `json:"reschedule_date,omitempty"`
}

type paymentUpdate struct {
	PaymentStatus int         `json:"payment_status"`
	Amount        json.Number `json:"amount"`
	PaymentID     string      `json:"payment_id"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RetryConfig defines retry behavior for idempotent calls (GET/PUT).
// POST /bookings is never retried: a replayed create could add a duplicate sibling.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RetryableStatuses []int
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		RetryableStatuses: []int{
			http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// HTTPError represents a non-2xx backend response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(string(e.Body)))
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
}

type HTTPBackendClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	retry      RetryConfig
}

func NewHTTPBackendClient(baseURL, apiToken string, timeout time.Duration) *HTTPBackendClient {
	return NewHTTPBackendClientWithRetry(baseURL, apiToken, timeout, DefaultRetryConfig())
}

func NewHTTPBackendClientWithRetry(baseURL, apiToken string, timeout time.Duration, retry RetryConfig) *HTTPBackendClient {
	return &HTTPBackendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
}

// GET /workers
func (c *HTTPBackendClient) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	var workers []models.Worker
	if err := c.do(ctx, http.MethodGet, "/workers", nil, nil, &workers); err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return workers, nil
}

// POST /bookings
func (c *HTTPBackendClient) CreateBooking(ctx context.Context, rec models.NewBookingRecord) error {
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, rec, nil); err != nil {
		return fmt.Errorf("create booking %s for worker %d: %w", rec.BookingID, rec.WorkerID, err)
	}
	return nil
}

// GET /bookings?user_id=...
func (c *HTTPBackendClient) ListBookings(ctx context.Context, userID int64, skipPaymentCheck bool) ([]models.BookingRecord, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	if skipPaymentCheck {
		q.Set("skip_payment_check", "true")
	}
	var records []models.BookingRecord
	if err := c.do(ctx, http.MethodGet, "/bookings", q, nil, &records); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return records, nil
}

// PUT /bookings/{id}/status
func (c *HTTPBackendClient) UpdateStatus(ctx context.Context, recordID int64, update StatusUpdate) error {
	path := fmt.Sprintf("/bookings/%d/status", recordID)
	if err := c.do(ctx, http.MethodPut, path, nil, update, nil); err != nil {
		return fmt.Errorf("update status of record %d: %w", recordID, err)
	}
	return nil
}

// PUT /bookings/{bookingId}/payment
func (c *HTTPBackendClient) MarkPaid(ctx context.Context, bookingID string, amount decimal.Decimal, paymentID string) error {
	path := "/bookings/" + url.PathEscape(bookingID) + "/payment"
	body := paymentUpdate{
		PaymentStatus: 1,
		Amount:        json.Number(amount.StringFixed(2)),
		PaymentID:     paymentID,
	}
	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("mark booking %s paid: %w", bookingID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// transport
// ---------------------------------------------------------------------------

func (c *HTTPBackendClient) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	out any,
) error {
	var encoded []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		encoded = b
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	maxRetries := c.retry.MaxRetries
	if method == http.MethodPost {
		maxRetries = 0
	}

	var lastErr error
	backoff := c.retry.InitialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			utils.Logger.WithFields(logrus.Fields{
				"method":  method,
				"path":    path,
				"attempt": attempt,
				"backoff": backoff,
			}).Debug("Retrying backend request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}

		retryable, err := c.once(ctx, method, path, target, encoded, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *HTTPBackendClient) once(
	ctx context.Context,
	method, path, target string,
	encoded []byte,
	out any,
) (retryable bool, err error) {
	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %v", utils.ErrExternalServiceFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: raw}
		return slices.Contains(c.retry.RetryableStatuses, resp.StatusCode), httpErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request not successful"
		}
		return false, fmt.Errorf("%w: %s", ErrBackendRejected, msg)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return false, fmt.Errorf("decode data: %w", err)
		}
	}
	return false, nil
}
