package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/poofware/homeservices/backend/shared/go-models"
)

// PaymentCall is one PUT /bookings/{bookingId}/payment seen by the fake.
type PaymentCall struct {
	BookingID     string      `json:"-"`
	PaymentStatus int         `json:"payment_status"`
	Amount        json.Number `json:"amount"`
	PaymentID     string      `json:"payment_id"`
}

type statusFlip struct {
	workerID int64
	status   models.BookingStatus
}

// FakeBackend is an in-process stand-in for the backend booking service. It
// serves the same routes and envelopes, keeps records in memory, and lets a
// test script worker decisions per poll.
type FakeBackend struct {
	T      testing.TB
	Server *httptest.Server

	mu            sync.Mutex
	apiToken      string
	workers       []models.Worker
	records       []models.BookingRecord
	nextRecordID  int64
	failCreate    map[int64]int
	rejectCreate  map[int64]string
	failList      map[int]int
	flips         map[int][]statusFlip
	createCalls   int
	listCalls     int
	statusCalls   int
	payments      []PaymentCall
	rosterFailure int
}

// NewFakeBackend starts the fake and registers cleanup on t.
func NewFakeBackend(t testing.TB, workers ...models.Worker) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		T:            t,
		workers:      workers,
		nextRecordID: 1,
		failCreate:   make(map[int64]int),
		rejectCreate: make(map[int64]string),
		failList:     make(map[int]int),
		flips:        make(map[int][]statusFlip),
	}

	r := mux.NewRouter()
	r.HandleFunc("/workers", fb.handleWorkers).Methods(http.MethodGet)
	r.HandleFunc("/bookings", fb.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/bookings", fb.handleList).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{id:[0-9]+}/status", fb.handleStatus).Methods(http.MethodPut)
	r.HandleFunc("/bookings/{bookingId}/payment", fb.handlePayment).Methods(http.MethodPut)
	r.Use(fb.authMiddleware)

	fb.Server = httptest.NewServer(r)
	t.Cleanup(fb.Server.Close)
	return fb
}

func (fb *FakeBackend) URL() string { return fb.Server.URL }

// RequireToken makes every route demand Authorization: Bearer <token>.
func (fb *FakeBackend) RequireToken(token string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.apiToken = token
}

// FailRoster makes GET /workers answer with the given HTTP status.
func (fb *FakeBackend) FailRoster(status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rosterFailure = status
}

// FailCreateFor makes the creation call for workerID answer with status.
func (fb *FakeBackend) FailCreateFor(workerID int64, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failCreate[workerID] = status
}

// RejectCreateFor answers 200 {success:false, message} for workerID.
func (fb *FakeBackend) RejectCreateFor(workerID int64, message string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rejectCreate[workerID] = message
}

// FailListCall makes the nth (1-based) GET /bookings answer with status.
func (fb *FakeBackend) FailListCall(n, status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failList[n] = status
}

// OnPoll flips workerID's record to status right before the nth (1-based)
// GET /bookings is answered.
func (fb *FakeBackend) OnPoll(n int, workerID int64, status models.BookingStatus) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.flips[n] = append(fb.flips[n], statusFlip{workerID: workerID, status: status})
}

// SetStatus flips every record of workerID under bookingID immediately.
func (fb *FakeBackend) SetStatus(bookingID string, workerID int64, status models.BookingStatus) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.records {
		if fb.records[i].BookingID == bookingID && fb.records[i].WorkerID == workerID {
			fb.records[i].Status = status
		}
	}
}

// Records returns a copy of the records stored for bookingID.
func (fb *FakeBackend) Records(bookingID string) []models.BookingRecord {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []models.BookingRecord
	for _, rec := range fb.records {
		if rec.BookingID == bookingID {
			out = append(out, rec)
		}
	}
	return out
}

func (fb *FakeBackend) CreateCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.createCalls
}

func (fb *FakeBackend) ListCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.listCalls
}

func (fb *FakeBackend) StatusCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.statusCalls
}

func (fb *FakeBackend) Payments() []PaymentCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]PaymentCall(nil), fb.payments...)
}

// ---------------------------------------------------------------------------
// handlers
// ---------------------------------------------------------------------------

func (fb *FakeBackend) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		token := fb.apiToken
		fb.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeEnvelope(w, http.StatusUnauthorized, false, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *FakeBackend) handleWorkers(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.rosterFailure != 0 {
		writeEnvelope(w, fb.rosterFailure, false, "roster unavailable", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, true, "", fb.workers)
}

func (fb *FakeBackend) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body models.NewBookingRecord
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "invalid body", nil)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.createCalls++

	if status, ok := fb.failCreate[body.WorkerID]; ok {
		writeEnvelope(w, status, false, "injected failure", nil)
		return
	}
	if msg, ok := fb.rejectCreate[body.WorkerID]; ok {
		writeEnvelope(w, http.StatusOK, false, msg, nil)
		return
	}

	fb.records = append(fb.records, models.BookingRecord{
		ID:            fb.nextRecordID,
		BookingID:     body.BookingID,
		WorkerID:      body.WorkerID,
		UserID:        body.UserID,
		Status:        body.Status,
		BookingTime:   body.BookingTime,
		Description:   body.Description,
		ContactNumber: body.ContactNumber,
		WorkLocation:  body.WorkLocation,
		WorkDocuments: body.WorkDocuments,
	})
	fb.nextRecordID++
	writeEnvelope(w, http.StatusOK, true, "Booking created", nil)
}

func (fb *FakeBackend) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "user_id required", nil)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.listCalls++
	n := fb.listCalls

	if status, ok := fb.failList[n]; ok {
		writeEnvelope(w, status, false, "injected failure", nil)
		return
	}
	for _, flip := range fb.flips[n] {
		for i := range fb.records {
			if fb.records[i].WorkerID == flip.workerID && fb.records[i].UserID == userID {
				fb.records[i].Status = flip.status
			}
		}
	}

	out := make([]models.BookingRecord, 0)
	for _, rec := range fb.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	writeEnvelope(w, http.StatusOK, true, "", out)
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	var body struct {
		Status         models.BookingStatus `json:"status"`
		CancelReason   *string              `json:"cancel_reason"`
		RescheduleDate *string              `json:"reschedule_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "invalid body", nil)
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statusCalls++
	for i := range fb.records {
		if fb.records[i].ID != id {
			continue
		}
		if !fb.records[i].Status.CanTransitionTo(body.Status) {
			writeEnvelope(w, http.StatusConflict, false, "illegal status transition", nil)
			return
		}
		fb.records[i].Status = body.Status
		fb.records[i].CancelReason = body.CancelReason
		fb.records[i].RescheduleDate = body.RescheduleDate
		writeEnvelope(w, http.StatusOK, true, "Status updated", nil)
		return
	}
	writeEnvelope(w, http.StatusNotFound, false, "booking not found", nil)
}

func (fb *FakeBackend) handlePayment(w http.ResponseWriter, r *http.Request) {
	var call PaymentCall
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&call); err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, "invalid body", nil)
		return
	}
	call.BookingID = mux.Vars(r)["bookingId"]

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.payments = append(fb.payments, call)
	for i := range fb.records {
		if fb.records[i].BookingID == call.BookingID {
			fb.records[i].PaymentStatus = call.PaymentStatus
		}
	}
	writeEnvelope(w, http.StatusOK, true, "Payment recorded", nil)
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	body := map[string]any{"success": success}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SkillString joins category ids the way the backend stores them.
func SkillString(ids ...int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
