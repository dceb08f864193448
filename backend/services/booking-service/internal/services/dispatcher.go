package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/latlong"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/clients"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
	_ "time/tzdata"
)

// DispatchFailure is one worker whose creation call did not succeed.
type DispatchFailure struct {
	WorkerID int64  `json:"worker_id"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}

// DispatchResult reports every per-worker outcome of one fan-out.
type DispatchResult struct {
	BookingID string            `json:"booking_id"`
	Succeeded []int64           `json:"succeeded"`
	Failed    []DispatchFailure `json:"failed"`
}

// Partial is true when some records are live and some were never created.
func (r *DispatchResult) Partial() bool {
	return len(r.Succeeded) > 0 && len(r.Failed) > 0
}

type Dispatcher struct {
	backend clients.BackendClient
	now     func() time.Time
}

func NewDispatcher(backend clients.BackendClient) *Dispatcher {
	return &Dispatcher{backend: backend, now: time.Now}
}

// Dispatch creates one Pending record per worker, all tagged with bookingID.
// Calls run concurrently and are joined before returning. If any call failed
// the full result is returned together with ErrDispatchFailed; records that
// were created stay live. Creation calls are never retried.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	req *models.ServiceRequest,
	userID int64,
	workers []models.Worker,
	bookingID string,
) (*DispatchResult, error) {
	if len(workers) == 0 {
		return nil, internal_utils.ErrNoEligibleWorkers
	}

	log := utils.BookingLogger(bookingID)
	bookingTime := FormatBookingTime(req.RequestedTime(d.now()), req.Location)
	location := FormatWorkLocation(req.Location)

	errs := make([]error, len(workers))
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(idx int, w models.Worker) {
			defer wg.Done()
			rec := models.NewBookingRecord{
				BookingID:     bookingID,
				WorkerID:      w.ID,
				UserID:        userID,
				ContactName:   req.ContactName,
				ContactNumber: req.ContactNumber,
				WorkLocation:  location,
				BookingTime:   bookingTime,
				Status:        models.BookingStatusPending,
				Description:   req.Description,
				WorkDocuments: req.WorkDocuments,
			}
			if rec.WorkDocuments == nil {
				rec.WorkDocuments = []string{}
			}
			errs[idx] = d.backend.CreateBooking(ctx, rec)
		}(i, workers[i])
	}
	wg.Wait()

	result := &DispatchResult{
		BookingID: bookingID,
		Succeeded: make([]int64, 0, len(workers)),
		Failed:    make([]DispatchFailure, 0),
	}
	for i, err := range errs {
		if err == nil {
			result.Succeeded = append(result.Succeeded, workers[i].ID)
			continue
		}
		log.WithError(err).WithField("worker_id", workers[i].ID).Warn("Booking record creation failed")
		result.Failed = append(result.Failed, DispatchFailure{
			WorkerID: workers[i].ID,
			Error:    err.Error(),
			Err:      err,
		})
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(result.Succeeded),
		"failed":    len(result.Failed),
	}).Info("Dispatch finished")

	if len(result.Failed) > 0 {
		joined := make([]error, 0, len(result.Failed))
		for _, f := range result.Failed {
			joined = append(joined, f.Err)
		}
		return result, fmt.Errorf("%w: %d of %d creation calls failed: %w",
			internal_utils.ErrDispatchFailed, len(result.Failed), len(workers), errors.Join(joined...))
	}
	return result, nil
}

// FormatWorkLocation renders "address (lat, lng)" when coordinates were
// captured, otherwise just the address.
func FormatWorkLocation(loc models.WorkLocation) string {
	addr := strings.TrimSpace(loc.Address)
	if !loc.HasCoordinates() {
		return addr
	}
	return fmt.Sprintf("%s (%.6f, %.6f)", addr, *loc.Latitude, *loc.Longitude)
}

// FormatBookingTime renders t as wall-clock time in the work location's zone.
// Without coordinates, or when the zone can't be resolved, the process-local
// zone is used.
func FormatBookingTime(t time.Time, loc models.WorkLocation) string {
	return t.In(zoneFor(loc)).Format(constants.BookingTimeLayout)
}

func zoneFor(loc models.WorkLocation) *time.Location {
	if !loc.HasCoordinates() {
		return time.Local
	}
	name := latlong.LookupZoneName(*loc.Latitude, *loc.Longitude)
	if name == "" {
		return time.Local
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		utils.Logger.WithError(err).Debugf("Unknown zone %q, falling back to local time", name)
		return time.Local
	}
	return tz
}
