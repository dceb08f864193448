package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-testhelpers"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_AllRecordsShareBookingID(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	d := NewDispatcher(newTestClient(fb))
	eligible := Eligible(testWorkers(), 7)

	result, err := d.Dispatch(context.Background(), testRequest(models.FlowServiceSeeker), testUserID, eligible, "bk1700000000")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.False(t, result.Partial())

	records := fb.Records("bk1700000000")
	require.Len(t, records, len(eligible))
	workers := make(map[int64]struct{})
	for _, rec := range records {
		assert.Equal(t, "bk1700000000", rec.BookingID)
		assert.Equal(t, testUserID, rec.UserID)
		assert.Equal(t, models.BookingStatusPending, rec.Status)
		assert.Equal(t, "+919999999999", rec.ContactNumber)
		assert.Equal(t, "Leaking kitchen tap", rec.Description)
		workers[rec.WorkerID] = struct{}{}
	}
	assert.Len(t, workers, len(eligible), "worker ids must be distinct")
	assert.Equal(t, len(eligible), fb.CreateCalls())
}

func TestDispatch_NoEligibleWorkersMakesNoCalls(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	d := NewDispatcher(newTestClient(fb))

	result, err := d.Dispatch(context.Background(), testRequest(models.FlowDirectory), testUserID, nil, "bk1")
	assert.ErrorIs(t, err, internal_utils.ErrNoEligibleWorkers)
	assert.Nil(t, result)
	assert.Zero(t, fb.CreateCalls())
}

func TestDispatch_SecondOfThreeFails(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	fb.FailCreateFor(2, http.StatusInternalServerError)
	client := newTestClient(fb)
	d := NewDispatcher(client)
	eligible := Eligible(testWorkers(), 7)

	result, err := d.Dispatch(context.Background(), testRequest(models.FlowDirectory), testUserID, eligible, "bk1700000000")
	require.ErrorIs(t, err, internal_utils.ErrDispatchFailed)
	require.NotNil(t, result)
	assert.ElementsMatch(t, []int64{1, 3}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, int64(2), result.Failed[0].WorkerID)
	assert.True(t, result.Partial())

	// The surviving records are live and visible to a poll.
	all, err := client.ListBookings(context.Background(), testUserID, true)
	require.NoError(t, err)
	var live []int64
	for _, rec := range all {
		if rec.BookingID == "bk1700000000" {
			live = append(live, rec.WorkerID)
		}
	}
	assert.ElementsMatch(t, []int64{1, 3}, live)

	// Creation calls are never retried.
	assert.Equal(t, 3, fb.CreateCalls())
}

func TestDispatch_SuccessFalseIsAFailure(t *testing.T) {
	fb := testhelpers.NewFakeBackend(t)
	fb.RejectCreateFor(1, "worker unavailable")
	d := NewDispatcher(newTestClient(fb))

	result, err := d.Dispatch(context.Background(), testRequest(models.FlowDirectory), testUserID, testWorkers()[:1], "bk2")
	require.ErrorIs(t, err, internal_utils.ErrDispatchFailed)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Error, "worker unavailable")
	assert.Empty(t, result.Succeeded)
}

func TestFormatWorkLocation(t *testing.T) {
	assert.Equal(t, "12 MG Road", FormatWorkLocation(models.WorkLocation{Address: " 12 MG Road "}))
	assert.Equal(t, "12 MG Road (12.971600, 77.594600)", FormatWorkLocation(models.WorkLocation{
		Address:   "12 MG Road",
		Latitude:  utils.Ptr(12.9716),
		Longitude: utils.Ptr(77.5946),
	}))
}

func TestFormatBookingTime_UsesWorkLocationZone(t *testing.T) {
	ts := time.Date(2024, 1, 15, 4, 30, 0, 0, time.UTC)

	bengaluru := models.WorkLocation{Address: "x", Latitude: utils.Ptr(12.9716), Longitude: utils.Ptr(77.5946)}
	assert.Equal(t, "2024-01-15 10:00:00", FormatBookingTime(ts, bengaluru))

	noCoords := models.WorkLocation{Address: "x"}
	assert.Equal(t, ts.In(time.Local).Format("2006-01-02 15:04:05"), FormatBookingTime(ts, noCoords))
}
