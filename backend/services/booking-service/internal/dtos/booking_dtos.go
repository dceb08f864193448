package dtos

import (
	"github.com/poofware/homeservices/backend/shared/go-models"
)

// CreateBookingRequest is the body of POST /api/v1/bookings.
type CreateBookingRequest = models.ServiceRequest

type DispatchFailure struct {
	WorkerID int64  `json:"worker_id"`
	Error    string `json:"error"`
}

type DispatchSummary struct {
	Succeeded []int64           `json:"succeeded"`
	Failed    []DispatchFailure `json:"failed"`
}

type CreateBookingResponse struct {
	BookingID string          `json:"booking_id"`
	State     string          `json:"state"`
	Dispatch  DispatchSummary `json:"dispatch"`
	Warning   string          `json:"warning,omitempty"`
}

type ValidationErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
