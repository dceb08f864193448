package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingFlow string

const (
	// FlowServiceSeeker collects payment once a worker accepts.
	FlowServiceSeeker BookingFlow = "service_seeker"
	// FlowDirectory only reveals the confirmed worker's contact details.
	FlowDirectory BookingFlow = "directory"
)

type WorkLocation struct {
	Address   string   `json:"address" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// HasCoordinates is true only when both lat and lng were captured.
func (l WorkLocation) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ServiceRequest is the customer's intent. It is treated as immutable once
// it has been dispatched.
type ServiceRequest struct {
	CategoryID      int             `json:"category_id" validate:"required,gt=0"`
	Instant         bool            `json:"instant"`
	WindowStart     *time.Time      `json:"window_start,omitempty" validate:"required_without=Instant"`
	WindowEnd       *time.Time      `json:"window_end,omitempty"`
	Location        WorkLocation    `json:"work_location" validate:"required"`
	Description     string          `json:"description" validate:"max=2000"`
	WorkDocuments   []string        `json:"work_documents,omitempty" validate:"max=10,dive,required"`
	ContactName     string          `json:"contact_name" validate:"required"`
	ContactNumber   string          `json:"contact_number" validate:"required,min=7,max=20"`
	Flow            BookingFlow     `json:"flow" validate:"required,oneof=service_seeker directory"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id,omitempty" validate:"required_if=Flow service_seeker"`
}

// RequestedTime is the start of the requested window, or now for instant requests.
func (r *ServiceRequest) RequestedTime(now time.Time) time.Time {
	if r.Instant || r.WindowStart == nil {
		return now
	}
	return *r.WindowStart
}
