package models

// BookingRecord is one row per (logical booking, worker). Records that share
// BookingID belong to the same customer request.
type BookingRecord struct {
	ID             int64         `json:"id,omitempty"`
	BookingID      string        `json:"booking_id"`
	WorkerID       int64         `json:"worker_id"`
	UserID         int64         `json:"user_id"`
	Status         BookingStatus `json:"status"`
	BookingTime    string        `json:"booking_time"`
	Description    string        `json:"description"`
	ContactNumber  string        `json:"contact_number,omitempty"`
	WorkLocation   string        `json:"work_location,omitempty"`
	WorkDocuments  []string      `json:"work_documents,omitempty"`
	CancelReason   *string       `json:"cancel_reason,omitempty"`
	RescheduleDate *string       `json:"reschedule_date,omitempty"`
	PaymentStatus  int           `json:"payment_status,omitempty"`
}

// NewBookingRecord is the creation payload for POST /bookings. Status is
// always Pending at creation time.
type NewBookingRecord struct {
	BookingID     string        `json:"booking_id"`
	WorkerID      int64         `json:"worker_id"`
	UserID        int64         `json:"user_id"`
	ContactName   string        `json:"contact_name,omitempty"`
	ContactNumber string        `json:"contact_number"`
	WorkLocation  string        `json:"work_location"`
	BookingTime   string        `json:"booking_time"`
	Status        BookingStatus `json:"status"`
	Description   string        `json:"description"`
	WorkDocuments []string      `json:"work_documents"`
}
