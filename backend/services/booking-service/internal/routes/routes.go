package routes

const (
	Health  = "/health"
	Metrics = "/metrics"

	Bookings             = "/api/v1/bookings"
	Booking              = "/api/v1/bookings/{booking_id}"
	BookingCancel        = "/api/v1/bookings/{booking_id}/cancel"
	BookingPaymentRetry  = "/api/v1/bookings/{booking_id}/payment/retry"
	BookingPaymentCancel = "/api/v1/bookings/{booking_id}/payment/cancel"
)
