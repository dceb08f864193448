package utils

// Public error codes returned by the booking endpoints, alongside the shared
// codes in go-utils.
const (
	ErrCodeNoEligibleWorkers   = "no_eligible_workers"
	ErrCodeDispatchFailed      = "dispatch_failed"
	ErrCodePaymentFailed       = "payment_failed"
	ErrCodePaymentInFlight     = "payment_in_flight"
	ErrCodePaymentNotAvailable = "payment_not_available"
	ErrCodeAlreadyResolving    = "already_resolving"
)
