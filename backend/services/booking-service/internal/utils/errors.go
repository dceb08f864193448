package utils

import "errors"

// Booking-service specific errors. Controllers map them onto the codes in
// response.go.
var (
	ErrNoEligibleWorkers = errors.New("no workers available")
	ErrDispatchFailed    = errors.New("dispatch failed")
	ErrPollTimedOut      = errors.New("timed out")

	ErrPaymentFailed       = errors.New("payment failed")
	ErrPaymentCancelled    = errors.New("payment cancelled")
	ErrPaymentInFlight     = errors.New("payment already in progress")
	ErrPaymentNotAvailable = errors.New("payment not available in current state")

	ErrSessionNotFound  = errors.New("booking session not found")
	ErrAlreadyResolving = errors.New("booking is already being resolved")
	ErrPollLockHeld     = errors.New("poll lock held by another owner")
)
