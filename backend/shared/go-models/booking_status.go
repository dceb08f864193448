package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BookingStatus is the per-record status code written by the backend.
// Code 4 is used by the backend both for "this worker declined" and for
// "a sibling was accepted, so this offer was missed". The client treats the
// two meanings as one case.
type BookingStatus int

const (
	BookingStatusPending          BookingStatus = 0
	BookingStatusAccepted         BookingStatus = 1
	BookingStatusInProgress       BookingStatus = 2
	BookingStatusCompleted        BookingStatus = 3
	BookingStatusRejectedOrMissed BookingStatus = 4
	BookingStatusCancelled        BookingStatus = 5
	BookingStatusRescheduled      BookingStatus = 6

	// BookingStatusUnknown is never sent by the backend; ParseBookingStatus
	// maps unrecognised codes onto it.
	BookingStatusUnknown BookingStatus = -1
)

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusPending:
		return "pending"
	case BookingStatusAccepted:
		return "accepted"
	case BookingStatusInProgress:
		return "in_progress"
	case BookingStatusCompleted:
		return "completed"
	case BookingStatusRejectedOrMissed:
		return "rejected_or_missed"
	case BookingStatusCancelled:
		return "cancelled"
	case BookingStatusRescheduled:
		return "rescheduled"
	default:
		return "unknown"
	}
}

// ParseBookingStatus converts a wire code to the enum.
func ParseBookingStatus(code int) (BookingStatus, error) {
	s := BookingStatus(code)
	if s.String() == "unknown" {
		return BookingStatusUnknown, fmt.Errorf("invalid booking status code: %d", code)
	}
	return s, nil
}

// UnmarshalJSON accepts the integer code, or the same code as a quoted
// string. Unrecognised codes decode to BookingStatusUnknown rather than failing
// the whole snapshot.
func (s *BookingStatus) UnmarshalJSON(b []byte) error {
	var code int
	if err := json.Unmarshal(b, &code); err != nil {
		var str string
		if strErr := json.Unmarshal(b, &str); strErr != nil {
			return fmt.Errorf("booking status: %w", err)
		}
		n, convErr := strconv.Atoi(str)
		if convErr != nil {
			*s = BookingStatusUnknown
			return nil
		}
		code = n
	}
	parsed, err := ParseBookingStatus(code)
	if err != nil {
		*s = BookingStatusUnknown
		return nil
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether no further transition is expected for the record itself.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending: {
		BookingStatusAccepted,
		BookingStatusRejectedOrMissed,
		BookingStatusCancelled,
		BookingStatusRescheduled,
	},
	BookingStatusAccepted:   {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted},
}

// CanTransitionTo encodes the per-record state machine the backend follows.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
