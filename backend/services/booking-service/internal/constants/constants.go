package constants

import "time"

// Polling defaults, overridable via env and LaunchDarkly.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
	PollFetchTimeout    = 15 * time.Second
)

// Backend client
const (
	BackendRequestTimeout = 10 * time.Second
)

// Wire formats
const (
	BookingTimeLayout  = "2006-01-02 15:04:05"
	DefaultCurrency    = "inr"
	MinorUnitsPerMajor = 100
)

// Outcome reasons surfaced to the client.
const (
	ReasonNoWorkers = "no workers available"
	ReasonTimeout   = "timeout"
)

// Session registry
const (
	SessionSweepCronSpec = "@every 1m"
	SessionRetention     = 30 * time.Minute
)

// Poll ownership lock
const (
	PollLockKeyPrefix = "booking-service:poll:"
	// PollLockTTLSlack is added to the poll timeout so a lock never expires
	// under a live poller.
	PollLockTTLSlack = 30 * time.Second
)

// Notifications
const (
	EmailSubjectPartialDispatch = "Partial booking dispatch: %s"
	OpsTeamName                 = "Poof Ops Team"
	ConfirmationSMSTemplate     = "%s has accepted your booking %s. Contact: %s"
)

// Payment
const (
	PaymentMetadataBookingIDKey = "booking_id"
	PaymentDescriptionFallback  = "Home service booking %s"
)
