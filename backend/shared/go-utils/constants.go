package utils

const (
	OrganizationName                      = "Poof"
	CORSLowSecurityAllowedOriginLocalhost = "http://localhost:*"
	OpsTeamEmail                          = "team@thepoofapp.com"

	// BookingIDPrefix is prepended to every logical booking identifier.
	BookingIDPrefix = "bk"
)
