package utils

import (
	"net/mail"
	"regexp"
)

var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`) // ITU-T E.164

// IsE164 reports basic E.164 compliance. Twilio rejects anything else.
func IsE164(number string) bool { return e164Regex.MatchString(number) }

// IsValidEmail is a syntax-only check.
func IsValidEmail(e string) bool {
	_, err := mail.ParseAddress(e)
	return err == nil
}
