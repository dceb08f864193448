package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/poofware/homeservices/backend/shared/go-utils"
)

const bookingIDSuffixLen = 8

// BookingIDGenerator mints the logical booking id shared by every record of
// one fan-out. The unix-second prefix keeps ids roughly sortable; the random
// suffix keeps two requests in the same second apart.
type BookingIDGenerator struct {
	Now     func() time.Time
	Entropy io.Reader
}

func NewBookingIDGenerator() *BookingIDGenerator {
	return &BookingIDGenerator{Now: time.Now, Entropy: rand.Reader}
}

// NewBookingID returns "bk<unix seconds>-<8 hex chars>".
func (g *BookingIDGenerator) NewBookingID() (string, error) {
	suffix, err := utils.RandomStringFrom(g.Entropy, bookingIDSuffixLen)
	if err != nil {
		return "", fmt.Errorf("booking id entropy: %w", err)
	}
	return fmt.Sprintf("%s%d-%s", utils.BookingIDPrefix, g.Now().Unix(), suffix), nil
}
