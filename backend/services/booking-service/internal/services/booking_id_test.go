package services

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingID_Format(t *testing.T) {
	g := &BookingIDGenerator{
		Now:     func() time.Time { return time.Unix(1700000000, 0) },
		Entropy: bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}),
	}
	id, err := g.NewBookingID()
	require.NoError(t, err)
	assert.Equal(t, "bk1700000000-deadbeef", id)
}

func TestNewBookingID_SameSecondStillDistinct(t *testing.T) {
	g := NewBookingIDGenerator()
	g.Now = func() time.Time { return time.Unix(1700000000, 0) }

	pattern := regexp.MustCompile(`^bk1700000000-[0-9a-f]{8}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := g.NewBookingID()
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestNewBookingID_EntropyFailure(t *testing.T) {
	g := &BookingIDGenerator{Now: time.Now, Entropy: bytes.NewReader(nil)}
	_, err := g.NewBookingID()
	assert.Error(t, err)
}
