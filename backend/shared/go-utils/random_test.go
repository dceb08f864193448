package utils

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomStringLength(t *testing.T) {
	for _, n := range []int{1, 7, 8, 32} {
		s := RandomString(n)
		require.Len(t, s, n)
		require.Regexp(t, "^[0-9a-f]+$", s)
	}
}

func TestRandomStringFromDeterministicSource(t *testing.T) {
	src := bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef})
	s, err := RandomStringFrom(src, 8)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", s)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomStringFromPropagatesReaderError(t *testing.T) {
	_, err := RandomStringFrom(failingReader{}, 8)
	require.Error(t, err)
}

func TestIsE164(t *testing.T) {
	require.True(t, IsE164("+919999999999"))
	require.True(t, IsE164("+14155550123"))
	require.False(t, IsE164("9999999999"))
	require.False(t, IsE164("+0123456789"))
	require.False(t, IsE164("+91 99999 99999"))
}

func TestIsValidEmail(t *testing.T) {
	require.True(t, IsValidEmail("team@thepoofapp.com"))
	require.False(t, IsValidEmail("not-an-email"))
}
