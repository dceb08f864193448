// go-utils/random.go

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// RandomString returns `length` lowercase hex characters read from crypto/rand.
func RandomString(length int) string {
	s, err := RandomStringFrom(rand.Reader, length)
	if err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return s
}

// RandomStringFrom is RandomString with an explicit entropy source.
func RandomStringFrom(r io.Reader, length int) (string, error) {
	bytes := make([]byte, (length+1)/2)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}
