package engine

import (
	"crypto/rand"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// codeAlphabet drops 0/O and 1/I/L so codes survive being read aloud.
const codeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const codeLength = 8

// NewConfirmationCode returns a random code such as "RSV-7KQ2MX9B".
func NewConfirmationCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 0, 4+codeLength)
	out = append(out, "RSV-"...)
	for _, b := range buf {
		// 256 % 31 leaves a slight bias; uniqueness is probed anyway
		out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(out), nil
}
