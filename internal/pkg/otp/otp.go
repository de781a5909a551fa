// Package otp generates and parses six-digit verification codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-otp-auth/internal/domain"
)

var span = big.NewInt(domain.OTPMax - domain.OTPMin + 1)

// Generate returns a uniformly random code in [domain.OTPMin, domain.OTPMax].
func Generate() (int, error) {
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, fmt.Errorf("generate otp: %w", err)
	}
	return domain.OTPMin + int(n.Int64()), nil
}

// Parse coerces user input to a code the lenient way clients have always
// relied on: surrounding whitespace is ignored and the leading run of digits
// (with an optional sign) is used, so "123456abc" reads as 123456.
// ok is false when no digits lead the input.
func Parse(s string) (code int, ok bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
