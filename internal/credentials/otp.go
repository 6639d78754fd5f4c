package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in a verification code.
const OTPLength = 6

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a zero-padded 6-digit code drawn uniformly from
// [000000, 999999] using crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
