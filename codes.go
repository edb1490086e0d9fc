package auth

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strconv"
	"time"
)

const (
	// OTPTTL is how long an email verification code stays valid
	OTPTTL = 10 * time.Minute
	// ResetTokenTTL is how long a secret reset token stays valid
	ResetTokenTTL = 60 * time.Minute

	otpMin        = 100000
	otpMax        = 999999
	resetTokenLen = 32
)

// GenerateOTP returns a six digit code drawn uniformly from
// [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// GenerateResetToken returns 32 random bytes hex encoded.
func GenerateResetToken() (string, error) {
	buf := make([]byte, resetTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
