package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationCodeMin = 100000
	verificationCodeMax = 999999
)

// NewTransferCode returns an opaque lookup code of the form TRANS-XXXXXXXX.
func NewTransferCode() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRANS-" + strings.ToUpper(hex[:8])
}

// NewVerificationCode returns a uniformly random 6-digit code.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeMax-verificationCodeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+verificationCodeMin), nil
}

// HashVerificationCode hashes code with bcrypt at the given cost.
// A cost below bcrypt.MinCost falls back to bcrypt.DefaultCost.
func HashVerificationCode(code string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", fmt.Errorf("hash verification code: %w", err)
	}
	return string(hash), nil
}
