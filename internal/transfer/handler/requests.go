package handler

import (
	"regexp"
	"strings"

	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

const maxAnimalsPerTransfer = 500

var verificationCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// CreateTransferRequest is the body of POST /transfers.
type CreateTransferRequest struct {
	AnimalCUIs         []string `json:"animal_cuis"`
	DestinationHolding string   `json:"destination_holding"`
}

func (r *CreateTransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.AnimalCUIs) > maxAnimalsPerTransfer {
		return dErrors.New(dErrors.CodeValidation, "too many animals in one transfer")
	}
	r.DestinationHolding = strings.TrimSpace(r.DestinationHolding)
	if r.DestinationHolding == "" {
		return dErrors.New(dErrors.CodeValidation, "destination_holding is required")
	}
	return nil
}

// ApproveTransferRequest is the body of POST /transfers/approve.
type ApproveTransferRequest struct {
	TransferCode     string `json:"transfer_code"`
	VerificationCode string `json:"verification_code"`
}

func (r *ApproveTransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.TransferCode = strings.ToUpper(strings.TrimSpace(r.TransferCode))
	r.VerificationCode = strings.TrimSpace(r.VerificationCode)
	if r.TransferCode == "" {
		return dErrors.New(dErrors.CodeValidation, "transfer_code is required")
	}
	if !verificationCodePattern.MatchString(r.VerificationCode) {
		return dErrors.New(dErrors.CodeValidation, "verification_code must be 6 digits")
	}
	return nil
}
