// Package notification delivers transfer notices to the owner who must
// approve them. Delivery happens after the transfer is committed; a failed
// delivery never undoes the transfer.
package notification

import (
	"context"
	"time"
)

// Kind identifies the notice type on the wire.
type Kind string

const (
	KindTransferCreated Kind = "transfer_created"
	KindResetCode       Kind = "transfer_code_reset"
)

// TransferCreated is sent to the respondent when a new request names their animals.
type TransferCreated struct {
	TransferCode       string    `json:"transfer_code"`
	RequesterID        string    `json:"requester_id"`
	RespondentID       string    `json:"respondent_id"`
	DestinationHolding string    `json:"destination_holding"`
	AnimalCUIs         []string  `json:"animal_cuis"`
	VerificationCode   string    `json:"verification_code"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// ResetCode is sent to the respondent when the requester asks for a new code.
type ResetCode struct {
	TransferCode     string `json:"transfer_code"`
	RespondentID     string `json:"respondent_id"`
	VerificationCode string `json:"verification_code"`
}

// Gateway delivers notices to respondents.
type Gateway interface {
	NotifyTransferCreated(ctx context.Context, n TransferCreated) error
	NotifyResetCode(ctx context.Context, n ResetCode) error
}
