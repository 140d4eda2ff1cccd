package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

// Request is one proposal to move a set of animals from the respondent's
// holdings to a destination holding owned by the requester.
//
// Invariants:
//   - AnimalCUIs is non-empty and free of duplicates
//   - RequesterID != RespondentID
//   - Status only moves pending -> approved | rejected | expired, through
//     Approve, Reject and Expire
//   - VerificationHash is a bcrypt hash; the plaintext is never stored
type Request struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code"`
	RequesterID        string    `json:"requester_id"`
	RespondentID       string    `json:"respondent_id"`
	DestinationHolding string    `json:"destination_holding"`
	AnimalCUIs         []string  `json:"animal_cuis"`
	VerificationHash   string    `json:"-"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewRequest builds a pending request.
func NewRequest(id uuid.UUID, code, requesterID, respondentID, destination string, cuis []string, verificationHash string, now time.Time) (*Request, error) {
	if len(cuis) == 0 {
		return nil, dErrors.Wrap(ErrEmptyAnimalSet, dErrors.CodeInvariantViolation, "transfer requires animals")
	}
	if requesterID == respondentID {
		return nil, dErrors.Wrap(ErrSelfTransfer, dErrors.CodeInvariantViolation, "requester and respondent must differ")
	}
	if destination == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer requires a destination holding")
	}
	if verificationHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer requires a verification code")
	}
	return &Request{
		ID:                 id,
		Code:               code,
		RequesterID:        requesterID,
		RespondentID:       respondentID,
		DestinationHolding: destination,
		AnimalCUIs:         cuis,
		VerificationHash:   verificationHash,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// IsStale reports whether the request was created before now - window.
func (r *Request) IsStale(now time.Time, window time.Duration) bool {
	return r.CreatedAt.Before(now.Add(-window))
}

// MatchesVerificationCode compares code against the stored hash in constant time.
func (r *Request) MatchesVerificationCode(code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(r.VerificationHash), []byte(code)) == nil
}

func (r *Request) canTransitionTo(target Status) error {
	if !r.Status.CanTransitionTo(target) {
		return dErrors.Wrap(ErrNotPending, dErrors.CodeInvalidState, "transfer is no longer pending (status: "+r.Status.String()+")")
	}
	return nil
}

// CanApprove checks the pending guard for approval.
func (r *Request) CanApprove() error {
	return r.canTransitionTo(StatusApproved)
}

func (r *Request) ApplyApproval(now time.Time) {
	r.Status = StatusApproved
	r.UpdatedAt = now
}

// Approve validates and applies approval in one call.
func (r *Request) Approve(now time.Time) error {
	if err := r.CanApprove(); err != nil {
		return err
	}
	r.ApplyApproval(now)
	return nil
}

func (r *Request) CanReject() error {
	return r.canTransitionTo(StatusRejected)
}

func (r *Request) ApplyRejection(now time.Time) {
	r.Status = StatusRejected
	r.UpdatedAt = now
}

func (r *Request) Reject(now time.Time) error {
	if err := r.CanReject(); err != nil {
		return err
	}
	r.ApplyRejection(now)
	return nil
}

func (r *Request) CanExpire() error {
	return r.canTransitionTo(StatusExpired)
}

func (r *Request) ApplyExpiry(now time.Time) {
	r.Status = StatusExpired
	r.UpdatedAt = now
}

func (r *Request) Expire(now time.Time) error {
	if err := r.CanExpire(); err != nil {
		return err
	}
	r.ApplyExpiry(now)
	return nil
}

// SetVerificationHash replaces the hash of a pending request.
func (r *Request) SetVerificationHash(hash string, now time.Time) error {
	if !r.IsPending() {
		return dErrors.Wrap(ErrNotPending, dErrors.CodeInvalidState, "transfer is no longer pending (status: "+r.Status.String()+")")
	}
	r.VerificationHash = hash
	r.UpdatedAt = now
	return nil
}
