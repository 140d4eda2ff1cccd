package models

import (
	"errors"
	"strings"
)

var (
	ErrEmptyAnimalSet       = errors.New("at least one animal is required")
	ErrAnimalNotFound       = errors.New("animal not found")
	ErrAnimalNotActive      = errors.New("animal is not active")
	ErrMixedOwnership       = errors.New("animals belong to different owners")
	ErrSelfTransfer         = errors.New("requester already owns the animals")
	ErrDestinationHolding   = errors.New("destination holding is invalid or not owned by requester")
	ErrAnimalAlreadyPending = errors.New("animal already in a pending transfer")
	ErrNotFound             = errors.New("transfer not found")
	ErrNotPending           = errors.New("transfer is not pending")
	ErrBadVerificationCode  = errors.New("verification code does not match")
)

// PendingConflictError names the animals that are already claimed by another
// pending transfer. It matches ErrAnimalAlreadyPending under errors.Is.
type PendingConflictError struct {
	CUIs []string
}

func (e *PendingConflictError) Error() string {
	return ErrAnimalAlreadyPending.Error() + ": " + strings.Join(e.CUIs, ", ")
}

func (e *PendingConflictError) Is(target error) bool {
	return target == ErrAnimalAlreadyPending
}
