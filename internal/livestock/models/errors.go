package models

import "errors"

// Error kinds raised by the livestock domain. Services wrap these with a
// domain-errors code before returning them to handlers.
var (
	ErrUnknownSpecies    = errors.New("unknown species")
	ErrUnknownRegion     = errors.New("unknown region")
	ErrSequenceExhausted = errors.New("sequence space exhausted for partition")
	ErrHoldingNotFound   = errors.New("holding not found")
	ErrAnimalNotFound    = errors.New("animal not found")
	ErrAnimalClaimed     = errors.New("animal is claimed by a pending transfer")
	ErrNoOwnedAnimals    = errors.New("none of the animals belong to the actor")
	ErrEventTypeGroup    = errors.New("event type belongs to another group")
)
