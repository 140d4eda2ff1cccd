package sentinel

import "errors"

// Store-level facts. Animal, holding and transfer stores return these
// (optionally wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a uniqueness constraint rejected the write (CUI, holding code, claim)
//   - ErrInvalidState: conditional update matched no row because the state moved on
//   - ErrUnavailable: backing service unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
