package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	transfer "github.com/NogaLive/SNIUGB/internal/transfer/models"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

type transferStore struct {
	db *DB
}

func (s *transferStore) Insert(_ context.Context, r *transfer.Request) error {
	if _, ok := s.db.st.transferCodes[r.Code]; ok {
		return fmt.Errorf("transfer %s: %w", r.Code, sentinel.ErrConflict)
	}
	s.db.st.transfers[r.ID] = copyRequest(r)
	s.db.st.transferCodes[r.Code] = r.ID
	return nil
}

func (s *transferStore) ClaimAnimals(_ context.Context, transferID uuid.UUID, cuis []string) ([]string, error) {
	var conflicts []string
	for _, cui := range cuis {
		if holder, ok := s.db.st.claims[cui]; ok && holder != transferID {
			conflicts = append(conflicts, cui)
			continue
		}
		s.db.st.claims[cui] = transferID
	}
	return conflicts, nil
}

func (s *transferStore) ReleaseClaims(_ context.Context, transferIDs ...uuid.UUID) error {
	for cui, holder := range s.db.st.claims {
		if slices.Contains(transferIDs, holder) {
			delete(s.db.st.claims, cui)
		}
	}
	return nil
}

func (s *transferStore) IsClaimed(_ context.Context, cui string) (bool, error) {
	_, ok := s.db.st.claims[cui]
	return ok, nil
}

func (s *transferStore) FindByCodeForUpdate(_ context.Context, code string) (*transfer.Request, error) {
	id, ok := s.db.st.transferCodes[code]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", code, sentinel.ErrNotFound)
	}
	return copyRequest(s.db.st.transfers[id]), nil
}

func (s *transferStore) UpdateStatusIfPending(_ context.Context, id uuid.UUID, status transfer.Status, now time.Time) error {
	r, ok := s.db.st.transfers[id]
	if !ok {
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	if r.Status != transfer.StatusPending {
		return fmt.Errorf("transfer %s is %s: %w", id, r.Status, sentinel.ErrInvalidState)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

func (s *transferStore) UpdateVerificationHash(_ context.Context, id uuid.UUID, hash string, now time.Time) error {
	r, ok := s.db.st.transfers[id]
	if !ok {
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	r.VerificationHash = hash
	r.UpdatedAt = now
	return nil
}

func (s *transferStore) FindPendingBeforeForUpdate(_ context.Context, cutoff time.Time) ([]*transfer.Request, error) {
	var result []*transfer.Request
	for _, r := range s.db.st.transfers {
		if r.Status == transfer.StatusPending && r.CreatedAt.Before(cutoff) {
			result = append(result, copyRequest(r))
		}
	}
	slices.SortFunc(result, func(x, y *transfer.Request) int {
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	return result, nil
}

func (s *transferStore) ListForUser(_ context.Context, userID string) ([]*transfer.Request, error) {
	var result []*transfer.Request
	for _, r := range s.db.st.transfers {
		if r.RequesterID == userID || r.RespondentID == userID {
			result = append(result, copyRequest(r))
		}
	}
	slices.SortFunc(result, func(x, y *transfer.Request) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})
	return result, nil
}
