package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	transfer "github.com/NogaLive/SNIUGB/internal/transfer/models"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

type TransferStore struct {
	q querier
}

const transferColumns = `id, code, requester_id, respondent_id, destination_holding, verification_hash, status, created_at, updated_at`

func scanTransfer(row interface{ Scan(...any) error }, extra ...any) (*transfer.Request, error) {
	var r transfer.Request
	var status string
	dest := append([]any{&r.ID, &r.Code, &r.RequesterID, &r.RespondentID, &r.DestinationHolding,
		&r.VerificationHash, &status, &r.CreatedAt, &r.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.Status = transfer.Status(status)
	return &r, nil
}

// Insert writes the request and its permanent animal association. Claims are
// taken separately through ClaimAnimals. A taken code is reported as
// sentinel.ErrConflict and leaves the transaction usable for another attempt.
func (s *TransferStore) Insert(ctx context.Context, r *transfer.Request) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO NOTHING
	`, r.ID, r.Code, r.RequesterID, r.RespondentID, r.DestinationHolding, r.VerificationHash,
		string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert transfer rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transfer %s: %w", r.Code, sentinel.ErrConflict)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO transfer_animals (transfer_id, animal_cui)
		SELECT $1::uuid, unnest($2::text[])
	`, r.ID, pq.Array(r.AnimalCUIs))
	if err != nil {
		return fmt.Errorf("insert transfer animals: %w", err)
	}
	return nil
}

// ClaimAnimals inserts one claim row per animal. A row that already exists
// for another transfer is skipped by ON CONFLICT and reported back as a
// conflict. A concurrent claimer of the same animal blocks on the primary key
// until this transaction ends, so at most one of them can see its row inserted.
func (s *TransferStore) ClaimAnimals(ctx context.Context, transferID uuid.UUID, cuis []string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		INSERT INTO transfer_pending_claims (animal_cui, transfer_id)
		SELECT unnest($1::text[]), $2::uuid
		ON CONFLICT (animal_cui) DO NOTHING
		RETURNING animal_cui
	`, pq.Array(cuis), transferID)
	if err != nil {
		return nil, fmt.Errorf("claim animals: %w", err)
	}
	defer rows.Close()

	claimed := make(map[string]struct{}, len(cuis))
	for rows.Next() {
		var cui string
		if err := rows.Scan(&cui); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claimed[cui] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim animals: %w", err)
	}

	var conflicts []string
	for _, cui := range cuis {
		if _, ok := claimed[cui]; !ok {
			conflicts = append(conflicts, cui)
		}
	}
	return conflicts, nil
}

func (s *TransferStore) ReleaseClaims(ctx context.Context, transferIDs ...uuid.UUID) error {
	if len(transferIDs) == 0 {
		return nil
	}
	ids := make([]string, len(transferIDs))
	for i, id := range transferIDs {
		ids[i] = id.String()
	}
	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM transfer_pending_claims WHERE transfer_id = ANY($1::uuid[])
	`, pq.Array(ids)); err != nil {
		return fmt.Errorf("release claims: %w", err)
	}
	return nil
}

func (s *TransferStore) IsClaimed(ctx context.Context, cui string) (bool, error) {
	var claimed bool
	if err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM transfer_pending_claims WHERE animal_cui = $1)
	`, cui).Scan(&claimed); err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return claimed, nil
}

func (s *TransferStore) FindByCodeForUpdate(ctx context.Context, code string) (*transfer.Request, error) {
	r, err := scanTransfer(s.q.QueryRowContext(ctx, `
		SELECT `+transferColumns+` FROM transfers WHERE code = $1 FOR UPDATE
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer %s: %w", code, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find transfer: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT animal_cui FROM transfer_animals WHERE transfer_id = $1 ORDER BY animal_cui
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("load transfer animals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cui string
		if err := rows.Scan(&cui); err != nil {
			return nil, fmt.Errorf("scan transfer animal: %w", err)
		}
		r.AnimalCUIs = append(r.AnimalCUIs, cui)
	}
	return r, rows.Err()
}

// UpdateStatusIfPending is the guarded terminal transition. The WHERE clause
// is re-evaluated against the latest row version after any concurrent writer
// commits, so approve and expire can never both apply.
func (s *TransferStore) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status transfer.Status, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transfers SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'
	`, string(status), now, id)
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transfer status rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *TransferStore) UpdateVerificationHash(ctx context.Context, id uuid.UUID, hash string, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE transfers SET verification_hash = $1, updated_at = $2 WHERE id = $3
	`, hash, now, id)
	if err != nil {
		return fmt.Errorf("update verification hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification hash rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// FindPendingBeforeForUpdate relies on FOR UPDATE re-checking the WHERE
// clause against the latest row version: a request approved while this query
// waited on its lock is no longer pending and is skipped.
func (s *TransferStore) FindPendingBeforeForUpdate(ctx context.Context, cutoff time.Time) ([]*transfer.Request, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, id
		FOR UPDATE
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stale transfers: %w", err)
	}
	defer rows.Close()
	var result []*transfer.Request
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale transfer: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *TransferStore) ListForUser(ctx context.Context, userID string) ([]*transfer.Request, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+transferColumns+`,
			ARRAY(SELECT ta.animal_cui FROM transfer_animals ta WHERE ta.transfer_id = transfers.id ORDER BY ta.animal_cui)
		FROM transfers
		WHERE requester_id = $1 OR respondent_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var result []*transfer.Request
	for rows.Next() {
		var cuis []string
		r, err := scanTransfer(rows, pq.Array(&cuis))
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		r.AnimalCUIs = cuis
		result = append(result, r)
	}
	return result, rows.Err()
}
