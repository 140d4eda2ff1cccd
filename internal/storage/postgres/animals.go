package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

// partitionLockNamespace is the first key of every partition advisory lock so
// they cannot collide with advisory locks taken by other code.
const partitionLockNamespace int32 = 0x435549

// AnimalStore is the animal registry bound to one transaction.
type AnimalStore struct {
	q querier
}

const animalColumns = `cui, name, species, sex, birth_date, holding_code, health, status,
	species_digit, region_code, sequence, created_at, updated_at`

func scanAnimal(row interface{ Scan(...any) error }) (*livestock.Animal, error) {
	var a livestock.Animal
	var sex, health, status string
	if err := row.Scan(&a.CUI, &a.Name, &a.Species, &sex, &a.BirthDate, &a.HoldingCode, &health, &status,
		&a.SpeciesDigit, &a.RegionCode, &a.Sequence, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Sex = livestock.Sex(sex)
	a.Health = livestock.HealthCondition(health)
	a.Status = livestock.AnimalStatus(status)
	return &a, nil
}

func (s *AnimalStore) FindByCUI(ctx context.Context, cui string) (*livestock.Animal, error) {
	return s.findOne(ctx, `SELECT `+animalColumns+` FROM animals WHERE cui = $1`, cui)
}

// FindByCUIForUpdate waits for any transaction holding the row, such as a
// transfer being created, so checks that follow see its committed writes.
func (s *AnimalStore) FindByCUIForUpdate(ctx context.Context, cui string) (*livestock.Animal, error) {
	return s.findOne(ctx, `SELECT `+animalColumns+` FROM animals WHERE cui = $1 FOR UPDATE`, cui)
}

func (s *AnimalStore) findOne(ctx context.Context, query, cui string) (*livestock.Animal, error) {
	a, err := scanAnimal(s.q.QueryRowContext(ctx, query, cui))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("animal %s: %w", cui, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find animal: %w", err)
	}
	return a, nil
}

// FindByCUIs locks the returned rows so ownership and status cannot change
// under a transfer that is being created.
func (s *AnimalStore) FindByCUIs(ctx context.Context, cuis []string) ([]*livestock.Animal, error) {
	if len(cuis) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+animalColumns+`
		FROM animals
		WHERE cui = ANY($1::text[])
		ORDER BY cui
		FOR UPDATE
	`, pq.Array(cuis))
	if err != nil {
		return nil, fmt.Errorf("find animals: %w", err)
	}
	return collectAnimals(rows)
}

func (s *AnimalStore) FindOwnedBy(ctx context.Context, holdingCode string, status livestock.AnimalStatus) ([]*livestock.Animal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+animalColumns+`
		FROM animals
		WHERE holding_code = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY cui
	`, holdingCode, string(status))
	if err != nil {
		return nil, fmt.Errorf("list holding animals: %w", err)
	}
	return collectAnimals(rows)
}

func collectAnimals(rows *sql.Rows) ([]*livestock.Animal, error) {
	defer rows.Close()
	var result []*livestock.Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan animal: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate animals: %w", err)
	}
	return result, nil
}

func (s *AnimalStore) FilterOwnedBy(ctx context.Context, ownerID string, cuis []string) ([]string, error) {
	if len(cuis) == 0 {
		return nil, nil
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT a.cui
		FROM animals a
		JOIN holdings h ON h.code = a.holding_code
		WHERE h.owner_id = $1 AND a.cui = ANY($2::text[])
		ORDER BY a.cui
	`, ownerID, pq.Array(cuis))
	if err != nil {
		return nil, fmt.Errorf("filter owned animals: %w", err)
	}
	defer rows.Close()
	var owned []string
	for rows.Next() {
		var cui string
		if err := rows.Scan(&cui); err != nil {
			return nil, fmt.Errorf("scan cui: %w", err)
		}
		owned = append(owned, cui)
	}
	return owned, rows.Err()
}

// LockPartition takes a transaction-scoped advisory lock on the partition.
// Concurrent allocators for the same partition queue here until the holder
// commits or rolls back, so the max read that follows is always current.
func (s *AnimalStore) LockPartition(ctx context.Context, p livestock.Partition) error {
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, partitionLockNamespace, p.LockKey()); err != nil {
		return fmt.Errorf("lock partition %d: %w", p.LockKey(), err)
	}
	return nil
}

func (s *AnimalStore) MaxSequenceInPartition(ctx context.Context, p livestock.Partition) (int, error) {
	var maxSeq sql.NullInt64
	err := s.q.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM animals WHERE species_digit = $1 AND region_code = $2
	`, p.SpeciesDigit, p.RegionCode).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("read partition max: %w", err)
	}
	return int(maxSeq.Int64), nil
}

func (s *AnimalStore) Exists(ctx context.Context, cui string) (bool, error) {
	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM animals WHERE cui = $1)`, cui).Scan(&exists); err != nil {
		return false, fmt.Errorf("check animal: %w", err)
	}
	return exists, nil
}

func (s *AnimalStore) Insert(ctx context.Context, a *livestock.Animal) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO animals (`+animalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.CUI, a.Name, a.Species, string(a.Sex), a.BirthDate, a.HoldingCode, string(a.Health), string(a.Status),
		a.SpeciesDigit, a.RegionCode, a.Sequence, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("animal %s: %w", a.CUI, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert animal: %w", err)
	}
	return nil
}

func (s *AnimalStore) ReassignHolding(ctx context.Context, cuis []string, holdingCode string, now time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE animals SET holding_code = $1, updated_at = $2 WHERE cui = ANY($3::text[])
	`, holdingCode, now, pq.Array(cuis))
	if err != nil {
		return 0, fmt.Errorf("reassign holding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reassign holding rows: %w", err)
	}
	return int(n), nil
}

func (s *AnimalStore) SetHealthCondition(ctx context.Context, cuis []string, condition livestock.HealthCondition, now time.Time) (int, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE animals SET health = $1, updated_at = $2 WHERE cui = ANY($3::text[])
	`, string(condition), now, pq.Array(cuis))
	if err != nil {
		return 0, fmt.Errorf("set health condition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set health condition rows: %w", err)
	}
	return int(n), nil
}

func (s *AnimalStore) SetStatus(ctx context.Context, cui string, status livestock.AnimalStatus, now time.Time) error {
	res, err := s.q.ExecContext(ctx, `UPDATE animals SET status = $1, updated_at = $2 WHERE cui = $3`, string(status), now, cui)
	if err != nil {
		return fmt.Errorf("set animal status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set animal status rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("animal %s: %w", cui, sentinel.ErrNotFound)
	}
	return nil
}
