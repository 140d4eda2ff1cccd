package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

type HoldingStore struct {
	q querier
}

func scanHolding(row interface{ Scan(...any) error }) (*livestock.Holding, error) {
	var h livestock.Holding
	if err := row.Scan(&h.Code, &h.Name, &h.Region, &h.Location, &h.OwnerID, &h.CreatedAt); err != nil {
		return nil, err
	}
	return &h, nil
}

// Insert reports a taken code as sentinel.ErrConflict without raising a
// unique violation, so the surrounding transaction can retry with a new code.
func (s *HoldingStore) Insert(ctx context.Context, h *livestock.Holding) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO holdings (code, name, region, location, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
	`, h.Code, h.Name, h.Region, h.Location, h.OwnerID, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert holding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert holding rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("holding %s: %w", h.Code, sentinel.ErrConflict)
	}
	return nil
}

func (s *HoldingStore) FindByCode(ctx context.Context, code string) (*livestock.Holding, error) {
	h, err := scanHolding(s.q.QueryRowContext(ctx, `
		SELECT code, name, region, location, owner_id, created_at FROM holdings WHERE code = $1
	`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("holding %s: %w", code, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find holding: %w", err)
	}
	return h, nil
}

func (s *HoldingStore) ListByOwner(ctx context.Context, ownerID string) ([]*livestock.Holding, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT code, name, region, location, owner_id, created_at
		FROM holdings WHERE owner_id = $1 ORDER BY code
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()
	var result []*livestock.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
