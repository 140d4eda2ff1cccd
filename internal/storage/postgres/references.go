package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

type ReferenceStore struct {
	q querier
}

func (s *ReferenceStore) SpeciesByName(ctx context.Context, name string) (*livestock.Species, error) {
	var sp livestock.Species
	err := s.q.QueryRowContext(ctx, `SELECT id, name, digit FROM species WHERE name = $1`, storage.NormalizeName(name)).
		Scan(&sp.ID, &sp.Name, &sp.Digit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("species %q: %w", name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find species: %w", err)
	}
	return &sp, nil
}

func (s *ReferenceStore) RegionByName(ctx context.Context, name string) (*livestock.Region, error) {
	var r livestock.Region
	err := s.q.QueryRowContext(ctx, `SELECT id, name, code FROM regions WHERE name = $1`, storage.NormalizeName(name)).
		Scan(&r.ID, &r.Name, &r.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("region %q: %w", name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find region: %w", err)
	}
	return &r, nil
}

func scanEventType(row interface{ Scan(...any) error }) (*livestock.EventType, error) {
	var et livestock.EventType
	var group string
	if err := row.Scan(&et.ID, &et.Name, &group, &et.MultiAnimal); err != nil {
		return nil, err
	}
	et.Group = livestock.EventGroup(group)
	return &et, nil
}

func (s *ReferenceStore) EventTypeByID(ctx context.Context, id int) (*livestock.EventType, error) {
	et, err := scanEventType(s.q.QueryRowContext(ctx, `
		SELECT id, name, event_group, multi_animal FROM event_types WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event type %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find event type: %w", err)
	}
	return et, nil
}

func (s *ReferenceStore) EventTypesByGroup(ctx context.Context, group livestock.EventGroup) ([]livestock.EventType, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, event_group, multi_animal FROM event_types WHERE event_group = $1 ORDER BY name
	`, string(group))
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	defer rows.Close()
	var result []livestock.EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event type: %w", err)
		}
		result = append(result, *et)
	}
	return result, rows.Err()
}
