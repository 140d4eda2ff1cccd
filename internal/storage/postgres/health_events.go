package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	livestock "github.com/NogaLive/SNIUGB/internal/livestock/models"
)

type HealthEventStore struct {
	q querier
}

func (s *HealthEventStore) Insert(ctx context.Context, e *livestock.HealthEvent) error {
	var (
		treatmentTypeID sql.NullInt64
		treatmentAt     sql.NullTime
		treatmentName   sql.NullString
		dose            sql.NullFloat64
		doseUnit        sql.NullString
	)
	if t := e.Treatment; t != nil {
		treatmentTypeID = sql.NullInt64{Int64: int64(t.Type.ID), Valid: true}
		treatmentAt = sql.NullTime{Time: t.OccurredAt, Valid: true}
		treatmentName = sql.NullString{String: t.Name, Valid: t.Name != ""}
		if t.Dose != nil {
			dose = sql.NullFloat64{Float64: *t.Dose, Valid: true}
		}
		doseUnit = sql.NullString{String: t.DoseUnit, Valid: t.DoseUnit != ""}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO health_events (id, disease_type_id, disease_occurred_at, treatment_type_id, treatment_occurred_at,
			treatment_name, dose, dose_unit, notes, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.Disease.ID, e.DiseaseOccurredAt, treatmentTypeID, treatmentAt,
		treatmentName, dose, doseUnit, e.Notes, e.CreatorID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert health event: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO health_event_animals (event_id, animal_cui)
		SELECT $1::uuid, unnest($2::text[])
	`, e.ID, pq.Array(e.AnimalCUIs))
	if err != nil {
		return fmt.Errorf("insert health event animals: %w", err)
	}
	return nil
}

func (s *HealthEventStore) ListByAnimal(ctx context.Context, cui string) ([]*livestock.HealthEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT e.id, d.id, d.name, d.event_group, d.multi_animal, e.disease_occurred_at,
			t.id, t.name, t.event_group, t.multi_animal, e.treatment_occurred_at,
			e.treatment_name, e.dose, e.dose_unit, e.notes, e.creator_id, e.created_at,
			ARRAY(SELECT a.animal_cui FROM health_event_animals a WHERE a.event_id = e.id ORDER BY a.animal_cui)
		FROM health_events e
		JOIN health_event_animals ea ON ea.event_id = e.id AND ea.animal_cui = $1
		JOIN event_types d ON d.id = e.disease_type_id
		LEFT JOIN event_types t ON t.id = e.treatment_type_id
		ORDER BY e.created_at DESC
	`, cui)
	if err != nil {
		return nil, fmt.Errorf("list health events: %w", err)
	}
	defer rows.Close()

	var result []*livestock.HealthEvent
	for rows.Next() {
		var (
			e             livestock.HealthEvent
			diseaseGroup  string
			tID           sql.NullInt64
			tName         sql.NullString
			tGroup        sql.NullString
			tMulti        sql.NullBool
			tAt           sql.NullTime
			treatmentName sql.NullString
			dose          sql.NullFloat64
			doseUnit      sql.NullString
			id            uuid.UUID
			createdAt     time.Time
		)
		if err := rows.Scan(&id, &e.Disease.ID, &e.Disease.Name, &diseaseGroup, &e.Disease.MultiAnimal, &e.DiseaseOccurredAt,
			&tID, &tName, &tGroup, &tMulti, &tAt,
			&treatmentName, &dose, &doseUnit, &e.Notes, &e.CreatorID, &createdAt,
			pq.Array(&e.AnimalCUIs)); err != nil {
			return nil, fmt.Errorf("scan health event: %w", err)
		}
		e.ID = id
		e.CreatedAt = createdAt
		e.Disease.Group = livestock.EventGroup(diseaseGroup)
		if tID.Valid {
			t := &livestock.Treatment{
				Type: livestock.EventType{
					ID:          int(tID.Int64),
					Name:        tName.String,
					Group:       livestock.EventGroup(tGroup.String),
					MultiAnimal: tMulti.Bool,
				},
				OccurredAt: tAt.Time,
				Name:       treatmentName.String,
				DoseUnit:   doseUnit.String,
			}
			if dose.Valid {
				d := dose.Float64
				t.Dose = &d
			}
			e.Treatment = t
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
