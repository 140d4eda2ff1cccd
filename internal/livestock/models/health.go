package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

// EventGroup partitions the event-type catalog.
type EventGroup string

const (
	EventGroupDisease        EventGroup = "DISEASE"
	EventGroupTreatment      EventGroup = "TREATMENT"
	EventGroupQualityControl EventGroup = "QUALITY_CONTROL"
)

func (g EventGroup) IsValid() bool {
	switch g {
	case EventGroupDisease, EventGroupTreatment, EventGroupQualityControl:
		return true
	}
	return false
}

// EventType is one row of the administrator-managed catalog.
type EventType struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Group       EventGroup `json:"group"`
	MultiAnimal bool       `json:"multi_animal"`
}

// Treatment is the optional treatment half of a health event.
type Treatment struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Name       string    `json:"name,omitempty"`
	Dose       *float64  `json:"dose,omitempty"`
	DoseUnit   string    `json:"dose_unit,omitempty"`
}

// HealthEvent records a diagnosis and, optionally, the treatment applied to a
// set of animals. The event types are resolved from the catalog before the
// event is built and never re-read afterwards.
type HealthEvent struct {
	ID                uuid.UUID  `json:"id"`
	Disease           EventType  `json:"disease"`
	DiseaseOccurredAt time.Time  `json:"disease_occurred_at"`
	Treatment         *Treatment `json:"treatment,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	AnimalCUIs        []string   `json:"animal_cuis"`
	CreatorID         string     `json:"creator_id"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NewHealthEvent validates catalog groups and builds the event.
func NewHealthEvent(disease EventType, diseaseAt time.Time, treatment *Treatment, notes string, cuis []string, creatorID string, now time.Time) (*HealthEvent, error) {
	if disease.Group != EventGroupDisease {
		return nil, dErrors.Wrap(ErrEventTypeGroup, dErrors.CodeValidation, "disease event type must belong to the DISEASE group")
	}
	if treatment != nil && treatment.Type.Group != EventGroupTreatment {
		return nil, dErrors.Wrap(ErrEventTypeGroup, dErrors.CodeValidation, "treatment event type must belong to the TREATMENT group")
	}
	if len(cuis) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "health event must reference at least one animal")
	}
	if creatorID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "health event must have a creator")
	}
	return &HealthEvent{
		ID:                uuid.New(),
		Disease:           disease,
		DiseaseOccurredAt: diseaseAt,
		Treatment:         treatment,
		Notes:             notes,
		AnimalCUIs:        cuis,
		CreatorID:         creatorID,
		CreatedAt:         now,
	}, nil
}

// ResultingCondition is the health condition every referenced animal takes
// once the event is recorded. It never yields HealthHealthy.
func (e *HealthEvent) ResultingCondition() HealthCondition {
	if e.Treatment != nil {
		return HealthUnderObservation
	}
	return HealthSick
}
