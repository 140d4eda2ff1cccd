package handler

import (
	"strings"
	"time"

	"github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/livestock/service"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

const (
	dateLayout  = "2006-01-02"
	maxCUIBatch = 500
)

// CreateHoldingRequest is the body of POST /holdings.
type CreateHoldingRequest struct {
	Name     string `json:"name"`
	Region   string `json:"region"`
	Location string `json:"location"`
}

func (r *CreateHoldingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Region = strings.TrimSpace(r.Region)
	r.Location = strings.TrimSpace(r.Location)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Region == "" {
		return dErrors.New(dErrors.CodeValidation, "region is required")
	}
	return nil
}

// RegisterAnimalRequest is the body of POST /holdings/{code}/animals.
type RegisterAnimalRequest struct {
	Name      string `json:"name"`
	Species   string `json:"species"`
	Sex       string `json:"sex"`
	BirthDate string `json:"birth_date"`

	birthDate time.Time
}

func (r *RegisterAnimalRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Species = strings.TrimSpace(r.Species)
	r.Sex = strings.ToLower(strings.TrimSpace(r.Sex))
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Species == "" {
		return dErrors.New(dErrors.CodeValidation, "species is required")
	}
	if !models.Sex(r.Sex).IsValid() {
		return dErrors.New(dErrors.CodeValidation, "sex must be male or female")
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(r.BirthDate))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD")
	}
	r.birthDate = d
	return nil
}

func (r *RegisterAnimalRequest) toService(holdingCode string) service.RegisterAnimalRequest {
	return service.RegisterAnimalRequest{
		HoldingCode: holdingCode,
		Name:        r.Name,
		Species:     r.Species,
		Sex:         models.Sex(r.Sex),
		BirthDate:   r.birthDate,
	}
}

type TreatmentRequest struct {
	TypeID     int      `json:"type_id"`
	OccurredAt string   `json:"occurred_at"`
	Name       string   `json:"name"`
	Dose       *float64 `json:"dose,omitempty"`
	DoseUnit   string   `json:"dose_unit"`

	occurredAt time.Time
}

// RecordHealthEventRequest is the body of POST /health-events.
type RecordHealthEventRequest struct {
	DiseaseTypeID     int               `json:"disease_type_id"`
	DiseaseOccurredAt string            `json:"disease_occurred_at"`
	Treatment         *TreatmentRequest `json:"treatment,omitempty"`
	Notes             string            `json:"notes"`
	AnimalCUIs        []string          `json:"animal_cuis"`

	diseaseOccurredAt time.Time
}

func (r *RecordHealthEventRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.AnimalCUIs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "animal_cuis is required")
	}
	if len(r.AnimalCUIs) > maxCUIBatch {
		return dErrors.New(dErrors.CodeValidation, "too many animals in one event")
	}
	if r.DiseaseTypeID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "disease_type_id is required")
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(r.DiseaseOccurredAt))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "disease_occurred_at must be YYYY-MM-DD")
	}
	r.diseaseOccurredAt = d
	if t := r.Treatment; t != nil {
		if t.TypeID <= 0 {
			return dErrors.New(dErrors.CodeValidation, "treatment.type_id is required")
		}
		d, err := time.Parse(dateLayout, strings.TrimSpace(t.OccurredAt))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "treatment.occurred_at must be YYYY-MM-DD")
		}
		t.occurredAt = d
	}
	return nil
}

func (r *RecordHealthEventRequest) toService() service.RecordHealthEventRequest {
	req := service.RecordHealthEventRequest{
		DiseaseTypeID:     r.DiseaseTypeID,
		DiseaseOccurredAt: r.diseaseOccurredAt,
		Notes:             r.Notes,
		AnimalCUIs:        r.AnimalCUIs,
	}
	if t := r.Treatment; t != nil {
		req.Treatment = &service.TreatmentInput{
			TypeID:     t.TypeID,
			OccurredAt: t.occurredAt,
			Name:       t.Name,
			Dose:       t.Dose,
			DoseUnit:   t.DoseUnit,
		}
	}
	return req
}

// HealthResetRequest is the body of POST /animals/health-reset.
type HealthResetRequest struct {
	AnimalCUIs []string `json:"animal_cuis"`
}

func (r *HealthResetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.AnimalCUIs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "animal_cuis is required")
	}
	if len(r.AnimalCUIs) > maxCUIBatch {
		return dErrors.New(dErrors.CodeValidation, "too many animals in one request")
	}
	return nil
}
