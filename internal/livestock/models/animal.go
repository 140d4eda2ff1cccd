package models

import (
	"strings"
	"time"

	"github.com/NogaLive/SNIUGB/internal/livestock/identifier"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

// HealthCondition is the sanitary state of an animal.
type HealthCondition string

const (
	HealthHealthy          HealthCondition = "healthy"
	HealthUnderObservation HealthCondition = "under_observation"
	HealthSick             HealthCondition = "sick"
)

func (h HealthCondition) IsValid() bool {
	switch h {
	case HealthHealthy, HealthUnderObservation, HealthSick:
		return true
	}
	return false
}

// AnimalStatus is the lifecycle state of an animal record.
type AnimalStatus string

const (
	AnimalStatusActive  AnimalStatus = "active"
	AnimalStatusTrashed AnimalStatus = "trashed"
)

func (s AnimalStatus) IsValid() bool {
	return s == AnimalStatusActive || s == AnimalStatusTrashed
}

// CanTransitionTo allows active <-> trashed only.
func (s AnimalStatus) CanTransitionTo(target AnimalStatus) bool {
	switch s {
	case AnimalStatusActive:
		return target == AnimalStatusTrashed
	case AnimalStatusTrashed:
		return target == AnimalStatusActive
	}
	return false
}

// Sex of the animal as recorded at registration.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

func (s Sex) IsValid() bool {
	return s == SexMale || s == SexFemale
}

// Partition scopes sequence uniqueness: one counter space per species digit
// and region code.
type Partition struct {
	SpeciesDigit int
	RegionCode   int
}

// LockKey folds the partition into a single integer for advisory locks.
func (p Partition) LockKey() int32 {
	return int32(p.SpeciesDigit*100 + p.RegionCode)
}

// Animal is identified by its CUI, which never changes after minting.
//
// Invariants:
//   - CUI passes identifier.Verify
//   - SpeciesDigit, RegionCode and Sequence are the decoded parts of CUI
//   - HoldingCode always names exactly one holding
type Animal struct {
	CUI          string          `json:"cui"`
	Name         string          `json:"name"`
	Species      string          `json:"species"`
	Sex          Sex             `json:"sex"`
	BirthDate    time.Time       `json:"birth_date"`
	HoldingCode  string          `json:"holding_code"`
	Health       HealthCondition `json:"health"`
	Status       AnimalStatus    `json:"status"`
	SpeciesDigit int             `json:"-"`
	RegionCode   int             `json:"-"`
	Sequence     int             `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewAnimal builds an active, healthy animal around a freshly minted CUI.
func NewAnimal(cui, name, species string, sex Sex, birthDate time.Time, holdingCode string, now time.Time) (*Animal, error) {
	parts, err := identifier.Parse(cui)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "animal requires a valid CUI")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "animal name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "animal name must be 128 characters or less")
	}
	if !sex.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sex must be male or female")
	}
	if holdingCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "animal must belong to a holding")
	}
	if birthDate.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "birth date cannot be in the future")
	}
	return &Animal{
		CUI:          cui,
		Name:         name,
		Species:      species,
		Sex:          sex,
		BirthDate:    birthDate,
		HoldingCode:  holdingCode,
		Health:       HealthHealthy,
		Status:       AnimalStatusActive,
		SpeciesDigit: parts.SpeciesDigit,
		RegionCode:   parts.RegionCode,
		Sequence:     parts.Sequence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Animal) IsActive() bool {
	return a.Status == AnimalStatusActive
}

// Partition returns the sequence partition the animal's CUI was minted in.
func (a *Animal) Partition() Partition {
	return Partition{SpeciesDigit: a.SpeciesDigit, RegionCode: a.RegionCode}
}

// CanTrash checks whether the animal can be moved to the trash.
func (a *Animal) CanTrash() error {
	if !a.Status.CanTransitionTo(AnimalStatusTrashed) {
		return dErrors.New(dErrors.CodeInvariantViolation, "animal is already in the trash")
	}
	return nil
}

func (a *Animal) ApplyTrash(now time.Time) {
	a.Status = AnimalStatusTrashed
	a.UpdatedAt = now
}

// CanRestore checks whether the animal can leave the trash.
func (a *Animal) CanRestore() error {
	if !a.Status.CanTransitionTo(AnimalStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "animal is not in the trash")
	}
	return nil
}

func (a *Animal) ApplyRestore(now time.Time) {
	a.Status = AnimalStatusActive
	a.UpdatedAt = now
}
