package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
)

// Holding (predio) is the unit of ownership for animals. Region is the name
// of the administrative region used to mint CUIs for animals registered here.
type Holding struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Region    string    `json:"region"`
	Location  string    `json:"location"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewHoldingCode returns a code of the form PRD-XXXXXX.
func NewHoldingCode() string {
	return "PRD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func NewHolding(code, name, region, location, ownerID string, now time.Time) (*Holding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "holding name cannot be empty")
	}
	if strings.TrimSpace(region) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "holding region cannot be empty")
	}
	if ownerID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "holding must have an owner")
	}
	return &Holding{
		Code:      code,
		Name:      name,
		Region:    strings.TrimSpace(region),
		Location:  strings.TrimSpace(location),
		OwnerID:   ownerID,
		CreatedAt: now,
	}, nil
}

func (h *Holding) IsOwnedBy(userID string) bool {
	return h.OwnerID == userID
}
