package handler

import (
	"github.com/NogaLive/SNIUGB/internal/livestock/identifier"
)

type HealthResetResponse struct {
	Updated int `json:"updated"`
}

// VerifyCUIResponse is returned by the public CUI check.
type VerifyCUIResponse struct {
	CUI          string `json:"cui"`
	Valid        bool   `json:"valid"`
	SpeciesDigit *int   `json:"species_digit,omitempty"`
	RegionCode   *int   `json:"region_code,omitempty"`
	Sequence     *int   `json:"sequence,omitempty"`
}

func verifyResponse(cui string) VerifyCUIResponse {
	parts, err := identifier.Parse(cui)
	if err != nil {
		return VerifyCUIResponse{CUI: cui, Valid: false}
	}
	return VerifyCUIResponse{
		CUI:          cui,
		Valid:        true,
		SpeciesDigit: &parts.SpeciesDigit,
		RegionCode:   &parts.RegionCode,
		Sequence:     &parts.Sequence,
	}
}
