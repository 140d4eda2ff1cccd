package handler

import (
	"time"

	"github.com/NogaLive/SNIUGB/internal/transfer/models"
)

// TransferResponse is the public view of a request. The verification hash is
// never exposed.
type TransferResponse struct {
	Code               string    `json:"code"`
	Status             string    `json:"status"`
	RequesterID        string    `json:"requester_id"`
	RespondentID       string    `json:"respondent_id"`
	DestinationHolding string    `json:"destination_holding"`
	AnimalCUIs         []string  `json:"animal_cuis"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Notified           *bool     `json:"notified,omitempty"`
}

func toResponse(r *models.Request) TransferResponse {
	return TransferResponse{
		Code:               r.Code,
		Status:             r.Status.String(),
		RequesterID:        r.RequesterID,
		RespondentID:       r.RespondentID,
		DestinationHolding: r.DestinationHolding,
		AnimalCUIs:         r.AnimalCUIs,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toResponses(rs []*models.Request) []TransferResponse {
	out := make([]TransferResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResponse(r))
	}
	return out
}
