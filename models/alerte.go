package models

import "time"

type AlerteStatut string

const (
	AlerteOuvert AlerteStatut = "ouvert"
	AlerteResolu AlerteStatut = "resolu"
)

type Alerte struct {
	ID              string       `json:"id"`
	ProgrammeID     string       `json:"programme_id"`
	PartenaireID    string       `json:"partenaire_id"`
	ProgrammeNom    string       `json:"programme_nom,omitempty"`
	PartenaireNom   string       `json:"partenaire_nom,omitempty"`
	TypeTest        string       `json:"type_test"` // TS | TL
	Description     string       `json:"description"`
	Statut          AlerteStatut `json:"statut"`
	PointsAttention []string     `json:"points_attention"`
	TestID          *string      `json:"test_id"`
	CreatedAt       time.Time    `json:"created_at"`
	ResolvedAt      *time.Time   `json:"resolved_at"`
	ResolvedBy      *string      `json:"resolved_by,omitempty"`
}

type AlerteRequest struct {
	ProgrammeID     string   `json:"programme_id" binding:"required"`
	PartenaireID    string   `json:"partenaire_id" binding:"required"`
	TypeTest        string   `json:"type_test" binding:"required"`
	Description     string   `json:"description" binding:"required"`
	PointsAttention []string `json:"points_attention"`
	TestID          *string  `json:"test_id"`
}

type UpdateAlerteRequest struct {
	Statut AlerteStatut `json:"statut" binding:"required"`
}

type AlerteFilter struct {
	Statut       AlerteStatut
	ProgrammeID  string
	PartenaireID string
	TypeTest     string
}

// AlerteEvent is pushed to websocket subscribers.
type AlerteEvent struct {
	Type   string `json:"type"` // created | resolved | deleted
	Alerte Alerte `json:"alerte"`
}
