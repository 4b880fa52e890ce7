package models

import "time"

// ============================================================================
// CONNECTION LOGS
// ============================================================================

type ConnectionLog struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// MESSAGERIE
// ============================================================================

type MessageTemplate struct {
	ID        string    `json:"id"`
	Nom       string    `json:"nom"`
	Sujet     string    `json:"sujet"`
	Corps     string    `json:"corps"`
	TypeTest  string    `json:"type_test"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageTemplateRequest struct {
	Nom      string `json:"nom" binding:"required"`
	Sujet    string `json:"sujet" binding:"required"`
	Corps    string `json:"corps" binding:"required"`
	TypeTest string `json:"type_test"`
}

type SendMessageRequest struct {
	TemplateID   string  `json:"template_id" binding:"required"`
	PartenaireID string  `json:"partenaire_id" binding:"required"`
	ProgrammeID  string  `json:"programme_id" binding:"required"`
	AlerteID     *string `json:"alerte_id"`
}

// ============================================================================
// STATISTIQUES & INSIGHTS
// ============================================================================

type ProgrammeStats struct {
	ProgrammeID        string  `json:"programme_id"`
	ProgrammeNom       string  `json:"programme_nom"`
	TestsSite          int     `json:"tests_site"`
	TestsLigne         int     `json:"tests_ligne"`
	TestsNonRealisable int     `json:"tests_non_realisables"`
	TestsAvecAnomalie  int     `json:"tests_avec_anomalie"`
	AlertesOuvertes    int     `json:"alertes_ouvertes"`
	TauxConformite     float64 `json:"taux_conformite"`
}

type MonthlyStats struct {
	Month           string           `json:"month"` // YYYY-MM
	TestsSite       int              `json:"tests_site"`
	TestsLigne      int              `json:"tests_ligne"`
	AlertesOuvertes int              `json:"alertes_ouvertes"`
	TopAnomalies    map[string]int   `json:"top_anomalies"`
	Programmes      []ProgrammeStats `json:"programmes"`
}

type InsightsRequest struct {
	Month string `json:"month"`
}

type InsightsResponse struct {
	Month       string       `json:"month"`
	Summary     string       `json:"summary"`
	GeneratedAt time.Time    `json:"generated_at"`
	Stats       MonthlyStats `json:"stats"`
}
