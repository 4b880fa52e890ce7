package models

import "time"

type Programme struct {
	ID            string    `json:"id"`
	Nom           string    `json:"nom"`
	Description   string    `json:"description"`
	LogoURL       string    `json:"logo_url"`
	URLPlateforme string    `json:"url_plateforme,omitempty"`
	Identifiant   string    `json:"identifiant,omitempty"`
	MotDePasse    string    `json:"mot_de_passe,omitempty"` // clear text only in admin responses
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ProgrammeRequest struct {
	Nom           string `json:"nom" binding:"required"`
	Description   string `json:"description"`
	LogoURL       string `json:"logo_url"`
	URLPlateforme string `json:"url_plateforme"`
	Identifiant   string `json:"identifiant"`
	MotDePasse    string `json:"mot_de_passe"`
}
