package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

type PartenaireService struct {
	db *sql.DB
}

func NewPartenaireService(db *sql.DB) *PartenaireService {
	return &PartenaireService{db: db}
}

var partenaireColumns = []string{
	"id", "nom", "naming_attendu", "remise_minimum", "logo_url", "contact_email",
	"programmes_ids", "contacts_programmes", "created_at", "updated_at",
}

func scanPartenaire(row rowScanner) (*models.Partenaire, error) {
	var p models.Partenaire
	var remise sql.NullFloat64
	var contacts []byte
	if err := row.Scan(&p.ID, &p.Nom, &p.NamingAttendu, &remise, &p.LogoURL, &p.ContactEmail,
		pq.Array(&p.ProgrammesIDs), &contacts, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if remise.Valid {
		v := remise.Float64
		p.RemiseMinimum = &v
	}
	p.ProgrammesIDs = nonNil(p.ProgrammesIDs)
	p.ContactsProgrammes = []models.ContactProgramme{}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &p.ContactsProgrammes); err != nil {
			return nil, fmt.Errorf("failed to decode contacts: %w", err)
		}
	}
	return &p, nil
}

// partenaireSelect limits partners to the caller's scope: a programme scope
// sees partners linked to one of its programmes.
func partenaireSelect(scope policy.Scope) sq.SelectBuilder {
	b := psql.Select(partenaireColumns...).From("partenaires")
	switch {
	case scope.All:
		return b
	case scope.PartenaireID != "":
		return b.Where(sq.Eq{"id": scope.PartenaireID})
	case len(scope.ProgrammeIDs) > 0:
		return b.Where("programmes_ids && ?::uuid[]", pq.Array(scope.ProgrammeIDs))
	}
	return b.Where("1 = 0")
}

func (s *PartenaireService) List(ctx context.Context, scope policy.Scope) ([]models.Partenaire, error) {
	query, args, err := partenaireSelect(scope).OrderBy("nom").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partenaires := []models.Partenaire{}
	for rows.Next() {
		p, err := scanPartenaire(rows)
		if err != nil {
			return nil, err
		}
		partenaires = append(partenaires, *p)
	}
	return partenaires, rows.Err()
}

func (s *PartenaireService) Get(ctx context.Context, scope policy.Scope, id string) (*models.Partenaire, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query, args, err := partenaireSelect(scope).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPartenaire(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func partenaireFromRequest(req models.PartenaireRequest) (models.Partenaire, error) {
	p := models.Partenaire{
		Nom:                strings.TrimSpace(req.Nom),
		NamingAttendu:      req.NamingAttendu,
		RemiseMinimum:      req.RemiseMinimum,
		LogoURL:            req.LogoURL,
		ContactEmail:       strings.TrimSpace(req.ContactEmail),
		ProgrammesIDs:      nonNil(req.ProgrammesIDs),
		ContactsProgrammes: req.ContactsProgrammes,
	}
	if p.ContactsProgrammes == nil {
		p.ContactsProgrammes = []models.ContactProgramme{}
	}
	if p.Nom == "" {
		return p, invalid("nom", "Le nom du partenaire est obligatoire")
	}
	for _, id := range p.ProgrammesIDs {
		if !validID(id) {
			return p, invalid("programmes_ids", "Identifiant de programme invalide")
		}
	}
	if p.RemiseMinimum != nil && (*p.RemiseMinimum < 0 || *p.RemiseMinimum > 100) {
		return p, invalid("remise_minimum", "La remise minimum doit être comprise entre 0 et 100")
	}
	if err := ValidateContacts(p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *PartenaireService) Create(ctx context.Context, req models.PartenaireRequest) (*models.Partenaire, error) {
	p, err := partenaireFromRequest(req)
	if err != nil {
		return nil, err
	}
	contacts, err := json.Marshal(p.ContactsProgrammes)
	if err != nil {
		return nil, err
	}

	p.ID = uuid.New().String()
	query, args, err := psql.Insert("partenaires").
		Columns("id", "nom", "naming_attendu", "remise_minimum", "logo_url", "contact_email", "programmes_ids", "contacts_programmes").
		Values(p.ID, p.Nom, p.NamingAttendu, p.RemiseMinimum, p.LogoURL, p.ContactEmail, pq.Array(p.ProgrammesIDs), string(contacts)).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create partenaire: %w", err)
	}
	return s.Get(ctx, policy.Scope{All: true}, p.ID)
}

func (s *PartenaireService) Update(ctx context.Context, id string, req models.PartenaireRequest) (*models.Partenaire, error) {
	if _, err := s.Get(ctx, policy.Scope{All: true}, id); err != nil {
		return nil, err
	}
	p, err := partenaireFromRequest(req)
	if err != nil {
		return nil, err
	}
	contacts, err := json.Marshal(p.ContactsProgrammes)
	if err != nil {
		return nil, err
	}

	query, args, err := psql.Update("partenaires").
		Set("nom", p.Nom).
		Set("naming_attendu", p.NamingAttendu).
		Set("remise_minimum", p.RemiseMinimum).
		Set("logo_url", p.LogoURL).
		Set("contact_email", p.ContactEmail).
		Set("programmes_ids", pq.Array(p.ProgrammesIDs)).
		Set("contacts_programmes", string(contacts)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update partenaire: %w", err)
	}
	return s.Get(ctx, policy.Scope{All: true}, id)
}

func (s *PartenaireService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM partenaires WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete partenaire: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
