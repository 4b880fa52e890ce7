package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

// ProgrammeService stores programmes. Platform passwords are encrypted at
// rest and only decrypted for callers allowed to read credentials.
type ProgrammeService struct {
	db     *sql.DB
	cipher *utils.Cipher
}

func NewProgrammeService(db *sql.DB, cipher *utils.Cipher) *ProgrammeService {
	return &ProgrammeService{db: db, cipher: cipher}
}

var programmeColumns = []string{
	"id", "nom", "description", "logo_url", "url_plateforme", "identifiant", "mot_de_passe", "created_at", "updated_at",
}

func (s *ProgrammeService) scan(row rowScanner, withCredentials bool) (*models.Programme, error) {
	var p models.Programme
	var encrypted string
	if err := row.Scan(&p.ID, &p.Nom, &p.Description, &p.LogoURL, &p.URLPlateforme, &p.Identifiant, &encrypted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if !withCredentials {
		p.Identifiant = ""
		return &p, nil
	}
	clear, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt programme password: %w", err)
	}
	p.MotDePasse = clear
	return &p, nil
}

func programmeSelect(scope policy.Scope) sq.SelectBuilder {
	b := psql.Select(programmeColumns...).From("programmes")
	switch {
	case scope.All:
		return b
	case scope.PartenaireID != "":
		return b.Where("id = ANY (SELECT unnest(programmes_ids) FROM partenaires WHERE id = ?)", scope.PartenaireID)
	case len(scope.ProgrammeIDs) > 0:
		return b.Where(sq.Eq{"id": scope.ProgrammeIDs})
	}
	return b.Where("1 = 0")
}

func (s *ProgrammeService) List(ctx context.Context, scope policy.Scope, withCredentials bool) ([]models.Programme, error) {
	query, args, err := programmeSelect(scope).OrderBy("nom").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	programmes := []models.Programme{}
	for rows.Next() {
		p, err := s.scan(rows, withCredentials)
		if err != nil {
			return nil, err
		}
		programmes = append(programmes, *p)
	}
	return programmes, rows.Err()
}

func (s *ProgrammeService) Get(ctx context.Context, scope policy.Scope, id string, withCredentials bool) (*models.Programme, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query, args, err := programmeSelect(scope).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := s.scan(s.db.QueryRowContext(ctx, query, args...), withCredentials)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *ProgrammeService) Create(ctx context.Context, req models.ProgrammeRequest) (*models.Programme, error) {
	if strings.TrimSpace(req.Nom) == "" {
		return nil, invalid("nom", "Le nom du programme est obligatoire")
	}
	encrypted, err := s.cipher.Encrypt(req.MotDePasse)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt programme password: %w", err)
	}

	id := uuid.New().String()
	query, args, err := psql.Insert("programmes").
		Columns("id", "nom", "description", "logo_url", "url_plateforme", "identifiant", "mot_de_passe").
		Values(id, strings.TrimSpace(req.Nom), req.Description, req.LogoURL, req.URLPlateforme, req.Identifiant, encrypted).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if _, dup := isUniqueViolation(err); dup {
			return nil, fmt.Errorf("%w: un programme porte déjà ce nom", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create programme: %w", err)
	}
	return s.Get(ctx, policy.Scope{All: true}, id, true)
}

// Update replaces the programme. An empty mot_de_passe keeps the stored one.
func (s *ProgrammeService) Update(ctx context.Context, id string, req models.ProgrammeRequest) (*models.Programme, error) {
	if _, err := s.Get(ctx, policy.Scope{All: true}, id, false); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Nom) == "" {
		return nil, invalid("nom", "Le nom du programme est obligatoire")
	}

	b := psql.Update("programmes").
		Set("nom", strings.TrimSpace(req.Nom)).
		Set("description", req.Description).
		Set("logo_url", req.LogoURL).
		Set("url_plateforme", req.URLPlateforme).
		Set("identifiant", req.Identifiant).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	if req.MotDePasse != "" {
		encrypted, err := s.cipher.Encrypt(req.MotDePasse)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt programme password: %w", err)
		}
		b = b.Set("mot_de_passe", encrypted)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if _, dup := isUniqueViolation(err); dup {
			return nil, fmt.Errorf("%w: un programme porte déjà ce nom", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update programme: %w", err)
	}
	return s.Get(ctx, policy.Scope{All: true}, id, true)
}

func (s *ProgrammeService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM programmes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete programme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
