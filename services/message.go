package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

// Placeholders understood by message templates.
const (
	PlaceholderPartenaire      = "{{partenaire}}"
	PlaceholderProgramme       = "{{programme}}"
	PlaceholderDateTest        = "{{date_test}}"
	PlaceholderPointsAttention = "{{points_attention}}"
)

// MessageContext is the data substituted into a template.
type MessageContext struct {
	Partenaire      string
	Programme       string
	DateTest        time.Time
	PointsAttention []string
}

// RenderTemplate substitutes the placeholders in subject and body. Unknown
// placeholders are left untouched.
func RenderTemplate(tpl models.MessageTemplate, mc MessageContext) (string, string) {
	date := ""
	if !mc.DateTest.IsZero() {
		date = mc.DateTest.Format("02/01/2006")
	}
	points := ""
	if len(mc.PointsAttention) > 0 {
		points = "- " + strings.Join(mc.PointsAttention, "\n- ")
	}

	r := strings.NewReplacer(
		PlaceholderPartenaire, mc.Partenaire,
		PlaceholderProgramme, mc.Programme,
		PlaceholderDateTest, date,
		PlaceholderPointsAttention, points,
	)
	return r.Replace(tpl.Sujet), r.Replace(tpl.Corps)
}

// MessageSender delivers a rendered message.
type MessageSender interface {
	SendMessage(to, subject, body string) error
}

type MessageService struct {
	db          *sql.DB
	sender      MessageSender
	partenaires *PartenaireService
	programmes  *ProgrammeService
	alertes     *AlerteService
}

func NewMessageService(db *sql.DB, sender MessageSender, partenaires *PartenaireService, programmes *ProgrammeService, alertes *AlerteService) *MessageService {
	return &MessageService{db: db, sender: sender, partenaires: partenaires, programmes: programmes, alertes: alertes}
}

func scanTemplate(row rowScanner) (*models.MessageTemplate, error) {
	var t models.MessageTemplate
	if err := row.Scan(&t.ID, &t.Nom, &t.Sujet, &t.Corps, &t.TypeTest, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MessageService) ListTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nom, sujet, corps, type_test, created_at, updated_at
		FROM message_templates
		ORDER BY nom
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []models.MessageTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *MessageService) GetTemplate(ctx context.Context, id string) (*models.MessageTemplate, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `
		SELECT id, nom, sujet, corps, type_test, created_at, updated_at
		FROM message_templates
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func normalizeTemplateType(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, ok := models.ParseTestType(s)
	if !ok {
		return "", invalid("type_test", "Type de test invalide (TS ou TL)")
	}
	return t.Code(), nil
}

func (s *MessageService) CreateTemplate(ctx context.Context, req models.MessageTemplateRequest) (*models.MessageTemplate, error) {
	typeTest, err := normalizeTemplateType(req.TypeTest)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO message_templates (id, nom, sujet, corps, type_test)
		VALUES ($1, $2, $3, $4, $5)
	`, id, req.Nom, req.Sujet, req.Corps, typeTest)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return s.GetTemplate(ctx, id)
}

func (s *MessageService) UpdateTemplate(ctx context.Context, id string, req models.MessageTemplateRequest) (*models.MessageTemplate, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	typeTest, err := normalizeTemplateType(req.TypeTest)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE message_templates
		SET nom = $1, sujet = $2, corps = $3, type_test = $4, updated_at = NOW()
		WHERE id = $5
	`, req.Nom, req.Sujet, req.Corps, typeTest, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetTemplate(ctx, id)
}

func (s *MessageService) DeleteTemplate(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SentMessage is what was delivered to the partner.
type SentMessage struct {
	To    string `json:"to"`
	Sujet string `json:"sujet"`
	Corps string `json:"corps"`
}

// Send renders a template for a partner/programme pair (and optionally an
// alert) and emails it to the partner's contact address.
func (s *MessageService) Send(ctx context.Context, scope policy.Scope, req models.SendMessageRequest) (*SentMessage, error) {
	if s.sender == nil {
		return nil, ErrNotConfigured
	}
	tpl, err := s.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	partenaire, err := s.partenaires.Get(ctx, scope, req.PartenaireID)
	if err != nil {
		return nil, err
	}
	programme, err := s.programmes.Get(ctx, scope, req.ProgrammeID, false)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(partenaire.ContactEmail) == "" {
		return nil, invalid("partenaire_id", "Le partenaire n'a pas d'email de contact")
	}

	mc := MessageContext{Partenaire: partenaire.Nom, Programme: programme.Nom, DateTest: time.Now()}
	if req.AlerteID != nil && *req.AlerteID != "" {
		alerte, err := s.alertes.Get(ctx, scope, *req.AlerteID)
		if err != nil {
			return nil, err
		}
		mc.PointsAttention = alerte.PointsAttention
		mc.DateTest = alerte.CreatedAt
	}

	sujet, corps := RenderTemplate(*tpl, mc)
	if err := s.sender.SendMessage(partenaire.ContactEmail, sujet, corps); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &SentMessage{To: partenaire.ContactEmail, Sujet: sujet, Corps: corps}, nil
}
