package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const minPasswordLength = 8

// ApplyUserScoping keeps only the scoping field selected by the role and
// checks that it is set.
func ApplyUserScoping(u *models.User) error {
	if !u.Role.Valid() {
		return invalid("role", "Rôle inconnu")
	}

	programmeID, partenaireID, programmeIDs := u.ProgrammeID, u.PartenaireID, u.ProgrammeIDs
	u.ProgrammeID, u.PartenaireID, u.ProgrammeIDs = nil, nil, []string{}

	switch u.Role {
	case models.RoleProgramme:
		if programmeID == nil || !validID(*programmeID) {
			return invalid("programme_id", "Un utilisateur programme doit être rattaché à un programme")
		}
		u.ProgrammeID = programmeID
	case models.RolePartenaire:
		if partenaireID == nil || !validID(*partenaireID) {
			return invalid("partenaire_id", "Un utilisateur partenaire doit être rattaché à un partenaire")
		}
		u.PartenaireID = partenaireID
	case models.RoleChefProjet:
		ids := []string{}
		for _, id := range programmeIDs {
			if validID(id) && !contains(ids, id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return invalid("programme_ids", "Un chef de projet doit gérer au moins un programme")
		}
		u.ProgrammeIDs = ids
	}
	return nil
}

// CanManageUser reports whether actor may create, edit or delete a user with
// the target role. Only super_admin manages super_admin accounts.
func CanManageUser(actor, target models.Role) bool {
	if !policy.Can(actor, policy.ActionUserManage) {
		return false
	}
	if target == models.RoleSuperAdmin {
		return policy.IsSuperAdmin(actor)
	}
	return true
}

// ============================================================================
// USER SERVICE
// ============================================================================

type UserService struct {
	db     *sql.DB
	cipher *utils.Cipher
}

func NewUserService(db *sql.DB, cipher *utils.Cipher) *UserService {
	return &UserService{db: db, cipher: cipher}
}

var userColumns = []string{
	"id", "email", "nom", "prenom", "password_hash", "totp_secret", "totp_enabled", "role",
	"is_active", "programme_id", "partenaire_id", "programme_ids", "created_at", "updated_at",
}

func (s *UserService) scan(row rowScanner) (*models.User, error) {
	var u models.User
	var programmeID, partenaireID sql.NullString
	var totpSecret string
	err := row.Scan(
		&u.ID, &u.Email, &u.Nom, &u.Prenom, &u.PasswordHash, &totpSecret, &u.TOTPEnabled, &u.Role,
		&u.IsActive, &programmeID, &partenaireID, pq.Array(&u.ProgrammeIDs), &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ProgrammeID = stringPtr(programmeID)
	u.PartenaireID = stringPtr(partenaireID)
	u.ProgrammeIDs = nonNil(u.ProgrammeIDs)
	if totpSecret != "" {
		secret, err := s.cipher.Decrypt(totpSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt totp secret: %w", err)
		}
		u.TOTPSecret = secret
	}
	return &u, nil
}

func (s *UserService) getBy(ctx context.Context, col string, value string) (*models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(sq.Eq{col: value}).ToSql()
	if err != nil {
		return nil, err
	}
	u, err := s.scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return s.getBy(ctx, "id", id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").OrderBy("nom", "prenom").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func userFromRequest(req models.UserRequest) models.User {
	u := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Nom:          strings.TrimSpace(req.Nom),
		Prenom:       strings.TrimSpace(req.Prenom),
		Role:         req.Role,
		IsActive:     true,
		ProgrammeID:  req.ProgrammeID,
		PartenaireID: req.PartenaireID,
		ProgrammeIDs: req.ProgrammeIDs,
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	return u
}

func (s *UserService) Create(ctx context.Context, actor models.User, req models.UserRequest) (*models.User, error) {
	u := userFromRequest(req)
	if err := ApplyUserScoping(&u); err != nil {
		return nil, err
	}
	if !CanManageUser(actor.Role, u.Role) {
		return nil, ErrForbidden
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalid("password", fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", minPasswordLength))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u.ID = uuid.New().String()
	u.PasswordHash = hash

	query, args, err := psql.Insert("users").
		Columns("id", "email", "nom", "prenom", "password_hash", "role", "is_active", "programme_id", "partenaire_id", "programme_ids").
		Values(u.ID, u.Email, u.Nom, u.Prenom, u.PasswordHash, u.Role, u.IsActive, nullString(u.ProgrammeID), nullString(u.PartenaireID), pq.Array(u.ProgrammeIDs)).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if _, dup := isUniqueViolation(err); dup {
			return nil, fmt.Errorf("%w: email déjà utilisé", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetByID(ctx, u.ID)
}

func (s *UserService) Update(ctx context.Context, actor models.User, id string, req models.UserRequest) (*models.User, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanManageUser(actor.Role, current.Role) {
		return nil, ErrForbidden
	}

	u := userFromRequest(req)
	if req.IsActive == nil {
		u.IsActive = current.IsActive
	}
	if err := ApplyUserScoping(&u); err != nil {
		return nil, err
	}
	if !CanManageUser(actor.Role, u.Role) {
		return nil, ErrForbidden
	}
	if actor.ID == id && !u.IsActive {
		return nil, invalid("is_active", "Vous ne pouvez pas désactiver votre propre compte")
	}

	b := psql.Update("users").
		Set("email", u.Email).
		Set("nom", u.Nom).
		Set("prenom", u.Prenom).
		Set("role", u.Role).
		Set("is_active", u.IsActive).
		Set("programme_id", nullString(u.ProgrammeID)).
		Set("partenaire_id", nullString(u.PartenaireID)).
		Set("programme_ids", pq.Array(u.ProgrammeIDs)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})

	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return nil, invalid("password", fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", minPasswordLength))
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		b = b.Set("password_hash", hash)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if _, dup := isUniqueViolation(err); dup {
			return nil, fmt.Errorf("%w: email déjà utilisé", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, actor models.User, id string) error {
	if actor.ID == id {
		return ErrSelfDelete
	}
	target, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanManageUser(actor.Role, target.Role) {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ============================================================================
// PROFILE, PASSWORD & 2FA
// ============================================================================

func (s *UserService) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET nom = $1, prenom = $2, updated_at = NOW()
		WHERE id = $3
	`, strings.TrimSpace(req.Nom), strings.TrimSpace(req.Prenom), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

var ErrWrongPassword = errors.New("current password is incorrect")

func (s *UserService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(currentPassword, u.PasswordHash) {
		return ErrWrongPassword
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	return err
}

// StoreTOTPSecret saves a pending (not yet enabled) secret.
func (s *UserService) StoreTOTPSecret(ctx context.Context, id, secret string) error {
	enc, err := s.cipher.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("failed to encrypt totp secret: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET totp_secret = $1, totp_enabled = FALSE, updated_at = NOW() WHERE id = $2`, enc, id)
	return err
}

func (s *UserService) SetTOTPEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE users SET totp_enabled = TRUE, updated_at = NOW() WHERE id = $1`
	if !enabled {
		query = `UPDATE users SET totp_enabled = FALSE, totp_secret = '', updated_at = NOW() WHERE id = $1`
	}
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// ============================================================================
// CONNECTION LOGS
// ============================================================================

func (s *UserService) LogConnection(ctx context.Context, l models.ConnectionLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connection_logs (id, user_id, email, ip, user_agent, success, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New().String(), nullString(l.UserID), l.Email, l.IP, l.UserAgent, l.Success, l.Reason, l.CreatedAt)
	return err
}

func (s *UserService) ListConnections(ctx context.Context, limit, offset uint64) ([]models.ConnectionLog, error) {
	if limit == 0 || limit > 500 {
		limit = 100
	}
	query, args, err := psql.Select("id", "user_id", "email", "ip", "user_agent", "success", "reason", "created_at").
		From("connection_logs").
		OrderBy("created_at DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.ConnectionLog{}
	for rows.Next() {
		var l models.ConnectionLog
		var userID sql.NullString
		if err := rows.Scan(&l.ID, &userID, &l.Email, &l.IP, &l.UserAgent, &l.Success, &l.Reason, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UserID = stringPtr(userID)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// PurgeConnections deletes connection logs older than retention.
func (s *UserService) PurgeConnections(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connection_logs WHERE created_at < $1`, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge connection logs: %w", err)
	}
	return res.RowsAffected()
}
