package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/qwertys/qwertys-api/models"
)

// ============================================================================
// PASSWORDS
// ============================================================================

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT
// ============================================================================

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the caller's identity and scoping fields so the middleware can
// rebuild the data scope without a database round-trip.
type Claims struct {
	UserID       string      `json:"uid"`
	Email        string      `json:"email"`
	Nom          string      `json:"nom"`
	Prenom       string      `json:"prenom"`
	Role         models.Role `json:"role"`
	ProgrammeID  string      `json:"programme_id,omitempty"`
	PartenaireID string      `json:"partenaire_id,omitempty"`
	ProgrammeIDs []string    `json:"programme_ids,omitempty"`
	jwt.RegisteredClaims
}

// User rebuilds the authenticated user from the token claims.
func (c *Claims) User() models.User {
	u := models.User{
		ID:           c.UserID,
		Email:        c.Email,
		Nom:          c.Nom,
		Prenom:       c.Prenom,
		Role:         c.Role,
		IsActive:     true,
		ProgrammeIDs: c.ProgrammeIDs,
	}
	if c.ProgrammeID != "" {
		id := c.ProgrammeID
		u.ProgrammeID = &id
	}
	if c.PartenaireID != "" {
		id := c.PartenaireID
		u.PartenaireID = &id
	}
	return u
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) GenerateAccessToken(u models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       u.ID,
		Email:        u.Email,
		Nom:          u.Nom,
		Prenom:       u.Prenom,
		Role:         u.Role,
		ProgrammeIDs: u.ProgrammeIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if u.ProgrammeID != nil {
		claims.ProgrammeID = *u.ProgrammeID
	}
	if u.PartenaireID != nil {
		claims.PartenaireID = *u.PartenaireID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
