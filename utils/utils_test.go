package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/qwertys/qwertys-api/models"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	enc, err := c.Encrypt("motdepasse-plateforme")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if enc == "motdepasse-plateforme" || enc == "" {
		t.Fatalf("ciphertext looks like plaintext: %q", enc)
	}

	dec, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if dec != "motdepasse-plateforme" {
		t.Errorf("got %q", dec)
	}

	if out, _ := c.Encrypt(""); out != "" {
		t.Errorf("empty plaintext should stay empty, got %q", out)
	}
	if _, err := c.Decrypt("bm9wZQ=="); err == nil {
		t.Error("expected an error for a short ciphertext")
	}
}

func TestNewCipher_KeyLength(t *testing.T) {
	if _, err := NewCipher("short"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Error("valid password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	programmeID := "prog-1"
	user := models.User{
		ID:          "user-1",
		Email:       "agent@qwertys.fr",
		Nom:         "Durand",
		Role:        models.RoleProgramme,
		ProgrammeID: &programmeID,
	}

	token, err := m.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	got := claims.User()
	if got.ID != "user-1" || got.Role != models.RoleProgramme {
		t.Errorf("unexpected user %+v", got)
	}
	if got.ProgrammeID == nil || *got.ProgrammeID != "prog-1" {
		t.Errorf("programme scope lost: %+v", got.ProgrammeID)
	}
	if got.PartenaireID != nil {
		t.Errorf("unexpected partenaire scope %v", *got.PartenaireID)
	}

	other := NewTokenManager("another-secret-another-secret-xx", time.Hour)
	if _, err := other.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret must be rejected, got %v", err)
	}

	expired := NewTokenManager("0123456789abcdef0123456789abcdef", -time.Minute)
	old, _ := expired.GenerateAccessToken(user)
	if _, err := m.ParseToken(old); err == nil {
		t.Error("expired token accepted")
	}
}

func TestTOTP(t *testing.T) {
	secret, url, err := GenerateTOTPSecret("agent@qwertys.fr")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}
	if !strings.HasPrefix(url, "otpauth://totp/") || !strings.Contains(url, "QWERTYS") {
		t.Errorf("unexpected url %q", url)
	}

	code, err := GenerateTOTPCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateTOTPCode: %v", err)
	}
	if !VerifyTOTP(secret, code) {
		t.Error("current code rejected")
	}
	if VerifyTOTP(secret, "000000") && code != "000000" {
		t.Error("arbitrary code accepted")
	}
}

func TestMaskString(t *testing.T) {
	prev := IsProduction
	defer func() { IsProduction = prev }()

	IsProduction = false
	raw := "contact jean@example.com"
	if MaskString(raw) != raw {
		t.Error("development logs must not be masked")
	}

	IsProduction = true
	in := "partner jean@example.com tel 01 23 45 67 89 code promo: BIENVENUE10 id 3f2b8c1e-5d4a-4c2b-9a1e-7f6d5c4b3a21"
	out := MaskString(in)
	for _, leak := range []string{"jean@example.com", "01 23 45 67 89", "BIENVENUE10", "5d4a-4c2b"} {
		if strings.Contains(out, leak) {
			t.Errorf("%q leaked in %q", leak, out)
		}
	}
	if !strings.Contains(out, "3f2b8c1e...") {
		t.Errorf("uuid should be shortened, got %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]int{"debug": LogLevelDebug, "WARNING": LogLevelWarn, "error": LogLevelError, "": LogLevelInfo}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
