package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func testViper(values map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	v := testViper(map[string]any{
		"DATABASE_URL":        "postgres://localhost/qwertys",
		"JWT_SECRET":          strings.Repeat("s", 32),
		"DATA_ENCRYPTION_KEY": strings.Repeat("k", 32),
		"CORS_ORIGINS":        "https://app.qwertys.fr, http://localhost:3000 ,",
	})

	cfg, err := fromViper(v)
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Server.RateLimit != 100 || cfg.Server.RateWindow != time.Minute {
		t.Errorf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("unexpected JWT TTL %v", cfg.JWT.TTL)
	}
	if cfg.Server.Location == nil {
		t.Fatal("location not loaded")
	}

	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "http://localhost:3000" || origins[1] != "https://app.qwertys.fr" {
		t.Errorf("unexpected origins %v", origins)
	}
}

func TestFromViper_MissingSecrets(t *testing.T) {
	_, err := fromViper(testViper(map[string]any{"JWT_SECRET": "short"}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "DATA_ENCRYPTION_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}
