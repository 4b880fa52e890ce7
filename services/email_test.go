package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/qwertys/qwertys-api/models"
)

func TestWrapParagraphs(t *testing.T) {
	long := strings.Repeat("mot ", 40)
	out := WrapParagraphs("Bonjour,\r\n\r\n" + long + "\n- " + long + "\n- ")
	for _, line := range strings.Split(out, "\n") {
		if len(line) > wrapWidth {
			t.Fatalf("line longer than %d: %q", wrapWidth, line)
		}
	}
	if !strings.HasPrefix(out, "Bonjour,\n\n") {
		t.Fatalf("paragraph breaks lost:\n%s", out)
	}
	if !strings.Contains(out, "\n- mot") || !strings.Contains(out, "\n  mot") {
		t.Fatalf("bullets must keep a hanging indent:\n%s", out)
	}
}

type capturedMail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

func mailServer(t *testing.T, status int, got *capturedMail) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer re_key" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMessage(t *testing.T) {
	var got capturedMail
	srv := mailServer(t, http.StatusOK, &got)
	svc := NewEmailService("re_key", "alertes@qwertys.fr", "https://app.qwertys.fr").WithBaseURL(srv.URL)

	if err := svc.SendMessage("contact@fnac.fr", "Sujet", "Corps <b>"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.From != "QWERTYS <alertes@qwertys.fr>" || len(got.To) != 1 || got.To[0] != "contact@fnac.fr" {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if !strings.Contains(got.HTML, "Corps &lt;b&gt;") {
		t.Fatalf("html body must be escaped: %s", got.HTML)
	}
}

func TestSendAlerteNotification(t *testing.T) {
	var got capturedMail
	srv := mailServer(t, http.StatusOK, &got)
	svc := NewEmailService("re_key", "alertes@qwertys.fr", "https://app.qwertys.fr").WithBaseURL(srv.URL)

	a := models.Alerte{TypeTest: "TS", PartenaireNom: "Fnac", ProgrammeNom: "Club", Description: "Anomalies", PointsAttention: []string{AnomalieRemiseNegative}}
	if err := svc.SendAlerteNotification("qa@qwertys.fr", a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subject != "[QWERTYS] Nouvelle alerte TS - Fnac" {
		t.Fatalf("unexpected subject %q", got.Subject)
	}
	if !strings.Contains(got.Text, "- "+AnomalieRemiseNegative) || !strings.Contains(got.Text, "https://app.qwertys.fr/alertes") {
		t.Fatalf("unexpected text:\n%s", got.Text)
	}
}

func TestSendMessage_Errors(t *testing.T) {
	if err := NewEmailService("", "a@b.c", "").SendMessage("x@y.z", "s", "b"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	var got capturedMail
	srv := mailServer(t, http.StatusUnprocessableEntity, &got)
	if err := NewEmailService("re_key", "a@b.c", "").WithBaseURL(srv.URL).SendMessage("x@y.z", "s", "b"); err == nil {
		t.Fatal("expected an error on non-200 status")
	}
}
