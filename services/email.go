package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/kr/text"

	"github.com/qwertys/qwertys-api/models"
)

const resendURL = "https://api.resend.com/emails"

// EmailService sends mails through the Resend API.
type EmailService struct {
	apiKey      string
	fromEmail   string
	frontendURL string
	baseURL     string
	httpClient  *http.Client
}

func NewEmailService(apiKey, fromEmail, frontendURL string) *EmailService {
	return &EmailService{
		apiKey:      apiKey,
		fromEmail:   fromEmail,
		frontendURL: frontendURL,
		baseURL:     resendURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *EmailService) WithBaseURL(url string) *EmailService {
	s.baseURL = url
	return s
}

// wrapWidth keeps plain-text bodies readable in every mail client.
const wrapWidth = 76

// WrapParagraphs wraps each paragraph of body without merging them.
func WrapParagraphs(body string) string {
	paragraphs := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, p := range paragraphs {
		if rest, ok := strings.CutPrefix(p, "- "); ok && strings.TrimSpace(rest) != "" {
			wrapped := text.Indent(text.Wrap(rest, wrapWidth-2), "  ")
			paragraphs[i] = "- " + strings.TrimPrefix(wrapped, "  ")
			continue
		}
		paragraphs[i] = text.Wrap(p, wrapWidth)
	}
	return strings.Join(paragraphs, "\n")
}

func textToHTML(body string) string {
	escaped := html.EscapeString(body)
	return "<div style=\"font-family: sans-serif; white-space: pre-wrap;\">" + escaped + "</div>"
}

func (s *EmailService) send(to []string, subject, plain, htmlBody string) error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: RESEND_API_KEY not configured", ErrNotConfigured)
	}

	payload := map[string]interface{}{
		"from":    fmt.Sprintf("QWERTYS <%s>", s.fromEmail),
		"to":      to,
		"subject": subject,
		"text":    plain,
		"html":    htmlBody,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send email: status %d", resp.StatusCode)
	}

	return nil
}

// SendMessage delivers a messagerie message to a partner contact.
func (s *EmailService) SendMessage(to, subject, body string) error {
	plain := WrapParagraphs(body)
	return s.send([]string{to}, subject, plain, textToHTML(plain))
}

// SendAlerteNotification warns the QA team that a new alert was opened.
func (s *EmailService) SendAlerteNotification(to string, a models.Alerte) error {
	subject := fmt.Sprintf("[QWERTYS] Nouvelle alerte %s - %s", a.TypeTest, a.PartenaireNom)

	var b strings.Builder
	fmt.Fprintf(&b, "Une nouvelle alerte a été ouverte.\n\n")
	fmt.Fprintf(&b, "Programme : %s\n", a.ProgrammeNom)
	fmt.Fprintf(&b, "Partenaire : %s\n", a.PartenaireNom)
	fmt.Fprintf(&b, "Description : %s\n", a.Description)
	if len(a.PointsAttention) > 0 {
		b.WriteString("\nPoints d'attention :\n")
		for _, p := range a.PointsAttention {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	fmt.Fprintf(&b, "\nConsulter les alertes : %s/alertes\n", s.frontendURL)

	plain := WrapParagraphs(b.String())
	return s.send([]string{to}, subject, plain, textToHTML(plain))
}
