// Package client is the Go client of the QWERTYS API used by the test forms.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
)

var (
	// ErrSessionExpired is returned for any 401 on an authenticated call.
	ErrSessionExpired = errors.New("session expirée")
	// ErrForbidden is returned for 403 answers.
	ErrForbidden = errors.New("accès refusé")
)

// APIError carries the backend message of any other failed call.
type APIError struct {
	Status   int
	Message  string
	Field    string
	Redirect string
	Conflict *models.DuplicateConflict
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Field, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// ForbiddenError is the 403 answer with the page the user is sent back to.
type ForbiddenError struct {
	Redirect string
}

func (e *ForbiddenError) Error() string {
	return ErrForbidden.Error()
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	session *Session
}

func New(baseURL string, session *Session) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		session: session,
	}
}

type errorBody struct {
	Error    string                    `json:"error"`
	Field    string                    `json:"field"`
	Redirect string                    `json:"redirect"`
	Conflict *models.DuplicateConflict `json:"conflict"`
}

// do sends a JSON request. authenticated calls carry the session token and
// invalidate the session on 401.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if !c.session.Valid() {
			return ErrSessionExpired
		}
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)

		switch {
		case resp.StatusCode == http.StatusUnauthorized && authenticated:
			c.session.Invalidate()
			return ErrSessionExpired
		case resp.StatusCode == http.StatusForbidden:
			return &ForbiddenError{Redirect: eb.Redirect}
		}
		msg := eb.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Field: eb.Field, Redirect: eb.Redirect, Conflict: eb.Conflict}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode error: %v, body: %s", err, string(respBody))
	}
	return nil
}

// Login signs in and stores the token in the session.
func (c *Client) Login(ctx context.Context, email, password, totpCode string) (*models.AuthResponse, error) {
	var res models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password, TOTPCode: totpCode}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &res, false); err != nil {
		return nil, err
	}
	c.session.SetToken(res.Token)
	return &res, nil
}

func (c *Client) ListProgrammes(ctx context.Context) ([]models.Programme, error) {
	var out []models.Programme
	err := c.do(ctx, http.MethodGet, "/api/programmes", nil, nil, &out, true)
	return out, err
}

func (c *Client) ListPartenaires(ctx context.Context) ([]models.Partenaire, error) {
	var out []models.Partenaire
	err := c.do(ctx, http.MethodGet, "/api/partenaires", nil, nil, &out, true)
	return out, err
}

// CheckDuplicate asks the backend whether the candidate collides with a test
// of the same month.
func (c *Client) CheckDuplicate(ctx context.Context, cand services.DuplicateCandidate) (*models.DuplicateCheckResponse, error) {
	q := url.Values{}
	q.Set("programme_id", cand.ProgrammeID)
	q.Set("partenaire_id", cand.PartenaireID)
	q.Set("test_type", string(cand.TestType))
	if !cand.DateTest.IsZero() {
		q.Set("date_test", cand.DateTest.Format(time.RFC3339))
	}
	if cand.ExcludeID != "" {
		q.Set("exclude_id", cand.ExcludeID)
	}

	var out models.DuplicateCheckResponse
	if err := c.do(ctx, http.MethodGet, "/api/check-duplicate-test", q, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

type createdTestSite struct {
	Test   models.TestSite `json:"test"`
	Alerte *models.Alerte  `json:"alerte"`
}

type createdTestLigne struct {
	Test   models.TestLigne `json:"test"`
	Alerte *models.Alerte   `json:"alerte"`
}

// CreateTestSite returns the stored test and the alert opened for it, if any.
func (c *Client) CreateTestSite(ctx context.Context, req models.TestSiteRequest) (*models.TestSite, *models.Alerte, error) {
	var out createdTestSite
	if err := c.do(ctx, http.MethodPost, "/api/tests-site", nil, req, &out, true); err != nil {
		return nil, nil, err
	}
	return &out.Test, out.Alerte, nil
}

func (c *Client) UpdateTestSite(ctx context.Context, id string, req models.TestSiteRequest) (*models.TestSite, error) {
	var out models.TestSite
	if err := c.do(ctx, http.MethodPut, "/api/tests-site/"+url.PathEscape(id), nil, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTestSite(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tests-site/"+url.PathEscape(id), nil, nil, nil, true)
}

func (c *Client) CreateTestLigne(ctx context.Context, req models.TestLigneRequest) (*models.TestLigne, *models.Alerte, error) {
	var out createdTestLigne
	if err := c.do(ctx, http.MethodPost, "/api/tests-ligne", nil, req, &out, true); err != nil {
		return nil, nil, err
	}
	return &out.Test, out.Alerte, nil
}

func (c *Client) UpdateTestLigne(ctx context.Context, id string, req models.TestLigneRequest) (*models.TestLigne, error) {
	var out models.TestLigne
	if err := c.do(ctx, http.MethodPut, "/api/tests-ligne/"+url.PathEscape(id), nil, req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTestLigne(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tests-ligne/"+url.PathEscape(id), nil, nil, nil, true)
}
