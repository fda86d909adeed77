package pandadoc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/factoring-portal/pkg/config"
	"github.com/go-resty/resty/v2"
)

const sessionBaseURL = "https://app.pandadoc.com/s/"

// Recipient is a signer on a document.
type Recipient struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Token fills a template variable.
type Token struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreateDocumentRequest creates a document from a template.
type CreateDocumentRequest struct {
	Name         string            `json:"name"`
	TemplateUUID string            `json:"template_uuid"`
	Recipients   []Recipient       `json:"recipients"`
	Tokens       []Token           `json:"tokens,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Document is the provider's envelope representation.
type Document struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type sendRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	Silent  bool   `json:"silent"`
}

type sessionRequest struct {
	Recipient string `json:"recipient"`
	Lifetime  int    `json:"lifetime"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	ExpiresAt string `json:"expires_at"`
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Detail     any    `json:"detail"`
}

func (e *APIError) Error() string {
	detail := ""
	switch d := e.Detail.(type) {
	case string:
		detail = d
	case nil:
	default:
		detail = fmt.Sprint(d)
	}
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	if e.Type != "" {
		return fmt.Sprintf("pandadoc %d %s: %s", e.StatusCode, e.Type, detail)
	}
	return fmt.Sprintf("pandadoc %d: %s", e.StatusCode, detail)
}

// Client talks to the PandaDoc public API.
type Client struct {
	http            *resty.Client
	templateID      string
	sessionLifetime time.Duration
}

var ErrNotConfigured = errors.New("pandadoc api key is not configured")

// NewClient builds a resty-backed client. A missing API key yields a client whose calls fail with ErrNotConfigured.
func NewClient(cfg config.PandaDocConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "API-Key "+cfg.APIKey)
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	return &Client{
		http:            httpClient,
		templateID:      cfg.TemplateID,
		sessionLifetime: lifetime,
	}
}

// TemplateID returns the configured contract template.
func (c *Client) TemplateID() string {
	return c.templateID
}

func (c *Client) configured() bool {
	return c != nil && c.http != nil && c.http.Header.Get("Authorization") != ""
}

// CreateDocument creates a draft document from a template.
func (c *Client) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*Document, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	if req.TemplateUUID == "" {
		req.TemplateUUID = c.templateID
	}

	var out Document
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/documents")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &out, nil
}

// SendDocument moves a draft document to sent and emails the recipients.
func (c *Client) SendDocument(ctx context.Context, documentID, subject, message string) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", documentID).
		SetBody(sendRequest{Subject: subject, Message: message}).
		SetError(&apiErr).
		Post("/documents/{id}/send")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// CreateSessionLink returns a recipient signing link for email.
func (c *Client) CreateSessionLink(ctx context.Context, documentID, email string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}

	var out sessionResponse
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", documentID).
		SetBody(sessionRequest{Recipient: email, Lifetime: int(c.sessionLifetime.Seconds())}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/documents/{id}/session")
	if err := checkResponse(resp, err, &apiErr); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("create session: empty session id")
	}
	return sessionBaseURL + out.ID, nil
}

func checkResponse(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Detail == nil && apiErr.Type == "" {
			apiErr.Detail = strings.TrimSpace(resp.String())
		}
		return apiErr
	}
	return nil
}

// ViewerURL renders the hosted viewer link for documentID from a template
// containing "{id}".
func ViewerURL(template, documentID string) string {
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, "{id}", documentID)
}
