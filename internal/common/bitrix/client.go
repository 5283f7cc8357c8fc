// Package bitrix implements the Bitrix24 inbound-webhook client used to
// create CRM leads (crm.lead.add).
package bitrix

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config carries the webhook coordinates. The webhook URL embeds the token,
// so it must never be logged or returned to a client.
type Config struct {
	Domain  string
	UserID  string
	Token   string
	Timeout time.Duration
	// Endpoint overrides the derived webhook URL; used against local stubs.
	Endpoint string
}

// Configured reports whether the required secrets are present.
func (c Config) Configured() bool {
	return c.Domain != "" && c.Token != ""
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a webhook client. TLS peer and host verification stay at
// their defaults (enabled); the CRM endpoint is always HTTPS.
func NewClient(cfg Config) *Client {
	if cfg.UserID == "" {
		cfg.UserID = "1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

// Lead is the crm.lead.add payload.
type Lead struct {
	Title    string
	Name     string
	Phone    []Phone
	Comments string
}

// Phone is one entry of the CRM's multi-value phone field.
type Phone struct {
	Value     string
	ValueType string
}

// APIError is a CRM-level failure: the webhook answered, but without a
// result. Code and Description map onto the client-facing error_code and
// error fields.
type APIError struct {
	Code        string
	Description string
	StatusCode  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitrix: %s: %s (http %d)", e.Code, e.Description, e.StatusCode)
}

// leadAddResponse mirrors the crm.lead.add.json response body.
type leadAddResponse struct {
	Result           *int64 `json:"result"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AddLead creates a lead and returns its ID. A reachable CRM that reports
// failure yields *APIError; transport problems yield a plain error with the
// webhook token redacted.
func (c *Client) AddLead(ctx context.Context, lead *Lead) (int64, error) {
	form := url.Values{}
	form.Set("fields[TITLE]", lead.Title)
	form.Set("fields[NAME]", lead.Name)
	for i, p := range lead.Phone {
		form.Set(fmt.Sprintf("fields[PHONE][%d][VALUE]", i), p.Value)
		form.Set(fmt.Sprintf("fields[PHONE][%d][VALUE_TYPE]", i), p.ValueType)
	}
	form.Set("fields[COMMENTS]", lead.Comments)
	// Y = register the lead in the activity stream, which also notifies the
	// responsible manager inside the CRM.
	form.Set("params[REGISTER_SONET_EVENT]", "Y")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("bitrix: failed to create request: %s", c.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("bitrix: request failed: %s", c.redact(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("bitrix: failed to read response body: %s", c.redact(err.Error()))
	}

	var parsed leadAddResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, &APIError{
			Code:        "UNKNOWN",
			Description: "",
			StatusCode:  resp.StatusCode,
		}
	}

	if parsed.Result != nil {
		return *parsed.Result, nil
	}

	return 0, &APIError{
		Code:        parsed.Error,
		Description: parsed.ErrorDescription,
		StatusCode:  resp.StatusCode,
	}
}

func (c *Client) webhookURL() string {
	if c.cfg.Endpoint != "" {
		return c.cfg.Endpoint
	}
	return fmt.Sprintf("https://%s/rest/%s/%s/crm.lead.add.json", c.cfg.Domain, c.cfg.UserID, c.cfg.Token)
}

// redact strips the webhook token from error text before it can reach a log.
func (c *Client) redact(s string) string {
	if c.cfg.Token == "" {
		return s
	}
	return strings.ReplaceAll(s, c.cfg.Token, "***")
}
