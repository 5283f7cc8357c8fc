// Package leadclient is the programmatic counterpart of the site's form
// driver: it fetches a CSRF token, carries the session cookie, and submits
// a lead to the gateway, classifying failures for display.
package leadclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// Form is one lead submission. Name and Phone are required; everything
// else is optional context for the CRM comment.
type Form struct {
	Name          string
	Phone         string
	Comments      string
	PropertyType  string
	FormSource    string
	ObjectType    string
	PropertyClass string
	Location      string
}

// Result is the gateway's answer. A refused submission (rate limit,
// validation, upstream failure) comes back as a Result with Success false
// rather than an error, so the caller can show the server's own message.
type Result struct {
	Success   bool   `json:"success"`
	LeadID    int64  `json:"lead_id,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorText string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	inFlight   atomic.Bool

	mock      bool
	mockDelay time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The caller is responsible
// for attaching a cookie jar if session continuity is needed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithMockMode short-circuits Submit with a simulated success after the
// given delay. Nothing leaves the process; useful while the gateway is not
// running yet.
func WithMockMode(delay time.Duration) Option {
	return func(c *Client) {
		c.mock = true
		c.mockDelay = delay
	}
}

// New builds a client for the gateway at baseURL. The default HTTP client
// carries a cookie jar so the CSRF token and the submission share one
// session.
func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("leadclient: cookie jar: %w", err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var phoneDigits = regexp.MustCompile(`\D`)

// Validate runs the local pre-checks mirrored by the gateway. It returns a
// *Error of KindValidation whose UserMessage is ready for display.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" || f.Phone == "" {
		return newError(KindValidation, "Пожалуйста, заполните обязательные поля", nil)
	}
	if len(phoneDigits.ReplaceAllString(f.Phone, "")) < 10 {
		return newError(KindValidation, "Пожалуйста, введите корректный номер телефона", nil)
	}
	return nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// FetchToken obtains a CSRF token, establishing the session cookie as a
// side effect. Submit calls it automatically; it is exported for warming
// the session ahead of time.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/csrf-token", nil)
	if err != nil {
		return "", newError(KindSecurity, "failed to build token request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newError(KindConnectivity, "token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newError(KindSecurity, fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", newError(KindMalformed, "token response is not valid JSON", err)
	}
	if tr.Token == "" {
		return "", newError(KindSecurity, "token missing from response", nil)
	}
	return tr.Token, nil
}

// Submit validates the form, fetches a token, and posts the lead. Only one
// submission may be in flight per client; concurrent calls fail fast with
// ErrSubmissionInFlight. The guard is released however the attempt ends.
func (c *Client) Submit(ctx context.Context, form Form) (*Result, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	if err := form.Validate(); err != nil {
		return nil, err
	}

	if c.mock {
		return c.mockSubmit(ctx)
	}

	token, err := c.FetchToken(ctx)
	if err != nil {
		return nil, err
	}

	values := url.Values{
		"NAME":       {form.Name},
		"PHONE":      {form.Phone},
		"csrf_token": {token},
	}
	setIfPresent(values, "COMMENTS", form.Comments)
	setIfPresent(values, "property_type", form.PropertyType)
	setIfPresent(values, "form_source", form.FormSource)
	setIfPresent(values, "object_type", form.ObjectType)
	setIfPresent(values, "property_class", form.PropertyClass)
	setIfPresent(values, "location", form.Location)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, newError(KindServer, "failed to build submit request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindConnectivity, "submit request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindConnectivity, "failed to read response", err)
	}

	var result *Result
	if isJSON(resp.Header.Get("Content-Type")) {
		result = &Result{}
		if err := json.Unmarshal(body, result); err != nil {
			return nil, newError(KindMalformed, "response is not valid JSON", err)
		}
	}

	if resp.StatusCode != http.StatusOK {
		// A refusal with a JSON body carries the server's own message;
		// hand it to the caller instead of failing.
		if result != nil {
			return result, nil
		}
		if resp.StatusCode == http.StatusForbidden {
			return nil, newError(KindSecurity, fmt.Sprintf("submit returned status %d", resp.StatusCode), nil)
		}
		return nil, newError(KindServer, fmt.Sprintf("submit returned status %d", resp.StatusCode), nil)
	}

	if result == nil {
		return nil, newError(KindMalformed, "response is not JSON", nil)
	}
	return result, nil
}

func (c *Client) mockSubmit(ctx context.Context) (*Result, error) {
	delay := c.mockDelay
	if delay <= 0 {
		delay = time.Second + time.Duration(rand.Int63n(int64(time.Second)))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, newError(KindConnectivity, "submission cancelled", ctx.Err())
	}
	return &Result{
		Success: true,
		LeadID:  rand.Int63n(10000),
		Message: "Заявка успешно отправлена (тестовый режим)",
	}, nil
}

func setIfPresent(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}
