// Package session implements cookie-tracked server-side sessions backed by
// redis. A session holds exactly the state the gateway needs: the CSRF
// token and the rate-limit window.
package session

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"lead-gateway/internal/common/database"
	"lead-gateway/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Data is the server-side session record, stored as JSON under the opaque
// ID carried by the cookie.
type Data struct {
	ID        string    `json:"id"`
	CSRFToken string    `json:"csrf_token,omitempty"`
	RateLimit RateState `json:"rate_limit"`
	CreatedAt time.Time `json:"created_at"`
}

// RateState is the fixed-window submission counter.
//
// Concurrent requests on the same session may interleave the
// read-modify-write and undercount; accepted, a session belongs to one
// browser and submissions are serialized by the form UI.
type RateState struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"reset_at"` // unix seconds
}

type Config struct {
	CookieName string
	TTL        time.Duration
	KeyPrefix  string
}

// Manager loads and persists sessions. The cookie is HTTP-only and marked
// secure whenever the request arrived over HTTPS; the session ID never
// appears in URLs.
type Manager struct {
	rdb    *database.RedisClient
	cfg    Config
	logger logger.Logger
}

func NewManager(rdb *database.RedisClient, cfg Config, log logger.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "sid"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "session:"
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Manager{rdb: rdb, cfg: cfg, logger: log}
}

// Load returns the caller's session, creating (and persisting) a fresh one
// when the cookie is absent, unknown, or expired. A redis failure is
// reported as an error rather than silently starting a new session, so the
// rate limiter cannot be reset by breaking the store.
func (m *Manager) Load(c *gin.Context) (*Data, error) {
	ctx := c.Request.Context()

	if id, err := c.Cookie(m.cfg.CookieName); err == nil && id != "" {
		raw, err := m.rdb.Get(ctx, m.key(id))
		switch {
		case err == nil:
			var data Data
			if jsonErr := json.Unmarshal([]byte(raw), &data); jsonErr == nil && data.ID == id {
				return &data, nil
			}
			m.logger.Warn("Discarding undecodable session record", map[string]interface{}{
				"cookie": m.cfg.CookieName,
			})
		case err == redis.Nil:
			// expired or never existed; fall through to a new session
		default:
			return nil, err
		}
	}

	data := &Data{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Save(c, data); err != nil {
		return nil, err
	}
	m.issueCookie(c, data.ID)
	return data, nil
}

// Save persists the session with the configured TTL.
func (m *Manager) Save(c *gin.Context, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.rdb.Set(c.Request.Context(), m.key(data.ID), raw, m.cfg.TTL)
}

func (m *Manager) key(id string) string {
	return m.cfg.KeyPrefix + id
}

func (m *Manager) issueCookie(c *gin.Context, id string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   requestIsSecure(c.Request),
		SameSite: http.SameSiteLaxMode,
	})
}

func requestIsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
