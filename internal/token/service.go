// Package token implements the CSRF token endpoint: it guarantees the
// caller's session carries an anti-forgery token and hands that token out.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/common/metrics"
	"lead-gateway/internal/session"

	"github.com/gin-gonic/gin"
)

// tokenBytes is the entropy of a CSRF token; hex-encoded to 64 characters.
const tokenBytes = 32

type Service struct {
	sessions *session.Manager
	logger   logger.Logger
}

func NewService(sessions *session.Manager, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{sessions: sessions, logger: log}
}

// EnsureToken loads the caller's session (creating one if needed) and
// returns its CSRF token, generating and persisting a fresh one only when
// the session has none. The token lives for the whole session.
func (s *Service) EnsureToken(c *gin.Context) (string, error) {
	sess, err := s.sessions.Load(c)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	if sess.CSRFToken != "" {
		return sess.CSRFToken, nil
	}

	generated, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	sess.CSRFToken = generated
	if err := s.sessions.Save(c, sess); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}

	metrics.TokensIssued.Inc()
	s.logger.Debug("Issued CSRF token", map[string]interface{}{
		"sessionId": sess.ID,
	})
	return generated, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
