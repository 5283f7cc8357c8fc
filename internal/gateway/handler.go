package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	stderrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/common/metrics"
	"lead-gateway/internal/session"

	"github.com/gin-gonic/gin"
)

// Handler drives the submission pipeline: rate limit, CSRF check,
// configuration check, field validation, CRM call. Checks run in that
// order, and earlier rejections never reach the CRM.
type Handler struct {
	sessions  *session.Manager
	service   *Service
	cfg       *Config
	responder *stderrors.ErrorResponder
	logger    logger.Logger
}

func NewHandler(sessions *session.Manager, service *Service, cfg *Config, responder *stderrors.ErrorResponder, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Handler{
		sessions:  sessions,
		service:   service,
		cfg:       cfg,
		responder: responder,
		logger:    log,
	}
}

func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()
	metrics.SubmissionsActive.Inc()
	defer func() {
		metrics.SubmissionsActive.Dec()
		metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	}()

	sess, err := h.sessions.Load(c)
	if err != nil {
		h.responder.Respond(c, stderrors.NewSessionUnavailableError(err))
		return
	}

	// The counter advances before any other check, so rejected requests
	// still consume the window. The updated state is persisted even when
	// the request is about to be refused.
	allowed, retryAfter := applyRateLimit(&sess.RateLimit, time.Now(), h.cfg.RateLimitMax, h.cfg.RateLimitWindow)
	if err := h.sessions.Save(c, sess); err != nil {
		h.responder.Respond(c, stderrors.NewSessionUnavailableError(err))
		return
	}
	if !allowed {
		metrics.SubmissionsRejected.WithLabelValues(metrics.ReasonRateLimited).Inc()
		h.responder.Respond(c, stderrors.NewRateLimitedError(retryAfter))
		return
	}

	var sub FormSubmission
	_ = c.ShouldBind(&sub)

	if err := h.checkCSRF(sess, sub.CSRFToken); err != nil {
		metrics.SubmissionsRejected.WithLabelValues(metrics.ReasonCSRF).Inc()
		h.responder.Respond(c, err)
		return
	}

	if !h.service.Configured() {
		metrics.SubmissionsRejected.WithLabelValues(metrics.ReasonConfig).Inc()
		h.responder.Respond(c, stderrors.NewConfigError("CRM webhook credentials are not set"))
		return
	}

	if msgs := Validate(sub); len(msgs) > 0 {
		metrics.SubmissionsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		h.responder.Respond(c, stderrors.NewValidationError(strings.Join(msgs, ". ")))
		return
	}

	result, err := h.service.Execute(c.Request.Context(), &sub)
	if err != nil {
		h.responder.Respond(c, err)
		return
	}

	metrics.SubmissionsCompleted.Inc()
	c.JSON(http.StatusOK, result)
}

// checkCSRF compares the submitted token against the session's in constant
// time. The three failure modes get distinct messages so the frontend can
// tell a stale page from a forged request.
func (h *Handler) checkCSRF(sess *session.Data, submitted string) error {
	if submitted == "" {
		return stderrors.NewCSRFMissingError()
	}
	if sess.CSRFToken == "" {
		return stderrors.NewCSRFSessionMissingError()
	}
	if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(submitted)) != 1 {
		return stderrors.NewCSRFMismatchError()
	}
	return nil
}
