package token

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"lead-gateway/internal/common/database"
	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewTestLogger(t)
	sessions := session.NewManager(rdb, session.Config{TTL: time.Hour}, log)
	handler := NewHandler(NewService(sessions, log), log)

	router := gin.New()
	router.GET("/csrf-token", handler.Handle)
	return router
}

func fetchToken(t *testing.T, router *gin.Engine, cookies []*http.Cookie) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body.Token
}

func TestHandle_IssuesHexToken(t *testing.T) {
	router := newTestRouter(t)

	rec, tok := fetchToken(t, router, nil)

	assert.Regexp(t, hexToken, tok)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
}

func TestHandle_TokenStableWithinSession(t *testing.T) {
	router := newTestRouter(t)

	rec, first := fetchToken(t, router, nil)
	_, second := fetchToken(t, router, rec.Result().Cookies())

	assert.Equal(t, first, second, "token is session-lifetime, not per-request")
}

func TestHandle_NewSessionGetsNewToken(t *testing.T) {
	router := newTestRouter(t)

	_, first := fetchToken(t, router, nil)
	_, second := fetchToken(t, router, nil)

	assert.NotEqual(t, first, second)
}
