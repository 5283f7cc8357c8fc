package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-gateway/internal/common/bitrix"
	"lead-gateway/internal/common/database"
	stderrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/session"
)

const testToken = "9b7a1f0e9b7a1f0e9b7a1f0e9b7a1f0e9b7a1f0e9b7a1f0e9b7a1f0e9b7a1f0e"

type testEnv struct {
	router   *gin.Engine
	mr       *miniredis.Miniredis
	sessions *session.Manager
	crmHits  int
	crmForm  url.Values
}

// newTestEnv wires the handler against miniredis and an httptest CRM stub.
// crmResponse of "" leaves the CRM unconfigured.
func newTestEnv(t *testing.T, crmResponse string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{}

	mr := miniredis.RunT(t)
	env.mr = mr
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)
	env.sessions = session.NewManager(rdb, session.Config{}, log)

	var crmCfg bitrix.Config
	if crmResponse != "" {
		stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			env.crmHits++
			env.crmForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(crmResponse))
		}))
		t.Cleanup(stub.Close)
		crmCfg = bitrix.Config{Domain: "example.bitrix24.ru", Token: "testtoken", Endpoint: stub.URL}
	}

	svc := NewService(log, crmCfg)
	responder := stderrors.NewErrorResponder(log)
	handler := NewHandler(env.sessions, svc, &Config{RateLimitMax: 5, RateLimitWindow: time.Minute}, responder, log)

	router := gin.New()
	router.POST("/submit", handler.Handle)
	env.router = router
	return env
}

// seedSession stores a session with the given CSRF token and returns the
// cookie to send with requests.
func (env *testEnv) seedSession(t *testing.T, csrfToken string) *http.Cookie {
	t.Helper()
	data := &session.Data{
		ID:        "test-session",
		CSRFToken: csrfToken,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, env.mr.Set("session:"+data.ID, string(raw)))
	return &http.Cookie{Name: "sid", Value: data.ID}
}

func (env *testEnv) submit(cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func validForm() url.Values {
	return url.Values{
		"NAME":          {"Анна"},
		"PHONE":         {"+7 999 111 22 33"},
		"COMMENTS":      {"Жду звонка"},
		"property_type": {"apartment"},
		"form_source":   {"Калькулятор"},
		"csrf_token":    {testToken},
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandlerSuccess(t *testing.T) {
	env := newTestEnv(t, `{"result": 321}`)
	cookie := env.seedSession(t, testToken)

	w := env.submit(cookie, validForm())

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(321), body["lead_id"])
	assert.Equal(t, "Заявка успешно отправлена", body["message"])

	require.Equal(t, 1, env.crmHits)
	assert.Equal(t, "Анна", env.crmForm.Get("fields[NAME]"))
	assert.Equal(t, "+7 999 111 22 33", env.crmForm.Get("fields[PHONE][0][VALUE]"))
	assert.Equal(t, "MOBILE", env.crmForm.Get("fields[PHONE][0][VALUE_TYPE]"))
	assert.Contains(t, env.crmForm.Get("fields[COMMENTS]"), "Способ связи: WhatsApp")
	assert.Equal(t, "Y", env.crmForm.Get("params[REGISTER_SONET_EVENT]"))
}

func TestHandlerCSRF(t *testing.T) {
	tests := []struct {
		name      string
		session   string
		submitted string
		message   string
	}{
		{"token missing from form", testToken, "", "Отсутствует CSRF токен"},
		{"token missing from session", "", testToken, "CSRF токен не найден в сессии"},
		{"token mismatch", testToken, strings.Repeat("f", 64), "Неверный CSRF токен"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, `{"result": 1}`)
			cookie := env.seedSession(t, tt.session)

			form := validForm()
			form.Set("csrf_token", tt.submitted)
			w := env.submit(cookie, form)

			require.Equal(t, http.StatusForbidden, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])
			assert.Zero(t, env.crmHits, "CRM must not be called on CSRF failure")
		})
	}
}

func TestHandlerValidationErrorsAggregated(t *testing.T) {
	env := newTestEnv(t, `{"result": 1}`)
	cookie := env.seedSession(t, testToken)

	form := validForm()
	form.Set("NAME", "Я")
	form.Set("PHONE", "123")
	w := env.submit(cookie, form)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Имя должно содержать минимум 2 символа. Некорректный формат телефона", body["error"])
	assert.Zero(t, env.crmHits)
}

func TestHandlerRateLimit(t *testing.T) {
	env := newTestEnv(t, `{"result": 1}`)
	cookie := env.seedSession(t, testToken)

	for i := 0; i < 5; i++ {
		w := env.submit(cookie, validForm())
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := env.submit(cookie, validForm())
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Слишком много запросов. Попробуйте позже.", body["error"])

	retryAfter := w.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)
	assert.Equal(t, 5, env.crmHits, "rejected request must not reach the CRM")
}

func TestHandlerRateLimitAppliesBeforeCSRF(t *testing.T) {
	env := newTestEnv(t, `{"result": 1}`)
	cookie := env.seedSession(t, testToken)

	// Burn the budget with forged requests; the sixth is refused as rate
	// limited, not as a CSRF failure.
	form := validForm()
	form.Set("csrf_token", strings.Repeat("f", 64))
	for i := 0; i < 5; i++ {
		w := env.submit(cookie, form)
		require.Equal(t, http.StatusForbidden, w.Code)
	}

	w := env.submit(cookie, form)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHandlerUnconfiguredCRM(t *testing.T) {
	env := newTestEnv(t, "")
	cookie := env.seedSession(t, testToken)

	w := env.submit(cookie, validForm())

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Ошибка конфигурации сервера. Обратитесь к администратору.", body["error"])
	assert.Equal(t, "CONFIG_ERROR", body["error_code"])
}

func TestHandlerUpstreamError(t *testing.T) {
	env := newTestEnv(t, `{"error": "ERROR_CORE", "error_description": "Access denied"}`)
	cookie := env.seedSession(t, testToken)

	w := env.submit(cookie, validForm())

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Access denied", body["error"])
	assert.Equal(t, "ERROR_CORE", body["error_code"])
}

func TestHandlerWithoutCookieStartsSession(t *testing.T) {
	env := newTestEnv(t, `{"result": 1}`)

	w := env.submit(nil, validForm())

	// A fresh session has no CSRF token yet, so the submission is refused
	// but the browser receives a session cookie for the retry.
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "CSRF токен не найден в сессии", body["error"])

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}
