package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-gateway/internal/common/bitrix"
	stderrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"
)

type stubCRM struct {
	lead   *bitrix.Lead
	leadID int64
	err    error
}

func (s *stubCRM) AddLead(_ context.Context, lead *bitrix.Lead) (int64, error) {
	s.lead = lead
	return s.leadID, s.err
}

func TestBuildLead(t *testing.T) {
	t.Run("full submission", func(t *testing.T) {
		lead := BuildLead(&FormSubmission{
			Name:          "  Анна  ",
			Phone:         "+7 999 111 22 33",
			Comments:      "Жду звонка",
			PropertyType:  "apartment",
			FormSource:    "Калькулятор",
			ObjectType:    "Квартира",
			PropertyClass: "Комфорт",
			Location:      "Москва",
		})

		assert.Equal(t, "Новая заявка с сайта - Калькулятор", lead.Title)
		assert.Equal(t, "Анна", lead.Name)
		require.Len(t, lead.Phone, 1)
		assert.Equal(t, "+7 999 111 22 33", lead.Phone[0].Value)
		assert.Equal(t, "MOBILE", lead.Phone[0].ValueType)
		assert.Equal(t,
			"Способ связи: WhatsApp\n"+
				"Источник: Калькулятор\n"+
				"Комментарий: Жду звонка\n"+
				"Тип объекта: Квартира\n"+
				"Класс недвижимости: Комфорт\n"+
				"Местоположение: Москва",
			lead.Comments)
	})

	t.Run("contact method mapping", func(t *testing.T) {
		tests := []struct {
			propertyType string
			method       string
		}{
			{"apartment", "WhatsApp"},
			{"office", "Telegram"},
			{"house", "Позвонить"},
			{"warehouse", "Не указан"},
			{"", "Не указан"},
		}
		for _, tt := range tests {
			lead := BuildLead(&FormSubmission{PropertyType: tt.propertyType})
			assert.Contains(t, lead.Comments, "Способ связи: "+tt.method, "property_type=%q", tt.propertyType)
		}
	})

	t.Run("minimal submission", func(t *testing.T) {
		lead := BuildLead(&FormSubmission{Name: "Иван", Phone: "89991112233"})

		assert.Equal(t, "Новая заявка с сайта - Не указан", lead.Title)
		assert.Equal(t,
			"Способ связи: Не указан\n"+
				"Источник: Не указан\n"+
				"Комментарий: ",
			lead.Comments)
		assert.NotContains(t, lead.Comments, "Тип объекта")
		assert.NotContains(t, lead.Comments, "Класс недвижимости")
		assert.NotContains(t, lead.Comments, "Местоположение")
	})

	t.Run("empty phone produces no phone entries", func(t *testing.T) {
		lead := BuildLead(&FormSubmission{Name: "Иван"})
		assert.Empty(t, lead.Phone)
	})

	t.Run("markup is escaped", func(t *testing.T) {
		lead := BuildLead(&FormSubmission{
			Name:     `<b>Анна</b>`,
			Comments: `"кавычки" & 'апострофы'`,
		})

		assert.Equal(t, "&lt;b&gt;Анна&lt;/b&gt;", lead.Name)
		assert.Contains(t, lead.Comments, "&quot;кавычки&quot; &amp; &#039;апострофы&#039;")
	})
}

func TestServiceExecute(t *testing.T) {
	log := logger.NewNoOpLogger()

	t.Run("success", func(t *testing.T) {
		crm := &stubCRM{leadID: 123}
		svc := NewServiceWithClient(log, crm)

		result, err := svc.Execute(context.Background(), &FormSubmission{
			Name:  "Анна",
			Phone: "+79991112233",
		})

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(123), result.LeadID)
		assert.Equal(t, "Заявка успешно отправлена", result.Message)
		require.NotNil(t, crm.lead)
		assert.Equal(t, "Анна", crm.lead.Name)
	})

	t.Run("crm api error propagates code and description", func(t *testing.T) {
		crm := &stubCRM{err: &bitrix.APIError{Code: "ERROR_CORE", Description: "Access denied", StatusCode: 401}}
		svc := NewServiceWithClient(log, crm)

		_, err := svc.Execute(context.Background(), &FormSubmission{})

		var stdErr *stderrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, stderrors.ErrCodeUpstreamError, stdErr.Code)
		assert.Equal(t, "Access denied", stdErr.Message)
		assert.Equal(t, "ERROR_CORE", stdErr.ClientCode)
		assert.Equal(t, 500, stdErr.HTTPStatus)
	})

	t.Run("transport error maps to unknown", func(t *testing.T) {
		crm := &stubCRM{err: fmt.Errorf("bitrix: request failed: connection refused")}
		svc := NewServiceWithClient(log, crm)

		_, err := svc.Execute(context.Background(), &FormSubmission{})

		var stdErr *stderrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, "Неизвестная ошибка", stdErr.Message)
		assert.Equal(t, "UNKNOWN", stdErr.ClientCode)
	})

	t.Run("unconfigured client is a config error", func(t *testing.T) {
		svc := NewService(log, bitrix.Config{})
		assert.False(t, svc.Configured())

		_, err := svc.Execute(context.Background(), &FormSubmission{})

		var stdErr *stderrors.StandardError
		require.ErrorAs(t, err, &stdErr)
		assert.Equal(t, stderrors.ErrCodeConfigError, stdErr.Code)
		assert.Equal(t, "CONFIG_ERROR", stdErr.ClientCode)
	})
}
