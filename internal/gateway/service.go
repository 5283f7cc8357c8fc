package gateway

import (
	"context"
	"html"
	"strings"

	"lead-gateway/internal/common/bitrix"
	stderrors "lead-gateway/internal/common/errors"
	"lead-gateway/internal/common/logger"
	"lead-gateway/internal/common/metrics"
)

// crmClient is the part of the webhook client the service needs.
type crmClient interface {
	AddLead(ctx context.Context, lead *bitrix.Lead) (int64, error)
}

type Service struct {
	logger logger.Logger
	crm    crmClient
}

// NewService builds the submission service. When the CRM secrets are absent
// the client stays nil and every submission fails with a configuration
// error; the service still starts so the health and token endpoints keep
// working.
func NewService(log logger.Logger, crmCfg bitrix.Config) *Service {
	var crm crmClient
	if crmCfg.Configured() {
		crm = bitrix.NewClient(crmCfg)
	}
	return &Service{logger: log, crm: crm}
}

// NewServiceWithClient injects a ready client; tests use it with stubs.
func NewServiceWithClient(log logger.Logger, crm crmClient) *Service {
	return &Service{logger: log, crm: crm}
}

// Configured reports whether the CRM client is usable.
func (s *Service) Configured() bool {
	return s.crm != nil
}

// Execute forwards a validated submission to the CRM and returns the created
// lead ID. Failures come back as *errors.StandardError ready for the HTTP
// boundary.
func (s *Service) Execute(ctx context.Context, sub *FormSubmission) (*Result, error) {
	if s.crm == nil {
		metrics.SubmissionsRejected.WithLabelValues(metrics.ReasonConfig).Inc()
		return nil, stderrors.NewConfigError("CRM webhook credentials are not set")
	}

	lead := BuildLead(sub)

	leadID, err := s.crm.AddLead(ctx, lead)
	if err != nil {
		if apiErr, ok := err.(*bitrix.APIError); ok {
			metrics.CRMRequests.WithLabelValues(metrics.OutcomeAPIError).Inc()
			s.logger.Error("CRM rejected lead", map[string]interface{}{
				"crmError":  apiErr.Code,
				"crmDetail": apiErr.Description,
				"status":    apiErr.StatusCode,
			})
			return nil, stderrors.NewUpstreamError(apiErr.Code, apiErr.Description, apiErr.Error())
		}
		metrics.CRMRequests.WithLabelValues(metrics.OutcomeTransport).Inc()
		s.logger.Error("CRM request failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, stderrors.NewUpstreamError("", "", err.Error())
	}

	metrics.CRMRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info("Lead created", map[string]interface{}{
		"leadId": leadID,
		"source": strings.TrimSpace(sub.FormSource),
	})

	return &Result{
		Success: true,
		LeadID:  leadID,
		Message: successMessage,
	}, nil
}

// BuildLead assembles the CRM payload from a validated submission. Values
// are HTML-escaped before they reach the CRM, where comments render as
// markup in the lead card.
func BuildLead(sub *FormSubmission) *bitrix.Lead {
	name := escape(strings.TrimSpace(sub.Name))
	phone := escape(sub.Phone)
	comment := escape(strings.TrimSpace(sub.Comments))
	source := strings.TrimSpace(sub.FormSource)
	if source == "" {
		source = methodUnknown
	}
	source = escape(source)
	objectType := escape(strings.TrimSpace(sub.ObjectType))
	propertyClass := escape(strings.TrimSpace(sub.PropertyClass))
	location := escape(strings.TrimSpace(sub.Location))

	method, ok := contactMethods[sub.PropertyType]
	if !ok {
		method = methodUnknown
	}

	var b strings.Builder
	b.WriteString("Способ связи: " + method + "\n")
	b.WriteString("Источник: " + source + "\n")
	b.WriteString("Комментарий: " + comment)
	if objectType != "" {
		b.WriteString("\nТип объекта: " + objectType)
	}
	if propertyClass != "" {
		b.WriteString("\nКласс недвижимости: " + propertyClass)
	}
	if location != "" {
		b.WriteString("\nМестоположение: " + location)
	}

	var phones []bitrix.Phone
	if phone != "" {
		phones = []bitrix.Phone{{Value: phone, ValueType: "MOBILE"}}
	}

	return &bitrix.Lead{
		Title:    "Новая заявка с сайта - " + source,
		Name:     name,
		Phone:    phones,
		Comments: b.String(),
	}
}

// escape converts &, <, >, double and single quotes to entities, using the
// &quot; and &#039; spellings the CRM side already stores.
var entityFixer = strings.NewReplacer("&#34;", "&quot;", "&#39;", "&#039;")

func escape(s string) string {
	return entityFixer.Replace(html.EscapeString(s))
}
