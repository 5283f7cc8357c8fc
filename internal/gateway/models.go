// Package gateway implements the form-submission pipeline: rate limiting,
// CSRF verification, field validation, and the proxy to the CRM's
// lead-creation webhook.
package gateway

// FormSubmission is the transient request payload. Field names follow the
// wire contract of the site's forms: the CRM-bound fields are upper-case,
// the calculator context lower-case.
type FormSubmission struct {
	Name          string `form:"NAME"`
	Phone         string `form:"PHONE"`
	Comments      string `form:"COMMENTS"`
	PropertyType  string `form:"property_type"`
	FormSource    string `form:"form_source"`
	ObjectType    string `form:"object_type"`
	PropertyClass string `form:"property_class"`
	Location      string `form:"location"`
	CSRFToken     string `form:"csrf_token"`
}

// Result is the client-facing outcome of one submission.
type Result struct {
	Success bool   `json:"success"`
	LeadID  int64  `json:"lead_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// contactMethods maps the selected property type to the contact-method
// label embedded in the lead comment. Unknown values fall back to
// methodUnknown rather than failing the submission.
var contactMethods = map[string]string{
	"apartment": "WhatsApp",
	"office":    "Telegram",
	"house":     "Позвонить",
}

const (
	methodUnknown  = "Не указан"
	successMessage = "Заявка успешно отправлена"
)
