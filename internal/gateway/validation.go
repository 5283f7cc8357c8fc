package gateway

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// namePattern permits Cyrillic and Latin letters plus spaces,
	// hyphens and dots.
	namePattern   = regexp.MustCompile(`^[а-яА-ЯёЁa-zA-Z\s\-.]+$`)
	nonDigitChars = regexp.MustCompile(`\D`)
)

// Validate checks the submission field by field and returns human-readable
// messages in form order. Each field contributes at most one message, the
// first failing rule for that field.
func Validate(sub FormSubmission) []string {
	var msgs []string

	appendErr := func(err error) {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	name := strings.TrimSpace(sub.Name)
	appendErr(validation.Validate(name,
		validation.Required.Error("Имя обязательно для заполнения"),
		validation.RuneLength(2, 0).Error("Имя должно содержать минимум 2 символа"),
		validation.RuneLength(0, 100).Error("Имя слишком длинное (максимум 100 символов)"),
		validation.Match(namePattern).Error("Имя содержит недопустимые символы"),
	))

	// The phone is validated on its digits only, so formatting characters
	// like +7 (999) 111-22-33 pass through.
	if err := validation.Validate(sub.Phone,
		validation.Required.Error("Телефон обязателен для заполнения"),
	); err != nil {
		msgs = append(msgs, err.Error())
	} else {
		digits := nonDigitChars.ReplaceAllString(sub.Phone, "")
		appendErr(validation.Validate(digits,
			validation.Required.Error("Некорректный формат телефона"),
			validation.RuneLength(10, 0).Error("Некорректный формат телефона"),
			validation.RuneLength(0, 15).Error("Телефон слишком длинный"),
		))
	}

	appendErr(validation.Validate(strings.TrimSpace(sub.Comments),
		validation.RuneLength(0, 2000).Error("Комментарий слишком длинный (максимум 2000 символов)"),
	))

	appendErr(validation.Validate(strings.TrimSpace(sub.ObjectType),
		validation.RuneLength(0, 100).Error("Тип объекта слишком длинный"),
	))

	appendErr(validation.Validate(strings.TrimSpace(sub.PropertyClass),
		validation.RuneLength(0, 100).Error("Класс недвижимости слишком длинный"),
	))

	appendErr(validation.Validate(strings.TrimSpace(sub.Location),
		validation.RuneLength(0, 200).Error("Местоположение слишком длинное"),
	))

	appendErr(validation.Validate(strings.TrimSpace(sub.FormSource),
		validation.RuneLength(0, 100).Error("Источник формы слишком длинный"),
	))

	return msgs
}
