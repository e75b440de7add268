package exam

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

var (
	sessionStatusTag  = "sessionstatus"
	sessionStatusText = "status must be one of pending, in_progress or completed"
)

// InitValidators registers the exam validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(sessionStatusTag, sessionStatusValidation)
	core.RegisterCustomTranslation(validate, translator, sessionStatusTag, sessionStatusText)
}

func sessionStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).IsValid()
}
