package dto

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// recordTypes lists the clinical record kinds the engine stores.
var recordTypes = map[string]struct{}{
	"ANAMNESIS":      {},
	"ODONTOGRAM":     {},
	"PERIODONTOGRAM": {},
}

// RegisterValidations installs the custom binding rules on gin's validator
// engine. Call once at startup, before the router handles requests.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("recordtype", func(fl validator.FieldLevel) bool {
		_, known := recordTypes[fl.Field().String()]
		return known
	})
}
