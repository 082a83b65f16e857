package models

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"shortly/internal/service"
)

// RegisterValidators adds the custom tags used by request models to gin's validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("models.RegisterValidators: unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("shortcode", validateShortCode)
}

func validateShortCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == "" || service.ValidateShortCode(code) == nil
}
