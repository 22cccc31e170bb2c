package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func Init() {
	validate = validator.New()
	// Standalone validation reads the same tags gin binding does, so request
	// structs validate identically whether they arrive through ShouldBindJSON
	// or a raw-payload path.
	validate.SetTagName("binding")

	registerCustomValidations(validate)

	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidations(engine)
	}
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("plan_code", validatePlanCode)
	v.RegisterValidation("payment_service", validatePaymentService)
}

func Validate(s interface{}) error {
	if validate == nil {
		Init()
	}
	return validate.Struct(s)
}

// Plan codes are lowercase identifiers like "basic", "premium-4k".
func validatePlanCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	matched, _ := regexp.MatchString(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`, code)
	return matched
}

// Payment-service hints are free-form but bounded; an unrecognized hint falls
// back to the default gateway downstream, so only shape is validated here.
func validatePaymentService(fl validator.FieldLevel) bool {
	hint := fl.Field().String()
	if hint == "" {
		return true
	}
	matched, _ := regexp.MatchString(`^[a-z][a-z0-9_-]{0,31}$`, hint)
	return matched
}

func ValidateEmail(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}

func ValidatePassword(password string) (bool, string) {
	if len(password) < 6 {
		return false, "password must be at least 6 characters long"
	}

	return true, ""
}

func TrimSpaces(s string) string {
	return strings.TrimSpace(s)
}

func ValidateURL(url string) bool {
	urlRegex := regexp.MustCompile(`^https?://[a-zA-Z0-9\-\.]+(\:[0-9]+)?(/.*)?$`)
	return urlRegex.MatchString(url)
}
