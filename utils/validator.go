package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a request struct and returns one human-readable
// message per failed field, or nil when the struct is valid.
func ValidateStruct(s interface{}) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var details []string
	for _, err := range err.(validator.ValidationErrors) {
		field := lowerFirst(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			details = append(details, field+" is required")
		case "required_if":
			details = append(details, field+" is required for residential properties")
		case "email":
			details = append(details, field+" must be a valid email")
		case "min":
			if err.Kind().String() == "string" {
				details = append(details, field+" must be at least "+param+" characters")
			} else {
				details = append(details, field+" must be at least "+param)
			}
		case "max":
			details = append(details, field+" must be at most "+param+" characters")
		case "oneof":
			details = append(details, field+" must be one of: "+strings.ReplaceAll(param, " ", ", "))
		case "gtefield":
			details = append(details, field+" must be greater than or equal to "+lowerFirst(param))
		default:
			details = append(details, field+" is invalid")
		}
	}

	return details
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
