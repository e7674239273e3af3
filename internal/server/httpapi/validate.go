package httpapi

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Password policy: at least six characters from the allowed set, with at
// least one letter and one digit.
const passwordPolicyMessage = "Password must contain at least one letter, one number, and be at least 6 characters long."

const passwordTooLongMessage = "Password must be at most 72 characters long."

var passwordCharset = regexp.MustCompile(`^[A-Za-z0-9@$!%*?&#]{6,}$`)

func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !passwordCharset.MatchString(s) {
		return false
	}
	var letter, digit bool
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			letter = true
		}
	}
	return letter && digit
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// only fails on a duplicate tag name
	_ = v.RegisterValidation("password", validPassword)
	return v
}

var fieldLabels = map[string]string{
	"first_name":       "First name",
	"second_name":      "Second name",
	"username":         "Username",
	"email":            "Email",
	"password":         "Password",
	"confirm_password": "Password confirmation",
	"token":            "Token",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "email":
		return "Invalid email address format."
	case "password":
		return passwordPolicyMessage
	case "max":
		switch fe.Field() {
		case "email":
			return "Email must be less than 120 characters."
		case "password":
			return "Password must be at most 72 characters long."
		}
		return label + " must be between 1 and 80 characters."
	case "min":
		return label + " must be between 1 and 80 characters."
	}
	return label + " is invalid."
}

// validationErrors turns validator output into field messages. Only the
// first failing rule of each field is reported.
func validationErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": "Invalid request."}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}
