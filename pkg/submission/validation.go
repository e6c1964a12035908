package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldOrder is the order messages are reported in.
var fieldOrder = []string{"Name", "Email", "Phone", "Message"}

// messages holds the user-facing message per field and failed rule.
var messages = map[string]map[string]string{
	"Name": {
		"required": "الإسم و اللقب مطلوب",
		"max":      "الإسم و اللقب طويل جدا",
	},
	"Email": {
		"required": "البريد الإلكتروني مطلوب",
		"email":    "البريد الإلكتروني غير صالح",
		"max":      "البريد الإلكتروني طويل جدا",
	},
	"Phone": {
		"required": "رقم الهاتف مطلوب",
		"phone":    "رقم الهاتف غير صالح",
	},
	"Message": {
		"max": "الرسالة طويلة جدا",
	},
}

// ValidationError lists what is wrong with an Input, one message per
// invalid field.
type ValidationError struct {
	// Fields maps the JSON field name to its message.
	Fields map[string]string
	// Messages holds the same messages in form order.
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", strings.Join(e.Messages, "; "))
}

// Validate checks the input against the form rules. It returns nil or a
// *ValidationError.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate submission: %w", err)
	}

	byField := make(map[string]validator.FieldError, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := byField[fe.StructField()]; !seen {
			byField[fe.StructField()] = fe
		}
	}

	verr := &ValidationError{Fields: make(map[string]string, len(byField))}
	for _, field := range fieldOrder {
		fe, ok := byField[field]
		if !ok {
			continue
		}
		msg, ok := messages[field][fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", strings.ToLower(field))
		}
		verr.Fields[strings.ToLower(field)] = msg
		verr.Messages = append(verr.Messages, msg)
	}

	return verr
}
