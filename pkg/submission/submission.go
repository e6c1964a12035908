// Package submission holds the form entry model and its input validation.
package submission

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Submission is one persisted form entry. It is never modified after
// creation.
type Submission struct {
	ID        string    `json:"_id" bson:"_id" yaml:"id"`
	Name      string    `json:"name" bson:"name" yaml:"name"`
	Email     string    `json:"email" bson:"email" yaml:"email"`
	Phone     string    `json:"phone" bson:"phone" yaml:"phone"`
	Message   string    `json:"message,omitempty" bson:"message,omitempty" yaml:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" yaml:"updatedAt"`
}

// Input is what a client sends on submit.
type Input struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,phone"`
	Message string `json:"message,omitempty" validate:"max=2000"`
}

// New builds a Submission from an already validated input.
func New(id string, in Input, now time.Time) Submission {
	return Submission{
		ID:        id,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Message:   in.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{8,20}$`)
	stripMarkup  = bluemonday.StrictPolicy()
	validate     = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// clean trims s and removes any markup from it.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(s)))
}

// Normalize returns a copy of the input with whitespace trimmed, markup
// stripped and the email lower-cased.
func (in Input) Normalize() Input {
	return Input{
		Name:    clean(in.Name),
		Email:   strings.ToLower(clean(in.Email)),
		Phone:   clean(in.Phone),
		Message: clean(in.Message),
	}
}
