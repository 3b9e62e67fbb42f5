// Package form carries submitted values and their validation errors from a
// handler into a template, and holds the rendering hints for each field.
package form

import (
	"net/url"

	"github.com/sakif/todolists/internal/validation"
)

// Placeholders maps a field name to the placeholder text of its input box.
var Placeholders = map[string]string{
	validation.FieldText:                 "Enter a to-do item",
	validation.FieldSharee:               "your-friend@example.com",
	validation.FieldEmail:                "Email address",
	validation.FieldPassword:             "Password",
	validation.FieldPasswordConfirmation: "Password confirmation",
}

// Form is the state of one HTML form: what the user typed and what was wrong
// with it. A zero Form renders as an empty, error-free form.
type Form struct {
	values map[string]string
	Errors validation.Errors
}

// New returns an empty form.
func New() *Form {
	return &Form{values: map[string]string{}, Errors: validation.New()}
}

// FromValues builds a form pre-filled with values (typically r.PostForm).
// Only the first value of each key is kept.
func FromValues(values url.Values) *Form {
	f := New()
	for key, vs := range values {
		if len(vs) > 0 {
			f.values[key] = vs[0]
		}
	}
	return f
}

// Set overrides the value shown for field.
func (f *Form) Set(field, value string) *Form {
	f.values[field] = value
	return f
}

// WithErrors attaches validation errors to the form.
func (f *Form) WithErrors(errs validation.Errors) *Form {
	f.Errors = errs
	return f
}

// Value returns what the user submitted for field. Password fields are never
// echoed back.
func (f *Form) Value(field string) string {
	if f == nil {
		return ""
	}
	switch field {
	case validation.FieldPassword, validation.FieldPasswordConfirmation:
		return ""
	}
	return f.values[field]
}

// Placeholder returns the rendering hint for field.
func (f *Form) Placeholder(field string) string {
	return Placeholders[field]
}

// FieldErrors returns the error messages for field, in order.
func (f *Form) FieldErrors(field string) []string {
	if f == nil || f.Errors == nil {
		return nil
	}
	return f.Errors.Messages(field)
}

// HasErrors reports whether field has any error.
func (f *Form) HasErrors(field string) bool {
	return len(f.FieldErrors(field)) > 0
}

// NonFieldErrors returns errors attached to the form as a whole.
func (f *Form) NonFieldErrors() []string {
	return f.FieldErrors(validation.NonField)
}

// Valid reports whether the form carries no errors.
func (f *Form) Valid() bool {
	return f == nil || f.Errors == nil || f.Errors.OK()
}
