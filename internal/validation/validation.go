// Package validation checks user input before anything is written.
//
// Validation here is a pure function of the submitted values (plus whatever
// facts about existing records the caller looked up beforehand, such as "is
// this email taken?"). It never panics and never touches storage. The result
// is an Errors value: a map from field name to the ordered problems found for
// that field. An empty Errors means the submission may be saved.
//
// Rules are declared per entity in tables (see rules.go) instead of being
// spread across form types, so the same table drives the HTML forms, the
// services and the tests.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sakif/todolists/internal/apperror"
)

// NonField is the key used for errors that belong to the form as a whole,
// such as a failed login.
const NonField = "__all__"

// Kind classifies a validation problem so callers can branch on it without
// comparing messages.
type Kind string

const (
	Required    Kind = "required"
	Duplicate   Kind = "duplicate"
	Format      Kind = "format"
	MaxLength   Kind = "max_length"
	Policy      Kind = "policy"
	Mismatch    Kind = "mismatch"
	Unknown     Kind = "not_found"
	Credentials Kind = "credentials"
	Invalid     Kind = "invalid"
)

// Problem is one failed rule on one field.
type Problem struct {
	Kind    Kind
	Message string
}

// Errors maps a field name to the problems found for it, in the order the
// rules ran. The zero value is usable for reading; use New or make before Add.
type Errors map[string][]Problem

// New returns an empty Errors ready for Add.
func New() Errors {
	return make(Errors)
}

// Add records a problem on field.
func (e Errors) Add(field string, kind Kind, message string) {
	e[field] = append(e[field], Problem{Kind: kind, Message: message})
}

// Merge appends every problem in other to e.
func (e Errors) Merge(other Errors) {
	for field, problems := range other {
		e[field] = append(e[field], problems...)
	}
}

// OK reports whether no problems were recorded.
func (e Errors) OK() bool {
	for _, problems := range e {
		if len(problems) > 0 {
			return false
		}
	}
	return true
}

// Has reports whether field has a problem of the given kind.
func (e Errors) Has(field string, kind Kind) bool {
	for _, p := range e[field] {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

// Messages returns the messages recorded for field, in order.
func (e Errors) Messages(field string) []string {
	problems := e[field]
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Message
	}
	return msgs
}

// Fields returns the names of fields with at least one problem, sorted.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for field, problems := range e {
		if len(problems) > 0 {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

// Err returns nil when e is OK and a *Failure carrying e otherwise.
func (e Errors) Err() error {
	if e.OK() {
		return nil
	}
	return &Failure{Errors: e}
}

// ErrCausedBy is like Err but the failure also unwraps to cause, so a failed
// login is both a validation failure and apperror.ErrUnauthenticated.
func (e Errors) ErrCausedBy(cause error) error {
	if e.OK() {
		return nil
	}
	return &Failure{Errors: e, Cause: cause}
}

// Failure is the error form of a non-empty Errors. It unwraps to
// apperror.ErrValidation (and to Cause, when set) so the handler layer can
// treat every validation failure the same way.
type Failure struct {
	Errors Errors
	Cause  error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, field := range f.Errors.Fields() {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", field, strings.Join(f.Errors.Messages(field), ", "))
	}
	return b.String()
}

func (f *Failure) Unwrap() []error {
	if f.Cause == nil {
		return []error{apperror.ErrValidation}
	}
	return []error{apperror.ErrValidation, f.Cause}
}

// Single builds a one-problem failure. Services use it for checks that need
// storage lookups (duplicate item, unknown sharee) after the pure rules pass.
func Single(field string, kind Kind, message string) error {
	e := New()
	e.Add(field, kind, message)
	return e.Err()
}

// FromError extracts field errors from err. It understands *Failure and a
// validation-flavoured *apperror.AppError; anything else returns false.
func FromError(err error) (Errors, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Errors, true
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
		field := appErr.Field
		if field == "" {
			field = NonField
		}
		e := New()
		e.Add(field, Invalid, appErr.Message)
		return e, true
	}
	return nil, false
}
