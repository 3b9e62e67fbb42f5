package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Field names shared by forms, services and templates.
const (
	FieldText                 = "text"
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirmation = "password_confirmation"
	FieldSharee               = "sharee"
)

// User-facing messages.
const (
	EmptyItemError         = "You can't save an empty list item"
	DuplicateItemError     = "You can't save a duplicate item"
	RequiredError          = "This field is required."
	InvalidEmailError      = "Enter a valid email address."
	DuplicateEmailError    = "User with this Email address already exists."
	PasswordMismatchError  = "This password doesn't match the one entered before."
	UnknownShareeError     = "This user doesn't have an account."
	SelfShareError         = "You already own this list."
	InvalidLoginError      = "The email address and password provided do not match any of our records."
	PasswordTooLongError   = "This password is too long. It must contain at most 72 bytes."
	MaxEmailLength         = 254

	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72
)

// Rule is one check on one field's value. Check returns true when the value
// passes. A failing rule with Stop set ends evaluation of that field, so a
// blank field reports only "required" and not also "bad format".
type Rule struct {
	Kind    Kind
	Check   func(value string) bool
	Message func(value string) string
	Stop    bool
}

// RuleSet maps field names to their rules, evaluated in slice order.
type RuleSet map[string][]Rule

// validate is safe for concurrent use and caches nothing per call.
var validate = validator.New()

// ItemRules applies to the "new item" and "new list" forms.
var ItemRules = RuleSet{
	FieldText: {requiredRule(EmptyItemError)},
}

// SignupRules applies to account creation. Uniqueness and the password policy
// need more than the raw value and are checked by Signup.
var SignupRules = RuleSet{
	FieldEmail: {
		requiredRule(RequiredError),
		{Kind: Format, Check: isEmail, Message: constant(InvalidEmailError)},
		{Kind: MaxLength, Check: maxRunes(MaxEmailLength), Message: tooLong(MaxEmailLength)},
	},
	FieldPassword: {
		requiredRule(RequiredError),
		{Kind: MaxLength, Check: maxBytes(MaxPasswordBytes), Message: constant(PasswordTooLongError)},
	},
	FieldPasswordConfirmation: {requiredRule(RequiredError)},
}

// LoginRules only insists that both boxes were filled in. Whether they match
// an account is the authentication service's business.
var LoginRules = RuleSet{
	FieldEmail:    {requiredRule(RequiredError)},
	FieldPassword: {requiredRule(RequiredError)},
}

// ShareRules applies to the "share this list" box.
var ShareRules = RuleSet{
	FieldSharee: {requiredRule(RequiredError)},
}

// Check runs every rule in rules against values and collects the problems.
// Fields absent from values are treated as empty strings.
func Check(rules RuleSet, values map[string]string) Errors {
	errs := New()
	for field, fieldRules := range rules {
		value := values[field]
		for _, r := range fieldRules {
			if r.Check(value) {
				continue
			}
			errs.Add(field, r.Kind, r.Message(value))
			if r.Stop {
				break
			}
		}
	}
	return errs
}

// Clean normalises raw form input the way every text field expects:
// surrounding whitespace is dropped.
func Clean(s string) string {
	return strings.TrimSpace(s)
}

// Item validates an item's text against the list's existing item texts.
func Item(text string, existing []string) Errors {
	errs := Check(ItemRules, map[string]string{FieldText: text})
	if !errs.OK() {
		return errs
	}
	for _, t := range existing {
		if t == text {
			errs.Add(FieldText, Duplicate, DuplicateItemError)
			break
		}
	}
	return errs
}

// PasswordChecker is the external password-policy collaborator. It returns
// one message per violated policy; attrs carries user attributes (such as the
// email) the password must not resemble.
type PasswordChecker interface {
	Check(password string, attrs map[string]string) []string
}

// SignupInput is everything the signup form submits plus the one fact about
// existing records that validation needs.
type SignupInput struct {
	Email                string
	Password             string
	PasswordConfirmation string
	EmailTaken           bool
}

// Signup validates a signup submission. Policy violations attach to the
// password field; a mismatched confirmation gets its own field and message.
func Signup(in SignupInput, policy PasswordChecker) Errors {
	errs := Check(SignupRules, map[string]string{
		FieldEmail:                in.Email,
		FieldPassword:             in.Password,
		FieldPasswordConfirmation: in.PasswordConfirmation,
	})

	if _, bad := errs[FieldEmail]; !bad && in.EmailTaken {
		errs.Add(FieldEmail, Duplicate, DuplicateEmailError)
	}

	if in.Password != "" && in.PasswordConfirmation != "" && in.Password != in.PasswordConfirmation {
		errs.Add(FieldPasswordConfirmation, Mismatch, PasswordMismatchError)
	}

	if in.Password != "" && policy != nil {
		for _, msg := range policy.Check(in.Password, map[string]string{FieldEmail: in.Email}) {
			errs.Add(FieldPassword, Policy, msg)
		}
	}

	return errs
}

func requiredRule(message string) Rule {
	return Rule{
		Kind:    Required,
		Check:   func(v string) bool { return v != "" },
		Message: constant(message),
		Stop:    true,
	}
}

func constant(message string) func(string) string {
	return func(string) string { return message }
}

func isEmail(v string) bool {
	return validate.Var(v, "email") == nil
}

func maxRunes(n int) func(string) bool {
	tag := fmt.Sprintf("max=%d", n)
	return func(v string) bool {
		return validate.Var(v, tag) == nil
	}
}

func maxBytes(n int) func(string) bool {
	return func(v string) bool { return len(v) <= n }
}

func tooLong(n int) func(string) string {
	return func(v string) string {
		return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", n, utf8.RuneCountInString(v))
	}
}
