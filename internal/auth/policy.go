package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

//go:embed common_passwords.txt
var commonPasswordsFile string

// Policy violation messages.
const (
	NumericPasswordError = "This password is entirely numeric."
	CommonPasswordError  = "This password is too common."
)

// PasswordPolicy rejects weak passwords at signup. It satisfies
// validation.PasswordChecker.
type PasswordPolicy struct {
	MinLength int
	// MaxSimilarity is the quick-ratio (0..1) at or above which a password
	// counts as too close to a user attribute.
	MaxSimilarity float64
	// Attributes maps attribute keys passed to Check to the words used in
	// the message, e.g. "email" → "email address".
	Attributes map[string]string

	common map[string]struct{}
}

// NewPasswordPolicy returns the default policy: at least 8 characters, not
// entirely numeric, not a common password, not too similar to the email.
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:     8,
		MaxSimilarity: 0.7,
		Attributes:    map[string]string{"email": "email address"},
		common:        parseCommonPasswords(commonPasswordsFile),
	}
}

func parseCommonPasswords(data string) map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}

// Check returns one message per violated rule, in a fixed order. attrs holds
// the user's own data the password must not resemble.
func (p *PasswordPolicy) Check(password string, attrs map[string]string) []string {
	var problems []string

	if msg := p.checkSimilarity(password, attrs); msg != "" {
		problems = append(problems, msg)
	}
	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if _, ok := p.common[strings.ToLower(strings.TrimSpace(password))]; ok {
		problems = append(problems, CommonPasswordError)
	}
	if isNumeric(password) {
		problems = append(problems, NumericPasswordError)
	}

	return problems
}

var nonWord = regexp.MustCompile(`\W+`)

func (p *PasswordPolicy) checkSimilarity(password string, attrs map[string]string) string {
	pw := strings.ToLower(password)
	for key, label := range p.Attributes {
		value := strings.ToLower(attrs[key])
		if value == "" {
			continue
		}
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || p.lengthRulesOut(pw, part) {
				continue
			}
			if quickRatio(pw, part) >= p.MaxSimilarity {
				return fmt.Sprintf("The password is too similar to the %s.", label)
			}
		}
	}
	return ""
}

// lengthRulesOut skips comparisons where the password is so much longer than
// the attribute that they can't reach MaxSimilarity.
func (p *PasswordPolicy) lengthRulesOut(password, value string) bool {
	pwLen := utf8.RuneCountInString(password)
	valLen := utf8.RuneCountInString(value)
	return pwLen >= 10*valLen && float64(valLen) < p.MaxSimilarity/2*float64(pwLen)
}

// quickRatio is an upper bound on how alike a and b are: twice the number of
// characters they have in common (as multisets) over their total length.
func quickRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	avail := make(map[rune]int)
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
