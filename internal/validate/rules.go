package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Violation is one failed validation check.
type Violation struct {
	// Field is the header or body field that failed, or "request" for
	// request-level checks.
	Field string `json:"field"`

	// Rule is the check that failed.
	Rule string `json:"rule"`

	// Message describes the failure.
	Message string `json:"message"`
}

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,18}$`)
	postalPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{2,9}$`)
)

// ApplyRules checks a field value against a pipe-separated rule string
// such as "min:3|max:64|numeric". Unknown rules are reported as
// violations so configuration typos surface instead of silently
// passing.
func ApplyRules(field, value, rules string) []Violation {
	var violations []Violation

	for _, rule := range strings.Split(rules, "|") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}

		if v := applyRule(field, value, rule); v != nil {
			violations = append(violations, *v)
		}
	}

	return violations
}

func applyRule(field, value, rule string) *Violation {
	name, arg := rule, ""
	if i := strings.Index(rule, ":"); i >= 0 {
		name, arg = rule[:i], rule[i+1:]
	}

	switch name {
	case "min":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return &Violation{Field: field, Rule: rule, Message: "invalid rule argument"}
		}
		if len(value) < n {
			return &Violation{Field: field, Rule: rule,
				Message: fmt.Sprintf("must be at least %d characters", n)}
		}
	case "max":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return &Violation{Field: field, Rule: rule, Message: "invalid rule argument"}
		}
		if len(value) > n {
			return &Violation{Field: field, Rule: rule,
				Message: fmt.Sprintf("must be at most %d characters", n)}
		}
	case "regex":
		pattern, err := regexp.Compile(arg)
		if err != nil {
			return &Violation{Field: field, Rule: rule, Message: "invalid rule pattern"}
		}
		if !pattern.MatchString(value) {
			return &Violation{Field: field, Rule: rule, Message: "does not match required pattern"}
		}
	case "in":
		for _, allowed := range strings.Split(arg, ",") {
			if value == strings.TrimSpace(allowed) {
				return nil
			}
		}
		return &Violation{Field: field, Rule: rule,
			Message: fmt.Sprintf("must be one of: %s", arg)}
	case "numeric":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return &Violation{Field: field, Rule: rule, Message: "must be numeric"}
		}
	case "email":
		if !emailPattern.MatchString(value) {
			return &Violation{Field: field, Rule: rule, Message: "must be a valid email address"}
		}
	case "phone":
		if !phonePattern.MatchString(value) {
			return &Violation{Field: field, Rule: rule, Message: "must be a valid phone number"}
		}
	case "postal_code":
		if !postalPattern.MatchString(value) {
			return &Violation{Field: field, Rule: rule, Message: "must be a valid postal code"}
		}
	default:
		return &Violation{Field: field, Rule: rule, Message: "unknown validation rule"}
	}

	return nil
}
