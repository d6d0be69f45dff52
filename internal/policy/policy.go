// Package policy decides which callers may reach which routes.
package policy

import (
	"strings"

	"live-quiz-service/internal/auth"
)

// Rule grants access to paths matching Pattern. A pattern ending in "/**"
// matches the prefix and everything below it; other patterns match exactly.
// An empty Roles list makes the route public.
type Rule struct {
	Pattern string
	Roles   []string
}

// Routes is the service's route table. First match wins; unmatched paths are denied.
var Routes = []Rule{
	{Pattern: "/healthz"},
	{Pattern: "/api/public/**"},
	{Pattern: "/api/auth/**"},
	{Pattern: "/api/player/**"},
	{Pattern: "/api/quizmaster/**", Roles: []string{auth.RoleQuizmaster, auth.RoleAdmin}},
	{Pattern: "/api/admin/**", Roles: []string{auth.RoleAdmin}},
}

type Decision int

const (
	Deny Decision = iota
	Allow
	Unauthenticated
)

type Checker struct {
	rules []Rule
}

func NewChecker(rules []Rule) *Checker {
	if rules == nil {
		rules = Routes
	}
	return &Checker{rules: rules}
}

// Check evaluates path for an optional principal.
func (c *Checker) Check(path string, principal *auth.Principal) Decision {
	for _, rule := range c.rules {
		if !matchPath(rule.Pattern, path) {
			continue
		}
		if len(rule.Roles) == 0 {
			return Allow
		}
		if principal == nil {
			return Unauthenticated
		}
		if principal.HasRole(rule.Roles...) {
			return Allow
		}
		return Deny
	}
	return Deny
}

func matchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return false
}
