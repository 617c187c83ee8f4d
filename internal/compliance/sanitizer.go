package compliance

import (
	"regexp"
	"strings"
)

// substitution rewrites one forbidden pattern into compliant phrasing.
type substitution struct {
	pattern *regexp.Regexp
	replace string
}

// Phrase rules run before the word rules so multi-word idioms are rewritten
// whole instead of being mangled by the generic "will" rule.
var phraseRules = []substitution{
	{regexp.MustCompile(`(?i)\bfunds will be stolen\b`), "funds could be moved"},
	{regexp.MustCompile(`(?i)\byou will lose\b`), "you could lose"},
}

// willPattern matches "will" and "will not" in one pass. "will not" is
// permitted and must be kept intact.
var willPattern = regexp.MustCompile(`(?i)\bwill(\s+not)?\b`)

var wordRules = []substitution{
	{regexp.MustCompile(`(?i)\bguaranteed?\b`), "likely"},
	{regexp.MustCompile(`(?i)\bdefinitely\b`), "may"},
	{regexp.MustCompile(`(?i)\bscam\b`), "high-risk"},
	{regexp.MustCompile(`(?i)\bmalicious\b`), "potentially harmful"},
	{regexp.MustCompile(`(?i)\bdrain\b`), "move"},
}

// Sanitize rewrites forbidden absolute-certainty language into bounded
// phrasing. Sanitizing already-sanitized text changes nothing.
func Sanitize(s string) string {
	for _, sub := range phraseRules {
		s = sub.pattern.ReplaceAllString(s, sub.replace)
	}
	s = willPattern.ReplaceAllStringFunc(s, func(m string) string {
		if strings.Contains(strings.ToLower(m), "not") {
			return m
		}
		return "may"
	})
	for _, sub := range wordRules {
		s = sub.pattern.ReplaceAllString(s, sub.replace)
	}
	return s
}

// ContainsForbidden reports whether any forbidden pattern survives in s.
// It must never return true for output of Sanitize; it exists for tests and
// audit tooling.
func ContainsForbidden(s string) bool {
	for _, sub := range phraseRules {
		if sub.pattern.MatchString(s) {
			return true
		}
	}
	for _, m := range willPattern.FindAllString(s, -1) {
		if !strings.Contains(strings.ToLower(m), "not") {
			return true
		}
	}
	for _, sub := range wordRules {
		if sub.pattern.MatchString(s) {
			return true
		}
	}
	return false
}
