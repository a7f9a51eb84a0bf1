package redact

import (
	"regexp"
	"strings"
)

// rule is a self-identifying credential format checked alongside the
// Gitleaks rule set, so keys this service handles are always caught.
type rule struct {
	id      string
	pattern *regexp.Regexp
}

var builtinRules = []rule{
	{id: "github-pat", pattern: regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
	{id: "github-oauth", pattern: regexp.MustCompile(`gho_[A-Za-z0-9]{36}`)},
	{id: "openai-api-key", pattern: regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9_\-]{20,}`)},
	{id: "groq-api-key", pattern: regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`)},
	{id: "tavily-api-key", pattern: regexp.MustCompile(`tvly-[A-Za-z0-9_\-]{16,}`)},
}

func (r *Redactor) builtinFindings(content string) []Finding {
	var out []Finding
	for _, rl := range builtinRules {
		for _, m := range rl.pattern.FindAllStringIndex(content, -1) {
			out = append(out, Finding{
				RuleID: rl.id,
				Line:   lineOf(content, m[0]),
				Secret: content[m[0]:m[1]],
			})
		}
	}
	return out
}

func lineOf(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}
