// Package redact removes credentials from user-supplied text before it is
// logged, stored or published. Detection uses the Gitleaks default rule set
// plus a few fixed-prefix key formats.
package redact

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

var (
	// ErrInvalidRegex indicates an allowlist pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)

// Finding is one detected secret.
type Finding struct {
	RuleID string
	Line   int
	Secret string
}

// Redactor detects and masks secrets. Safe for concurrent use.
type Redactor struct {
	cfg       gitleaksConfig.Config
	allowed   []*regexp.Regexp
	stopWords []string
}

// New builds a Redactor from the Gitleaks default config plus allowlist,
// which may be nil.
func New(allowlist *Allowlist) (*Redactor, error) {
	base, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks config: %w", err)
	}
	r := &Redactor{cfg: base.Config}
	if allowlist != nil {
		if err := r.applyAllowlist(allowlist); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Detect returns the secrets found in content.
func (r *Redactor) Detect(content string) []Finding {
	if r == nil || content == "" {
		return nil
	}
	// detectors accumulate findings, so each scan gets its own
	found := detect.NewDetector(r.cfg).DetectString(content)
	out := make([]Finding, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, f := range found {
		if f.Secret == "" || seen[f.Secret] {
			continue
		}
		seen[f.Secret] = true
		out = append(out, Finding{RuleID: f.RuleID, Line: f.StartLine, Secret: f.Secret})
	}
	for _, f := range r.builtinFindings(content) {
		if seen[f.Secret] || r.allowedSecret(f.Secret) {
			continue
		}
		seen[f.Secret] = true
		out = append(out, f)
	}
	return out
}

func (r *Redactor) allowedSecret(secret string) bool {
	for _, re := range r.allowed {
		if re.MatchString(secret) {
			return true
		}
	}
	lower := strings.ToLower(secret)
	for _, w := range r.stopWords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// Redact replaces every detected secret with [REDACTED:<rule>]. A nil
// Redactor returns content unchanged.
func (r *Redactor) Redact(content string) string {
	findings := r.Detect(content)
	if len(findings) == 0 {
		return content
	}
	// longest first so a secret containing another is masked whole
	sort.SliceStable(findings, func(i, j int) bool {
		return len(findings[i].Secret) > len(findings[j].Secret)
	})
	for _, f := range findings {
		content = strings.ReplaceAll(content, f.Secret, Marker(f.RuleID))
	}
	return content
}

// Marker is the replacement text for a secret found by rule.
func Marker(rule string) string {
	return "[REDACTED:" + rule + "]"
}

func (r *Redactor) applyAllowlist(a *Allowlist) error {
	entry := &gitleaksConfig.Allowlist{Description: "mathrag allowlist"}
	for _, pattern := range a.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		entry.Regexes = append(entry.Regexes, (*gitleaksRegexp.Regexp)(re))
		r.allowed = append(r.allowed, re)
	}
	entry.StopWords = append(entry.StopWords, a.StopWords...)
	r.stopWords = append(r.stopWords, a.StopWords...)
	r.cfg.Allowlists = append(r.cfg.Allowlists, entry)
	return nil
}
