// Package guardrails describes structural acceptance checks for generated text.
//
// The same Directives value is used in two places: it is rendered into a
// gateway hook configuration so the model provider can enforce it server-side,
// and it can be evaluated locally with Evaluate when no gateway is in front of
// the provider.
package guardrails

import (
	"fmt"
	"regexp"
)

// MatchMode controls how RequiredPhrases are matched.
type MatchMode string

const (
	// MatchAny passes when at least one phrase is present
	MatchAny MatchMode = "any"

	// MatchAll passes only when every phrase is present
	MatchAll MatchMode = "all"
)

// Directives enumerates the checks applied to a candidate text.
type Directives struct {
	RequiredPhrases []string  `json:"required_phrases,omitempty" koanf:"required_phrases"`
	MatchMode       MatchMode `json:"match_mode,omitempty" koanf:"match_mode"`
	MinLength       int       `json:"min_length,omitempty" koanf:"min_length"`
	MaxLength       int       `json:"max_length,omitempty" koanf:"max_length"`
	// Pattern is matched case-insensitively.
	Pattern         string `json:"pattern,omitempty" koanf:"pattern"`
	DetectGibberish bool   `json:"detect_gibberish,omitempty" koanf:"detect_gibberish"`
}

// Output pattern accepted by the solution gate.
const outputPattern = `.*(step|solve|answer|therefore|hence|thus|final|result|solution).*`

// Input pattern used by the question gate.
const inputPattern = `.*(equation|solve|derivative|integral|limit|matrix|probability|geometry|algebra|calculus|trigonometry|statistics|graph|function|find|calculate|determine|evaluate|area|perimeter|volume|radius|diameter|triangle|circle|rectangle|square|angle|pythagorean|theorem|sin|cos|tan|mathematics|math|formula|explain|prove|show|demonstrate).*`

// DefaultOutputDirectives returns the checks applied to formatted solutions.
func DefaultOutputDirectives() Directives {
	return Directives{
		RequiredPhrases: []string{"Step", "Solution", "Therefore", "Answer"},
		MatchMode:       MatchAny,
		MinLength:       100,
		MaxLength:       3000,
		Pattern:         outputPattern,
		DetectGibberish: true,
	}
}

// DefaultInputDirectives returns the checks applied to incoming questions.
func DefaultInputDirectives() Directives {
	return Directives{
		MinLength:       10,
		MaxLength:       1000,
		Pattern:         inputPattern,
		DetectGibberish: true,
	}
}

// Validate reports configuration mistakes such as an invalid pattern.
func (d Directives) Validate() error {
	if d.MinLength < 0 || d.MaxLength < 0 {
		return fmt.Errorf("length bounds must not be negative")
	}
	if d.MaxLength > 0 && d.MinLength > d.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", d.MinLength, d.MaxLength)
	}
	switch d.MatchMode {
	case "", MatchAny, MatchAll:
	default:
		return fmt.Errorf("unknown match_mode %q", d.MatchMode)
	}
	if d.Pattern != "" {
		if _, err := regexp.Compile("(?is)" + d.Pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	return nil
}
