package guardrails

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// Check identifies a single guardrail check.
type Check string

const (
	CheckContains       Check = "contains"
	CheckCharacterCount Check = "character_count"
	CheckRegexMatch     Check = "regex_match"
	CheckGibberish      Check = "gibberish"
)

// Violation describes one failed check.
type Violation struct {
	Check   Check  `json:"check"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Check, v.Message)
}

var (
	patternCache   = map[string]*regexp.Regexp{}
	patternCacheMu sync.Mutex
)

func compilePattern(p string) (*regexp.Regexp, error) {
	patternCacheMu.Lock()
	defer patternCacheMu.Unlock()
	if re, ok := patternCache[p]; ok {
		return re, nil
	}
	re, err := regexp.Compile("(?is)" + p)
	if err != nil {
		return nil, err
	}
	patternCache[p] = re
	return re, nil
}

// Evaluate runs every configured check against text and returns the
// violations found. An empty result means the text passed.
func Evaluate(text string, d Directives) []Violation {
	var violations []Violation

	if len(d.RequiredPhrases) > 0 {
		lower := strings.ToLower(text)
		found := 0
		for _, phrase := range d.RequiredPhrases {
			if strings.Contains(lower, strings.ToLower(phrase)) {
				found++
			}
		}
		switch d.MatchMode {
		case MatchAll:
			if found < len(d.RequiredPhrases) {
				violations = append(violations, Violation{
					Check:   CheckContains,
					Message: fmt.Sprintf("found %d of %d required phrases", found, len(d.RequiredPhrases)),
				})
			}
		default:
			if found == 0 {
				violations = append(violations, Violation{
					Check:   CheckContains,
					Message: fmt.Sprintf("none of %v present", d.RequiredPhrases),
				})
			}
		}
	}

	n := utf8.RuneCountInString(text)
	if d.MinLength > 0 && n < d.MinLength {
		violations = append(violations, Violation{
			Check:   CheckCharacterCount,
			Message: fmt.Sprintf("length %d below minimum %d", n, d.MinLength),
		})
	}
	if d.MaxLength > 0 && n > d.MaxLength {
		violations = append(violations, Violation{
			Check:   CheckCharacterCount,
			Message: fmt.Sprintf("length %d above maximum %d", n, d.MaxLength),
		})
	}

	if d.Pattern != "" {
		re, err := compilePattern(d.Pattern)
		switch {
		case err != nil:
			violations = append(violations, Violation{Check: CheckRegexMatch, Message: err.Error()})
		case !re.MatchString(text):
			violations = append(violations, Violation{Check: CheckRegexMatch, Message: "pattern not matched"})
		}
	}

	if d.DetectGibberish && IsGibberish(text) {
		violations = append(violations, Violation{Check: CheckGibberish, Message: "text looks like gibberish"})
	}

	return violations
}
