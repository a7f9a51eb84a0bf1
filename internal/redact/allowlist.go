package redact

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist excludes matches from redaction.
type Allowlist struct {
	// Regexes are matched against the detected secret.
	Regexes []string `toml:"regexes"`
	// StopWords suppress findings whose secret contains any of them.
	StopWords []string `toml:"stopwords"`
}

// LoadAllowlist reads an allowlist file of the form
//
//	[allowlist]
//	regexes = ["^sk-test-"]
//	stopwords = ["example"]
//
// An empty path or a missing file yields nil without error.
func LoadAllowlist(path string) (*Allowlist, error) {
	if path == "" {
		return nil, nil
	}
	var doc struct {
		Allowlist Allowlist `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, pattern := range doc.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
		}
	}
	return &doc.Allowlist, nil
}
