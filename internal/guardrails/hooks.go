package guardrails

import (
	"encoding/json"
	"fmt"
)

// OnFail is the gateway action taken when a check fails.
type OnFail string

const (
	OnFailDeny  OnFail = "deny"
	OnFailRetry OnFail = "retry"
	OnFailLog   OnFail = "log"
)

// HookPosition selects whether a hook runs on the request or the response.
type HookPosition string

const (
	BeforeRequest HookPosition = "before_request_hooks"
	AfterRequest  HookPosition = "after_request_hooks"
)

type hookCheck struct {
	ID         string         `json:"id"`
	Parameters map[string]any `json:"parameters,omitempty"`
	OnFail     OnFail         `json:"on_fail"`
}

type hook struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Checks []hookCheck `json:"checks"`
}

// HookConfig renders d as a gateway guardrail configuration. Every check
// uses the same onFail action except character counting on the response,
// which only logs.
func HookConfig(id string, pos HookPosition, d Directives, onFail OnFail) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid directives: %w", err)
	}

	var checks []hookCheck
	if len(d.RequiredPhrases) > 0 {
		mode := d.MatchMode
		if mode == "" {
			mode = MatchAny
		}
		checks = append(checks, hookCheck{
			ID: "default.contains",
			Parameters: map[string]any{
				"required_phrases": d.RequiredPhrases,
				"match_type":       string(mode),
			},
			OnFail: onFail,
		})
	}
	if d.MinLength > 0 || d.MaxLength > 0 {
		countFail := onFail
		if pos == AfterRequest {
			countFail = OnFailLog
		}
		params := map[string]any{"min_length": d.MinLength}
		if d.MaxLength > 0 {
			params["max_length"] = d.MaxLength
		}
		checks = append(checks, hookCheck{ID: "default.characterCount", Parameters: params, OnFail: countFail})
	}
	if d.Pattern != "" {
		checks = append(checks, hookCheck{
			ID: "default.regexMatch",
			Parameters: map[string]any{
				"pattern":        d.Pattern,
				"match_type":     "contains",
				"case_sensitive": false,
			},
			OnFail: onFail,
		})
	}
	if d.DetectGibberish {
		checks = append(checks, hookCheck{ID: "default.detectGibberish", OnFail: onFail})
	}

	cfg := map[HookPosition][]hook{
		pos: {{Type: "guardrail", ID: id, Checks: checks}},
	}
	return json.Marshal(cfg)
}
