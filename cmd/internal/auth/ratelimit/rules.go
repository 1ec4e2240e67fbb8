package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint names.
const (
	EndpointLogin   = "login"
	EndpointRefresh = "refresh"
	EndpointLogout  = "logout"
)

// FailPolicy decides what happens when the limiter backend errors.
type FailPolicy string

const (
	// FailClosed rejects the request with 503.
	FailClosed FailPolicy = "closed"
	// FailOpen lets the request through and logs a warning.
	FailOpen FailPolicy = "open"
)

// Rule is the budget of one endpoint.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	OnFail FailPolicy
}

// Valid reports whether the rule can be enforced.
func (r Rule) Valid() bool {
	return r.Name != "" && r.Limit > 0 && r.Window >= time.Millisecond
}

// Rules maps endpoint names to rules.
type Rules map[string]Rule

// DefaultRules returns the built-in budgets.
func DefaultRules() Rules {
	return Rules{
		EndpointLogin:   {Name: EndpointLogin, Limit: 10, Window: time.Minute, OnFail: FailClosed},
		EndpointRefresh: {Name: EndpointRefresh, Limit: 30, Window: time.Minute, OnFail: FailOpen},
		EndpointLogout:  {Name: EndpointLogout, Limit: 20, Window: time.Minute, OnFail: FailOpen},
	}
}

// LoadRulesFile overlays rules from a YAML file onto DefaultRules:
//
//	login:
//	  limit: 5
//	  window: 1m
//	  on_fail: closed
func LoadRulesFile(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file map[string]struct {
		Limit  int        `yaml:"limit"`
		Window string     `yaml:"window"`
		OnFail FailPolicy `yaml:"on_fail"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("ratelimit: parse %s: %w", path, err)
	}

	rules := DefaultRules()
	for name, fr := range file {
		r, ok := rules[name]
		if !ok {
			r = Rule{Name: name, OnFail: FailOpen}
		}
		if fr.Limit != 0 {
			r.Limit = fr.Limit
		}
		if fr.Window != "" {
			d, err := time.ParseDuration(fr.Window)
			if err != nil {
				return nil, fmt.Errorf("ratelimit: %s.window: %w", name, err)
			}
			r.Window = d
		}
		if fr.OnFail != "" {
			r.OnFail = fr.OnFail
		}
		rules[name] = r
	}
	return rules, rules.Validate()
}

// ApplyEnv overrides budgets from SESSIOND_RATELIMIT_<ENDPOINT>, formatted
// as "<limit>/<window>", e.g. "10/1m".
func (rs Rules) ApplyEnv() error {
	for name, r := range rs {
		v := strings.TrimSpace(os.Getenv("SESSIOND_RATELIMIT_" + strings.ToUpper(name)))
		if v == "" {
			continue
		}
		limit, window, err := parseBudget(v)
		if err != nil {
			return fmt.Errorf("ratelimit: SESSIOND_RATELIMIT_%s: %w", strings.ToUpper(name), err)
		}
		r.Limit, r.Window = limit, window
		rs[name] = r
	}
	return rs.Validate()
}

// Validate checks every rule.
func (rs Rules) Validate() error {
	for name, r := range rs {
		if !r.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidRule, name)
		}
		if r.OnFail != FailClosed && r.OnFail != FailOpen {
			return fmt.Errorf("%w: %s: on_fail must be %q or %q", ErrInvalidRule, name, FailClosed, FailOpen)
		}
	}
	return nil
}

func parseBudget(s string) (int, time.Duration, error) {
	left, right, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("expected <limit>/<window>")
	}
	limit, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil || limit <= 0 {
		return 0, 0, fmt.Errorf("invalid limit %q", left)
	}
	window, err := time.ParseDuration(strings.TrimSpace(right))
	if err != nil || window <= 0 {
		return 0, 0, fmt.Errorf("invalid window %q", right)
	}
	return limit, window, nil
}
