// Package validate is the boundary to the drawing-instruction checker.
// Accepted payloads go to the ledger unchanged; rejections carry
// human-readable errors that reach the submitter verbatim.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

const DefaultMaxPayloadBytes = 256 * 1024

// Result is the validator verdict for one payload.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type Validator interface {
	Validate(payload string) Result
}

// Func adapts a plain function to Validator.
type Func func(payload string) Result

func (f Func) Validate(payload string) Result {
	return f(payload)
}

var callExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s*\(.*\)\s*;?$`)

// Structural checks shape only: every non-blank, non-comment line must be
// one call expression such as fr(10,10,20,20).
type Structural struct {
	MaxPayloadBytes int
	MaxErrors       int
}

func NewStructural(maxPayloadBytes int) Structural {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return Structural{MaxPayloadBytes: maxPayloadBytes, MaxErrors: 20}
}

func (s Structural) Validate(payload string) Result {
	if strings.TrimSpace(payload) == "" {
		return Result{Errors: []string{"commands must not be empty"}}
	}
	if s.MaxPayloadBytes > 0 && len(payload) > s.MaxPayloadBytes {
		return Result{Errors: []string{
			fmt.Sprintf("commands exceed %d bytes (got %d)", s.MaxPayloadBytes, len(payload)),
		}}
	}

	var errs []string
	for i, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if !callExpr.MatchString(line) {
			errs = append(errs, fmt.Sprintf("line %d: expected a call like name(args), got %q", i+1, line))
		} else if !balanced(line) {
			errs = append(errs, fmt.Sprintf("line %d: unbalanced parentheses in %q", i+1, line))
		}
		if s.MaxErrors > 0 && len(errs) >= s.MaxErrors {
			errs = append(errs, "too many errors; stopping")
			break
		}
	}
	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{Valid: true}
}

func balanced(line string) bool {
	depth := 0
	inQuote := rune(0)
	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '"' || r == '\'':
			inQuote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && inQuote == 0
}
