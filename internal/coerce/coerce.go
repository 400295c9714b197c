// Package coerce turns lenient LLM output into a strict JSON object.
//
// Parsing runs a fixed pipeline: strip code fences, cut the outermost balanced
// brace region, escape stray backslashes, drop trailing commas, then parse
// strictly. When that fails a Repairer is asked exactly once to rewrite the
// text and the pipeline runs again on its answer.
package coerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrJSONUnrecoverable is returned when the text is still not a JSON object after one repair attempt.
	ErrJSONUnrecoverable = errors.New("json unrecoverable")
	// ErrNoObject is returned by Parse when the text contains no brace region.
	ErrNoObject = errors.New("no json object found")
)

// RepairRequest carries everything the json_repair prompt needs.
type RepairRequest struct {
	SchemaHint string
	RawText    string
	Feature    string
}

// Repairer rewrites broken JSON, usually through a second LLM call.
type Repairer interface {
	Repair(ctx context.Context, req RepairRequest) (string, error)
}

// RepairFunc adapts a function to the Repairer interface.
type RepairFunc func(ctx context.Context, req RepairRequest) (string, error)

// Repair calls f.
func (f RepairFunc) Repair(ctx context.Context, req RepairRequest) (string, error) {
	return f(ctx, req)
}

// Options configures a Coerce call.
type Options struct {
	// Feature names the LLM feature whose output is being parsed.
	Feature string
	// SchemaHint describes the expected shape for the repairer.
	SchemaHint string
	// Repairer is optional; without it a parse failure is final.
	Repairer Repairer
}

// Coerce parses raw into an object, repairing it at most once.
func Coerce(ctx context.Context, raw string, opts Options) (map[string]any, error) {
	obj, err := Parse(raw)
	if err == nil {
		return obj, nil
	}
	slog.Debug("coerce.Coerce: strict parse failed", "feature", opts.Feature, "error", err, "rawLength", len(raw))

	if opts.Repairer == nil {
		return nil, fmt.Errorf("%w: %v", ErrJSONUnrecoverable, err)
	}

	repaired, repairErr := opts.Repairer.Repair(ctx, RepairRequest{
		SchemaHint: opts.SchemaHint,
		RawText:    raw,
		Feature:    opts.Feature,
	})
	if repairErr != nil {
		slog.Warn("coerce.Coerce: repair call failed", "feature", opts.Feature, "error", repairErr)
		return nil, fmt.Errorf("%w: repair failed: %v", ErrJSONUnrecoverable, repairErr)
	}

	obj, err = Parse(repaired)
	if err != nil {
		slog.Warn("coerce.Coerce: repaired output still invalid", "feature", opts.Feature, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrJSONUnrecoverable, err)
	}
	slog.Debug("coerce.Coerce: repaired output parsed", "feature", opts.Feature)
	return obj, nil
}

// Parse runs the textual repairs and a strict parse, without calling any repairer.
func Parse(raw string) (map[string]any, error) {
	text := stripFences(strings.TrimSpace(raw))
	region, err := braceRegion(text)
	if err != nil {
		return nil, err
	}
	region = removeTrailingCommas(escapeStrayBackslashes(region))

	var obj map[string]any
	if err := json.Unmarshal([]byte(region), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNoObject
	}
	return obj, nil
}

// Decode converts a coerced object into a typed value.
func Decode(obj map[string]any, v any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. ```json
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// braceRegion returns the outermost balanced {...} region, ignoring braces
// inside string literals. An unbalanced region runs to the last closing brace.
func braceRegion(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return s[start:], nil
	}
	return s[start : end+1], nil
}

// escapeStrayBackslashes doubles every backslash that does not start a legal
// JSON escape, which keeps LaTeX such as \cdot or \alpha intact.
func escapeStrayBackslashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) {
			switch next := s[i+1]; next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				b.WriteByte(c)
				b.WriteByte(next)
				i++
				continue
			case 'u':
				if i+6 <= len(s) && isHex4(s[i+2:i+6]) {
					b.WriteString(s[i : i+6])
					i += 5
					continue
				}
			}
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func isHex4(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// removeTrailingCommas drops commas that directly precede ] or } outside strings.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
