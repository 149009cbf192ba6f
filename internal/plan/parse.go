package plan

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format is the plan source encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Warning is a non-fatal observation surfaced alongside a successfully
// parsed Plan (e.g. "no tests among checks"). Warnings never block parsing.
type Warning struct {
	TaskID  string
	Message string
}

func (w Warning) String() string {
	if w.TaskID == "" {
		return w.Message
	}
	return fmt.Sprintf("task %s: %s", w.TaskID, w.Message)
}

// Parse decodes source in the given format, then runs Validate. On any hard
// validation error it returns a *kernelerr.PlanInvalidError with every
// failure collected, per spec: "surface all errors at once". Warnings are
// returned alongside a valid Plan for the caller to display.
func Parse(source []byte, format Format) (Plan, []Warning, error) {
	var p Plan

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(source, &p); err != nil {
			return Plan{}, nil, fmt.Errorf("parse yaml plan: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(source, &p); err != nil {
			return Plan{}, nil, fmt.Errorf("parse json plan: %w", err)
		}
	default:
		return Plan{}, nil, fmt.Errorf("unknown plan format %q", format)
	}

	warnings, err := Validate(p)
	if err != nil {
		return Plan{}, nil, err
	}
	return p, warnings, nil
}

// Emit serializes a Plan back to its source form. Parse(Emit(p)) == p for any
// valid Plan — the round-trip law spec.md's testable properties require.
func Emit(p Plan, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		out, err := yaml.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("emit yaml plan: %w", err)
		}
		return out, nil
	case FormatJSON:
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("emit json plan: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown plan format %q", format)
	}
}
