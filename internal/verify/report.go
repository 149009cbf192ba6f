package verify

import (
	"fmt"
	"sort"
	"strings"
)

// Summary groups a Result's findings by category for human-readable display,
// the shape original_source's verification/boundaries.py:get_boundary_summary
// produces for its CLI report — grouped by violation kind rather than a flat
// list, since a task with 20 undeclared-file violations reads very
// differently from one with 20 distinct reasons.
type Summary struct {
	ByReason  map[string][]string // reason category -> affected paths
	Commands  []CheckResult
	EnvIssue  string
	Contracts []ContractViolation
}

// reasonCategory collapses a violation's free-form reason into a fixed
// bucket name for grouping; unrecognized reasons keep their own bucket.
func reasonCategory(reason string) string {
	switch {
	case strings.Contains(reason, "not declared"):
		return "undeclared_write"
	case strings.Contains(reason, "forbidden pattern"):
		return "forbidden_path"
	case strings.Contains(reason, "lockfile"):
		return "lockfile_write"
	case strings.Contains(reason, "churn threshold"):
		return "excess_churn"
	case strings.Contains(reason, "formatting-only"):
		return "formatting_only"
	default:
		return reason
	}
}

// Summarize produces the grouped report for a Result.
func Summarize(r Result) Summary {
	byReason := make(map[string][]string)
	for _, v := range r.Boundary.Violations {
		cat := reasonCategory(v.Reason)
		byReason[cat] = append(byReason[cat], v.Path)
	}
	return Summary{
		ByReason:  byReason,
		Commands:  r.Commands.Results,
		EnvIssue:  r.EnvReason,
		Contracts: r.Contracts,
	}
}

// String renders the summary as a plain-text block.
func (s Summary) String() string {
	var sb strings.Builder
	if len(s.ByReason) == 0 {
		sb.WriteString("boundary check: passed\n")
	} else {
		categories := make([]string, 0, len(s.ByReason))
		for cat := range s.ByReason {
			categories = append(categories, cat)
		}
		sort.Strings(categories)
		for _, cat := range categories {
			paths := s.ByReason[cat]
			sort.Strings(paths)
			sb.WriteString(fmt.Sprintf("%s (%d):\n", cat, len(paths)))
			for _, p := range paths {
				sb.WriteString("  - " + p + "\n")
			}
		}
	}
	for _, c := range s.Commands {
		if !c.Passed {
			sb.WriteString(fmt.Sprintf("check failed: %s (exit %d)\n", c.Command, c.ExitCode))
		}
	}
	if s.EnvIssue != "" {
		sb.WriteString("environment: " + s.EnvIssue + "\n")
	}
	for _, c := range s.Contracts {
		sb.WriteString(fmt.Sprintf("contract %s: %s\n", c.Name, c.Reason))
	}
	return sb.String()
}
