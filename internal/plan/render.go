package plan

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderSummaryMarkdown builds a human-readable Markdown summary of a plan —
// tasks, their waves, and a risk verdict — for the `plan` and `validate` CLI
// commands to print. It returns the raw Markdown; callers that need HTML
// (e.g. a future web surface) can feed it through RenderHTML.
func RenderSummaryMarkdown(p Plan, waves [][]string, autoApprove bool, riskScore float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Plan: %s\n\n", p.Request)
	fmt.Fprintf(&b, "- Tasks: %d\n", len(p.Tasks))
	fmt.Fprintf(&b, "- Contracts: %d\n", len(p.Contracts))
	fmt.Fprintf(&b, "- Risk score: %.0f (%s)\n\n", riskScore, verdictLabel(autoApprove))

	for i, wave := range waves {
		fmt.Fprintf(&b, "## Wave %d\n\n", i+1)
		for _, id := range wave {
			t, ok := p.TaskByID(id)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- **%s** — %s (%d files, %d checks)\n", id, t.Description, len(t.FilesWrite), len(t.Verification))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func verdictLabel(autoApprove bool) string {
	if autoApprove {
		return "auto-approved"
	}
	return "requires human approval"
}

// RenderHTML converts Markdown (as produced by RenderSummaryMarkdown) to HTML
// via goldmark, for surfaces that cannot display raw Markdown directly.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render plan summary html: %w", err)
	}
	return buf.String(), nil
}
