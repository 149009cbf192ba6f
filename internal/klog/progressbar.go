package klog

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders an ASCII progress bar tracking how many of a wave's
// tasks have reached a terminal status.
type ProgressBar struct {
	current     int
	total       int
	width       int
	enableColor bool
	label       string
	mu          sync.RWMutex
}

// NewProgressBar creates a bar tracking progress toward total, with label
// prefixed to the rendered output (e.g. "wave 2").
func NewProgressBar(total, width int, enableColor bool, label string) *ProgressBar {
	if width < 1 {
		width = 20
	}
	return &ProgressBar{total: total, width: width, enableColor: enableColor, label: label}
}

// Update sets the number of tasks that have reached a terminal status.
func (pb *ProgressBar) Update(current int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current = current
}

// Increment advances progress by one completed task.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.current++
}

func (pb *ProgressBar) percentage() int {
	if pb.total == 0 {
		return 0
	}
	p := (pb.current * 100) / pb.total
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// Render returns the current bar as a single-line string.
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	perc := pb.percentage()
	filled := (perc * pb.width) / 100

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < pb.width; i++ {
		if i < filled {
			bar.WriteByte('=')
		} else {
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	prefix := pb.label
	if prefix != "" {
		prefix += " "
	}
	out := fmt.Sprintf("%s%s %d/%d (%d%%)", prefix, bar.String(), pb.current, pb.total, perc)

	if !pb.enableColor {
		return out
	}
	if perc >= 100 {
		return color.New(color.FgGreen).Sprint(out)
	}
	return color.New(color.FgCyan).Sprint(out)
}
