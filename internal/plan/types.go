// Package plan defines the declarative Plan/Task/Contract/Check/Intent model
// and parses/validates it from YAML or JSON. A Plan is immutable once parsed:
// every downstream component (graph, conflict, risk, kernel) treats it as a
// read-only value.
package plan

import "github.com/taskmesh/orchestrator/internal/taskid"

// CheckType enumerates the verification command categories. Tagged sum type
// instead of a bare string, per the redesign note on schemaless dicts.
type CheckType string

const (
	CheckTest      CheckType = "test"
	CheckLint      CheckType = "lint"
	CheckTypecheck CheckType = "typecheck"
	CheckCustom    CheckType = "custom"
)

// DefaultCheckTimeoutSeconds is used when a Check omits timeout.
const DefaultCheckTimeoutSeconds = 300

// MaxCheckTimeoutSeconds is the hard cap; any declared timeout above it is
// silently clamped down, never rejected.
const MaxCheckTimeoutSeconds = 600

// Check is one verification command a task must pass.
type Check struct {
	Command  string    `yaml:"command" json:"command"`
	Type     CheckType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Timeout  int       `yaml:"timeout" json:"timeout"`
}

// EffectiveTimeout applies the default-then-cap rule.
func (c Check) EffectiveTimeout() int {
	t := c.Timeout
	if t <= 0 {
		t = DefaultCheckTimeoutSeconds
	}
	if t > MaxCheckTimeoutSeconds {
		t = MaxCheckTimeoutSeconds
	}
	return t
}

// Intent is one structured edit a task wants applied to a hot file. Parameters
// is deliberately opaque (map[string]any): its shape is action-specific and
// interpreted only by the Adapter that owns that action.
type Intent struct {
	File       string         `yaml:"file" json:"file"`
	Action     string         `yaml:"action" json:"action"`
	Parameters map[string]any `yaml:"intent" json:"intent"`
}

// DepsRequired lists runtime/dev package additions a task introduces.
type DepsRequired struct {
	Runtime []string `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Dev     []string `yaml:"dev,omitempty" json:"dev,omitempty"`
}

// Task is the unit of work executed by one worker in one worktree.
type Task struct {
	ID                 string       `yaml:"id" json:"id"`
	Description        string       `yaml:"description" json:"description"`
	FilesWrite         []string     `yaml:"files_write" json:"files_write"`
	FilesRead          []string     `yaml:"files_read,omitempty" json:"files_read,omitempty"`
	FilesAppend        []string     `yaml:"files_append,omitempty" json:"files_append,omitempty"`
	ResourcesWrite     []string     `yaml:"resources_write,omitempty" json:"resources_write,omitempty"`
	ResourcesRead      []string     `yaml:"resources_read,omitempty" json:"resources_read,omitempty"`
	DependsOn          []string     `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Verification       []Check      `yaml:"verification" json:"verification"`
	PatchIntents       []Intent     `yaml:"patch_intents,omitempty" json:"patch_intents,omitempty"`
	DepsRequired       DepsRequired `yaml:"deps_required,omitempty" json:"deps_required,omitempty"`
	AllowLargeChanges  bool         `yaml:"allow_large_changes,omitempty" json:"allow_large_changes,omitempty"`
}

// TaskID parses the task's identity through the safe-id trust boundary. Call
// sites that have already validated the plan may ignore the error.
func (t Task) TaskID() (taskid.ID, error) {
	return taskid.Parse(t.ID)
}

// HasTestCheck reports whether any verification entry is of type "test",
// fed into the risk scorer's "no tests" factor.
func (t Task) HasTestCheck() bool {
	for _, c := range t.Verification {
		if c.Type == CheckTest {
			return true
		}
	}
	return false
}

// Contract describes a shared interface file multiple tasks consume.
type Contract struct {
	Name      string   `yaml:"name" json:"name"`
	Version   string   `yaml:"version" json:"version"`
	FilePath  string   `yaml:"file_path" json:"file_path"`
	Methods   []string `yaml:"methods,omitempty" json:"methods,omitempty"`
	CreatedAt string   `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	Consumers []string `yaml:"consumers,omitempty" json:"consumers,omitempty"`
}

// Plan is the declarative description of all tasks and contracts for one
// user request. Immutable after Parse returns it successfully.
type Plan struct {
	Request   string     `yaml:"request" json:"request"`
	Tasks     []Task     `yaml:"tasks" json:"tasks"`
	Contracts []Contract `yaml:"contracts,omitempty" json:"contracts,omitempty"`
}

// TaskByID returns the task with the given id and whether it was found.
func (p Plan) TaskByID(id string) (Task, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// TotalFiles sums files_write across all tasks, used by the risk scorer.
func (p Plan) TotalFiles() int {
	n := 0
	for _, t := range p.Tasks {
		n += len(t.FilesWrite)
	}
	return n
}

// TotalPatchIntents sums patch_intents across all tasks.
func (p Plan) TotalPatchIntents() int {
	n := 0
	for _, t := range p.Tasks {
		n += len(t.PatchIntents)
	}
	return n
}
