package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
)

// versionHeaderPattern matches a contract file's `Version: <value>` header
// line, language-agnostic since contract files may be Python, Go, or any
// other adapter-generated interface source.
var versionHeaderPattern = regexp.MustCompile(`(?m)^\s*#?\s*Version:\s*(\S+)\s*$`)

// ContractViolation is one Step D finding.
type ContractViolation struct {
	Name   string
	Reason string
}

// CheckContracts validates every contract a task claims to use: the
// contract must exist in the plan, its file must parse, and its Version
// header must match what the task recorded using it.
func CheckContracts(repoRoot string, p plan.Plan, used map[string]state.ContractUsage) []ContractViolation {
	var violations []ContractViolation
	for name, usage := range used {
		contract, ok := findContract(p, name)
		if !ok {
			violations = append(violations, ContractViolation{Name: name, Reason: "not present in plan"})
			continue
		}
		path := filepath.Join(repoRoot, contract.FilePath)
		data, err := os.ReadFile(path)
		if err != nil {
			violations = append(violations, ContractViolation{Name: name, Reason: fmt.Sprintf("contract file %s does not parse: %v", contract.FilePath, err)})
			continue
		}
		match := versionHeaderPattern.FindStringSubmatch(string(data))
		if match == nil {
			violations = append(violations, ContractViolation{Name: name, Reason: fmt.Sprintf("contract file %s has no Version header", contract.FilePath)})
			continue
		}
		fileVersion := match[1]
		if fileVersion != usage.Version {
			violations = append(violations, ContractViolation{Name: name, Reason: fmt.Sprintf("version mismatch: task recorded %s, file declares %s", usage.Version, fileVersion)})
		}
	}
	return violations
}

func findContract(p plan.Plan, name string) (plan.Contract, bool) {
	for _, c := range p.Contracts {
		if c.Name == name {
			return c, true
		}
	}
	return plan.Contract{}, false
}

// CanRenegotiate reports whether contractName has budget left under
// maxRenegotiations, per the original_source-supplemented bookkeeping
// tracked in OrchestrationState.ContractsRenegotiated.
func CanRenegotiate(counts map[string]int, contractName string, maxRenegotiations int) bool {
	if maxRenegotiations <= 0 {
		maxRenegotiations = DefaultMaxRenegotiations
	}
	return counts[contractName] < maxRenegotiations
}

// DefaultMaxRenegotiations is the per-contract renegotiation budget absent
// an explicit config override.
const DefaultMaxRenegotiations = 2

// NewContractVersion produces a fresh short-hex version stamp for a
// renegotiated contract, analogous to a short commit hash — a renegotiation
// always mints a new version rather than reusing the old one, so any stale
// consumer's version check fails loudly instead of silently passing.
func NewContractVersion(randSource func() string) string {
	v := randSource()
	if len(v) > 8 {
		v = v[:8]
	}
	return strings.ToLower(v)
}
