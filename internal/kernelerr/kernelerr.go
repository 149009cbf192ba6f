// Package kernelerr defines the typed error kinds the orchestration kernel
// uses to drive retry and reporting policy. Each kind carries enough context
// to decide, without re-inspecting the failure, whether a task should be
// requeued, failed terminally, or escalated to a human.
package kernelerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies an error category for policy dispatch (C12's retry logic
// switches on Kind, not on string matching).
type Kind int

const (
	// KindPlanInvalid covers schema, cycle, and conflict errors from C1/C2/C3.
	KindPlanInvalid Kind = iota
	// KindInvalidTransition is a state-machine violation from C5.
	KindInvalidTransition
	// KindSpawnFailed is a launcher/session-creation failure from C7.
	KindSpawnFailed
	// KindWorkerTimeout is a per-task elapsed-time failure from C7.
	KindWorkerTimeout
	// KindWorkerHung is a stale-heartbeat failure from C7.
	KindWorkerHung
	// KindWorkerCrashed is a vanished-session failure from C7.
	KindWorkerCrashed
	// KindTaskBlocked is a worker-reported missing external dependency.
	KindTaskBlocked
	// KindBoundaryViolation is an unauthorized-write or forbidden-path failure from C9.
	KindBoundaryViolation
	// KindCheckFailed is a verification command failure from C9.
	KindCheckFailed
	// KindEnvMismatch is a stale-environment-hash failure from C9.
	KindEnvMismatch
	// KindContractIncompatible is a contract version mismatch from C9.
	KindContractIncompatible
	// KindMergeConflict is a staging-merge failure from C12.
	KindMergeConflict
	// KindStaleSignal is a skip-and-log signal-file anomaly from C8.
	KindStaleSignal
	// KindCorruptMessage is a skip-and-log mailbox anomaly from C8.
	KindCorruptMessage
)

func (k Kind) String() string {
	switch k {
	case KindPlanInvalid:
		return "PlanInvalid"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindSpawnFailed:
		return "SpawnFailed"
	case KindWorkerTimeout:
		return "WorkerTimeout"
	case KindWorkerHung:
		return "WorkerHung"
	case KindWorkerCrashed:
		return "WorkerCrashed"
	case KindTaskBlocked:
		return "TaskBlocked"
	case KindBoundaryViolation:
		return "BoundaryViolation"
	case KindCheckFailed:
		return "CheckFailed"
	case KindEnvMismatch:
		return "EnvMismatch"
	case KindContractIncompatible:
		return "ContractIncompatible"
	case KindMergeConflict:
		return "MergeConflict"
	case KindStaleSignal:
		return "StaleSignal"
	case KindCorruptMessage:
		return "CorruptMessage"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the kernel's default policy requeues a task
// carrying this kind of error, ignoring the iteration cap (callers still
// check that separately). BoundaryViolation and EnvMismatch are excluded by
// spec: a worker that wrote outside its lane is reported, not re-run, and an
// env mismatch always requires a full resume rather than a same-iteration retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindSpawnFailed, KindWorkerTimeout, KindWorkerHung, KindWorkerCrashed, KindCheckFailed, KindMergeConflict:
		return true
	default:
		return false
	}
}

// KernelError is the single error type every kernel component returns for a
// classified failure. Err, when present, is the underlying cause.
type KernelError struct {
	Kind    Kind
	TaskID  string // empty when not task-scoped (e.g. PlanInvalid)
	Message string
	Err     error
}

// New constructs a KernelError with no wrapped cause.
func New(kind Kind, taskID, message string) *KernelError {
	return &KernelError{Kind: kind, TaskID: taskID, Message: message}
}

// Wrap constructs a KernelError wrapping an underlying cause.
func Wrap(kind Kind, taskID, message string, err error) *KernelError {
	return &KernelError{Kind: kind, TaskID: taskID, Message: message, Err: err}
}

// Error implements the error interface.
func (e *KernelError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.TaskID != "" {
		sb.WriteString(fmt.Sprintf(" (task %s)", e.TaskID))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap supports errors.Is/errors.As traversal to the underlying cause.
func (e *KernelError) Unwrap() error {
	return e.Err
}

// Is reports equality by Kind, so callers can write
// errors.Is(err, kernelerr.New(kernelerr.KindEnvMismatch, "", "")).
func (e *KernelError) Is(target error) bool {
	var other *KernelError
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Of reports whether err is (or wraps) a KernelError of the given kind.
func Of(err error, kind Kind) bool {
	var ke *KernelError
	if !errors.As(err, &ke) {
		return false
	}
	return ke.Kind == kind
}

// PlanInvalidError aggregates every validation failure found while parsing a
// plan so all of them can surface at once, per spec: "surface all errors at once".
type PlanInvalidError struct {
	Errors []string
}

// Error implements the error interface.
func (e *PlanInvalidError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("plan invalid: %s", e.Errors[0])
	}
	return fmt.Sprintf("plan invalid (%d errors):\n  - %s", len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// AsKernelError exposes PlanInvalidError through the common KernelError kind
// for callers that switch on Kind rather than type.
func (e *PlanInvalidError) AsKernelError() *KernelError {
	return &KernelError{Kind: KindPlanInvalid, Message: e.Error()}
}
