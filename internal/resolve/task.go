package resolve

import (
	"context"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// TaskKind identifies the operation a task performs.
type TaskKind int

// Task kinds.
const (
	TaskRequire TaskKind = iota
	TaskDoc
	TaskTrace
)

// String returns the name of the kind.
func (k TaskKind) String() string {
	switch k {
	case TaskRequire:
		return "require"
	case TaskDoc:
		return "resolve-doc"
	case TaskTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a task.
type Status int

// Task statuses.
const (
	StatusPending Status = iota
	StatusDone
	StatusCancelled
	StatusFailed
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot names a resolution target that admits at most one in-flight task.
type Slot string

// DocSlot is the single documentation slot.
const DocSlot Slot = "doc"

// RequireSlot is the slot of requiring one namespace.
func RequireSlot(namespace string) Slot { return Slot("require:" + namespace) }

// TraceSlot is the slot of toggling tracing on one member.
func TraceSlot(qualifiedName string) Slot { return Slot("trace:" + qualifiedName) }

// Task is one asynchronous operation. Only the owner goroutine reads or
// writes Status; workers see an immutable copy of the request.
type Task struct {
	ID         uint64
	Kind       TaskKind
	Slot       Slot
	Target     string // namespace name or qualified member name
	Generation uint64
	Status     Status

	cancel context.CancelFunc
}

// Completion is what a worker reports back to the owner.
type Completion struct {
	TaskID     uint64
	Kind       TaskKind
	Slot       Slot
	Target     string
	Generation uint64

	Member core.Member
	Facet  core.DocFacet

	Text   string // TaskDoc result
	Traced bool   // TaskTrace result

	// Err is a *core.ResolveError when the task failed or was cancelled
	Err error
}

// ErrorKind classifies the completion's failure, ErrorNone on success.
func (c Completion) ErrorKind() core.ErrorKind {
	return core.Classify(c.Err)
}

// OK reports whether the task succeeded.
func (c Completion) OK() bool { return c.Err == nil }
