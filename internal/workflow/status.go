package workflow

import "fmt"

// Status is the state of a document-creation session.
type Status string

const (
	StatusReady     Status = "ready"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusCreating  Status = "creating"
	StatusError     Status = "error"
)

// transitions lists the statuses reachable from each status. A session
// may be re-analyzed after a failure or before creation.
var transitions = map[Status][]Status{
	StatusReady:     {StatusAnalyzing},
	StatusAnalyzing: {StatusAnalyzed, StatusError},
	StatusAnalyzed:  {StatusCreating, StatusAnalyzing},
	StatusCreating:  {StatusReady, StatusError},
	StatusError:     {StatusAnalyzing},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports a disallowed status change.
type TransitionError struct {
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
