package query

import (
	"fmt"

	"github.com/gzhole/guardcore/internal/value"
)

// RetrievalError describes why a query step failed to descend. It is
// never returned as a Go error from Query: the evaluator recovers it into
// an UnResolved result and continues with the remaining cursors, unlike
// the hard-failure EvaluationError below.
type RetrievalError struct {
	Path   value.Path
	Reason string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("query: could not retrieve past %s: %s", e.Path, e.Reason)
}

// EvaluationError is a hard failure during query evaluation: a malformed
// regex passed to a built-in, an unknown function name, a comparator that
// cannot apply to the operands it was given. Unlike RetrievalError, this
// aborts the enclosing clause.
type EvaluationError struct {
	Msg string
}

func (e *EvaluationError) Error() string { return "query: " + e.Msg }
