// Package query implements the query evaluator (component C3): the
// fan-out algorithm that walks a parsed Query's parts against a Value
// tree and a lexical scope, producing an ordered list of Results.
package query

import (
	"fmt"
	"strconv"

	"github.com/gzhole/guardcore/internal/rules"
	"github.com/gzhole/guardcore/internal/value"
)

// Scope is the subset of the rule evaluator's scope that the query
// evaluator needs. It is defined here, not in package eval, so that
// query and eval can call into each other (a Filter's predicate is a
// GuardClause conjunction, evaluated by eval; an AccessClause's query is
// evaluated by query) without an import cycle: eval's concrete *Scope
// type implements this interface.
type Scope interface {
	// Resolve returns the value set a variable name is bound to, walking
	// outward through parent scopes.
	Resolve(name string) ([]Result, error)
	// EvaluateConjunctions evaluates a GuardClause conjunction tree within
	// this scope, reporting whether the result is PASS.
	EvaluateConjunctions(conds rules.Conjunctions[rules.GuardClause]) (bool, error)
	// EvaluateFilter evaluates a FilterPart's predicate with cursor bound
	// as "this" (the predicate's `_`), recording a "filter" boundary in
	// the evaluation trace around the check.
	EvaluateFilter(cursor *value.Value, predicate rules.Conjunctions[rules.GuardClause]) (bool, error)
	// CheckFanout checks whether producing n cursors from a single
	// AllValues/AllIndices fan-out step is within the configured fan-out
	// bound, returning an error (or aborting the evaluation outright) if
	// not.
	CheckFanout(n int) error
}

// Result is one outcome of a query: Literal, Resolved, or UnResolved.
type Result interface {
	isResult()
	// ResolvedValue returns the underlying value and true, or (nil, false)
	// for an UnResolved result.
	ResolvedValue() (*value.Value, bool)
}

// Literal is a constant produced inside the query itself (a built-in
// function's return value), not reached via a path into the document.
type Literal struct{ Value *value.Value }

func (Literal) isResult()                             {}
func (l Literal) ResolvedValue() (*value.Value, bool)  { return l.Value, true }

// Resolved is a value reached via a path into the input document.
type Resolved struct{ Value *value.Value }

func (Resolved) isResult()                            {}
func (r Resolved) ResolvedValue() (*value.Value, bool) { return r.Value, true }

// UnResolved reports that a query step could not descend further.
type UnResolved struct {
	TraversedTo *value.Value
	Remaining   string
	Reason      string
	Err         *RetrievalError
}

func (UnResolved) isResult()                             {}
func (UnResolved) ResolvedValue() (*value.Value, bool)    { return nil, false }

func unresolved(traversedTo *value.Value, remaining, reason string) Result {
	return UnResolved{
		TraversedTo: traversedTo,
		Remaining:   remaining,
		Reason:      reason,
		Err:         &RetrievalError{Path: traversedTo.Path(), Reason: reason},
	}
}

// Query applies parts in order against root, fanning out through scope.
// It preserves order and never aborts on a cursor that fails to descend;
// that cursor becomes an UnResolved result and evaluation continues with
// the rest.
func Query(root *value.Value, parts []rules.QueryPart, scope Scope) ([]Result, error) {
	if len(parts) == 0 {
		return []Result{Resolved{Value: root}}, nil
	}

	cursors := []Result{Resolved{Value: root}}
	rest := parts

	if name, ok := parts[0].AsVariable(); ok {
		resolved, err := scope.Resolve(name)
		if err != nil {
			return nil, err
		}
		cursors = resolved
		rest = parts[1:]
	}

	for _, part := range rest {
		next, err := applyPart(cursors, part, scope)
		if err != nil {
			return nil, err
		}
		cursors = next
	}
	return cursors, nil
}

func applyPart(cursors []Result, part rules.QueryPart, scope Scope) ([]Result, error) {
	var out []Result
	for _, cur := range cursors {
		v, ok := cur.ResolvedValue()
		if !ok {
			// An already-unresolved cursor does not descend further; it is
			// carried through unchanged and the remaining cursors proceed.
			out = append(out, cur)
			continue
		}
		results, err := applyPartToValue(v, part, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func applyPartToValue(v *value.Value, part rules.QueryPart, scope Scope) ([]Result, error) {
	switch p := part.(type) {
	case rules.ThisPart:
		return []Result{Resolved{Value: v}}, nil

	case rules.KeyPart:
		return applyKey(v, p.Name)

	case rules.IndexPart:
		return applyIndex(v, p.Index)

	case rules.AllIndicesPart, rules.AllValuesPart:
		return applyFanOut(v, scope)

	case rules.FilterPart:
		return applyFilter(v, p, scope)

	case rules.MapKeyFilterPart:
		return applyMapKeyFilter(v, p)

	case rules.FunctionCallPart:
		return applyFunctionCall(v, p, scope)

	default:
		return nil, &EvaluationError{Msg: fmt.Sprintf("unknown query part %T", part)}
	}
}

func applyKey(v *value.Value, name string) ([]Result, error) {
	switch v.Kind() {
	case value.KindMap:
		child, ok := v.MapGet(name)
		if !ok {
			return []Result{unresolved(v, name, fmt.Sprintf("no key %q", name))}, nil
		}
		return []Result{Resolved{Value: child}}, nil
	case value.KindList:
		if idx, err := strconv.Atoi(name); err == nil {
			return applyIndex(v, idx)
		}
		return []Result{unresolved(v, name, "cursor is a list, not a map")}, nil
	default:
		return []Result{unresolved(v, name, fmt.Sprintf("cursor is a %s, not a map", v.Kind()))}, nil
	}
}

func applyIndex(v *value.Value, index int) ([]Result, error) {
	if v.Kind() != value.KindList {
		return []Result{unresolved(v, strconv.Itoa(index), fmt.Sprintf("cursor is a %s, not a list", v.Kind()))}, nil
	}
	items := v.List()
	i := index
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return []Result{unresolved(v, strconv.Itoa(index), "index out of range")}, nil
	}
	return []Result{Resolved{Value: items[i]}}, nil
}

func applyFanOut(v *value.Value, scope Scope) ([]Result, error) {
	switch v.Kind() {
	case value.KindList:
		items := v.List()
		if err := scope.CheckFanout(len(items)); err != nil {
			return nil, err
		}
		out := make([]Result, 0, len(items))
		for _, item := range items {
			out = append(out, Resolved{Value: item})
		}
		return out, nil
	case value.KindMap:
		keys := v.MapKeys()
		if err := scope.CheckFanout(len(keys)); err != nil {
			return nil, err
		}
		out := make([]Result, 0, len(keys))
		for _, k := range keys {
			child, _ := v.MapGet(k)
			out = append(out, Resolved{Value: child})
		}
		return out, nil
	default:
		return []Result{unresolved(v, "*", fmt.Sprintf("cursor is a %s, not a list or map", v.Kind()))}, nil
	}
}

func applyFilter(v *value.Value, p rules.FilterPart, scope Scope) ([]Result, error) {
	ok, err := scope.EvaluateFilter(v, p.Predicate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []Result{Resolved{Value: v}}, nil
}

func applyMapKeyFilter(v *value.Value, p rules.MapKeyFilterPart) ([]Result, error) {
	if v.Kind() != value.KindMap {
		return []Result{unresolved(v, "keys", fmt.Sprintf("cursor is a %s, not a map", v.Kind()))}, nil
	}
	var out []Result
	for _, k := range v.MapKeys() {
		keyVal := value.NewString(k, v.Path().ExtendKey(k))
		matched, err := matchComparator(keyVal, p.Rhs, p.Cmp)
		if err != nil {
			return nil, err
		}
		if matched {
			child, _ := v.MapGet(k)
			out = append(out, Resolved{Value: child})
		}
	}
	return out, nil
}

func applyFunctionCall(cursor *value.Value, p rules.FunctionCallPart, scope Scope) ([]Result, error) {
	fn, ok := builtins[p.Name]
	if !ok {
		return nil, &EvaluationError{Msg: fmt.Sprintf("unknown function %q", p.Name)}
	}
	var args []*value.Value
	if len(p.Args) == 0 {
		args = []*value.Value{cursor}
	} else {
		for _, argQuery := range p.Args {
			results, err := Query(cursor, argQuery.Parts, scope)
			if err != nil {
				return nil, err
			}
			v, ok := firstResolvedValue(results)
			if !ok {
				return []Result{unresolved(cursor, p.Name+"(...)", "function argument did not resolve")}, nil
			}
			args = append(args, v)
		}
	}
	out, err := fn(args)
	if err != nil {
		return nil, &EvaluationError{Msg: err.Error()}
	}
	return []Result{Literal{Value: out}}, nil
}

func firstResolvedValue(results []Result) (*value.Value, bool) {
	for _, r := range results {
		if v, ok := r.ResolvedValue(); ok {
			return v, true
		}
	}
	return nil, false
}

// matchComparator applies the comparator subset valid against a map key
// (or a MapKeyFilterPart's synthetic string cursor): equality (including
// regex-as-pattern), ordering, and IN. A NOT prefix (cmp.Negated) inverts
// the result here; the KEYS bit (cmp.Keyed) is ignored.
func matchComparator(lhs, rhs *value.Value, cmp rules.Comparator) (bool, error) {
	var result bool
	switch cmp.Op {
	case rules.OpEq:
		eq, err := value.Equal(lhs, rhs)
		if err != nil {
			return false, err
		}
		result = eq
	case rules.OpLt, rules.OpLe, rules.OpGt, rules.OpGe:
		ord, err := value.Compare(lhs, rhs)
		if err != nil {
			return false, err
		}
		switch cmp.Op {
		case rules.OpLt:
			result = ord == value.Less
		case rules.OpLe:
			result = ord != value.Greater
		case rules.OpGt:
			result = ord == value.Greater
		case rules.OpGe:
			result = ord != value.Less
		}
	case rules.OpIn:
		if rhs.Kind() == value.KindList {
			for _, item := range rhs.List() {
				eq, err := value.Equal(lhs, item)
				if err != nil {
					return false, err
				}
				if eq {
					result = true
					break
				}
			}
		} else {
			in, err := value.InRange(lhs, rhs)
			if err != nil {
				return false, err
			}
			result = in
		}
	default:
		return false, &EvaluationError{Msg: fmt.Sprintf("comparator %s is not valid in a key filter", cmp)}
	}
	if cmp.Negated {
		result = !result
	}
	return result, nil
}
