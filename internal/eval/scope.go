package eval

import (
	"fmt"

	"github.com/gzhole/guardcore/internal/config"
	"github.com/gzhole/guardcore/internal/query"
	"github.com/gzhole/guardcore/internal/rules"
	"github.com/gzhole/guardcore/internal/value"
)

// evalContext is the state shared by every Scope in one evaluation: the
// parsed rule file, the rule-outcome memo table, the
// recorder every Scope writes to, and the tunable limits. It is held by
// pointer and never copied as Scope.child creates new Scopes.
type evalContext struct {
	file     *rules.RulesFile
	memo     map[string]Status
	recorder *Recorder
	cfg      config.EvaluatorConfig
	depth    int
}

// binding is one variable's entry in a Scope: either an already-resolved
// literal, or an unresolved query to be run against the Scope's current
// value on first reference. resolving guards against a self-referential
// or mutually recursive let chain (DESIGN.md resolution 3).
type binding struct {
	literal    *value.Value
	queryParts []rules.QueryPart
	cached     []query.Result
	resolved   bool
	resolving  bool
}

// Scope is the lexical environment clause and query evaluation runs in:
// the current value ("this"), a chain of variable bindings, and the
// shared evaluation context. It implements query.Scope.
type Scope struct {
	parent  *Scope
	ctx     *evalContext
	current *value.Value
	vars    map[string]*binding
}

// NewRootScope builds the top-level Scope for one evaluation of file
// against root.
func NewRootScope(file *rules.RulesFile, root *value.Value, cfg config.EvaluatorConfig, rec *Recorder) *Scope {
	ctx := &evalContext{
		file:     file,
		memo:     map[string]Status{},
		recorder: rec,
		cfg:      cfg,
	}
	s := &Scope{ctx: ctx, current: root, vars: map[string]*binding{}}
	for _, let := range file.Lets {
		s.bindLet(let)
	}
	return s
}

// Recorder returns the Recorder shared by every Scope in this
// evaluation, so a caller can extract the finished trace tree once
// evaluation completes.
func (s *Scope) Recorder() *Recorder { return s.ctx.recorder }

// child returns a new Scope nested under s, sharing its evaluation
// context but starting with its own empty variable map.
func (s *Scope) child(current *value.Value) *Scope {
	return &Scope{parent: s, ctx: s.ctx, current: current, vars: map[string]*binding{}}
}

// EvaluateFilter implements query.Scope: it evaluates a FilterPart's
// predicate in a child scope with cursor bound as "this" (the predicate's
// `_`), recording a "filter" boundary around the check so a query's
// `[ ... ]` steps show up in the evaluation trace like every other
// significant boundary.
func (s *Scope) EvaluateFilter(cursor *value.Value, predicate rules.Conjunctions[rules.GuardClause]) (bool, error) {
	rec := s.ctx.recorder
	rec.StartRecord("filter")
	ok, err := s.child(cursor).EvaluateConjunctions(predicate)
	status := Fail
	if ok {
		status = Pass
	}
	rec.EndRecord("filter", status, Filter{})
	return ok, err
}

// CheckFanout implements query.Scope: it bounds how many cursors a single
// AllValues/AllIndices fan-out step may produce, guarding against a
// pathologically large document turning one query into an unbounded
// amount of work. n <= 0 is always allowed; the limit itself of 0 means
// unbounded.
func (s *Scope) CheckFanout(n int) error {
	if s.ctx.cfg.MaxQueryFanout > 0 && n > s.ctx.cfg.MaxQueryFanout {
		panic(&InternalError{Msg: fmt.Sprintf("fan-out step would produce %d cursors, exceeding MaxQueryFanout %d", n, s.ctx.cfg.MaxQueryFanout)})
	}
	return nil
}

// withBindings returns a child scope with each of names bound to the
// corresponding literal value, used to invoke a ParameterizedRule with
// its arguments pre-resolved.
func (s *Scope) withBindings(names []string, args []*value.Value) *Scope {
	child := s.child(s.current)
	for i, name := range names {
		child.vars[name] = &binding{literal: args[i], resolved: true}
	}
	return child
}

func (s *Scope) bindLet(let *rules.LetExpr) {
	if let.Literal != nil {
		s.vars[let.Name] = &binding{literal: let.Literal, resolved: true}
		return
	}
	s.vars[let.Name] = &binding{queryParts: let.Query.Parts}
}

// Resolve implements query.Scope: it looks up name in this scope, walking
// outward through parents, resolving and memoizing a query-backed binding
// on first reference.
func (s *Scope) Resolve(name string) ([]query.Result, error) {
	for scope := s; scope != nil; scope = scope.parent {
		b, ok := scope.vars[name]
		if !ok {
			continue
		}
		return scope.resolveBinding(name, b)
	}
	return nil, evalErrorf("variable %q is not bound", name)
}

func (s *Scope) resolveBinding(name string, b *binding) ([]query.Result, error) {
	if b.literal != nil {
		if b.cached == nil {
			b.cached = []query.Result{query.Literal{Value: b.literal}}
		}
		b.resolved = true
		return b.cached, nil
	}
	if b.resolved {
		return b.cached, nil
	}
	if b.resolving {
		return nil, evalErrorf("let %q is defined in terms of itself", name)
	}
	b.resolving = true
	results, err := query.Query(s.current, b.queryParts, s)
	b.resolving = false
	if err != nil {
		return nil, err
	}
	b.cached = results
	b.resolved = true
	return results, nil
}

// EvaluateConjunctions implements query.Scope: it evaluates a GuardClause
// conjunction within this scope and reports whether the result is PASS.
// Its only caller is EvaluateFilter, so it runs a query's `[ ... ]`
// predicates; the evaluator runs when-conditions and block bodies
// directly, without passing through here. Filter nesting depth is
// bounded by EvaluatorConfig.MaxFilterDepth; exceeding it is a
// contract violation, not a clause failure, since the rule language has
// no recursion construct that could make legitimate nesting unbounded.
func (s *Scope) EvaluateConjunctions(conds rules.Conjunctions[rules.GuardClause]) (bool, error) {
	s.ctx.depth++
	defer func() { s.ctx.depth-- }()
	if s.ctx.cfg.MaxFilterDepth > 0 && s.ctx.depth > s.ctx.cfg.MaxFilterDepth {
		panic(&InternalError{Msg: "filter/block nesting exceeded MaxFilterDepth"})
	}
	status, err := evaluateConjunctions(s, conds)
	if err != nil {
		return false, err
	}
	return status == Pass, nil
}
