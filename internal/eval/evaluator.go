// Package eval implements the rule evaluator (component C4) and the
// event recorder (component C5): walking a parsed RulesFile's rules
// against a Scope, producing a PASS/FAIL/SKIP Status and a Record tree
// describing how that status was reached. A Scope tree and its Recorder
// belong to one evaluation at a time and are not safe for concurrent use.
package eval

import (
	"fmt"
	"strconv"

	"github.com/gzhole/guardcore/internal/query"
	"github.com/gzhole/guardcore/internal/rules"
	"github.com/gzhole/guardcore/internal/value"
)

// EvaluateRulesFile evaluates every top-level rule of file against scope
// and combines their outcomes with combineFile. dataName labels the
// top-level record, typically the name of the document being checked.
func EvaluateRulesFile(file *rules.RulesFile, scope *Scope, dataName string) (Status, error) {
	rec := scope.ctx.recorder
	rec.StartRecord(dataName)
	statuses := make([]Status, 0, len(file.Rules))
	for _, rule := range file.Rules {
		st, err := evaluateRule(scope, rule)
		if err != nil {
			rec.EndRecord(dataName, Fail, FileCheck{Name: dataName})
			return Fail, err
		}
		statuses = append(statuses, st)
	}
	final := combineFile(statuses)
	rec.EndRecord(dataName, final, FileCheck{Name: dataName})
	return final, nil
}

// evaluateRule evaluates a top-level named rule, memoizing the result by
// name for the lifetime of this evaluation: a rule
// referenced by several NamedRuleClauses runs exactly once. A rule in the
// middle of its own evaluation (a dependency cycle) is treated as SKIP
// for the re-entrant lookup rather than recursing forever.
func evaluateRule(s *Scope, rule *rules.Rule) (Status, error) {
	if st, ok := s.ctx.memo[rule.Name]; ok {
		return st, nil
	}
	s.ctx.memo[rule.Name] = Skip
	status, err := evaluateRuleBody(s, rule, rule.Name)
	if err != nil {
		return Fail, err
	}
	s.ctx.memo[rule.Name] = status
	return status, nil
}

func evaluateRuleBody(s *Scope, rule *rules.Rule, label string) (Status, error) {
	rec := s.ctx.recorder
	rec.StartRecord(label)
	if rule.When != nil {
		whenLabel := label + "#when"
		rec.StartRecord(whenLabel)
		whenStatus, err := evaluateConjunctions(s, *rule.When)
		if err != nil {
			rec.EndRecord(whenLabel, Fail, RuleCondition{})
			rec.EndRecord(label, Fail, RuleCheck{Name: rule.Name})
			return Fail, err
		}
		rec.EndRecord(whenLabel, whenStatus, RuleCondition{})
		if whenStatus != Pass {
			rec.EndRecord(label, Skip, RuleCheck{Name: rule.Name})
			return Skip, nil
		}
	}
	bodyStatus, err := evaluateBlock(s, rule.Body)
	if err != nil {
		rec.EndRecord(label, Fail, RuleCheck{Name: rule.Name})
		return Fail, err
	}
	rec.EndRecord(label, bodyStatus, RuleCheck{Name: rule.Name})
	return bodyStatus, nil
}

// evaluateBlock evaluates a Block's let bindings (scoped to a fresh child
// Scope) followed by its clause conjunctions.
func evaluateBlock(s *Scope, block rules.Block) (Status, error) {
	blockScope := s.child(s.current)
	for _, let := range block.Lets {
		blockScope.bindLet(let)
	}
	return evaluateConjunctions(blockScope, block.Clauses)
}

func evaluateConjunctions(s *Scope, conds rules.Conjunctions[rules.GuardClause]) (Status, error) {
	statuses := make([]Status, 0, len(conds.Disjunctions))
	for _, dis := range conds.Disjunctions {
		st, err := evaluateDisjunction(s, dis)
		if err != nil {
			return Fail, err
		}
		statuses = append(statuses, st)
	}
	return combineConjunction(statuses), nil
}

// evaluateDisjunction evaluates members left to right, stopping as soon
// as one member PASSes: the remaining members never run, and never
// appear in the recorder's tree. A member whose evaluation returns an
// error counts as FAIL, and the next member still runs.
func evaluateDisjunction(s *Scope, dis rules.Disjunctions[rules.GuardClause]) (Status, error) {
	rec := s.ctx.recorder
	rec.StartRecord("disjunction")
	statuses := make([]Status, 0, len(dis.Members))
	for _, member := range dis.Members {
		st, err := evaluateGuardClause(s, member)
		if err != nil {
			st = Fail
		}
		statuses = append(statuses, st)
		if st == Pass {
			break
		}
	}
	final := combineDisjunction(statuses)
	rec.EndRecord("disjunction", final, Disjunction{})
	return final, nil
}

func evaluateGuardClause(s *Scope, gc rules.GuardClause) (Status, error) {
	switch c := gc.(type) {
	case *rules.AccessClause:
		return evaluateAccessClause(s, c)
	case *rules.NamedRuleClause:
		return evaluateNamedRuleClause(s, c)
	case *rules.ParameterizedNamedRuleClause:
		return evaluateParameterizedNamedRuleClause(s, c)
	case *rules.BlockClause:
		return evaluateBlockClause(s, c)
	case *rules.WhenBlock:
		return evaluateWhenBlockClause(s, c)
	case *rules.TypeBlock:
		return evaluateTypeBlockClause(s, c)
	default:
		return Fail, evalErrorf("unknown guard clause %T", gc)
	}
}

func evaluateNamedRuleClause(s *Scope, c *rules.NamedRuleClause) (Status, error) {
	rec := s.ctx.recorder
	rule, ok := s.ctx.file.RuleByName(c.Name)
	if !ok {
		rec.StartRecord(c.Name)
		rec.EndRecord(c.Name, Fail, NewClauseValueCheck(CVDependentRuleMissing{RuleName: c.Name}, ""))
		return Fail, nil
	}
	status, err := evaluateRule(s, rule)
	if err != nil {
		return Fail, err
	}
	if !c.Negated {
		return status, nil
	}
	switch status {
	case Pass:
		return Fail, nil
	case Fail:
		return Pass, nil
	default:
		return Skip, nil
	}
}

func evaluateParameterizedNamedRuleClause(s *Scope, c *rules.ParameterizedNamedRuleClause) (Status, error) {
	pr, ok := s.ctx.file.ParameterizedRuleByName(c.Name)
	if !ok {
		rec := s.ctx.recorder
		rec.StartRecord(c.Name)
		rec.EndRecord(c.Name, Fail, NewClauseValueCheck(CVDependentRuleMissing{RuleName: c.Name}, ""))
		return Fail, nil
	}
	if len(c.Args) != len(pr.Params) {
		return Fail, evalErrorf("rule %q expects %d argument(s), got %d", c.Name, len(pr.Params), len(c.Args))
	}
	args := make([]*value.Value, len(c.Args))
	for i, rhs := range c.Args {
		v, err := resolveRHSValue(s, rhs)
		if err != nil {
			return Fail, err
		}
		args[i] = v
	}
	childScope := s.withBindings(pr.Params, args)
	return evaluateRuleBody(childScope, pr.Rule, c.Name)
}

func evaluateBlockClause(s *Scope, c *rules.BlockClause) (Status, error) {
	rec := s.ctx.recorder
	rec.StartRecord("block")
	cursors, err := resolvedCursors(s, c.Query)
	if err != nil {
		rec.EndRecord("block", Fail, BlockGuardCheck{})
		return Fail, err
	}
	if len(cursors) == 0 {
		rec.EndRecord("block", Skip, BlockGuardCheck{})
		return Skip, nil
	}
	statuses := make([]Status, 0, len(cursors))
	for _, cur := range cursors {
		childScope := s.child(cur)
		rec.StartRecord("block_body")
		st, err := evaluateBlock(childScope, c.Body)
		if err != nil {
			rec.EndRecord("block_body", Fail, GuardClauseBlockCheck{})
			rec.EndRecord("block", Fail, BlockGuardCheck{})
			return Fail, err
		}
		rec.EndRecord("block_body", st, GuardClauseBlockCheck{})
		statuses = append(statuses, st)
	}
	final := combineConjunction(statuses)
	rec.EndRecord("block", final, BlockGuardCheck{})
	return final, nil
}

func evaluateWhenBlockClause(s *Scope, w *rules.WhenBlock) (Status, error) {
	rec := s.ctx.recorder
	rec.StartRecord("when_block")
	rec.StartRecord("when_block#cond")
	condStatus, err := evaluateConjunctions(s, w.Conditions)
	if err != nil {
		rec.EndRecord("when_block#cond", Fail, WhenCondition{})
		rec.EndRecord("when_block", Fail, WhenCheck{})
		return Fail, err
	}
	rec.EndRecord("when_block#cond", condStatus, WhenCondition{})
	if condStatus != Pass {
		rec.EndRecord("when_block", Skip, WhenCheck{})
		return Skip, nil
	}
	bodyStatus, err := evaluateBlock(s, w.Body)
	if err != nil {
		rec.EndRecord("when_block", Fail, WhenCheck{})
		return Fail, err
	}
	rec.EndRecord("when_block", bodyStatus, WhenCheck{})
	return bodyStatus, nil
}

// evaluateTypeBlockClause evaluates a TypeBlock by running its own
// desugared query (equivalent to
// Resources.*[ Type == "<name>" ]) and, per matching resource, the
// type's own optional when-conditions followed by its body. Its status
// matches that of the equivalent hand-written BlockClause, and its records
// nest the same way, one outer record with one child per matching
// resource, but under their own labels and types: "type:<name>"
// (TypeCheck) and "type_body" (TypeBlockBody) instead of "block"
// (BlockGuardCheck) and "block_body" (GuardClauseBlockCheck), plus a
// "type_body#when" (TypeCondition) record when the type block has
// when-conditions.
func evaluateTypeBlockClause(s *Scope, t *rules.TypeBlock) (Status, error) {
	rec := s.ctx.recorder
	label := "type:" + t.TypeName
	rec.StartRecord(label)
	q := t.DesugaredQuery()
	cursors, err := resolvedCursors(s, q)
	if err != nil {
		rec.EndRecord(label, Fail, TypeCheck{TypeName: t.TypeName})
		return Fail, err
	}
	if len(cursors) == 0 {
		rec.EndRecord(label, Skip, TypeCheck{TypeName: t.TypeName})
		return Skip, nil
	}
	statuses := make([]Status, 0, len(cursors))
	for _, cur := range cursors {
		childScope := s.child(cur)
		rec.StartRecord("type_body")
		if t.When != nil {
			rec.StartRecord("type_body#when")
			whenStatus, err := evaluateConjunctions(childScope, *t.When)
			if err != nil {
				rec.EndRecord("type_body#when", Fail, TypeCondition{})
				rec.EndRecord("type_body", Fail, TypeBlockBody{TypeName: t.TypeName})
				rec.EndRecord(label, Fail, TypeCheck{TypeName: t.TypeName})
				return Fail, err
			}
			rec.EndRecord("type_body#when", whenStatus, TypeCondition{})
			if whenStatus != Pass {
				rec.EndRecord("type_body", Skip, TypeBlockBody{TypeName: t.TypeName})
				statuses = append(statuses, Skip)
				continue
			}
		}
		st, err := evaluateBlock(childScope, t.Body)
		if err != nil {
			rec.EndRecord("type_body", Fail, TypeBlockBody{TypeName: t.TypeName})
			rec.EndRecord(label, Fail, TypeCheck{TypeName: t.TypeName})
			return Fail, err
		}
		rec.EndRecord("type_body", st, TypeBlockBody{TypeName: t.TypeName})
		statuses = append(statuses, st)
	}
	final := combineConjunction(statuses)
	rec.EndRecord(label, final, TypeCheck{TypeName: t.TypeName})
	return final, nil
}

func resolvedCursors(s *Scope, q rules.Query) ([]*value.Value, error) {
	results, err := query.Query(s.current, q.Parts, s)
	if err != nil {
		return nil, err
	}
	var cursors []*value.Value
	for _, r := range results {
		if v, ok := r.ResolvedValue(); ok {
			cursors = append(cursors, v)
		}
	}
	return cursors, nil
}

// evaluateAccessClause is the leaf of clause evaluation: a query
// comparator rhs? clause. Its query can fan out to several
// cursors; every resolved cursor must independently satisfy the
// comparator (there is no construct in this rule language that is
// satisfied by only one of several resolved LHS cursors). Where the RHS
// also fans out to several values, IN is satisfied by any one of them
// while every other binary comparator must hold against all of them. A
// query that resolves to nothing is handled specially per comparator:
// EXISTS/EMPTY have well-defined answers for absence, an explicit
// "== null" comparison against an unresolved value is PASS, and anything
// else fails the clause.
func evaluateAccessClause(s *Scope, c *rules.AccessClause) (Status, error) {
	rec := s.ctx.recorder
	label := "access:" + c.Query.String()
	rec.StartRecord(label)

	results, err := query.Query(s.current, c.Query.Parts, s)
	if err != nil {
		rec.EndRecord(label, Fail, NewClauseValueCheck(CVUnary{Value: "<error>", Op: c.Cmp.String()}, c.Message))
		return Fail, err
	}

	var resolved []*value.Value
	for _, r := range results {
		if v, ok := r.ResolvedValue(); ok {
			resolved = append(resolved, v)
		}
	}

	if len(resolved) == 0 {
		status, variant := evaluateUnresolvedAccess(c, s.ctx.cfg.StrictUnresolved)
		rec.EndRecord(label, status, NewClauseValueCheck(variant, c.Message))
		return status, nil
	}

	rhsVals, rhsErr := resolveRHSSet(s, c)
	if rhsErr != nil {
		rec.EndRecord(label, Fail, NewClauseValueCheck(CVUnary{Value: "<error>", Op: c.Cmp.String()}, c.Message))
		return Fail, rhsErr
	}

	final := true
	for _, lhs := range resolved {
		var m bool
		var err error
		if c.Cmp.Keyed && !c.Cmp.IsUnary() {
			m, err = evalKeyedComparator(lhs, c.Cmp, rhsVals)
		} else {
			m, err = evalComparator(lhs, c.Cmp, rhsVals)
		}
		if err != nil {
			rec.EndRecord(label, Fail, NewClauseValueCheck(CVUnary{Value: "<error>", Op: c.Cmp.String()}, c.Message))
			return Fail, err
		}
		if !m {
			final = false
			break
		}
	}

	status := Fail
	if final {
		status = Pass
	}
	variant := accessVariant(c.Cmp, resolved[0], rhsVals)
	rec.EndRecord(label, status, NewClauseValueCheck(variant, c.Message))
	return status, nil
}

// evaluateUnresolvedAccess decides the outcome of an AccessClause whose
// query resolved to nothing at all: EXISTS and EMPTY have well-defined
// answers for absence, an explicit "== null" against an unresolved value
// passes, and every other comparator fails the clause with an explicit
// missing-property record. strict, when set, overrides every leniency
// above so absence always fails the clause.
func evaluateUnresolvedAccess(c *rules.AccessClause, strict bool) (Status, ClauseValueVariant) {
	switch {
	case c.Cmp.Op == rules.OpEmpty:
		pass := !c.Cmp.Negated && !strict // absence satisfies EMPTY, not NOT EMPTY
		if pass {
			return Pass, CVNoValueForEmptyCheck{}
		}
		return Fail, CVNoValueForEmptyCheck{}
	case c.Cmp.Op == rules.OpExists:
		if c.Cmp.Negated && !strict {
			return Pass, CVUnary{Value: "<absent>", Op: c.Cmp.String()}
		}
		return Fail, CVUnary{Value: "<absent>", Op: c.Cmp.String()}
	case c.Cmp.Op == rules.OpEq && !c.Cmp.Negated && !strict && c.Rhs != nil && c.Rhs.Literal != nil && c.Rhs.Literal.Kind() == value.KindNull:
		return Pass, NewCVComparison("<absent>", "null", c.Cmp.String())
	default:
		return Fail, CVMissingBlockValue{}
	}
}

func accessVariant(cmp rules.Comparator, lhs *value.Value, rhsSet []*value.Value) ClauseValueVariant {
	if cmp.IsUnary() {
		return NewCVUnary(displayValue(lhs), cmp.String())
	}
	if cmp.Op == rules.OpIn {
		toSet := make([]string, len(rhsSet))
		for i, v := range rhsSet {
			toSet[i] = displayValue(v)
		}
		return NewCVInComparison(displayValue(lhs), toSet, cmp.String())
	}
	to := ""
	if len(rhsSet) > 0 {
		to = displayValue(rhsSet[0])
	}
	return NewCVComparison(displayValue(lhs), to, cmp.String())
}

// evalComparator applies cmp to a single resolved lhs against rhsSet,
// every value the RHS resolved to (nil/empty for unary comparators).
// IN is satisfied by lhs matching at least one element
// of rhsSet; every other binary comparator must hold against all of
// them.
func evalComparator(lhs *value.Value, cmp rules.Comparator, rhsSet []*value.Value) (bool, error) {
	var result bool
	switch cmp.Op {
	case rules.OpExists:
		result = true
	case rules.OpEmpty:
		result = lhs.IsEmpty()
	case rules.OpIsList:
		result = lhs.Kind() == value.KindList
	case rules.OpIsMap:
		result = lhs.Kind() == value.KindMap
	case rules.OpIsString:
		result = lhs.Kind() == value.KindString
	case rules.OpIsInt:
		result = lhs.Kind() == value.KindInt
	case rules.OpIsFloat:
		result = lhs.Kind() == value.KindFloat
	case rules.OpIsBool:
		result = lhs.Kind() == value.KindBool
	case rules.OpIsNull:
		result = lhs.Kind() == value.KindNull
	case rules.OpEq, rules.OpLt, rules.OpLe, rules.OpGt, rules.OpGe:
		if len(rhsSet) == 0 {
			return false, evalErrorf("comparator %s needs a right-hand side", cmp)
		}
		result = true
		for _, rhsVal := range rhsSet {
			m, err := compareOne(lhs, cmp.Op, rhsVal)
			if err != nil {
				return false, err
			}
			if !m {
				result = false
				break
			}
		}
	case rules.OpIn:
		if len(rhsSet) == 0 {
			return false, evalErrorf("comparator %s needs a right-hand side", cmp)
		}
		for _, candidate := range rhsSet {
			m, err := inMatchOne(lhs, candidate)
			if err != nil {
				return false, err
			}
			if m {
				result = true
				break
			}
		}
	default:
		return false, evalErrorf("unsupported comparator %s", cmp)
	}
	if cmp.Negated {
		result = !result
	}
	return result, nil
}

// evalKeyedComparator applies "KEYS ==" or "KEYS IN" to a resolved map
// value: it is satisfied if any one of the map's keys, treated as a
// string, satisfies the unkeyed comparator against rhsSet (the same
// existential key match applyMapKeyFilter uses to select map entries by
// key). A non-map LHS has no keys and never matches.
func evalKeyedComparator(lhs *value.Value, cmp rules.Comparator, rhsSet []*value.Value) (bool, error) {
	if lhs.Kind() != value.KindMap {
		return cmp.Negated, nil
	}
	unkeyed := rules.Comparator{Op: cmp.Op, Negated: false, Keyed: false}
	matched := false
	for _, k := range lhs.MapKeys() {
		keyVal := value.NewString(k, lhs.Path().ExtendKey(k))
		m, err := evalComparator(keyVal, unkeyed, rhsSet)
		if err != nil {
			return false, err
		}
		if m {
			matched = true
			break
		}
	}
	if cmp.Negated {
		return !matched, nil
	}
	return matched, nil
}

// compareOne applies a single equality/ordering comparator between lhs
// and one rhs value.
func compareOne(lhs *value.Value, op rules.CompareOp, rhsVal *value.Value) (bool, error) {
	if op == rules.OpEq {
		return value.Equal(lhs, rhsVal)
	}
	ord, err := value.Compare(lhs, rhsVal)
	if err != nil {
		return false, err
	}
	switch op {
	case rules.OpLt:
		return ord == value.Less, nil
	case rules.OpLe:
		return ord != value.Greater, nil
	case rules.OpGt:
		return ord == value.Greater, nil
	case rules.OpGe:
		return ord != value.Less, nil
	}
	return false, evalErrorf("unsupported comparator %s", op)
}

// inMatchOne reports whether lhs falls inside candidate: a membership
// test against a list element, or a bounds test against a range value.
func inMatchOne(lhs, candidate *value.Value) (bool, error) {
	switch candidate.Kind() {
	case value.KindRangeInt, value.KindRangeFloat, value.KindRangeChar:
		return value.InRange(lhs, candidate)
	case value.KindList:
		for _, item := range candidate.List() {
			eq, err := value.Equal(lhs, item)
			if err != nil {
				return false, err
			}
			if eq {
				return true, nil
			}
		}
		return false, nil
	default:
		return value.Equal(lhs, candidate)
	}
}

// resolveRHSValue resolves a single RHS (a parameterized rule call
// argument), returning the literal or the first resolved value of its
// query.
func resolveRHSValue(s *Scope, rhs rules.RHS) (*value.Value, error) {
	if rhs.Literal != nil {
		return rhs.Literal, nil
	}
	results, err := query.Query(s.current, rhs.Query.Parts, s)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if v, ok := r.ResolvedValue(); ok {
			return v, nil
		}
	}
	return nil, evalErrorf("argument query %s did not resolve", rhs.Query.String())
}

// resolveRHSSet resolves an AccessClause's right-hand side into every
// value it can produce: a single literal, the elements of a literal
// list, or every resolved cursor of a query.
func resolveRHSSet(s *Scope, c *rules.AccessClause) ([]*value.Value, error) {
	if c.Cmp.IsUnary() || c.Rhs == nil {
		return nil, nil
	}
	if c.Rhs.Literal != nil {
		return []*value.Value{c.Rhs.Literal}, nil
	}
	results, err := query.Query(s.current, c.Rhs.Query.Parts, s)
	if err != nil {
		return nil, err
	}
	var out []*value.Value
	for _, r := range results {
		if v, ok := r.ResolvedValue(); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// displayValue renders a resolved value for a record: a short,
// human-readable form, never the raw Go representation of collections.
func displayValue(v *value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		return strconv.FormatBool(v.Bool())
	case value.KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case value.KindChar:
		return string(v.Char())
	case value.KindString:
		return v.Str()
	case value.KindRegex:
		return "/" + v.RegexSource() + "/"
	case value.KindList:
		return fmt.Sprintf("<list of %d>", len(v.List()))
	case value.KindMap:
		return fmt.Sprintf("<map of %d>", len(v.MapKeys()))
	case value.KindBadValue:
		return fmt.Sprintf("<bad value %q>", v.RawText())
	default:
		return v.Path().String()
	}
}
