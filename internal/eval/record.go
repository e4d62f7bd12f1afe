package eval

import (
	"encoding/json"

	"github.com/gzhole/guardcore/internal/redact"
)

// RecordType tags a Record with the kind of evaluation step it reports
// : a file, a rule, a when-condition, a type-block match, a
// filter, a disjunction, a block guard, or a leaf clause check.
type RecordType interface {
	isRecordType()
	recordKind() string
}

type FileCheck struct{ Name string }

func (FileCheck) isRecordType()      {}
func (FileCheck) recordKind() string { return "file" }

type RuleCheck struct{ Name string }

func (RuleCheck) isRecordType()      {}
func (RuleCheck) recordKind() string { return "rule" }

type RuleCondition struct{}

func (RuleCondition) isRecordType()      {}
func (RuleCondition) recordKind() string { return "rule_condition" }

type TypeCheck struct{ TypeName string }

func (TypeCheck) isRecordType()      {}
func (TypeCheck) recordKind() string { return "type" }

type TypeCondition struct{}

func (TypeCondition) isRecordType()      {}
func (TypeCondition) recordKind() string { return "type_condition" }

// TypeBlockBody is the record for one matched resource's block body, a
// child of a TypeCheck record (one per fan-out result of the type's
// desugared query).
type TypeBlockBody struct{ TypeName string }

func (TypeBlockBody) isRecordType()      {}
func (TypeBlockBody) recordKind() string { return "type_block_body" }

type WhenCheck struct{}

func (WhenCheck) isRecordType()      {}
func (WhenCheck) recordKind() string { return "when" }

type WhenCondition struct{}

func (WhenCondition) isRecordType()      {}
func (WhenCondition) recordKind() string { return "when_condition" }

type Filter struct{}

func (Filter) isRecordType()      {}
func (Filter) recordKind() string { return "filter" }

type Disjunction struct{}

func (Disjunction) isRecordType()      {}
func (Disjunction) recordKind() string { return "disjunction" }

// BlockGuardCheck is a BlockClause's own record: the query fan-out, one
// GuardClauseBlockCheck child per resolved cursor.
type BlockGuardCheck struct{}

func (BlockGuardCheck) isRecordType()      {}
func (BlockGuardCheck) recordKind() string { return "block_guard" }

type GuardClauseBlockCheck struct{}

func (GuardClauseBlockCheck) isRecordType()      {}
func (GuardClauseBlockCheck) recordKind() string { return "guard_clause_block" }

// ClauseValueCheck is the leaf record for a single AccessClause: the
// comparator applied, the resolved operand(s) (redacted), and any custom
// message (redacted).
type ClauseValueCheck struct {
	Variant ClauseValueVariant `json:"variant"`
	Message string             `json:"message,omitempty"`
}

func (ClauseValueCheck) isRecordType()      {}
func (ClauseValueCheck) recordKind() string { return "clause_value" }

// NewClauseValueCheck builds a ClauseValueCheck, redacting the custom
// message before it is stored.
func NewClauseValueCheck(variant ClauseValueVariant, message string) ClauseValueCheck {
	return ClauseValueCheck{Variant: variant, Message: redact.Redact(message)}
}

// ClauseValueVariant is the specific shape of a clause's value check: a
// plain success, a binary comparison, a set membership check, a unary
// check, an EMPTY check with no operand, or a reference to a missing
// dependent rule or block value.
type ClauseValueVariant interface {
	isClauseValueVariant()
}

type CVSuccess struct{}

func (CVSuccess) isClauseValueVariant() {}

// CVComparison reports a binary comparator applied between two resolved,
// displayable operands.
type CVComparison struct {
	From string `json:"from"`
	To   string `json:"to"`
	Op   string `json:"op"`
}

func (CVComparison) isClauseValueVariant() {}

// NewCVComparison redacts From and To before storing them.
func NewCVComparison(from, to, op string) CVComparison {
	return CVComparison{From: redact.Redact(from), To: redact.Redact(to), Op: op}
}

// CVInComparison reports an IN/NOT IN check against a resolved set.
type CVInComparison struct {
	From  string   `json:"from"`
	ToSet []string `json:"to_set"`
	Op    string   `json:"op"`
}

func (CVInComparison) isClauseValueVariant() {}

// NewCVInComparison redacts From and every element of toSet.
func NewCVInComparison(from string, toSet []string, op string) CVInComparison {
	redacted := make([]string, len(toSet))
	for i, s := range toSet {
		redacted[i] = redact.Redact(s)
	}
	return CVInComparison{From: redact.Redact(from), ToSet: redacted, Op: op}
}

// CVUnary reports a unary comparator (EXISTS, IS_STRING, ...) applied to a
// single resolved operand.
type CVUnary struct {
	Value string `json:"value"`
	Op    string `json:"op"`
}

func (CVUnary) isClauseValueVariant() {}

// NewCVUnary redacts Value before storing it.
func NewCVUnary(value, op string) CVUnary {
	return CVUnary{Value: redact.Redact(value), Op: op}
}

// CVNoValueForEmptyCheck reports EMPTY/NOT EMPTY evaluated against an
// unresolved query: absence itself satisfies EMPTY.
type CVNoValueForEmptyCheck struct{}

func (CVNoValueForEmptyCheck) isClauseValueVariant() {}

// CVDependentRuleMissing reports a NamedRuleClause or
// ParameterizedNamedRuleClause referencing a rule name the file never
// defines.
type CVDependentRuleMissing struct {
	RuleName string `json:"rule_name"`
}

func (CVDependentRuleMissing) isClauseValueVariant() {}

// CVMissingBlockValue reports an AccessClause whose query resolved to
// nothing at all under a comparator that treats absence as a failure
// (FAIL).
type CVMissingBlockValue struct{}

func (CVMissingBlockValue) isClauseValueVariant() {}

// Record is one node of the evaluation trace tree (component C5): the
// context label it was opened under, its final status, the structured
// detail of what was checked, and any nested records produced while it
// was open.
type Record struct {
	Context  string
	Status   Status
	Type     RecordType
	Children []*Record
}

// MarshalJSON renders a Record with its Type's kind tag inlined alongside
// its own fields, so a consumer can dispatch on "kind" without a second
// decode pass.
func (r *Record) MarshalJSON() ([]byte, error) {
	typeJSON, err := marshalRecordType(r.Type)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Context  string          `json:"context"`
		Status   string          `json:"status"`
		Type     json.RawMessage `json:"type"`
		Children []*Record       `json:"children,omitempty"`
	}{
		Context:  r.Context,
		Status:   r.Status.String(),
		Type:     typeJSON,
		Children: r.Children,
	})
}

func marshalRecordType(t RecordType) (json.RawMessage, error) {
	if t == nil {
		return json.Marshal(map[string]string{"kind": "unknown"})
	}
	body, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["kind"] = t.recordKind()
	return json.Marshal(fields)
}

// Recorder builds a Record tree by tracking a stack of open contexts
// . StartRecord/EndRecord calls must nest like a call stack;
// any mismatch is a contract violation and panics with an InternalError,
// since it can only happen from a bug in the evaluator itself.
type Recorder struct {
	stack []*Record
	root  *Record
}

// NewRecorder returns an empty Recorder ready for a fresh evaluation.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// StartRecord opens a new record under contextLabel, nested inside
// whichever record is currently open.
func (r *Recorder) StartRecord(contextLabel string) {
	r.stack = append(r.stack, &Record{Context: contextLabel})
}

// EndRecord closes the innermost open record, which must have been opened
// with the same contextLabel, attaching status and recordType to it and
// linking it as a child of its parent (or as the tree root, if none).
func (r *Recorder) EndRecord(contextLabel string, status Status, recordType RecordType) {
	if len(r.stack) == 0 {
		panic(&InternalError{Msg: "EndRecord(" + contextLabel + "): no open record to close"})
	}
	top := r.stack[len(r.stack)-1]
	if top.Context != contextLabel {
		panic(&InternalError{Msg: "EndRecord(" + contextLabel + "): does not match open record " + top.Context})
	}
	top.Status = status
	top.Type = recordType
	r.stack = r.stack[:len(r.stack)-1]
	if len(r.stack) == 0 {
		r.root = top
		return
	}
	parent := r.stack[len(r.stack)-1]
	parent.Children = append(parent.Children, top)
}

// ExtractRecord returns the completed tree root. Calling it while a
// record is still open is a contract violation and panics.
func (r *Recorder) ExtractRecord() *Record {
	if len(r.stack) != 0 {
		panic(&InternalError{Msg: "ExtractRecord: unbalanced StartRecord/EndRecord"})
	}
	return r.root
}
