package rules

import (
	"testing"
)

func mustParse(t *testing.T, text string) *RulesFile {
	t.Helper()
	f, err := ParseRules(text, "test")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	return f
}

func TestParseSimpleAccessClauseRule(t *testing.T) {
	f := mustParse(t, `
rule encryption_enabled {
	Properties.Encrypted == true
}
`)
	if len(f.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(f.Rules))
	}
	r := f.Rules[0]
	if r.Name != "encryption_enabled" {
		t.Errorf("got name %q", r.Name)
	}
	if len(r.Body.Clauses.Disjunctions) != 1 {
		t.Fatalf("got %d disjunctions", len(r.Body.Clauses.Disjunctions))
	}
	clause, ok := r.Body.Clauses.Disjunctions[0].Members[0].(*AccessClause)
	if !ok {
		t.Fatalf("got %T, want *AccessClause", r.Body.Clauses.Disjunctions[0].Members[0])
	}
	if clause.Cmp.Op != OpEq || clause.Cmp.Negated {
		t.Errorf("got comparator %v", clause.Cmp)
	}
	if clause.Rhs == nil || clause.Rhs.Literal == nil || !clause.Rhs.Literal.Bool() {
		t.Errorf("got rhs %+v", clause.Rhs)
	}
}

func TestParseCustomMessage(t *testing.T) {
	f := mustParse(t, "rule r {\n\tEncrypted == true << must be encrypted\n}\n")
	clause := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*AccessClause)
	if clause.Message != "must be encrypted" {
		t.Errorf("got message %q", clause.Message)
	}
}

func TestParseDisjunctionAllThreeSpellings(t *testing.T) {
	for _, kw := range []string{"or", "OR", "|OR|"} {
		text := "rule r {\n\tA == 1 " + kw + " B == 2\n}\n"
		f := mustParse(t, text)
		d := f.Rules[0].Body.Clauses.Disjunctions[0]
		if len(d.Members) != 2 {
			t.Errorf("%q: got %d members, want 2", kw, len(d.Members))
		}
	}
}

func TestParseConjunctionIsImplicit(t *testing.T) {
	f := mustParse(t, "rule r {\n\tA == 1\n\tB == 2\n}\n")
	if len(f.Rules[0].Body.Clauses.Disjunctions) != 2 {
		t.Fatalf("got %d conjuncts", len(f.Rules[0].Body.Clauses.Disjunctions))
	}
}

func TestParseNamedRuleClauseAndNegation(t *testing.T) {
	f := mustParse(t, "rule base {\n\tA == 1\n}\nrule derived {\n\tbase\n\tNOT base\n}\n")
	derived := f.Rules[1]
	named, ok := derived.Body.Clauses.Disjunctions[0].Members[0].(*NamedRuleClause)
	if !ok || named.Name != "base" || named.Negated {
		t.Errorf("got %#v", derived.Body.Clauses.Disjunctions[0].Members[0])
	}
	negated, ok := derived.Body.Clauses.Disjunctions[1].Members[0].(*NamedRuleClause)
	if !ok || negated.Name != "base" || !negated.Negated {
		t.Errorf("got %#v", derived.Body.Clauses.Disjunctions[1].Members[0])
	}
}

func TestParseParameterizedRuleAndCall(t *testing.T) {
	f := mustParse(t, `
rule is_encrypted(resource) {
	%resource.Properties.Encrypted == true
}
rule main {
	is_encrypted(Resources.Bucket)
}
`)
	if len(f.ParameterizedRules) != 1 {
		t.Fatalf("got %d parameterized rules", len(f.ParameterizedRules))
	}
	pr := f.ParameterizedRules[0]
	if len(pr.Params) != 1 || pr.Params[0] != "resource" {
		t.Errorf("got params %v", pr.Params)
	}
	call, ok := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*ParameterizedNamedRuleClause)
	if !ok || call.Name != "is_encrypted" || len(call.Args) != 1 {
		t.Fatalf("got %#v", f.Rules[0].Body.Clauses.Disjunctions[0].Members[0])
	}
}

func TestParseBlockClause(t *testing.T) {
	f := mustParse(t, `
rule r {
	Resources.Bucket {
		Properties.Encrypted == true
	}
}
`)
	block, ok := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*BlockClause)
	if !ok {
		t.Fatalf("got %#v", f.Rules[0].Body.Clauses.Disjunctions[0].Members[0])
	}
	if len(block.Body.Clauses.Disjunctions) != 1 {
		t.Errorf("got %d clauses in block body", len(block.Body.Clauses.Disjunctions))
	}
}

func TestParseWhenClauseOnRule(t *testing.T) {
	f := mustParse(t, `
rule r when Resources.Bucket EXISTS {
	Resources.Bucket.Properties.Encrypted == true
}
`)
	if f.Rules[0].When == nil {
		t.Fatal("expected When to be set")
	}
	if len(f.Rules[0].When.Disjunctions) != 1 {
		t.Errorf("got %d when-conditions", len(f.Rules[0].When.Disjunctions))
	}
}

func TestParseWhenBlockInsideBody(t *testing.T) {
	f := mustParse(t, `
rule r {
	when Resources.Bucket EXISTS {
		Resources.Bucket.Properties.Encrypted == true
	}
}
`)
	wb, ok := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*WhenBlock)
	if !ok {
		t.Fatalf("got %#v", f.Rules[0].Body.Clauses.Disjunctions[0].Members[0])
	}
	if len(wb.Body.Clauses.Disjunctions) != 1 {
		t.Errorf("got %d clauses", len(wb.Body.Clauses.Disjunctions))
	}
}

func TestParseTypeBlockDesugars(t *testing.T) {
	f := mustParse(t, `
rule r {
	AWS::S3::Bucket {
		Properties.Encrypted == true
	}
}
`)
	tb, ok := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*TypeBlock)
	if !ok {
		t.Fatalf("got %#v", f.Rules[0].Body.Clauses.Disjunctions[0].Members[0])
	}
	if tb.TypeName != "AWS::S3::Bucket" {
		t.Errorf("got type name %q", tb.TypeName)
	}
	q := tb.DesugaredQuery()
	if len(q.Parts) != 3 {
		t.Fatalf("got %d query parts, want 3", len(q.Parts))
	}
	if _, ok := q.Parts[0].(KeyPart); !ok {
		t.Errorf("part 0: got %T", q.Parts[0])
	}
	if _, ok := q.Parts[1].(AllValuesPart); !ok {
		t.Errorf("part 1: got %T", q.Parts[1])
	}
	if _, ok := q.Parts[2].(FilterPart); !ok {
		t.Errorf("part 2: got %T", q.Parts[2])
	}
}

func TestParseLetWithLiteralAndQuery(t *testing.T) {
	f := mustParse(t, `
let allowed_regions = ["us-east-1", "us-west-2"]
let bucket = Resources.Bucket
rule r {
	%allowed_regions EXISTS
}
`)
	if len(f.Lets) != 2 {
		t.Fatalf("got %d top-level lets", len(f.Lets))
	}
	if f.Lets[0].Literal == nil || f.Lets[0].Literal.Kind().String() != "list" {
		t.Errorf("got %+v", f.Lets[0])
	}
	if f.Lets[1].Query == nil {
		t.Errorf("expected a query for second let")
	}
}

func TestParseMapLiteral(t *testing.T) {
	f := mustParse(t, `
let m = {"a": 1, "b": 2}
rule r {
	%m EXISTS
}
`)
	v := f.Lets[0].Literal
	if v.Kind().String() != "map" {
		t.Fatalf("got kind %v", v.Kind())
	}
	keys := v.MapKeys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("got keys %v", keys)
	}
}

func TestParseRangeLiteral(t *testing.T) {
	f := mustParse(t, `
let r1 = r(1,10)
let r2 = r[1,10]
rule r {
	%r1 EXISTS
}
`)
	lo, hi := f.Lets[0].Literal.IntRange()
	if lo != 1 || hi != 10 {
		t.Errorf("got range [%d,%d]", lo, hi)
	}
	bounds := f.Lets[0].Literal.RangeBoundsInfo()
	if bounds.LowerInclusive || bounds.UpperInclusive {
		t.Errorf("got bounds %+v, want both exclusive for r(...)", bounds)
	}
	bounds2 := f.Lets[1].Literal.RangeBoundsInfo()
	if !bounds2.LowerInclusive || !bounds2.UpperInclusive {
		t.Errorf("got bounds %+v, want both inclusive for r[...]", bounds2)
	}
}

func TestParseComparatorVariants(t *testing.T) {
	cases := map[string]CompareOp{
		"A != 1":          OpEq,
		"A IN [1,2]":      OpIn,
		"A NOT IN [1,2]":  OpIn,
		"A EXISTS":        OpExists,
		"A NOT EXISTS":    OpExists,
		"A EMPTY":         OpEmpty,
		"A IS_STRING":     OpIsString,
		"A KEYS == [\"x\"]": OpEq,
	}
	for src, wantOp := range cases {
		f := mustParse(t, "rule r {\n\t"+src+"\n}\n")
		clause := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*AccessClause)
		if clause.Cmp.Op != wantOp {
			t.Errorf("%q: got op %v, want %v", src, clause.Cmp.Op, wantOp)
		}
	}
}

func TestParseUnderscoreIsThisPart(t *testing.T) {
	f := mustParse(t, `
rule r {
	Resources.*[ _ == "x" ] {
		Type EXISTS
	}
}
`)
	block := f.Rules[0].Body.Clauses.Disjunctions[0].Members[0].(*BlockClause)
	filter := block.Query.Parts[len(block.Query.Parts)-1].(FilterPart)
	ac := filter.Predicate.Disjunctions[0].Members[0].(*AccessClause)
	if _, ok := ac.Query.Parts[0].(ThisPart); !ok {
		t.Errorf("got %#v", ac.Query.Parts[0])
	}
}

func TestParseDeterministic(t *testing.T) {
	text := `
rule r when Resources.Bucket EXISTS {
	Resources.Bucket.Properties.Encrypted == true << must be encrypted
	AWS::S3::Bucket {
		Properties.Versioning.Status == "Enabled" or Properties.Versioning.Status == "Suspended"
	}
}
`
	f1 := mustParse(t, text)
	f2 := mustParse(t, text)
	if f1.Rules[0].Name != f2.Rules[0].Name {
		t.Fatal("rule names differ across identical parses")
	}
	if len(f1.Rules[0].Body.Clauses.Disjunctions) != len(f2.Rules[0].Body.Clauses.Disjunctions) {
		t.Fatal("clause counts differ across identical parses")
	}
}

func TestParseMalformedInputReturnsParseError(t *testing.T) {
	_, err := ParseRules("rule r {\n\tA ==\n}\n", "test")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("got %T, want *ParseError", err)
	}
}
