package eval

import (
	"encoding/json"
	"testing"

	"github.com/gzhole/guardcore/internal/config"
	"github.com/gzhole/guardcore/internal/rules"
	"github.com/gzhole/guardcore/internal/value"
)

func mustParseRules(t *testing.T, text string) *rules.RulesFile {
	t.Helper()
	f, err := rules.ParseRules(text, "test.guard")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	return f
}

func mustLoadJSON(t *testing.T, text string) *value.Value {
	t.Helper()
	v, err := value.FromJSON(text, "test.json")
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	return v
}

func runFile(t *testing.T, ruleText, docText string) (Status, *Record) {
	t.Helper()
	file := mustParseRules(t, ruleText)
	doc := mustLoadJSON(t, docText)
	rec := NewRecorder()
	scope := NewRootScope(file, doc, config.DefaultConfig(), rec)
	status, err := EvaluateRulesFile(file, scope, "test.json")
	if err != nil {
		t.Fatalf("EvaluateRulesFile: %v", err)
	}
	return status, rec.ExtractRecord()
}

func TestEncryptionPresentPasses(t *testing.T) {
	status, _ := runFile(t, `
rule encryption_enabled {
	Properties.Encrypted == true
}
`, `{"Properties": {"Encrypted": true}}`)
	if status != Pass {
		t.Errorf("got %s, want PASS", status)
	}
}

func TestEncryptionMissingFails(t *testing.T) {
	status, _ := runFile(t, `
rule encryption_enabled {
	Properties.Encrypted == true
}
`, `{"Properties": {}}`)
	if status != Fail {
		t.Errorf("got %s, want FAIL", status)
	}
}

func TestSkipWhenConditionNotMet(t *testing.T) {
	status, rec := runFile(t, `
rule only_for_prod {
	when Properties.Env == "prod" {
		Properties.Encrypted == true
	}
}
`, `{"Properties": {"Env": "dev", "Encrypted": false}}`)
	if status != Skip {
		t.Errorf("got %s, want SKIP", status)
	}
	if rec == nil {
		t.Fatal("expected a record tree")
	}
}

func TestInMembershipPassesAndFails(t *testing.T) {
	ruleText := `
rule allowed_region {
	Properties.Region IN ["us-east-1","us-west-2"]
}
`
	status, _ := runFile(t, ruleText, `{"Properties": {"Region": "us-east-1"}}`)
	if status != Pass {
		t.Errorf("got %s, want PASS for allowed region", status)
	}
	status, _ = runFile(t, ruleText, `{"Properties": {"Region": "eu-west-1"}}`)
	if status != Fail {
		t.Errorf("got %s, want FAIL for disallowed region", status)
	}
}

func TestMapKeyFilterRestrictsBlockToMatchingResources(t *testing.T) {
	ruleText := `
rule s3_resources_are_buckets {
	Resources[ keys == /^s3/ ] {
		Type == "AWS::S3::Bucket"
	}
}
`
	doc := `{
		"Resources": {
			"s3bucket": {"Type": "AWS::S3::Bucket"},
			"ec2inst": {"Type": "AWS::EC2::Instance"}
		}
	}`
	status, _ := runFile(t, ruleText, doc)
	if status != Pass {
		t.Errorf("got %s, want PASS (only the s3-prefixed resource is checked)", status)
	}
}

func TestTypeBlockDesugaringMatchesEquivalentBlockClause(t *testing.T) {
	typeBlockText := `
rule buckets_encrypted {
	AWS::S3::Bucket {
		Properties.Encrypted == true
	}
}
`
	equivalentText := `
rule buckets_encrypted {
	Resources.*[ Type == "AWS::S3::Bucket" ] {
		Properties.Encrypted == true
	}
}
`
	doc := `{
		"Resources": {
			"Bucket1": {"Type": "AWS::S3::Bucket", "Properties": {"Encrypted": true}},
			"Bucket2": {"Type": "AWS::S3::Bucket", "Properties": {"Encrypted": false}}
		}
	}`
	st1, _ := runFile(t, typeBlockText, doc)
	st2, _ := runFile(t, equivalentText, doc)
	if st1 != st2 {
		t.Errorf("type block gave %s, equivalent block clause gave %s", st1, st2)
	}
	if st1 != Fail {
		t.Errorf("got %s, want FAIL (Bucket2 is not encrypted)", st1)
	}
}

func TestParameterizedRuleInvocation(t *testing.T) {
	status, _ := runFile(t, `
rule min_length(v, n) {
	%v EXISTS
}

rule password_set {
	min_length(Properties.Password, 8)
}
`, `{"Properties": {"Password": "hunter2"}}`)
	if status != Pass {
		t.Errorf("got %s, want PASS", status)
	}
}

func TestNamedRuleMemoizedAcrossReferences(t *testing.T) {
	file := mustParseRules(t, `
rule shared {
	Properties.Encrypted == true
}

rule first {
	shared
}

rule second {
	shared
}
`)
	doc := mustLoadJSON(t, `{"Properties": {"Encrypted": true}}`)
	rec := NewRecorder()
	scope := NewRootScope(file, doc, config.DefaultConfig(), rec)
	status, err := EvaluateRulesFile(file, scope, "test.json")
	if err != nil {
		t.Fatalf("EvaluateRulesFile: %v", err)
	}
	if status != Pass {
		t.Fatalf("got %s, want PASS", status)
	}
	root := rec.ExtractRecord()
	if countContext(root, "shared") != 1 {
		t.Errorf("got %d records for 'shared', want 1 (memoized)", countContext(root, "shared"))
	}
}

func countContext(r *Record, context string) int {
	if r == nil {
		return 0
	}
	n := 0
	if r.Context == context {
		n++
	}
	for _, c := range r.Children {
		n += countContext(c, context)
	}
	return n
}

func TestDisjunctionShortCircuitStopsAtFirstPass(t *testing.T) {
	status, rec := runFile(t, `
rule either_region {
	Properties.Region == "us-east-1" or Properties.Region == "us-west-2"
}
`, `{"Properties": {"Region": "us-east-1"}}`)
	if status != Pass {
		t.Fatalf("got %s, want PASS", status)
	}
	disjunctions := findAllContext(rec, "disjunction")
	if len(disjunctions) == 0 {
		t.Fatal("expected at least one disjunction record")
	}
	found := false
	for _, d := range disjunctions {
		if len(d.Children) == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a disjunction record with exactly one evaluated member (short-circuit)")
	}
}

func findAllContext(r *Record, context string) []*Record {
	if r == nil {
		return nil
	}
	var out []*Record
	if r.Context == context {
		out = append(out, r)
	}
	for _, c := range r.Children {
		out = append(out, findAllContext(c, context)...)
	}
	return out
}

func TestFanOutAccessClauseRequiresEveryResolvedCursorToMatch(t *testing.T) {
	ruleText := `
rule all_buckets_encrypted {
	Resources.*.Properties.Encrypted == true
}
`
	allEncrypted := `{
		"Resources": {
			"Bucket1": {"Properties": {"Encrypted": true}},
			"Bucket2": {"Properties": {"Encrypted": true}}
		}
	}`
	status, _ := runFile(t, ruleText, allEncrypted)
	if status != Pass {
		t.Errorf("got %s, want PASS when every resource matches", status)
	}

	oneUnencrypted := `{
		"Resources": {
			"Bucket1": {"Properties": {"Encrypted": true}},
			"Bucket2": {"Properties": {"Encrypted": false}}
		}
	}`
	status, _ = runFile(t, ruleText, oneUnencrypted)
	if status != Fail {
		t.Errorf("got %s, want FAIL when one resource of several does not match", status)
	}
}

func TestAccessClauseEqualityAgainstFanningRHSRequiresAllRHSElements(t *testing.T) {
	ruleText := `
rule single_region_deployment {
	Properties.Region == Resources.*.Properties.Region
}
`
	sameRegion := `{
		"Properties": {"Region": "us-east-1"},
		"Resources": {
			"A": {"Properties": {"Region": "us-east-1"}},
			"B": {"Properties": {"Region": "us-east-1"}}
		}
	}`
	status, _ := runFile(t, ruleText, sameRegion)
	if status != Pass {
		t.Errorf("got %s, want PASS when every RHS element equals the LHS", status)
	}

	mixedRegion := `{
		"Properties": {"Region": "us-east-1"},
		"Resources": {
			"A": {"Properties": {"Region": "us-east-1"}},
			"B": {"Properties": {"Region": "us-west-2"}}
		}
	}`
	status, _ = runFile(t, ruleText, mixedRegion)
	if status != Fail {
		t.Errorf("got %s, want FAIL when one RHS element differs", status)
	}
}

func TestKeyedInComparatorMatchesAnyMapKey(t *testing.T) {
	status, _ := runFile(t, `
rule has_name_tag {
	Properties.Tags KEYS IN ["Name","Owner"]
}
`, `{"Properties": {"Tags": {"Name": "web", "Env": "prod"}}}`)
	if status != Pass {
		t.Errorf("got %s, want PASS (one key is in the set)", status)
	}

	status, _ = runFile(t, `
rule has_name_tag {
	Properties.Tags KEYS IN ["Name","Owner"]
}
`, `{"Properties": {"Tags": {"Env": "prod"}}}`)
	if status != Fail {
		t.Errorf("got %s, want FAIL (no key is in the set)", status)
	}
}

func TestRecordTreeMarshalsToJSON(t *testing.T) {
	_, rec := runFile(t, `
rule encryption_enabled {
	Properties.Encrypted == true
}
`, `{"Properties": {"Encrypted": true}}`)
	if rec == nil {
		t.Fatal("expected a non-nil record tree")
	}
	if _, err := json.Marshal(rec); err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
}
