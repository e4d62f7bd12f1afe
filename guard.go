// Package guardcore is the public facade of the policy evaluation
// engine: parse a rule file, load a document, build a root scope, run
// the rules against it, and extract the evaluation trace. This mirrors
// the five-function external surface most callers need; everything else
// lives in internal/ for callers that want finer control (a custom
// EvaluatorConfig, a pre-built Scope tree, a specific rule subset).
package guardcore

import (
	"github.com/gzhole/guardcore/internal/config"
	"github.com/gzhole/guardcore/internal/eval"
	"github.com/gzhole/guardcore/internal/rules"
	"github.com/gzhole/guardcore/internal/value"
)

// Format identifies the serialization of a document passed to LoadValue.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// ParseRules parses rule-language text into a RulesFile.
func ParseRules(text, name string) (*rules.RulesFile, error) {
	return rules.ParseRules(text, name)
}

// LoadValue parses a document into the path-aware Value tree rules are
// evaluated against.
func LoadValue(text, name string, format Format) (*value.Value, error) {
	if format == FormatYAML {
		return value.FromYAML(text, name)
	}
	return value.FromJSON(text, name)
}

// MakeRootScope builds the top-level evaluation Scope for file against
// root, using the default EvaluatorConfig and a fresh Recorder.
func MakeRootScope(file *rules.RulesFile, root *value.Value) *eval.Scope {
	return eval.NewRootScope(file, root, config.DefaultConfig(), eval.NewRecorder())
}

// Evaluate runs every rule of file against scope, returning the combined
// PASS/FAIL/SKIP outcome. dataName labels the run's top-level record.
func Evaluate(file *rules.RulesFile, scope *eval.Scope, dataName string) (eval.Status, error) {
	return eval.EvaluateRulesFile(file, scope, dataName)
}

// ExtractRecords returns the completed evaluation trace tree built while
// Evaluate ran against scope.
func ExtractRecords(scope *eval.Scope) *eval.Record {
	return scope.Recorder().ExtractRecord()
}
