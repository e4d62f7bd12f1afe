package value

import "fmt"

// LoadError reports that a document's raw text could not be turned into a
// Value tree: malformed JSON/YAML or an unresolvable YAML alias. A YAML
// scalar tagged with a type it cannot coerce to (e.g. !!int on "abc") is
// not a LoadError; it loads as a KindBadValue node.
type LoadError struct {
	Format string // "json" or "yaml"
	Name   string // the document's name, for error messages
	Path   Path
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: failed to load %s at %s: %s: %v", e.Name, e.Format, e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: failed to load %s at %s: %s", e.Name, e.Format, e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Cause }
