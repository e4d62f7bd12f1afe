package value

import "fmt"

// Ordering is the result of a three-way Compare: how lhs relates to rhs.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// ComparisonError reports that two values could not be meaningfully
// compared: incompatible kinds (a map against an int), or a pair that
// Compare only knows how to test for equality, not ordering.
type ComparisonError struct {
	Op   string
	Lhs  *Value
	Rhs  *Value
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("cannot %s %s value at %s against %s value at %s", e.Op, e.Lhs.Kind(), e.Lhs.Path(), e.Rhs.Kind(), e.Rhs.Path())
}

// Equal reports whether lhs and rhs hold the same value. Int and Float
// compare numerically across kinds (1 == 1.0). A Regex on either side
// matches against the other side's string form. Lists and maps compare
// structurally, element by element / key by key; map comparison ignores
// key order. A BadValue on either side is a ComparisonError. Everything
// else requires identical kinds; differing kinds are simply unequal.
func Equal(lhs, rhs *Value) (bool, error) {
	if lhs.Kind() == KindBadValue || rhs.Kind() == KindBadValue {
		return false, &ComparisonError{Op: "compare equality of", Lhs: lhs, Rhs: rhs}
	}
	if lhs.Kind() == KindRegex || rhs.Kind() == KindRegex {
		return regexEqual(lhs, rhs)
	}
	if isNumeric(lhs.Kind()) && isNumeric(rhs.Kind()) {
		lf, rf := numericAsFloat(lhs), numericAsFloat(rhs)
		return lf == rf, nil
	}
	if lhs.Kind() != rhs.Kind() {
		return false, nil
	}
	switch lhs.Kind() {
	case KindNull:
		return true, nil
	case KindBool:
		return lhs.Bool() == rhs.Bool(), nil
	case KindChar:
		return lhs.Char() == rhs.Char(), nil
	case KindString:
		return lhs.Str() == rhs.Str(), nil
	case KindList:
		return listEqual(lhs.List(), rhs.List())
	case KindMap:
		return mapEqual(lhs, rhs)
	default:
		return false, &ComparisonError{Op: "compare equality of", Lhs: lhs, Rhs: rhs}
	}
}

func regexEqual(lhs, rhs *Value) (bool, error) {
	reVal, strVal := lhs, rhs
	if lhs.Kind() != KindRegex {
		reVal, strVal = rhs, lhs
	}
	if strVal.Kind() != KindString {
		return false, &ComparisonError{Op: "match regex against", Lhs: lhs, Rhs: rhs}
	}
	re, err := reVal.Regexp()
	if err != nil {
		return false, err
	}
	return re.MatchString(strVal.Str()), nil
}

func listEqual(a, b []*Value) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, err := Equal(a[i], b[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func mapEqual(lhs, rhs *Value) (bool, error) {
	if len(lhs.MapKeys()) != len(rhs.MapKeys()) {
		return false, nil
	}
	for _, k := range lhs.MapKeys() {
		lv, _ := lhs.MapGet(k)
		rv, ok := rhs.MapGet(k)
		if !ok {
			return false, nil
		}
		eq, err := Equal(lv, rv)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func isNumeric(k Kind) bool { return k == KindInt || k == KindFloat }

func numericAsFloat(v *Value) float64 {
	if v.Kind() == KindInt {
		return float64(v.Int())
	}
	return v.Float()
}

// Compare orders lhs against rhs for the <, <=, >, >= comparators. Int and
// Float are promoted and compared numerically. Strings and Chars compare
// lexically / by code point. Compare returns a ComparisonError for any
// other pair of kinds: a list, map, regex, null, bool, or BadValue
// operand cannot be ordered.
func Compare(lhs, rhs *Value) (Ordering, error) {
	if isNumeric(lhs.Kind()) && isNumeric(rhs.Kind()) {
		lf, rf := numericAsFloat(lhs), numericAsFloat(rhs)
		return orderFloat(lf, rf), nil
	}
	if lhs.Kind() == KindString && rhs.Kind() == KindString {
		return orderString(lhs.Str(), rhs.Str()), nil
	}
	if lhs.Kind() == KindChar && rhs.Kind() == KindChar {
		return orderRune(lhs.Char(), rhs.Char()), nil
	}
	return Equal, &ComparisonError{Op: "order", Lhs: lhs, Rhs: rhs}
}

func orderFloat(a, b float64) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func orderString(a, b string) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func orderRune(a, b rune) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// InRange reports whether v falls within a Range* value's bounds,
// respecting its inclusivity flags. v must be numeric/char matching the
// range's own element kind; a kind mismatch is a ComparisonError.
func InRange(v, rangeVal *Value) (bool, error) {
	bounds := rangeVal.RangeBoundsInfo()
	switch rangeVal.Kind() {
	case KindRangeInt:
		if v.Kind() != KindInt {
			return false, &ComparisonError{Op: "test int range membership of", Lhs: v, Rhs: rangeVal}
		}
		lo, hi := rangeVal.IntRange()
		return withinInt(v.Int(), lo, hi, bounds), nil
	case KindRangeFloat:
		if !isNumeric(v.Kind()) {
			return false, &ComparisonError{Op: "test float range membership of", Lhs: v, Rhs: rangeVal}
		}
		lo, hi := rangeVal.FloatRange()
		return withinFloat(numericAsFloat(v), lo, hi, bounds), nil
	case KindRangeChar:
		if v.Kind() != KindChar {
			return false, &ComparisonError{Op: "test char range membership of", Lhs: v, Rhs: rangeVal}
		}
		lo, hi := rangeVal.CharRange()
		return withinRune(v.Char(), lo, hi, bounds), nil
	default:
		return false, &ComparisonError{Op: "test range membership against non-range", Lhs: v, Rhs: rangeVal}
	}
}

func withinInt(v, lo, hi int64, b RangeBounds) bool {
	lowOK := v > lo || (b.LowerInclusive && v == lo)
	highOK := v < hi || (b.UpperInclusive && v == hi)
	return lowOK && highOK
}

func withinFloat(v, lo, hi float64, b RangeBounds) bool {
	lowOK := v > lo || (b.LowerInclusive && v == lo)
	highOK := v < hi || (b.UpperInclusive && v == hi)
	return lowOK && highOK
}

func withinRune(v, lo, hi rune, b RangeBounds) bool {
	lowOK := v > lo || (b.LowerInclusive && v == lo)
	highOK := v < hi || (b.UpperInclusive && v == hi)
	return lowOK && highOK
}
