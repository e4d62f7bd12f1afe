package rules

import "testing"

func TestComparatorString(t *testing.T) {
	cases := []struct {
		cmp  Comparator
		want string
	}{
		{Comparator{Op: OpEq}, "EQUALS"},
		{Comparator{Op: OpEq, Negated: true}, "NOT EQUALS"},
		{Comparator{Op: OpExists, Negated: true}, "NOT EXISTS"},
		{Comparator{Op: OpIn, Keyed: true}, "KEYS IN"},
	}
	for _, c := range cases {
		if got := c.cmp.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestComparatorIsUnaryAndNegatable(t *testing.T) {
	if !(Comparator{Op: OpExists}).IsUnary() {
		t.Error("EXISTS should be unary")
	}
	if (Comparator{Op: OpEq}).IsUnary() {
		t.Error("EQUALS should not be unary")
	}
	if !(Comparator{Op: OpEq}).Negatable() {
		t.Error("EQUALS should be negatable (!=)")
	}
	if (Comparator{Op: OpLt}).Negatable() {
		t.Error("LESS THAN should not be negatable")
	}
}

func TestQueryString(t *testing.T) {
	q := Query{Parts: []QueryPart{KeyPart{Name: "Resources"}, KeyPart{Name: "Bucket"}, IndexPart{Index: 0}}}
	if got, want := q.String(), "Resources.Bucket[0]"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
