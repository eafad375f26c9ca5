// Package query defines the matcher used to test documents against a query,
// and to evaluate whether a document satisfies the fields an index covers.
//
// A query value is either a literal (matched with ==) or a predicate (an
// arbitrary func(interface{}) bool). Keeping the two as a tagged union lets
// the planner decide, field by field, whether an index's stored key can be
// used for an equality lookup or whether the index's stored keys must be
// enumerated and the term evaluated against each one — a predicate field can
// never participate in an index-key equality match, since the index stores
// the literal value, not the predicate's outcome.
package query

// Value is a single query term: either a literal or a Predicate.
type Value struct {
	literal   interface{}
	predicate Predicate
	isPred    bool
}

// Predicate is a user-supplied matcher for a single field's value.
type Predicate func(interface{}) bool

// Literal wraps a plain value for equality comparison.
func Literal(v interface{}) Value {
	return Value{literal: v}
}

// Pred wraps a predicate function.
func Pred(p Predicate) Value {
	return Value{predicate: p, isPred: true}
}

// IsPredicate reports whether this term is a predicate rather than a literal.
func (v Value) IsPredicate() bool {
	return v.isPred
}

// LiteralValue returns the wrapped literal value. Only valid when !IsPredicate().
func (v Value) LiteralValue() interface{} {
	return v.literal
}

// Matches reports whether the stored field value satisfies this term.
func (v Value) Matches(stored interface{}) bool {
	if v.isPred {
		return v.predicate(stored)
	}
	return equal(v.literal, stored)
}

// Query is a set of field constraints, each a literal or a predicate.
type Query map[string]Value

// Matches reports whether doc satisfies every term in the query. A field
// absent from doc is passed to the term as nil rather than short-circuiting
// the match, so a predicate written to match absence (e.g. checking for
// nil) can still succeed against a missing field.
func (q Query) Matches(doc map[string]interface{}) bool {
	for field, term := range q {
		stored := doc[field]
		if !term.Matches(stored) {
			return false
		}
	}
	return true
}

// EqualityFields returns the subset of the query's field names that carry
// literal terms, and a map of field->literal for those terms. Predicate
// fields are excluded since they cannot be looked up via an index key.
func (q Query) EqualityFields() (names []string, values map[string]interface{}) {
	values = make(map[string]interface{})
	for field, term := range q {
		if term.isPred {
			continue
		}
		names = append(names, field)
		values[field] = term.literal
	}
	return names, values
}

func equal(a, b interface{}) bool {
	switch av := a.(type) {
	case int:
		if bv, ok := toFloat(b); ok {
			return float64(av) == bv
		}
	case int64:
		if bv, ok := toFloat(b); ok {
			return float64(av) == bv
		}
	case float64:
		if bv, ok := toFloat(b); ok {
			return av == bv
		}
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
