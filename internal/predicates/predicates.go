// Package predicates provides ready-made query.Predicate constructors,
// including natural-language date predicates backed by olebedev/when.
package predicates

import (
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/kvindex/ihashmap/internal/query"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// After returns a predicate matching stored time.Time (or RFC3339 string)
// values strictly after t.
func After(t time.Time) query.Predicate {
	return func(v interface{}) bool {
		got, ok := asTime(v)
		return ok && got.After(t)
	}
}

// Before returns a predicate matching values strictly before t.
func Before(t time.Time) query.Predicate {
	return func(v interface{}) bool {
		got, ok := asTime(v)
		return ok && got.Before(t)
	}
}

// Between returns a predicate matching values within [start, end].
func Between(start, end time.Time) query.Predicate {
	return func(v interface{}) bool {
		got, ok := asTime(v)
		return ok && !got.Before(start) && !got.After(end)
	}
}

// ParseNaturalAfter parses a phrase like "3 days ago" or "next monday" with
// olebedev/when and returns a predicate matching stored times after the
// resolved instant. The reference instant anchors relative phrases.
func ParseNaturalAfter(phrase string, reference time.Time) (query.Predicate, error) {
	res, err := parser.Parse(phrase, reference)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return func(interface{}) bool { return false }, nil
	}
	return After(res.Time), nil
}

// GreaterThan returns a predicate matching numeric values greater than n.
func GreaterThan(n float64) query.Predicate {
	return func(v interface{}) bool {
		got, ok := asFloat(v)
		return ok && got > n
	}
}

// LessThan returns a predicate matching numeric values less than n.
func LessThan(n float64) query.Predicate {
	return func(v interface{}) bool {
		got, ok := asFloat(v)
		return ok && got < n
	}
}

// In returns a predicate matching any of the given literal values.
func In(values ...interface{}) query.Predicate {
	return func(v interface{}) bool {
		for _, want := range values {
			if want == v {
				return true
			}
		}
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
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

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
