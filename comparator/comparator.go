// Package comparator implements scan-type selection (spec.md §4.G.2): a
// table mapping a scan type to a comparator predicate over the engine's
// scalar type, with the float epsilon handling bigger_than/smaller_than
// require.
package comparator

import (
	"github.com/fulldump/memscan/scanresult"
)

// Numeric is the set of fixed-width scalar types the engine may be
// instantiated over (spec.md §1: "polymorphic over a fixed-width
// scalar"). It excludes strings, so unlike cmp.Ordered it also supports
// the arithmetic increased_by/decreased_by need.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Float32Epsilon and Float64Epsilon are the tolerances bigger_than and
// smaller_than apply when T is a floating-point type, matching the
// constants in the original implementation's comparator table.
const (
	Float32Epsilon = 1e-4
	Float64Epsilon = 1e-7
)

// IsRelative reports whether t's reference argument is the element's
// prior value (next-pass relative scans) rather than a fixed v1
// (absolute scans, seed or next-pass). unknown_value is not relative;
// For maps it to an accept-everything comparator.
func IsRelative(t scanresult.ScanType) bool {
	switch t {
	case scanresult.Changed, scanresult.Unchanged,
		scanresult.IncreasedValue, scanresult.DecreasedValue,
		scanresult.IncreasedBy, scanresult.DecreasedBy:
		return true
	default:
		return false
	}
}

// For builds a scanresult.Comparator[T] for the given scan type. v2 is
// only consulted for value_between; pass the zero value otherwise.
// increased_by/decreased_by are handled by Delta, not For, since they
// need T's own subtraction.
func For[T Numeric](t scanresult.ScanType) scanresult.Comparator[T] {
	switch t {
	case scanresult.ExactValue:
		return func(new, v1, _ T) bool { return new == v1 }
	case scanresult.BiggerThan:
		return biggerThan[T]
	case scanresult.SmallerThan:
		return smallerThan[T]
	case scanresult.Changed:
		return func(new, old, _ T) bool { return new != old }
	case scanresult.Unchanged:
		return func(new, old, _ T) bool { return new == old }
	case scanresult.IncreasedValue:
		return func(new, old, _ T) bool { return new > old }
	case scanresult.DecreasedValue:
		return func(new, old, _ T) bool { return new < old }
	case scanresult.ValueBetween:
		return func(new, v1, v2 T) bool { return v1 < new && new < v2 }
	case scanresult.UnknownValue:
		// Seed-only: accept everything, entries are never materialized
		// for this scan type (engine skips search_value entirely).
		return func(T, T, T) bool { return true }
	default:
		// increased_by/decreased_by route through Delta; a caller that
		// reaches here for one of them, or for a future unrecognized
		// type, gets spec.md §7(iv)'s "never matches" fallback.
		return func(T, T, T) bool { return false }
	}
}

// Delta builds the increased_by/decreased_by comparator family.
func Delta[T Numeric](t scanresult.ScanType) scanresult.Comparator[T] {
	switch t {
	case scanresult.IncreasedBy:
		return func(new, old, delta T) bool { return new-old == delta }
	case scanresult.DecreasedBy:
		return func(new, old, delta T) bool { return old-new == delta }
	default:
		return For[T](t)
	}
}

func biggerThan[T Numeric](new, v1, _ T) bool {
	switch ref := any(v1).(type) {
	case float64:
		return any(new).(float64) > ref+Float64Epsilon
	case float32:
		return any(new).(float32) > ref+Float32Epsilon
	default:
		return new > v1
	}
}

func smallerThan[T Numeric](new, v1, _ T) bool {
	switch ref := any(v1).(type) {
	case float64:
		return any(new).(float64) < ref-Float64Epsilon
	case float32:
		return any(new).(float32) < ref-Float32Epsilon
	default:
		return new < v1
	}
}
