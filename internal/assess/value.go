package assess

import "math"

// intValue extracts an integer from a decoded document or request value.
// JSON decoding yields float64 for every number, YAML yields int; both are
// accepted when integral. Booleans are rejected outright: a true must never
// satisfy an integer-index comparison, whatever the transport encoding did
// to it.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case bool:
		return 0, false
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// intSet normalizes a decoded list into a set of integers. Any entry that
// is not an integer, booleans included, invalidates the whole list.
func intSet(v any) (map[int]struct{}, bool) {
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []int:
		set := make(map[int]struct{}, len(list))
		for _, n := range list {
			set[n] = struct{}{}
		}
		return set, true
	default:
		return nil, false
	}

	set := make(map[int]struct{}, len(items))
	for _, item := range items {
		n, ok := intValue(item)
		if !ok {
			return nil, false
		}
		set[n] = struct{}{}
	}
	return set, true
}

func equalSets(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if _, ok := b[n]; !ok {
			return false
		}
	}
	return true
}
