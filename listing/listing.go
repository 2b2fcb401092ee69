// Package listing holds the fetch-once, filter and sort helpers shared by
// every list view, plus the pager used for server-paginated collections.
package listing

import "slices"

// Predicate is one filter criterion. A nil predicate matches everything.
type Predicate[T any] func(T) bool

// Filter keeps the items matching every predicate, in input order.
func Filter[T any](items []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(items))
next:
	for _, it := range items {
		for _, p := range preds {
			if p != nil && !p(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	return out
}

// Sort returns a sorted copy; items comparing equal keep their input order.
func Sort[T any](items []T, cmp func(a, b T) int) []T {
	out := slices.Clone(items)
	if cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}
