package rangeutil

import "cmp"

// Search looks for key in items, which must be sorted by the key extracted
// with keyFn. It returns the index of a matching element or, when there is
// none, the negated insertion point. Callers recover a clamped insertion
// index with Abs. An insertion point of 0 is indistinguishable from a match
// at index 0.
func Search[T any, K cmp.Ordered](items []T, key K, keyFn func(T) K) int {
	low, high := 0, len(items)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		switch k := keyFn(items[mid]); {
		case k < key:
			low = mid + 1
		case k > key:
			high = mid - 1
		default:
			return mid
		}
	}
	return -low
}

// SearchFloat is Search for float keys, treating keys within epsilon of each
// other as equal.
func SearchFloat[T any](items []T, key, epsilon float64, keyFn func(T) float64) int {
	low, high := 0, len(items)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		k := keyFn(items[mid])
		switch {
		case k < key-epsilon:
			low = mid + 1
		case k > key+epsilon:
			high = mid - 1
		default:
			return mid
		}
	}
	return -low
}

// Abs recovers an index from a Search result.
func Abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
