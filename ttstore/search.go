package ttstore

// lowerBoundSearch binary-searches a sorted size-n array, maintaining the
// invariant keyAt(low) <= target < keyAt(high) over the conceptual range
// [low, high) (low starts at -1 standing for -infinity, high starts at n
// standing for +infinity), and terminates when high == low+1.
//
// It returns the index of the match iff keyAt(low) == target at
// termination; on duplicate keys this is the rightmost occurrence, which
// matches write-time append-last-wins semantics (the producer here never
// writes duplicates, but the search contract holds regardless).
func lowerBoundSearch(n int, keyAt func(i int) int32, target int32) (int, bool) {
	low, high := -1, n
	for high-low > 1 {
		mid := (low + high) / 2
		if keyAt(mid) <= target {
			low = mid
		} else {
			high = mid
		}
	}
	if low >= 0 && low < n && keyAt(low) == target {
		return low, true
	}
	return -1, false
}
