package project

import (
	"sort"

	"github.com/langservice/projectcore/internal/compilation"
)

// diffSorted applies the classic two-pointer merge-diff over two
// sorted, deduplicated string slices (§4.2: "enumerate-inserts-and-
// deletes ordering over two sorted sequences"), used for both the
// external-files diff and the getChangesSinceVersion file-list diff.
func diffSorted(oldSorted, newSorted []string) (inserted, removed []string) {
	i, j := 0, 0
	for i < len(oldSorted) && j < len(newSorted) {
		switch {
		case oldSorted[i] == newSorted[j]:
			i++
			j++
		case oldSorted[i] < newSorted[j]:
			removed = append(removed, oldSorted[i])
			i++
		default:
			inserted = append(inserted, newSorted[j])
			j++
		}
	}
	removed = append(removed, oldSorted[i:]...)
	inserted = append(inserted, newSorted[j:]...)
	return inserted, removed
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameProgram compares two Program snapshots by file-name content
// rather than pointer identity: the Compilation Engine is a black box
// that may allocate a fresh Program even when nothing changed, so
// identity isn't a usable signal (§4.2 step 2b).
func sameProgram(a, b *compilation.Program) bool {
	if a == nil || b == nil {
		return a == b
	}
	an, bn := sortedCopy(a.FileNames()), sortedCopy(b.FileNames())
	return equalStringSlices(an, bn)
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
