// Package unresolvedimports implements the UnresolvedImportsIndex
// (spec §2 item 1, §4.3): a per-file cache of bare module specifiers a
// file failed to resolve, plus the extraction algorithm that turns a
// Compilation Engine resolution table into that cache entry.
package unresolvedimports

import (
	"sort"
	"strings"
	"sync"

	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/resolution"
)

// Index is the per-project UnresolvedImportsIndex. It caches, per file,
// the canonicalised bare specifiers that file failed to resolve, and
// counts a version bump on every mutation so callers can tell whether
// the cache changed since they last looked.
type Index struct {
	mu      sync.Mutex
	entries map[core.Path][]string
	version uint64
}

// NewIndex creates an empty UnresolvedImportsIndex.
func NewIndex() *Index {
	return &Index{entries: make(map[core.Path][]string)}
}

// Get returns the cached specifier list for path and whether an entry
// exists at all (an empty-but-present list means "computed, none
// unresolved", distinct from "not yet computed").
func (idx *Index) Get(path core.Path) ([]string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	list, ok := idx.entries[path]
	return list, ok
}

// Set stores path's computed list, bumping the version.
func (idx *Index) Set(path core.Path, list []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[path] = list
	idx.version++
}

// Delete drops path's cache entry, e.g. when the file is removed from
// the project or its resolutions changed during a graph update (§4.2
// step 3).
func (idx *Index) Delete(path core.Path) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[path]; ok {
		delete(idx.entries, path)
		idx.version++
	}
}

// Clear empties the whole index, e.g. when setCompilerOptions
// invalidates module resolution (§4.1).
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[core.Path][]string)
	idx.version++
}

// Version returns the monotonically increasing mutation counter.
func (idx *Index) Version() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.version
}

// ExtractFile computes (or returns the cached) unresolved-specifier
// list for one file, following §4.3's algorithm: walk the file's
// resolvedModules table, skip anything that resolved and anything
// relative, canonicalise what's left to its package prefix, and cache
// the sorted, deduplicated result.
func ExtractFile(idx *Index, path core.Path, resolved map[string]resolution.Resolution) []string {
	if cached, ok := idx.Get(path); ok {
		return cached
	}

	seen := make(map[string]struct{})
	for specifier, res := range resolved {
		if !res.Failed() {
			continue
		}
		if isRelativeSpecifier(specifier) {
			continue
		}
		seen[canonicalizeSpecifier(specifier)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)

	idx.Set(path, out)
	return out
}

// Aggregate deduplicates and sorts the per-file lists for files into
// the project-wide lastCachedUnresolvedImportsList (§4.3's final
// step), used by the project's graph update to build the list it hands
// to the typings helper.
func Aggregate(perFile map[core.Path][]string) []string {
	seen := make(map[string]struct{})
	for _, list := range perFile {
		for _, specifier := range list {
			seen[specifier] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func isRelativeSpecifier(specifier string) bool {
	s := strings.TrimSpace(specifier)
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

// canonicalizeSpecifier trims whitespace and reduces a bare or scoped
// specifier to its package prefix: the segment before the first "/"
// for a bare name, or before the second "/" for a scoped name
// (leading "@").
func canonicalizeSpecifier(specifier string) string {
	s := strings.TrimSpace(specifier)
	if s == "" {
		return s
	}

	slashesToSkip := 1
	if s[0] == '@' {
		slashesToSkip = 2
	}

	idx := -1
	count := 0
	for i, r := range s {
		if r == '/' {
			count++
			if count == slashesToSkip {
				idx = i
				break
			}
		}
	}
	if idx == -1 {
		return s
	}
	return s[:idx]
}
