// Package resolution implements the Resolution Cache Adapter (spec
// §2.2): a thin wrapper around the external module resolver that the
// Project core asks to record which files' resolutions changed during
// a graph update, and later queries per-file to decide what the
// Compilation Engine may safely reuse.
package resolution

import (
	"sort"
	"sync"

	"github.com/langservice/projectcore/internal/core"
)

// Resolution is a single (specifier -> resolved module or absent) result.
type Resolution struct {
	Specifier    string
	ResolvedFile string // "" means resolution failed
}

// Failed reports whether the specifier could not be resolved.
func (r Resolution) Failed() bool { return r.ResolvedFile == "" }

// Cache is the Resolution Cache Adapter. It is keyed by the containing
// file's canonical path, matching the way the Compilation Engine
// reports a program's per-file resolvedModules table (spec §3).
type Cache struct {
	mu sync.Mutex

	resolutions map[core.Path]map[string]Resolution

	recording bool
	changed   map[core.Path]struct{}

	// invalidated is the set hasInvalidatedResolution(path) answers
	// true for — populated by Invalidate and left untouched by
	// FinishRecording (a file stays invalidated until Record stores
	// its recomputed resolutions, or Clear empties the cache).
	invalidated map[core.Path]struct{}
}

// NewCache creates an empty Resolution Cache Adapter.
func NewCache() *Cache {
	return &Cache{
		resolutions: make(map[core.Path]map[string]Resolution),
		invalidated: make(map[core.Path]struct{}),
	}
}

// Invalidate forces path's cached resolutions to be recomputed on the
// next lookup — called by removeFile (§4.1).
func (c *Cache) Invalidate(path core.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resolutions, path)
	c.invalidated[path] = struct{}{}
}

// HasInvalidatedResolution answers the per-file predicate the core
// publishes on the language-service host during updateGraph step 1.
func (c *Cache) HasInvalidatedResolution(path core.Path) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.invalidated[path]
	return ok
}

// Clear discards every cached resolution and invalidation flag —
// called by setCompilerOptions (§4.1) when the new options affect
// module resolution, so nothing from the previous option set lingers.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolutions = make(map[core.Path]map[string]Resolution)
	c.invalidated = make(map[core.Path]struct{})
}

// StartRecording begins tracking which files' resolutions change
// during the upcoming Compilation Engine pass (§4.2 step 1).
func (c *Cache) StartRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = true
	c.changed = make(map[core.Path]struct{})
}

// FinishRecording stops tracking and returns the set of files whose
// resolutions changed since StartRecording, sorted for determinism
// (§4.2 step 3: "collect the set changedResolutions").
func (c *Cache) FinishRecording() []core.Path {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recording = false
	out := make([]core.Path, 0, len(c.changed))
	for p := range c.changed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	c.changed = nil
	return out
}

// Record stores the resolution table for containingFile as computed
// by the Compilation Engine for this pass, diffing against the
// previous entry to decide whether containingFile belongs in the
// changed set when recording is active. Once recorded, containingFile
// is no longer considered invalidated.
func (c *Cache) Record(containingFile core.Path, resolutions map[string]Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, hadPrev := c.resolutions[containingFile]
	if c.recording && (!hadPrev || !sameResolutions(prev, resolutions)) {
		c.changed[containingFile] = struct{}{}
	}
	c.resolutions[containingFile] = resolutions
	delete(c.invalidated, containingFile)
}

// Lookup returns the previously-recorded resolution table for a file,
// used by unresolved-import extraction (§4.3).
func (c *Cache) Lookup(containingFile core.Path) map[string]Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolutions[containingFile]
}

func sameResolutions(a, b map[string]Resolution) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || bv != v {
			return false
		}
	}
	return true
}
