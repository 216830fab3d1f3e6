// Package scriptstore implements the Script Store external
// collaborator described in spec §1/§6: it owns file content and
// open/close state, and hands out the per-file ScriptInfo records the
// Project core attaches to and detaches from. The Project core never
// reads file content itself — only the store does, through an
// afero.Fs so tests can swap a real disk for an in-memory one.
package scriptstore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/langservice/projectcore/internal/core"
)

// ScriptKind classifies a ScriptInfo's source dialect.
type ScriptKind int

const (
	KindUnknown ScriptKind = iota
	KindJS
	KindJSX
	KindTS
	KindTSX
	KindDTS
	KindJSON
)

// IsDynamicDialectOrDts reports whether a file is JS/JSX/declaration —
// the predicate Inferred projects use to decide isJsInferredProject
// and type acquisition's "allRootsAreJsOrDts" (§4.4).
func (k ScriptKind) IsDynamicDialectOrDts() bool {
	switch k {
	case KindJS, KindJSX, KindDTS:
		return true
	default:
		return false
	}
}

func KindFromExtension(ext string) ScriptKind {
	switch ext {
	case ".ts":
		return KindTS
	case ".tsx":
		return KindTSX
	case ".js", ".mjs", ".cjs":
		return KindJS
	case ".jsx":
		return KindJSX
	case ".d.ts":
		return KindDTS
	case ".json":
		return KindJSON
	default:
		return KindUnknown
	}
}

// ScriptInfo is the canonical per-file record shared between the
// Script Store and every Project attached to it (Ownership table,
// spec §3: "shared between Project and Script Store").
type ScriptInfo struct {
	mu sync.RWMutex

	path         core.Path
	fileName     string
	kind         ScriptKind
	openedByClient bool
	mixedContent bool
	content      string
	version      int

	// attachedProjects is the refcount-like attachment set: a
	// ScriptInfo is live in the store as long as this set is non-empty
	// or it is still open by the client.
	attachedProjects map[string]struct{}
}

func (si *ScriptInfo) Path() core.Path    { return si.path }
func (si *ScriptInfo) FileName() string   { return si.fileName }
func (si *ScriptInfo) Kind() ScriptKind   { return si.kind }
func (si *ScriptInfo) IsMixedContent() bool {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.mixedContent
}

func (si *ScriptInfo) IsOpenByClient() bool {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.openedByClient
}

func (si *ScriptInfo) Version() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.version
}

func (si *ScriptInfo) Content() string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.content
}

// AttachedProjectNames returns the sorted set of project names
// currently attached to this script info, for deterministic tests.
func (si *ScriptInfo) AttachedProjectNames() []string {
	si.mu.RLock()
	defer si.mu.RUnlock()
	names := make([]string, 0, len(si.attachedProjects))
	for n := range si.attachedProjects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (si *ScriptInfo) isAttachedTo(project string) bool {
	si.mu.RLock()
	defer si.mu.RUnlock()
	_, ok := si.attachedProjects[project]
	return ok
}

// Store owns every ScriptInfo for the host process.
type Store struct {
	fs                        afero.Fs
	logger                    core.Logger
	currentDirectory          string
	useCaseSensitiveFileNames bool

	mu    sync.Mutex
	infos map[core.Path]*ScriptInfo
}

// NewStore creates a Script Store backed by fs.
func NewStore(fs afero.Fs, currentDirectory string, useCaseSensitiveFileNames bool, logger core.Logger) *Store {
	return &Store{
		fs:                        fs,
		logger:                    logger,
		currentDirectory:          currentDirectory,
		useCaseSensitiveFileNames: useCaseSensitiveFileNames,
		infos:                     make(map[core.Path]*ScriptInfo),
	}
}

// ToPath canonicalises fileName the way the Project Service's host
// surface does (§6).
func (s *Store) ToPath(fileName string) core.Path {
	return core.ToPath(fileName, s.currentDirectory, s.useCaseSensitiveFileNames)
}

// GetScriptInfo returns the info for fileName if one already exists.
func (s *Store) GetScriptInfo(fileName string) *ScriptInfo {
	return s.GetScriptInfoForPath(s.ToPath(fileName))
}

// GetScriptInfoForPath returns the info at an already-canonicalised path.
func (s *Store) GetScriptInfoForPath(path core.Path) *ScriptInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infos[path]
}

// GetOrCreateScriptInfo returns the existing info for fileName, or
// reads it from disk and creates one. openedByClient marks the info
// as live even with zero attached projects (an open, unsaved buffer).
func (s *Store) GetOrCreateScriptInfo(fileName string, openedByClient bool) (*ScriptInfo, error) {
	path := s.ToPath(fileName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.infos[path]; ok {
		if openedByClient {
			info.mu.Lock()
			info.openedByClient = true
			info.mu.Unlock()
		}
		return info, nil
	}

	content := ""
	if data, err := afero.ReadFile(s.fs, fileName); err == nil {
		content = string(data)
	} else if !openedByClient {
		return nil, fmt.Errorf("script info %s not found on disk: %w", fileName, err)
	}

	ext := extOf(fileName)
	info := &ScriptInfo{
		path:             path,
		fileName:         fileName,
		kind:             KindFromExtension(ext),
		openedByClient:   openedByClient,
		content:          content,
		attachedProjects: make(map[string]struct{}),
	}
	s.infos[path] = info
	return info, nil
}

// Exists reports whether a file is present on the backing filesystem,
// used by the directory typings cache to probe for declaration files.
func (s *Store) Exists(fileName string) bool {
	ok, err := afero.Exists(s.fs, fileName)
	return err == nil && ok
}

// Edit updates an open script info's content and bumps its version —
// the Script Store's side of registerFileUpdate in §4.7.
func (s *Store) Edit(path core.Path, newContent string) {
	s.mu.Lock()
	info, ok := s.infos[path]
	s.mu.Unlock()
	if !ok {
		return
	}
	info.mu.Lock()
	info.content = newContent
	info.version++
	info.mu.Unlock()
}

// Attach records that project is now using info — refcount-like, per
// spec §3's ownership table.
func (s *Store) Attach(info *ScriptInfo, project string) {
	info.mu.Lock()
	defer info.mu.Unlock()
	info.attachedProjects[project] = struct{}{}
}

// Detach removes project's attachment. If the info is now attached to
// nothing and isn't an open client buffer, it is evicted from the
// store entirely (I4's detach guarantee has nothing left to track).
func (s *Store) Detach(info *ScriptInfo, project string) {
	info.mu.Lock()
	delete(info.attachedProjects, project)
	empty := len(info.attachedProjects) == 0 && !info.openedByClient
	path := info.path
	info.mu.Unlock()

	if empty {
		s.mu.Lock()
		delete(s.infos, path)
		s.mu.Unlock()
	}
}

// IsAttached reports whether project currently holds info.
func (s *Store) IsAttached(info *ScriptInfo, project string) bool {
	return info.isAttachedTo(project)
}

func extOf(fileName string) string {
	for i := len(fileName) - 1; i >= 0; i-- {
		if fileName[i] == '.' {
			if i >= 2 && fileName[i-2:i] == ".d" {
				return ".d.ts"
			}
			return fileName[i:]
		}
		if fileName[i] == '/' {
			break
		}
	}
	return ""
}
