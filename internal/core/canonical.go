package core

import (
	"path/filepath"
	"strings"
)

// Path is a canonicalised file path: the form every index in this
// module keys on (root table, missing-files map, unresolved-imports
// index). Two ScriptInfos never share a Path unless they denote the
// same file.
type Path string

// ToCanonicalFileName lowercases fileName when the host filesystem is
// case-insensitive, matching the host surface's toCanonicalFileName
// (§6). Backslashes are normalised to forward slashes so Windows- and
// Unix-style inputs produce the same key.
func ToCanonicalFileName(fileName string, useCaseSensitiveFileNames bool) string {
	slashed := strings.ReplaceAll(fileName, `\`, "/")
	if useCaseSensitiveFileNames {
		return slashed
	}
	return strings.ToLower(slashed)
}

// ToPath resolves fileName against currentDirectory (if relative) and
// canonicalises it, producing the stable index key used across the
// core — the host surface's toPath (§6).
func ToPath(fileName, currentDirectory string, useCaseSensitiveFileNames bool) Path {
	abs := fileName
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(currentDirectory, abs)
	}
	return Path(ToCanonicalFileName(abs, useCaseSensitiveFileNames))
}
