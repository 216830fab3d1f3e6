package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the core's propagated failure kinds (§7). Every
// other external failure (plugin load, plugin callback, module
// resolution) is absorbed and logged rather than returned; these three
// are the exceptions, each tied to a specific assertion or to the one
// typed error the core hands back to the session layer.
var (
	// ErrDocumentNotInProject is DocumentDoesNotBelongToProject: the
	// file exists and has a script info, but isn't attached to this
	// project.
	ErrDocumentNotInProject = errors.New("document does not belong to project")

	// ErrProjectClosed is returned by the root-table mutators,
	// SetCompilerOptions and GetScriptInfoForNormalizedPath when called
	// on a project past close() (AssertionViolation: operate on closed
	// project).
	ErrProjectClosed = errors.New("operation on closed project")

	// ErrDuplicateRoot names the add-an-existing-root assertion. AddRoot
	// and AddMissingFileRoot do not return it: they panic instead.
	ErrDuplicateRoot = errors.New("root already present in project")
)

// DocumentNotInProjectError wraps ErrDocumentNotInProject with the
// offending path so callers can report it without parsing a string.
type DocumentNotInProjectError struct {
	Path string
}

func (e *DocumentNotInProjectError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDocumentNotInProject, e.Path)
}

func (e *DocumentNotInProjectError) Unwrap() error { return ErrDocumentNotInProject }

// NewDocumentNotInProjectError is the central error factory mentioned
// in §7: the session layer's getScriptInfoForNormalizedPath raises
// this when asked about a path that exists but isn't attached.
func NewDocumentNotInProjectError(path string) error {
	return &DocumentNotInProjectError{Path: path}
}
