package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langservice/projectcore/internal/builder"
	"github.com/langservice/projectcore/internal/compilation"
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/projectsvc"
	"github.com/langservice/projectcore/internal/scriptstore"
	"github.com/langservice/projectcore/internal/watch"
)

// newTestRoot returns a real directory for a test to work in: the
// Watcher Set wraps an actual fsnotify.Watcher, so the projects these
// helpers build need real, existing directories to watch, not paths
// inside an in-memory filesystem.
func newTestRoot(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return filepath.ToSlash(dir)
}

func writeTestFile(t *testing.T, fileName, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0o644))
}

func newTestHost(t *testing.T, root string) *projectsvc.Host {
	t.Helper()
	logger := core.NoopLogger{}
	fs := afero.NewOsFs()
	store := scriptstore.NewStore(fs, root, true, logger)
	watchSet, err := watch.NewSet(logger, 0, func(string, watch.Reason) {})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watchSet.Stop() })
	return projectsvc.NewHost(store, watchSet, core.DefaultPolicyConfig(), projectsvc.NullTypingsCache{})
}

func newTestInferredProject(t *testing.T, root string) *Project {
	t.Helper()
	host := newTestHost(t, root)
	engine := compilation.NewNaiveEngine(afero.NewOsFs(), root, true)
	b := builder.NewIncrementalBuilder(core.NoopLogger{})
	scheduler := projectsvc.NewScheduler(0, core.NoopLogger{})
	return NewInferredProject(host, engine, b, scheduler, core.NoopLogger{}, root)
}

// TestUpdateGraph_AddOneRoot covers §8 scenario 1.
func TestUpdateGraph_AddOneRoot(t *testing.T) {
	root := newTestRoot(t)
	aPath := root + "/a.ts"
	writeTestFile(t, aPath, "const x = 1;")

	p := newTestInferredProject(t, root)
	info, err := p.host.GetOrCreateScriptInfo(aPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(info))

	unchanged := p.UpdateGraph()
	assert.False(t, unchanged)
	assert.Equal(t, 1, p.projectStructureVersion)
	assert.Contains(t, p.GetFileNames(), aPath)

	unchanged = p.UpdateGraph()
	assert.True(t, unchanged)
	assert.Equal(t, 1, p.projectStructureVersion)
}

// TestUpdateGraph_FlipJsInferredProject covers §8 scenario 2.
func TestUpdateGraph_FlipJsInferredProject(t *testing.T) {
	root := newTestRoot(t)
	aPath, bPath := root+"/a.ts", root+"/b.js"
	writeTestFile(t, aPath, "const x = 1;")
	writeTestFile(t, bPath, "const y = 1;")

	p := newTestInferredProject(t, root)
	require.NoError(t, p.SetCompilerOptions(&core.CompilerOptions{}))

	aInfo, err := p.host.GetOrCreateScriptInfo(aPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(aInfo))
	p.UpdateGraph()
	assert.False(t, p.inferred.isJsInferredProject)

	bInfo, err := p.host.GetOrCreateScriptInfo(bPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(bInfo))
	assert.True(t, p.inferred.isJsInferredProject)

	require.NoError(t, p.SetCompilerOptions(p.CompilerOptions()))
	opts := p.CompilerOptions()
	require.NotNil(t, opts.MaxNodeModuleJsDepth)
	assert.Equal(t, 2, *opts.MaxNodeModuleJsDepth)

	require.NoError(t, p.RemoveFile(bInfo, true))
	assert.False(t, p.inferred.isJsInferredProject)
	require.NoError(t, p.SetCompilerOptions(p.CompilerOptions()))
	assert.Nil(t, p.CompilerOptions().MaxNodeModuleJsDepth)
}

// TestUpdateGraph_MissingFileWatcherLifecycle covers §8 scenario 4: a
// root that isn't yet present on disk (opened by the client ahead of
// being saved) is tracked in missingFilesMap until its directory
// reports a creation event for that exact path.
func TestUpdateGraph_MissingFileWatcherLifecycle(t *testing.T) {
	root := newTestRoot(t)
	xPath := root + "/x.ts"

	p := newTestInferredProject(t, root)
	info, err := p.host.GetOrCreateScriptInfo(xPath, true)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(info))
	p.UpdateGraph()

	missingPath := p.host.ToPath(xPath)
	_, tracked := p.missingFilesMap[missingPath]
	require.True(t, tracked)

	p.onMissingFileCreated(missingPath, root, xPath, xPath)

	_, stillTracked := p.missingFilesMap[missingPath]
	assert.False(t, stillTracked)
	assert.True(t, p.dirty)
}

// TestGetChangesSinceVersion_BaselineThenDiffThenNoChanges covers §8
// scenario 5's three-way contract end to end.
func TestGetChangesSinceVersion_BaselineThenDiffThenNoChanges(t *testing.T) {
	root := newTestRoot(t)
	aPath, bPath := root+"/a.ts", root+"/b.ts"
	writeTestFile(t, aPath, "const x = 1;")
	writeTestFile(t, bPath, "const y = 1;")

	p := newTestInferredProject(t, root)
	aInfo, err := p.host.GetOrCreateScriptInfo(aPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(aInfo))

	baseline := p.GetChangesSinceVersion(nil, false, false)
	assert.Equal(t, 0, baseline.Info.StructureVersion)
	assert.Contains(t, baseline.Files, aPath)
	assert.Nil(t, baseline.Changes)

	bInfo, err := p.host.GetOrCreateScriptInfo(bPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(bInfo))
	p.UpdateGraph()

	known := 0
	diff := p.GetChangesSinceVersion(&known, false, false)
	assert.Equal(t, 1, diff.Info.StructureVersion)
	require.NotNil(t, diff.Changes)
	assert.Contains(t, diff.Changes.Added, bPath)
	assert.Empty(t, diff.Changes.Removed)

	known = 1
	noChanges := p.GetChangesSinceVersion(&known, false, false)
	assert.Equal(t, 1, noChanges.Info.StructureVersion)
	assert.Nil(t, noChanges.Changes)
	assert.Nil(t, noChanges.Files)

	want := &FileListChanges{Added: []string{bPath}}
	if got := cmp.Diff(want, diff.Changes, cmpopts.EquateEmpty()); got != "" {
		t.Errorf("unexpected file list changes (-want +got):\n%s", got)
	}
}

// TestUpdateGraph_TypingFilesAreFoldedIntoCompiledRootSet covers §4.2
// step 5: a typings-cache hit must not just be recorded for next-pass
// comparison, it must actually be compiled into the program.
func TestUpdateGraph_TypingFilesAreFoldedIntoCompiledRootSet(t *testing.T) {
	root := newTestRoot(t)
	aPath := root + "/a.ts"
	writeTestFile(t, aPath, `import x from "left-pad";`)

	typingsDir := newTestRoot(t)
	require.NoError(t, os.MkdirAll(typingsDir+"/left-pad", 0o755))
	typingsFile := typingsDir + "/left-pad/index.d.ts"
	writeTestFile(t, typingsFile, `declare module "left-pad";`)

	logger := core.NoopLogger{}
	fs := afero.NewOsFs()
	store := scriptstore.NewStore(fs, root, true, logger)
	watchSet, err := watch.NewSet(logger, 0, func(string, watch.Reason) {})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watchSet.Stop() })
	typings := projectsvc.NewDirectoryTypingsCache(store, typingsDir)
	host := projectsvc.NewHost(store, watchSet, core.DefaultPolicyConfig(), typings)

	engine := compilation.NewNaiveEngine(fs, root, true)
	b := builder.NewIncrementalBuilder(logger)
	scheduler := projectsvc.NewScheduler(0, logger)
	p := NewInferredProject(host, engine, b, scheduler, logger, root)

	info, err := p.host.GetOrCreateScriptInfo(aPath, false)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(info))

	p.UpdateGraph()

	assert.Contains(t, p.typingFiles, typingsFile)
	assert.Equal(t, []string{aPath}, p.GetFileNames())

	require.NotNil(t, p.program)
	assert.Contains(t, p.program.FileNames(), typingsFile)
}

func TestAllRootFilesAreJsOrDts_EmptyProjectIsFalse(t *testing.T) {
	root := newTestRoot(t)
	p := newTestInferredProject(t, root)
	assert.False(t, p.AllRootFilesAreJsOrDts())
	assert.Empty(t, p.GetFileNames())
}

func TestClose_IsIdempotentAndClosesWatchers(t *testing.T) {
	root := newTestRoot(t)
	missingPath := root + "/missing.ts"

	p := newTestInferredProject(t, root)
	info, err := p.host.GetOrCreateScriptInfo(missingPath, true)
	require.NoError(t, err)
	require.NoError(t, p.AddRoot(info))
	p.UpdateGraph()
	require.NotEmpty(t, p.watches.missingFile)

	p.Close()
	assert.True(t, p.IsClosed())
	assert.Empty(t, p.watches.missingFile)

	// Second close is a no-op, not a panic or double-close error.
	p.Close()
	assert.True(t, p.IsClosed())
}
