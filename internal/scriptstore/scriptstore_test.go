package scriptstore

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langservice/projectcore/internal/core"
)

func newTestStore() (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewStore(fs, "/proj", true, core.NoopLogger{}), fs
}

func TestKindFromExtension(t *testing.T) {
	cases := map[string]ScriptKind{
		".ts":   KindTS,
		".tsx":  KindTSX,
		".js":   KindJS,
		".mjs":  KindJS,
		".cjs":  KindJS,
		".jsx":  KindJSX,
		".json": KindJSON,
		".xyz":  KindUnknown,
	}
	for ext, want := range cases {
		assert.Equal(t, want, KindFromExtension(ext), "ext %q", ext)
	}
}

func TestKindFromExtension_DeclarationFile(t *testing.T) {
	assert.Equal(t, KindDTS, KindFromExtension(extOf("/proj/a.d.ts")))
}

func TestIsDynamicDialectOrDts(t *testing.T) {
	assert.True(t, KindJS.IsDynamicDialectOrDts())
	assert.True(t, KindJSX.IsDynamicDialectOrDts())
	assert.True(t, KindDTS.IsDynamicDialectOrDts())
	assert.False(t, KindTS.IsDynamicDialectOrDts())
	assert.False(t, KindTSX.IsDynamicDialectOrDts())
}

func TestGetOrCreateScriptInfo_ReadsExistingFile(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("const x = 1;"), 0o644))

	info, err := store.GetOrCreateScriptInfo("/proj/a.ts", false)
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", info.Content())
	assert.Equal(t, KindTS, info.Kind())
	assert.False(t, info.IsOpenByClient())
}

func TestGetOrCreateScriptInfo_MissingFileFailsUnlessOpenedByClient(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.GetOrCreateScriptInfo("/proj/missing.ts", false)
	assert.Error(t, err)

	info, err := store.GetOrCreateScriptInfo("/proj/missing.ts", true)
	require.NoError(t, err)
	assert.True(t, info.IsOpenByClient())
	assert.Empty(t, info.Content())
}

func TestGetOrCreateScriptInfo_ReturnsSameInfoAndPromotesOpenFlag(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("x"), 0o644))

	first, err := store.GetOrCreateScriptInfo("/proj/a.ts", false)
	require.NoError(t, err)
	assert.False(t, first.IsOpenByClient())

	second, err := store.GetOrCreateScriptInfo("/proj/a.ts", true)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, first.IsOpenByClient())
}

func TestExists(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("x"), 0o644))

	assert.True(t, store.Exists("/proj/a.ts"))
	assert.False(t, store.Exists("/proj/missing.ts"))
}

func TestEdit_BumpsVersionAndContent(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("const x = 1;"), 0o644))

	info, err := store.GetOrCreateScriptInfo("/proj/a.ts", false)
	require.NoError(t, err)
	require.Equal(t, 0, info.Version())

	store.Edit(info.Path(), "const x = 2;")
	assert.Equal(t, "const x = 2;", info.Content())
	assert.Equal(t, 1, info.Version())

	store.Edit(info.Path(), "const x = 3;")
	assert.Equal(t, 2, info.Version())
}

func TestEdit_UnknownPathIsNoop(t *testing.T) {
	store, _ := newTestStore()
	store.Edit(core.Path("/proj/nope.ts"), "anything")
}

func TestAttachDetach_EvictsWhenUnattachedAndNotOpen(t *testing.T) {
	store, fs := newTestStore()
	require.NoError(t, afero.WriteFile(fs, "/proj/a.ts", []byte("x"), 0o644))

	info, err := store.GetOrCreateScriptInfo("/proj/a.ts", false)
	require.NoError(t, err)

	store.Attach(info, "proj1")
	store.Attach(info, "proj2")
	assert.Equal(t, []string{"proj1", "proj2"}, info.AttachedProjectNames())
	assert.True(t, store.IsAttached(info, "proj1"))

	store.Detach(info, "proj1")
	assert.NotNil(t, store.GetScriptInfoForPath(info.Path()))

	store.Detach(info, "proj2")
	assert.Nil(t, store.GetScriptInfoForPath(info.Path()))
}

func TestDetach_KeepsOpenBufferAlive(t *testing.T) {
	store, _ := newTestStore()
	info, err := store.GetOrCreateScriptInfo("/proj/open.ts", true)
	require.NoError(t, err)

	store.Attach(info, "proj1")
	store.Detach(info, "proj1")

	assert.NotNil(t, store.GetScriptInfoForPath(info.Path()))
	assert.False(t, store.IsAttached(info, "proj1"))
}

func TestToPath_UsesStoreCaseSensitivity(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/proj", false, core.NoopLogger{})
	assert.Equal(t, core.Path("/proj/a.ts"), store.ToPath("/proj/A.ts"))
}
