package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langservice/projectcore/internal/core"
)

func TestResolutionFailed(t *testing.T) {
	assert.True(t, Resolution{Specifier: "x"}.Failed())
	assert.False(t, Resolution{Specifier: "x", ResolvedFile: "/node_modules/x/index.js"}.Failed())
}

func TestRecordAndLookup(t *testing.T) {
	c := NewCache()
	table := map[string]Resolution{"left-pad": {Specifier: "left-pad", ResolvedFile: "/nm/left-pad.js"}}
	c.Record("/proj/a.ts", table)
	assert.Equal(t, table, c.Lookup("/proj/a.ts"))
	assert.Nil(t, c.Lookup("/proj/unknown.ts"))
}

func TestInvalidate_ClearsEntryAndSetsFlag(t *testing.T) {
	c := NewCache()
	c.Record("/proj/a.ts", map[string]Resolution{"x": {Specifier: "x"}})
	c.Invalidate("/proj/a.ts")

	assert.Nil(t, c.Lookup("/proj/a.ts"))
	assert.True(t, c.HasInvalidatedResolution("/proj/a.ts"))
	assert.False(t, c.HasInvalidatedResolution("/proj/b.ts"))
}

func TestRecord_ClearsInvalidatedFlag(t *testing.T) {
	c := NewCache()
	c.Invalidate("/proj/a.ts")
	require := assert.New(t)
	require.True(c.HasInvalidatedResolution("/proj/a.ts"))

	c.Record("/proj/a.ts", map[string]Resolution{})
	require.False(c.HasInvalidatedResolution("/proj/a.ts"))
}

func TestClear_DiscardsEverything(t *testing.T) {
	c := NewCache()
	c.Record("/proj/a.ts", map[string]Resolution{"x": {Specifier: "x"}})
	c.Invalidate("/proj/b.ts")

	c.Clear()

	assert.Nil(t, c.Lookup("/proj/a.ts"))
	assert.False(t, c.HasInvalidatedResolution("/proj/b.ts"))
}

func TestStartFinishRecording_OnlyReportsChangedFiles(t *testing.T) {
	c := NewCache()
	c.Record("/proj/a.ts", map[string]Resolution{"x": {Specifier: "x", ResolvedFile: "/nm/x.js"}})
	c.Record("/proj/b.ts", map[string]Resolution{"y": {Specifier: "y", ResolvedFile: "/nm/y.js"}})

	c.StartRecording()
	// Same table recorded again: not a change.
	c.Record("/proj/a.ts", map[string]Resolution{"x": {Specifier: "x", ResolvedFile: "/nm/x.js"}})
	// Different table from the one recorded above: a change.
	c.Record("/proj/b.ts", map[string]Resolution{"y": {Specifier: "y"}})
	// A file recorded for the first time counts as changed.
	c.Record("/proj/c.ts", map[string]Resolution{})

	changed := c.FinishRecording()
	assert.Equal(t, []core.Path{"/proj/b.ts", "/proj/c.ts"}, changed)
}

func TestStartFinishRecording_IsSortedForDeterminism(t *testing.T) {
	c := NewCache()
	c.StartRecording()
	c.Record("/proj/z.ts", map[string]Resolution{})
	c.Record("/proj/a.ts", map[string]Resolution{})
	c.Record("/proj/m.ts", map[string]Resolution{})

	changed := c.FinishRecording()
	assert.Equal(t, []core.Path{"/proj/a.ts", "/proj/m.ts", "/proj/z.ts"}, changed)
}

func TestFinishRecording_StopsTrackingFurtherRecords(t *testing.T) {
	c := NewCache()
	c.StartRecording()
	c.Record("/proj/a.ts", map[string]Resolution{"x": {Specifier: "x"}})
	c.FinishRecording()

	// Recording is over; further Record calls shouldn't panic even
	// though c.changed was reset to nil.
	c.Record("/proj/b.ts", map[string]Resolution{"y": {Specifier: "y"}})
	assert.NotNil(t, c.Lookup("/proj/b.ts"))
}
