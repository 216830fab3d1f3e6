package project

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langservice/projectcore/internal/compilation"
)

func TestDiffSorted(t *testing.T) {
	inserted, removed := diffSorted(
		[]string{"a.ts", "b.ts", "d.ts"},
		[]string{"b.ts", "c.ts", "d.ts"},
	)
	assert.Equal(t, []string{"c.ts"}, inserted)
	assert.Equal(t, []string{"a.ts"}, removed)
}

func TestDiffSorted_NoChanges(t *testing.T) {
	same := []string{"a.ts", "b.ts"}
	inserted, removed := diffSorted(same, same)
	assert.Empty(t, inserted)
	assert.Empty(t, removed)
}

func TestDiffSorted_EmptyOld(t *testing.T) {
	inserted, removed := diffSorted(nil, []string{"a.ts", "b.ts"})
	assert.Equal(t, []string{"a.ts", "b.ts"}, inserted)
	assert.Empty(t, removed)
}

func TestSameProgram_ComparesContentNotIdentity(t *testing.T) {
	a := &compilation.Program{SourceFiles: []*compilation.SourceFile{
		{FileName: "b.ts"}, {FileName: "a.ts"},
	}}
	b := &compilation.Program{SourceFiles: []*compilation.SourceFile{
		{FileName: "a.ts"}, {FileName: "b.ts"},
	}}
	assert.True(t, sameProgram(a, b))

	c := &compilation.Program{SourceFiles: []*compilation.SourceFile{
		{FileName: "a.ts"},
	}}
	assert.False(t, sameProgram(a, c))
}

func TestSameProgram_NilHandling(t *testing.T) {
	assert.True(t, sameProgram(nil, nil))
	assert.False(t, sameProgram(nil, &compilation.Program{}))
}
