package projectsvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/scriptstore"
	"github.com/langservice/projectcore/internal/watch"
)

type fakeProject struct {
	name  string
	calls int
	mu    sync.Mutex
}

func (f *fakeProject) Name() string { return f.name }
func (f *fakeProject) UpdateGraph() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return false
}
func (f *fakeProject) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNullTypingsCache_AlwaysEmpty(t *testing.T) {
	var c TypingsCache = NullTypingsCache{}
	assert.Nil(t, c.GetTypingsForProject("p", []string{"left-pad"}, true))
}

func TestDirectoryTypingsCache_FindsExistingTypings(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := scriptstore.NewStore(fs, "/proj", true, core.NoopLogger{})
	require.NoError(t, afero.WriteFile(fs, "/typings/left-pad/index.d.ts", []byte(""), 0o644))

	cache := NewDirectoryTypingsCache(store, "/typings")
	got := cache.GetTypingsForProject("p", []string{"left-pad", "right-pad"}, true)
	assert.Equal(t, []string{"/typings/left-pad/index.d.ts"}, got)
}

func TestDirectoryTypingsCache_NoCacheLocationIsEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := scriptstore.NewStore(fs, "/proj", true, core.NoopLogger{})
	cache := NewDirectoryTypingsCache(store, "")
	assert.Nil(t, cache.GetTypingsForProject("p", []string{"left-pad"}, true))
}

func TestScheduler_DebouncesAndRunsOnce(t *testing.T) {
	s := NewScheduler(20*time.Millisecond, core.NoopLogger{})
	p := &fakeProject{name: "proj1"}

	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)

	require.Eventually(t, func() bool {
		return len(s.Pending()) > 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.RunPending(context.Background()))
	assert.Equal(t, 1, p.callCount())
}

func TestScheduler_RunPendingIsNoopWhenNothingReady(t *testing.T) {
	s := NewScheduler(time.Hour, core.NoopLogger{})
	assert.NoError(t, s.RunPending(context.Background()))
}

func TestScheduler_OnAfterRefreshReportsStructureChange(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, core.NoopLogger{})
	p := &fakeProject{name: "proj1"}

	var mu sync.Mutex
	var gotName string
	var gotChanged bool
	s.OnAfterRefresh(func(name string, structureChanged bool) {
		mu.Lock()
		defer mu.Unlock()
		gotName, gotChanged = name, structureChanged
	})

	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.RunPending(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "proj1", gotName)
	// fakeProject.UpdateGraph returns false ("unchanged"=false), so
	// structureChanged (!unchanged) should be true.
	assert.True(t, gotChanged)
}

func TestScheduler_Pending_ListsDebouncingAndReadyProjects(t *testing.T) {
	s := NewScheduler(time.Hour, core.NoopLogger{})
	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(&fakeProject{name: "b"})
	s.DelayUpdateProjectGraphAndInferredProjectsRefresh(&fakeProject{name: "a"})
	assert.Equal(t, []string{"a", "b"}, s.Pending())
}

func TestScheduler_RunPendingConcurrentlyUpdatesDistinctProjects(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, core.NoopLogger{})
	projects := []*fakeProject{{name: "a"}, {name: "b"}, {name: "c"}}
	for _, p := range projects {
		s.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	}
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.RunPending(context.Background()))

	for _, p := range projects {
		assert.Equal(t, 1, p.callCount())
	}
}

type reloadable struct {
	name   string
	called bool
}

func (r *reloadable) Name() string { return r.name }
func (r *reloadable) Reload(ctx context.Context) error {
	r.called = true
	return nil
}

func TestReloadConfiguredProject_DelegatesSynchronously(t *testing.T) {
	r := &reloadable{name: "proj1"}
	require.NoError(t, ReloadConfiguredProject(context.Background(), r))
	assert.True(t, r.called)
}

func newTestHostForProjectsvc(t *testing.T) *Host {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := scriptstore.NewStore(fs, "/proj", true, core.NoopLogger{})
	watchSet, err := watch.NewSet(core.NoopLogger{}, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watchSet.Stop() })
	return NewHost(store, watchSet, core.DefaultPolicyConfig(), nil)
}

func TestNewHost_DefaultsNilTypingsToNullCache(t *testing.T) {
	h := newTestHostForProjectsvc(t)
	assert.IsType(t, NullTypingsCache{}, h.Typings)
	assert.Nil(t, h.GetTypingsForProject("p", []string{"x"}, true))
}

func TestHost_GetOrCreateScriptInfo_DelegatesToStore(t *testing.T) {
	h := newTestHostForProjectsvc(t)
	info, err := h.GetOrCreateScriptInfo("/proj/a.ts", true)
	require.NoError(t, err)
	assert.Equal(t, h.ToPath("/proj/a.ts"), info.Path())
	assert.Same(t, info, h.GetScriptInfo("/proj/a.ts"))
	assert.Same(t, info, h.GetScriptInfoForPath(info.Path()))
}
