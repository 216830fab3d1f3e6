package projectcore

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/langservice/projectcore/internal/builder"
	"github.com/langservice/projectcore/internal/compilation"
	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/project"
	"github.com/langservice/projectcore/internal/projectsvc"
	"github.com/langservice/projectcore/internal/scriptstore"
	"github.com/langservice/projectcore/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory as an inferred project and print change deltas",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "debounce delay for coalescing filesystem events")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	root = filepath.ToSlash(root)

	logger := core.NewDefaultLogger(core.InfoLevel)
	fs := afero.NewOsFs()

	store := scriptstore.NewStore(fs, root, true, logger)

	watchSet, err := watch.NewSet(logger, watchDebounce, func(path string, reason watch.Reason) {
		logger.Debug("watcher closed", core.StringField("path", path), core.StringField("reason", reason.String()))
	})
	if err != nil {
		return fmt.Errorf("create watcher set: %w", err)
	}
	defer func() {
		if err := watchSet.Stop(); err != nil {
			logger.Debug("watcher stop reported an error", core.ErrorField(err))
		}
	}()

	policy := core.DefaultPolicyConfig()
	host := projectsvc.NewHost(store, watchSet, policy, projectsvc.NullTypingsCache{})
	scheduler := projectsvc.NewScheduler(watchDebounce, logger)

	engine := compilation.NewNaiveEngine(fs, root, true)
	b := builder.NewIncrementalBuilder(logger)

	p := project.NewInferredProject(host, engine, b, scheduler, logger, root)

	roots, err := discoverSourceFiles(fs, root)
	if err != nil {
		return fmt.Errorf("discover source files: %w", err)
	}
	for _, fileName := range roots {
		info, err := store.GetOrCreateScriptInfo(fileName, false)
		if err != nil {
			logger.Warn("skipping unreadable root", core.StringField("file", fileName), core.ErrorField(err))
			continue
		}
		if err := p.AddRoot(info); err != nil {
			logger.Warn("addRoot failed", core.StringField("file", fileName), core.ErrorField(err))
		}
	}

	scheduler.OnAfterRefresh(func(name string, structureChanged bool) {
		printDelta(p, structureChanged)
	})

	p.UpdateGraph()
	printDelta(p, true)

	if err := host.AddDirectoryWatcher(projectsvc.WatcherWildcardDirectories, root, func(changed string) {
		scheduler.DelayUpdateProjectGraphAndInferredProjectsRefresh(p)
	}); err != nil {
		logger.Warn("watch root directory failed", core.ErrorField(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(watchDebounce / 2)
	defer ticker.Stop()

	fmt.Printf("watching %s (ctrl-c to stop)\n", root)
	for {
		select {
		case <-ctx.Done():
			p.Close()
			return nil
		case <-ticker.C:
			_ = scheduler.RunPending(ctx)
		}
	}
}

func discoverSourceFiles(fs afero.Fs, root string) ([]string, error) {
	var out []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"),
			strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".jsx"):
			out = append(out, filepath.ToSlash(path))
		}
		return nil
	})
	return out, err
}

func printDelta(p *project.Project, structureChanged bool) {
	changes := p.GetChangesSinceVersion(nil, false, false)
	fmt.Printf("[version %d] structureChanged=%v files=%d\n", changes.Info.StructureVersion, structureChanged, len(changes.Files))
}
