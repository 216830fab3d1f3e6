package compilation

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/langservice/projectcore/internal/core"
	"github.com/langservice/projectcore/internal/resolution"
)

// importPattern recognises both import-from and require() specifiers,
// generalised from the teacher's ExtractDependencies regex (which only
// matched its own "import component|script X from "Y"" grammar) to the
// ordinary ES module and CommonJS forms this core's target language
// dialect pair actually uses.
var importPattern = regexp.MustCompile(`(?:import\s+(?:[\w*{}\s,]+\s+from\s+)?|require\()\s*["']([^"']+)["']`)

// NaiveEngine is a minimal, in-process stand-in for the real
// Compilation Engine: it discovers a program by following import
// specifiers textually rather than parsing and binding, which is
// enough to drive the Project core's graph-update protocol end to end
// (for the CLI driver and for tests) without depending on an actual
// front end. A real front end satisfies the same Engine interface and
// is the thing this type exists to stand in for.
type NaiveEngine struct {
	fs                        afero.Fs
	currentDirectory          string
	useCaseSensitiveFileNames bool

	mu          sync.Mutex
	lastRootKey string
}

func NewNaiveEngine(fs afero.Fs, currentDirectory string, useCaseSensitiveFileNames bool) *NaiveEngine {
	return &NaiveEngine{fs: fs, currentDirectory: currentDirectory, useCaseSensitiveFileNames: useCaseSensitiveFileNames}
}

func (e *NaiveEngine) toPath(fileName string) core.Path {
	return core.ToPath(fileName, e.currentDirectory, e.useCaseSensitiveFileNames)
}

// GetProgram implements the Engine interface by walking rootFileNames
// and whatever they transitively import, resolving relative
// specifiers against disk and leaving bare specifiers unresolved.
func (e *NaiveEngine) GetProgram(options *core.CompilerOptions, rootFileNames []string, hasInvalidatedResolution func(core.Path) bool) (*Program, StructureReuse) {
	visited := make(map[core.Path]*SourceFile)
	var missing []string
	missingSeen := make(map[string]struct{})

	var visit func(fileName string)
	visit = func(fileName string) {
		path := e.toPath(fileName)
		if _, ok := visited[path]; ok {
			return
		}

		data, err := afero.ReadFile(e.fs, fileName)
		if err != nil {
			if _, ok := missingSeen[fileName]; !ok {
				missingSeen[fileName] = struct{}{}
				missing = append(missing, fileName)
			}
			return
		}

		sf := &SourceFile{
			Path:            path,
			FileName:        fileName,
			ResolvedModules: make(map[string]resolution.Resolution),
			IsDeclaration:   strings.HasSuffix(fileName, ".d.ts"),
		}
		visited[path] = sf

		for _, specifier := range extractSpecifiers(string(data)) {
			resolved := e.resolveSpecifier(fileName, specifier, options)
			sf.ResolvedModules[specifier] = resolved
			if !resolved.Failed() {
				visit(resolved.ResolvedFile)
			}
		}
	}

	for _, r := range rootFileNames {
		visit(r)
	}

	sourceFiles := make([]*SourceFile, 0, len(visited))
	for _, sf := range visited {
		sourceFiles = append(sourceFiles, sf)
	}
	sort.Slice(sourceFiles, func(i, j int) bool { return sourceFiles[i].FileName < sourceFiles[j].FileName })
	sort.Strings(missing)

	program := &Program{SourceFiles: sourceFiles, MissingFiles: missing}

	key := rootKey(rootFileNames, program)
	e.mu.Lock()
	reuse := ReuseNone
	if key == e.lastRootKey {
		reuse = ReuseCompletely
	}
	e.lastRootKey = key
	e.mu.Unlock()

	return program, reuse
}

// OnDisableLanguageService has nothing to clear: NaiveEngine keeps no
// semantic cache, only the per-call Program it just returned.
func (e *NaiveEngine) OnDisableLanguageService() {}

func (e *NaiveEngine) resolveSpecifier(containingFile, specifier string, options *core.CompilerOptions) resolution.Resolution {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return resolution.Resolution{Specifier: specifier, ResolvedFile: ""}
	}

	dir := filepath.Dir(containingFile)
	candidates := []string{specifier + ".ts", specifier + ".tsx", specifier + ".js", specifier, specifier + "/index.ts"}
	for _, c := range candidates {
		full := filepath.ToSlash(filepath.Join(dir, c))
		if ok, _ := afero.Exists(e.fs, full); ok {
			return resolution.Resolution{Specifier: specifier, ResolvedFile: full}
		}
	}
	_ = options
	return resolution.Resolution{Specifier: specifier, ResolvedFile: ""}
}

func extractSpecifiers(content string) []string {
	matches := importPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) == 2 {
			out = append(out, m[1])
		}
	}
	return out
}

func rootKey(roots []string, program *Program) string {
	sorted := append([]string{}, roots...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, r := range sorted {
		b.WriteString(r)
		b.WriteByte(';')
	}
	for _, f := range program.FileNames() {
		b.WriteString(f)
		b.WriteByte(',')
	}
	return b.String()
}
