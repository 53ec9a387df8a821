package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phobologic/tagmonster/internal/completion"
	"github.com/phobologic/tagmonster/internal/config"
	"github.com/phobologic/tagmonster/internal/index"
	"github.com/phobologic/tagmonster/internal/locate"
	"github.com/phobologic/tagmonster/internal/rebuild"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// runnerFunc adapts a function to rebuild.Runner.
type runnerFunc func(ctx context.Context, command string) error

func (f runnerFunc) Run(ctx context.Context, command string) error { return f(ctx, command) }

type fixture struct {
	dir      string
	tagsPath string
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{dir: dir, tagsPath: filepath.Join(dir, "tags")}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte(
		"import os\n\nclass App:\n    def run(self):\n        pass\n\ndef main():\n    App().run()\n"), 0o644))
	f.writeTags(t, "App\tapp.py\t/^class App:$/;\"\tc\n"+
		"run\tapp.py\t/^    def run(self):$/;\"\tm\tclass:App\n"+
		"_private\tapp.py\t/^def _private():$/;\"\tf\n"+
		"main\tapp.py\t/^def main():$/;\"\tf\n")
	f.cfg = &config.Config{
		TagFiles:           []config.TagFile{{Scope: "source.python", FilePath: f.tagsPath}},
		IgnoreTagRegex:     "_",
		RebuildTagsCommand: "ctags -R .",
		CompletionCacheDir: "cache",
		ContextLines:       locate.DefaultRadius,
		BaseDir:            dir,
	}
	return f
}

func (f *fixture) writeTags(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.tagsPath, []byte(content), 0o644))
}

func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return out
	}
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func TestNewServiceIsEmpty(t *testing.T) {
	t.Parallel()
	s := New(newFixture(t).cfg)
	assert.Empty(t, s.AllSymbolNames())
	_, ok := s.LookupSymbol("App")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := New(f.cfg)

	res, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Tags)
	assert.Equal(t, []string{"source.python"}, res.Scopes)
	assert.Empty(t, res.CacheFiles)
	assert.NoDirExists(t, f.cfg.CacheDir())

	assert.Equal(t, []string{"App", "run", "main"}, s.AllSymbolNames())
	tag, ok := s.LookupSymbol("main")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(f.dir, "app.py"), tag.File)
}

func TestRebuildTags(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var commands []string
	s := New(f.cfg, WithRunner(runnerFunc(func(_ context.Context, command string) error {
		commands = append(commands, command)
		f.writeTags(t, "App\tapp.py\t/^class App:$/;\"\tc\n"+
			"helper\tapp.py\t/^def helper():$/;\"\tf\n")
		return nil
	})))

	var published []*index.Index
	s.OnPublish(func(idx *index.Index) { published = append(published, idx) })

	res, err := s.RebuildTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ctags -R ."}, commands)
	assert.Equal(t, 2, res.Tags)
	require.Len(t, res.CacheFiles, 1)
	require.Len(t, published, 1)
	assert.Same(t, s.Index(), published[0])

	assert.Equal(t, []string{"App", "helper"}, s.AllSymbolNames())
	c, err := completion.Read(res.CacheFiles[0])
	require.NoError(t, err)
	assert.Equal(t, completion.Cache{Scope: "source.python", Completions: []string{"App", "helper"}}, c)
}

func TestRebuildFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error { return nil })))
	_, err := s.RebuildTags(context.Background())
	require.NoError(t, err)

	namesBefore := s.AllSymbolNames()
	cacheBefore := readDir(t, f.cfg.CacheDir())
	require.NotEmpty(t, cacheBefore)

	failing := &rebuild.SubprocessError{Command: "ctags", ExitCode: 2}
	s.runner = runnerFunc(func(context.Context, string) error {
		// A failing generator may leave a half-written tags file behind.
		f.writeTags(t, "partial\tapp.py\t/^x$/\n")
		return failing
	})

	_, err = s.RebuildTags(context.Background())
	require.ErrorIs(t, err, failing)

	assert.Equal(t, namesBefore, s.AllSymbolNames())
	assert.Equal(t, cacheBefore, readDir(t, f.cfg.CacheDir()))
}

func TestRebuildMissingTagsFileKeepsIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error {
		return os.Remove(f.tagsPath)
	})))
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	before := s.Index()

	_, err = s.RebuildTags(context.Background())
	require.ErrorIs(t, err, tagsfile.ErrUnavailable)
	assert.Same(t, before, s.Index())
	assert.NoDirExists(t, f.cfg.CacheDir())
}

func TestRebuildCacheFailureKeepsIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.cfg.CacheDir(), []byte("in the way"), 0o644))
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error { return nil })))

	_, err := s.RebuildTags(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.AllSymbolNames())
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	called := false
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error {
		called = true
		return nil
	})))

	res, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
	assert.Len(t, res.CacheFiles, 1)
}

func TestRebuildWithShell(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell command")
	}
	f := newFixture(t)
	f.cfg.RebuildTagsCommand = `printf 'fresh\tapp.py\t/^def main():$/;"\tf\n' > tags`
	s := New(f.cfg)

	_, err := s.RebuildTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, s.AllSymbolNames())

	f.cfg.RebuildTagsCommand = "exit 7"
	_, err = s.RebuildTags(context.Background())
	var serr *rebuild.SubprocessError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 7, serr.ExitCode)
	assert.Equal(t, []string{"fresh"}, s.AllSymbolNames())
}

func TestRebuildAsync(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error { return nil })))

	done := make(chan Result, 1)
	s.RebuildAsync(context.Background(), func(res Result, err error) {
		assert.NoError(t, err)
		done <- res
	})
	s.Wait()

	res := <-done
	assert.Equal(t, 3, res.Tags)
	assert.Equal(t, []string{"App", "run", "main"}, s.AllSymbolNames())
}

func TestRebuildAsyncReportsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	boom := errors.New("boom")
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error { return boom })))

	var got error
	s.RebuildAsync(context.Background(), func(_ Result, err error) { got = err })
	s.Wait()
	assert.ErrorIs(t, got, boom)
}

func TestLookupsDuringRebuildSeeOneGeneration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var oldTags, newTags string
	for i := 0; i < 200; i++ {
		oldTags += fmt.Sprintf("sym%03d\told.py\t/^old%03d$/\n", i, i)
		newTags += fmt.Sprintf("sym%03d\tnew.py\t/^new%03d$/\n", i, i)
	}
	f.writeTags(t, oldTags)
	f.cfg.IgnoreTagRegex = ""

	release := make(chan struct{})
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error {
		<-release
		f.writeTags(t, newTags)
		return nil
	})))
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 8)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				idx := s.Index()
				first, ok := idx.Lookup("sym000")
				if !ok {
					errs <- errors.New("sym000 missing")
					return
				}
				wantFile := filepath.Base(first.File)
				for i := 1; i < 200; i++ {
					tag, ok := idx.Lookup(fmt.Sprintf("sym%03d", i))
					if !ok || filepath.Base(tag.File) != wantFile {
						errs <- fmt.Errorf("mixed index at sym%03d", i)
						return
					}
				}
				if n := len(idx.Names()); n != 200 {
					errs <- fmt.Errorf("partial index with %d names", n)
					return
				}
				if _, ok := s.LookupSymbol("sym100"); !ok {
					errs <- errors.New("sym100 missing")
					return
				}
			}
		}()
	}

	s.RebuildAsync(context.Background(), nil)
	close(release)
	s.Wait()
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	tag, ok := s.LookupSymbol("sym042")
	require.True(t, ok)
	assert.Equal(t, "new.py", filepath.Base(tag.File))
}

func TestRebuildsAreSerialized(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var mu sync.Mutex
	running, maxRunning := 0, 0
	s := New(f.cfg, WithRunner(runnerFunc(func(context.Context, string) error {
		mu.Lock()
		running++
		maxRunning = max(maxRunning, running)
		mu.Unlock()
		runtime.Gosched()
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})))

	for i := 0; i < 8; i++ {
		s.RebuildAsync(context.Background(), nil)
	}
	s.Wait()
	assert.Equal(t, 1, maxRunning)
	assert.Len(t, readDir(t, f.cfg.CacheDir()), 1)
}

func TestJumpAndPeek(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := New(f.cfg)
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	tag, m, err := s.Jump("run")
	require.NoError(t, err)
	assert.Equal(t, "run", tag.Name)
	assert.Equal(t, 4, m.Line())

	_, c, err := s.Peek("main", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Start)
	assert.Equal(t, 6, c.Match.Index)

	_, _, err = s.Jump("nope")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	_, _, err = s.Peek("nope", 5)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}

func TestResolveWithCustomLineSource(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	buf := bufferSource{"unsaved\ndef main():\n"}
	s := New(f.cfg, WithLineSource(buf))
	_, err := s.Load(context.Background())
	require.NoError(t, err)

	_, m, err := s.Jump("main")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Index)

	_, _, err = s.Jump("App")
	assert.ErrorIs(t, err, locate.ErrPatternNotFound)
}

type bufferSource struct{ text string }

func (b bufferSource) Lines(string) ([]string, error) { return locate.SplitLines(b.text), nil }
