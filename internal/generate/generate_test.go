package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/tagmonster/internal/index"
	"github.com/phobologic/tagmonster/internal/locate"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

const pySource = `class Cart(Base):
    def add(self, item):
        pass

def checkout(cart) -> bool:
    return True
`

const goSource = `package server

type Server struct{}

func (s *Server) Run() error {
	return nil
}
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestRunRoundTrip(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"shop/cart.py":     pySource,
		"server/server.go": goSource,
	})

	res, err := Run(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tags"), res.Output)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 5, res.Tags)
	assert.Empty(t, res.Skipped)

	f, err := tagsfile.Parse(res.Output, "source.python", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Warnings)
	assert.Equal(t, "tagmonster", f.Header.ProgramName)
	assert.Equal(t, 1, f.Header.Sorted)

	idx := index.New(f.Tags)
	assert.Equal(t, []string{"Cart", "Run", "Server", "add", "checkout"}, idx.Names())

	add, ok := idx.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "shop", "cart.py"), add.File)
	assert.Equal(t, "m", add.Kind)
	assert.Equal(t, 2, add.Line)
	assert.Equal(t, "Cart", add.Fields["class"])
	assert.Equal(t, "(self, item)", add.Fields["signature"])

	m, err := locate.ResolveLine(locate.FileSource{}, add)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Line())
	assert.Equal(t, "    def add(self, item):", m.Text)

	run, ok := idx.Lookup("Run")
	require.True(t, ok)
	assert.Equal(t, "Server", run.Fields["class"])
	m, err = locate.ResolveLine(locate.FileSource{}, run)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Line())
}

func TestRunOutputInOtherDirectory(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"app.py": pySource})
	out := filepath.Join(root, ".tags", "python.tags")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))

	_, err := Run(context.Background(), Options{Root: root, Output: out})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "checkout\t../app.py\t/^def checkout(cart) -> bool:$/;\"\tf\tline:5")

	f, err := tagsfile.Parse(out, "source.python", nil)
	require.NoError(t, err)
	for _, tag := range f.Tags {
		assert.Equal(t, filepath.Join(root, "app.py"), tag.File)
	}
}

func TestRunFilters(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"app.py":            pySource,
		"server.go":         goSource,
		"vendor/lib/lib.go": goSource,
		"tests/test_app.py": "def test_add():\n    pass\n",
	})

	res, err := Run(context.Background(), Options{
		Root:      root,
		Languages: []string{"go"},
		Exclude:   []string{"vendor/**"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	res, err = Run(context.Background(), Options{Root: root, Languages: []string{"python"}, SkipTests: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "test_add")
}

func TestRunSkipsLargeFiles(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"small.py": "def small():\n    pass\n",
		"big.py":   "def big():\n    pass\n" + strings.Repeat("# padding\n", 100),
	})

	res, err := Run(context.Background(), Options{Root: root, MaxFileSize: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"big.py"}, res.Skipped)
	assert.Equal(t, 1, res.Tags)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"readme.txt": "hello"})

	_, err := Run(context.Background(), Options{Root: root})
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = Run(context.Background(), Options{Root: root, Languages: []string{"cobol"}})
	assert.ErrorContains(t, err, "unsupported language")

	_, err = Run(context.Background(), Options{Root: filepath.Join(root, "missing")})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{Root: root, Exclude: []string{"[a-"}})
	assert.ErrorContains(t, err, "invalid exclude pattern")
}

func TestRunReplacesExistingOutput(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"app.py": pySource, "tags": "stale\tcontent\t1\n"})

	_, err := Run(context.Background(), Options{Root: root})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "tags"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tags-"), "temp file left behind: %s", e.Name())
	}
}
