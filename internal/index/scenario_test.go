package index_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/index"
	"nexus/internal/search"
)

func TestSearchFindsErrorHandler(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"src/lib.rs": `fn handle_error(e: &str) -> String {
    format!("failed: {}", e)
}

fn render_page(title: &str) -> String {
    format!("<h1>{}</h1>", title)
}
`,
		"src/math.rs": `fn add(a: i32, b: i32) -> i32 {
    a + b
}

fn multiply_matrix(a: &[f64], b: &[f64]) -> Vec<f64> {
    a.iter().zip(b).map(|(x, y)| x * y).collect()
}
`,
		"app/server.py": `def start_server(port):
    listen(port)

def parse_arguments(argv):
    return argv[1:]
`,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ctx := context.Background()
	idx, err := index.Open(ctx, index.Config{Root: root})
	require.NoError(t, err)
	defer idx.Close()
	_, err = idx.Index(ctx, index.Options{})
	require.NoError(t, err)

	results, err := search.New(idx.Store(), idx.Embedder(), search.Options{}).Query(ctx, "error handling", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var names []string
	for _, r := range results {
		names = append(names, r.Chunk.Name)
	}
	assert.Contains(t, names, "handle_error")
	assert.Equal(t, "handle_error", results[0].Chunk.Name)
}

func TestSearchAfterReopen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.go"), []byte("package util\n\nfunc Retry() {}\n"), 0o644))

	ctx := context.Background()
	idx, err := index.Open(ctx, index.Config{Root: root})
	require.NoError(t, err)
	_, err = idx.Index(ctx, index.Options{})
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = index.Open(ctx, index.Config{Root: root})
	require.NoError(t, err)
	defer idx.Close()
	results, err := search.New(idx.Store(), idx.Embedder(), search.Options{}).Query(ctx, "retry", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Retry", results[0].Chunk.Name)
	assert.Equal(t, "util.go", results[0].Chunk.FilePath)
}
