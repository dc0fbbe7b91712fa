package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) *Repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	ctx := context.Background()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "dev@example.com"},
		{"config", "user.name", "Dev"},
		{"config", "commit.gpgsign", "false"},
	} {
		_, err := run(ctx, dir, args...)
		require.NoError(t, err)
	}
	repo, err := Open(ctx, dir)
	require.NoError(t, err)
	return repo
}

func TestStagedDiffAndCommit(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	_, _, err := repo.StagedDiff(ctx)
	assert.ErrorIs(t, err, ErrNothingStaged)

	require.NoError(t, os.WriteFile(filepath.Join(repo.Root(), "main.go"), []byte("package main\n"), 0o644))
	_, err = repo.Run(ctx, "add", "main.go")
	require.NoError(t, err)

	diff, files, err := repo.StagedDiff(ctx)
	require.NoError(t, err)
	assert.Contains(t, diff, "+package main")
	assert.Equal(t, []string{"A\tmain.go"}, files)

	_, err = repo.Commit(ctx, "feat: add main")
	require.NoError(t, err)
	log, err := repo.Run(ctx, "log", "--format=%s")
	require.NoError(t, err)
	assert.Equal(t, "feat: add main", strings.TrimSpace(log))

	require.NoError(t, os.WriteFile(filepath.Join(repo.Root(), "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	wt, err := repo.Diff(ctx, "main.go", false)
	require.NoError(t, err)
	assert.Contains(t, wt, "+func main() {}")
	staged, err := repo.Diff(ctx, "", true)
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestOpenOutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))
	_, err := Open(context.Background(), dir)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))

	diff := strings.Repeat("+line\n", 10)
	got := Truncate(diff, 20)
	assert.Equal(t, "+line\n+line\n+line\n...\n[diff truncated]\n", got)
}
