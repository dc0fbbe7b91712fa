// Package gitutil runs the git commands behind commit and diff.
package gitutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// MaxDiffBytes caps the diff sent to a model.
const MaxDiffBytes = 8000

// ErrNothingStaged is returned by StagedDiff when the index is clean.
var ErrNothingStaged = errors.New("no staged changes; stage files with 'git add' first")

// Repo executes git in a repository root.
type Repo struct {
	root string
}

// Open discovers the repository containing dir.
func Open(ctx context.Context, dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	out, err := run(ctx, abs, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &Repo{root: strings.TrimSpace(out)}, nil
}

// Root returns the repository root.
func (r *Repo) Root() string { return r.root }

// Run executes git with args in the repository root.
func (r *Repo) Run(ctx context.Context, args ...string) (string, error) {
	return run(ctx, r.root, args...)
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

// StagedDiff returns the staged diff and the "STATUS\tpath" lines of the
// staged files.
func (r *Repo) StagedDiff(ctx context.Context) (string, []string, error) {
	diff, err := r.Run(ctx, "diff", "--cached")
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(diff) == "" {
		return "", nil, ErrNothingStaged
	}
	names, err := r.Run(ctx, "diff", "--cached", "--name-status")
	if err != nil {
		return "", nil, err
	}
	return diff, lines(names), nil
}

// Diff returns the working tree diff, or the staged diff when staged is
// set, optionally limited to one path.
func (r *Repo) Diff(ctx context.Context, path string, staged bool) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--cached")
	}
	if path != "" {
		args = append(args, "--", path)
	}
	return r.Run(ctx, args...)
}

// Commit records the staged changes with message.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	return r.Run(ctx, "commit", "-m", message)
}

// Truncate cuts diff to at most limit bytes at a line boundary and marks
// the cut.
func Truncate(diff string, limit int) string {
	if len(diff) <= limit {
		return diff
	}
	cut := diff[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i+1]
	}
	return cut + "...\n[diff truncated]\n"
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
