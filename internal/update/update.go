// Package update checks GitHub releases and replaces the running binary.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

const (
	// Repository publishes the release binaries.
	Repository = "mrsarac/NEXUS-AI-Forge"
	// APIBaseURL is the GitHub REST endpoint.
	APIBaseURL = "https://api.github.com"

	userAgent = "nexus-updater"
)

// ErrNoRelease is returned when the repository has no published release.
var ErrNoRelease = errors.New("release not found; for a private repository set GITHUB_TOKEN")

// Asset is a downloadable release file.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
	Size int64  `json:"size"`
}

// Release is the subset of the GitHub release document nexus uses.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	HTMLURL string  `json:"html_url"`
	Body    string  `json:"body"`
	Assets  []Asset `json:"assets"`
}

// Version returns the tag without its leading "v".
func (r *Release) Version() string { return strings.TrimPrefix(r.TagName, "v") }

// Client talks to the GitHub releases API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client. An empty baseURL uses APIBaseURL; the token
// comes from GITHUB_TOKEN or GH_TOKEN.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = APIBaseURL
	}
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// Latest fetches the latest release of Repository.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, Repository), "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("connect to GitHub: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoRelease
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	return &rel, nil
}

// Download streams asset into w.
func (c *Client) Download(ctx context.Context, a Asset, w io.Writer) (int64, error) {
	resp, err := c.get(ctx, a.URL, "application/octet-stream")
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", a.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: status %d", a.Name, resp.StatusCode)
	}
	return io.Copy(w, resp.Body)
}

// Newer reports whether latest is a higher semantic version than current.
func Newer(latest, current string) (bool, error) {
	l, err := semver.NewVersion(latest)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", latest, err)
	}
	c, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", current, err)
	}
	return l.GreaterThan(c), nil
}

// AssetName returns the release binary name for a GOOS/GOARCH pair.
func AssetName(goos, goarch string) (string, error) {
	names := map[string]string{
		"darwin/arm64":  "nexus-darwin-arm64",
		"darwin/amd64":  "nexus-darwin-x64",
		"linux/amd64":   "nexus-linux-x64",
		"linux/arm64":   "nexus-linux-arm64",
		"windows/amd64": "nexus-windows-x64.exe",
	}
	name, ok := names[goos+"/"+goarch]
	if !ok {
		return "", fmt.Errorf("unsupported platform %s/%s", goos, goarch)
	}
	return name, nil
}

// FindAsset returns the asset named name, or one whose name contains it.
func FindAsset(rel *Release, name string) (Asset, error) {
	for _, a := range rel.Assets {
		if a.Name == name {
			return a, nil
		}
	}
	for _, a := range rel.Assets {
		if strings.Contains(a.Name, name) {
			return a, nil
		}
	}
	available := make([]string, len(rel.Assets))
	for i, a := range rel.Assets {
		available[i] = a.Name
	}
	return Asset{}, fmt.Errorf("no %s binary in release %s (available: %s)", name, rel.TagName, strings.Join(available, ", "))
}

// Install replaces the executable at exe with the contents of src. The old
// binary is kept as exe.old until the new one is in place and restored if
// the swap fails.
func Install(exe string, src io.Reader) error {
	dir := filepath.Dir(exe)
	tmp, err := os.CreateTemp(dir, ".nexus-update-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("write new binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return err
	}

	backup := exe + ".old"
	os.Remove(backup)
	if err := os.Rename(exe, backup); err != nil {
		return fmt.Errorf("back up current binary: %w", err)
	}
	if err := os.Rename(tmp.Name(), exe); err != nil {
		os.Rename(backup, exe)
		return fmt.Errorf("install new binary: %w", err)
	}
	os.Remove(backup)
	return nil
}
