package update

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"0.2.0", "0.1.9", true},
		{"v1.0.0", "0.9.9", true},
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "1.0.1", false},
		{"1.10.0", "1.9.0", true},
		{"1.0.0", "1.0.0-rc.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.latest+">"+tt.current, func(t *testing.T) {
			got, err := Newer(tt.latest, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Newer("latest", "1.0.0")
	assert.Error(t, err)
}

func TestAssetName(t *testing.T) {
	name, err := AssetName("linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "nexus-linux-x64", name)

	name, err = AssetName("windows", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "nexus-windows-x64.exe", name)

	_, err = AssetName("plan9", "386")
	assert.Error(t, err)
}

func TestLatestAndDownload(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "tok")
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/" + Repository + "/releases/latest":
			json.NewEncoder(w).Encode(Release{
				TagName: "v0.3.0",
				Assets: []Asset{
					{Name: "nexus-darwin-arm64", URL: srv.URL + "/dl/darwin"},
					{Name: "nexus-linux-x64.tar", URL: srv.URL + "/dl/linux", Size: 6},
				},
			})
		case "/dl/linux":
			w.Write([]byte("binary"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	rel, err := c.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.3.0", rel.Version())

	asset, err := FindAsset(rel, "nexus-linux-x64")
	require.NoError(t, err)
	assert.Equal(t, "nexus-linux-x64.tar", asset.Name)

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), asset, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "binary", buf.String())

	_, err = FindAsset(rel, "nexus-windows-x64.exe")
	assert.ErrorContains(t, err, "nexus-darwin-arm64")
}

func TestLatestNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewClient(srv.URL).Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoRelease)
}

func TestInstall(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "nexus")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))

	require.NoError(t, Install(exe, strings.NewReader("new")))
	data, err := os.ReadFile(exe)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	_, err = os.Stat(exe + ".old")
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(filepath.Dir(exe))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}
