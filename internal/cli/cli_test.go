package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/gateway"
	"github.com/2389/folio-gateway/internal/lookupcache"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/reconcile"
	"github.com/2389/folio-gateway/internal/store"
)

const (
	testSecret = "cli-test-secret-0123456789abcdef"
	traceYAML  = `post_id: 42
page: 1
total_pages: 1
viewport_height: 800
document_height: 4000
events:
  - {at: 0s, kind: load, scroll_y: 0}
  - {at: 400ms, kind: scroll, scroll_y: 1600}
  - {at: 2s, kind: close}
`
)

// writeClientConfig writes a client config pointing at gatewayURL with an
// isolated data directory and returns its path.
func writeClientConfig(t *testing.T, gatewayURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.ClientDefaults()
	cfg.Gateway.URL = gatewayURL
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.ClientID = "test-client"
	path := filepath.Join(dir, "client.toml")
	require.NoError(t, config.SaveClient(path, &cfg))
	return path
}

func writeTrace(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "folio", cmd.Use)

	for _, name := range []string{"login", "logout", "sync", "track", "list", "mark", "unmark", "status"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cfgPath := writeClientConfig(t, "http://127.0.0.1:1")
	_, err := execute(t, "--config", cfgPath, "--format", "xml", "sync")
	assert.ErrorContains(t, err, "invalid format")
}

func TestParseTrace(t *testing.T) {
	tr, err := ParseTrace([]byte(traceYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(42), tr.PostID)
	require.Len(t, tr.Events, 3)
	assert.Equal(t, 400*time.Millisecond, tr.Events[1].At)
	require.NotNil(t, tr.Events[1].ScrollY)
	assert.Equal(t, 1600.0, *tr.Events[1].ScrollY)

	bad := map[string]string{
		"invalid post id": "post_id: 0\nviewport_height: 1\ndocument_height: 1\n",
		"no geometry":     "post_id: 1\n",
		"unknown kind":    "post_id: 1\nviewport_height: 1\ndocument_height: 1\nevents: [{at: 0s, kind: jump}]\n",
		"time travel":     "post_id: 1\nviewport_height: 1\ndocument_height: 1\nevents: [{at: 1s, kind: load}, {at: 0s, kind: scroll}]\n",
		"bad duration":    "post_id: 1\nviewport_height: 1\ndocument_height: 1\nevents: [{at: soon, kind: load}]\n",
	}
	for name, body := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTrace([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestTrace_InitialGeometryFromResumeParam(t *testing.T) {
	tr, err := ParseTrace([]byte(traceYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.InitialGeometry().ScrollY)

	tr.URL = "https://example.com/long-read/?pos=50"
	// Center at 2000 of 4000 with an 800px viewport.
	assert.Equal(t, 1600.0, tr.InitialGeometry().ScrollY)
}

func TestTrackAnonymous(t *testing.T) {
	cfgPath := writeClientConfig(t, "http://127.0.0.1:1")
	tracePath := writeTrace(t, traceYAML)

	out, err := execute(t, "--config", cfgPath, "--format", "json",
		"track", tracePath, "--start", "2026-03-01T12:00:00Z")
	require.NoError(t, err)

	var steps []Step
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.NotEmpty(t, steps)
	last := steps[len(steps)-1]
	assert.InDelta(t, 50.0, last.Overall, 1e-6)
	assert.Equal(t, "scroll", last.Kind)

	out, err = execute(t, "--config", cfgPath, "--format", "json", "status", "42")
	require.NoError(t, err)
	var rec progress.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.InDelta(t, 50.0, rec.Overall, 1e-6)
	assert.True(t, rec.UpdatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 400_000_000, time.UTC)))
}

func TestMarkAnonymous(t *testing.T) {
	cfgPath := writeClientConfig(t, "http://127.0.0.1:1")

	out, err := execute(t, "--config", cfgPath, "--format", "json", "mark", "9")
	require.NoError(t, err)
	var rec progress.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, progress.StatusLocked, rec.Status)
	assert.Equal(t, 100.0, rec.Overall)

	out, err = execute(t, "--config", cfgPath, "--format", "json", "unmark", "9")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, progress.StatusReading, rec.Status)
	assert.Equal(t, 100.0, rec.Overall)

	_, err = execute(t, "--config", cfgPath, "mark", "zero")
	assert.ErrorIs(t, err, progress.ErrInvalidEntity)
}

func TestLoginRejectsGarbageToken(t *testing.T) {
	cfgPath := writeClientConfig(t, "http://127.0.0.1:1")
	_, err := execute(t, "--config", cfgPath, "login", "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// newTestGateway starts a gateway with one reader and one visible article
// and returns its URL and the reader's token.
func newTestGateway(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Database.Path = filepath.Join(t.TempDir(), "folio.db")
	cfg.Auth.JWTSecret = testSecret

	gw, err := gateway.New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = gw.Shutdown(context.Background())
	})

	now := time.Now().UTC()
	require.NoError(t, gw.Store().CreatePrincipal(ctx, &store.Principal{
		ID: "reader-1", DisplayName: "Reader", Status: store.PrincipalStatusApproved, CreatedAt: now,
	}))
	require.NoError(t, gw.Store().UpsertArticle(ctx, &store.Article{
		ArticleMeta: progress.ArticleMeta{
			ID: 42, Title: "Long Read", Permalink: "https://example.com/long-read/", TotalPages: 1,
		},
		Visible:   true,
		UpdatedAt: now,
	}))

	token, err := auth.NewJWTVerifier([]byte(testSecret)).Generate("reader-1", time.Hour)
	require.NoError(t, err)
	return srv.URL, token
}

func TestAnonymousThenLoginMergesProgress(t *testing.T) {
	url, token := newTestGateway(t)
	cfgPath := writeClientConfig(t, url)
	tracePath := writeTrace(t, traceYAML)

	_, err := execute(t, "--config", cfgPath, "track", tracePath)
	require.NoError(t, err)

	// Anonymous listing joins local progress with the gateway catalog.
	out, err := execute(t, "--config", cfgPath, "--format", "json", "list")
	require.NoError(t, err)
	var items []progress.ReadingItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Long Read", items[0].Title)
	assert.Equal(t, "https://example.com/long-read/?pos=50", items[0].ResumeURL)

	// Lookup results outlive the process.
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "data", "cache", lookupcache.SnapshotKey+".json"))

	out, err = execute(t, "--config", cfgPath, "--format", "json", "login", token)
	require.NoError(t, err)
	var res reconcile.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Ran)
	assert.Equal(t, 1, res.Pushed)
	assert.True(t, res.Cleared)

	// A second sync has nothing left to merge.
	out, err = execute(t, "--config", cfgPath, "--format", "json", "sync")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Ran)

	// Listing now comes from the gateway.
	out, err = execute(t, "--config", cfgPath, "--format", "json", "list")
	require.NoError(t, err)
	items = nil
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.InDelta(t, 50.0, items[0].Overall, 1e-6)

	out, err = execute(t, "--config", cfgPath, "--format", "json", "mark", "42")
	require.NoError(t, err)
	var rec progress.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, progress.StatusLocked, rec.Status)

	out, err = execute(t, "--config", cfgPath, "--format", "json", "list")
	require.NoError(t, err)
	items = nil
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	assert.Empty(t, items)

	_, err = execute(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	cfg, err := config.LoadClient(cfgPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Gateway.Token)
}

func TestTrackAuthenticatedUsesRemoteConfig(t *testing.T) {
	url, token := newTestGateway(t)
	cfgPath := writeClientConfig(t, url)

	_, err := execute(t, "--config", cfgPath, "--format", "json", "login", "--no-sync", token)
	require.NoError(t, err)

	// A single commit: remote commits are fire-and-forget and may land in any order.
	trace := `post_id: 42
viewport_height: 800
document_height: 4000
events:
  - {at: 0s, kind: scroll, scroll_y: 1600}
`
	_, err = execute(t, "--config", cfgPath, "track", "--remote-config", writeTrace(t, trace))
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "status", "42")
	require.NoError(t, err)
	var rec progress.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.InDelta(t, 50.0, rec.Overall, 1e-6)
}
