// ABOUTME: Per-invocation wiring of config, stores, gateway client and persistence adapter
// ABOUTME: Falls back to an in-memory anonymous store when the data directory is unusable

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/client"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/logging"
	"github.com/2389/folio-gateway/internal/lookupcache"
	"github.com/2389/folio-gateway/internal/persist"
	"github.com/2389/folio-gateway/internal/store"
)

// lookupCacheSize bounds the article metadata cache.
const lookupCacheSize = 512

type app struct {
	opts    *RootOptions
	cfg     *config.ClientConfig
	logger  *slog.Logger
	local   *store.LocalStore
	remote  *client.Client
	cache   *lookupcache.Cache
	cacheKV store.KV
	owner   persist.Owner
	adapter *persist.Adapter
}

// newApp loads the client config and builds the stores. A missing client id
// is generated and saved.
func newApp(opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg, logOut)

	if cfg.Storage.ClientID == "" {
		cfg.Storage.ClientID = uuid.NewString()
		if err := config.SaveClient(opts.ConfigPath, cfg); err != nil {
			logger.Debug("could not save client id", "error", err)
		}
	}

	owner := persist.Anonymous()
	if cfg.Gateway.Token != "" {
		sub, err := auth.Subject(cfg.Gateway.Token)
		if err != nil {
			return nil, fmt.Errorf("stored token is unreadable, run 'folio login' again: %w", err)
		}
		owner = persist.Owner{PrincipalID: sub}
	}

	var kv store.KV
	dir := filepath.Join(cfg.Storage.DataDir, "anonymous", cfg.Storage.ClientID)
	if fkv, err := store.NewFileKV(dir); err != nil {
		logger.Warn("local storage unavailable, progress will not be kept", "error", err)
		kv = store.NewMemoryKV()
	} else {
		kv = fkv
	}
	local := store.NewLocalStore(kv)

	var cacheKV store.KV = store.NewMemoryKV()
	if fkv, err := store.NewFileKV(filepath.Join(cfg.Storage.DataDir, "cache")); err != nil {
		logger.Debug("lookup cache will not be kept", "error", err)
	} else {
		cacheKV = fkv
	}
	cache, err := lookupcache.Load(cacheKV, cfg.Gateway.LookupCacheTTL, lookupCacheSize)
	if err != nil {
		logger.Debug("discarding saved lookup cache", "error", err)
	}

	remote := client.New(cfg.Gateway.URL,
		client.WithToken(cfg.Gateway.Token),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Gateway.Timeout}),
		client.WithLookupCache(cache),
	)

	adapter := persist.New(local,
		persist.WithRemote(remote),
		persist.WithTimeout(cfg.Gateway.Timeout),
		persist.WithLogger(logger),
	)

	return &app{
		opts:    opts,
		cfg:     cfg,
		logger:  logger,
		local:   local,
		remote:  remote,
		cache:   cache,
		cacheKV: cacheKV,
		owner:   owner,
		adapter: adapter,
	}, nil
}

// Close drains pending commits and saves the lookup cache for the next run.
func (a *app) Close() {
	a.adapter.Wait()
	if err := a.cache.Save(a.cacheKV); err != nil {
		a.logger.Debug("could not save lookup cache", "error", err)
	}
}
