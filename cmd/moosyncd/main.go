// Command moosyncd runs the Moosync extension host and playback
// orchestrator: it loads the local library, wires the built-in and
// WASM-backed providers, drives the playback state machine, and exposes a
// gin + websocket surface for a UI process.
//
// Wiring order and graceful-shutdown shape follow the teacher's
// cmd/main.go: sequential component init with fatal-on-error for anything
// the process cannot run without, then an HTTP server started in a
// goroutine, then a blocking wait on SIGINT/SIGTERM before an ordered
// teardown.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/moosync/moosyncd/internal/cache"
	"github.com/moosync/moosyncd/internal/config"
	"github.com/moosync/moosyncd/internal/eventbus"
	"github.com/moosync/moosyncd/internal/extensions"
	"github.com/moosync/moosyncd/internal/hostcall"
	"github.com/moosync/moosyncd/internal/httpapi"
	"github.com/moosync/moosyncd/internal/library"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/oauth"
	"github.com/moosync/moosyncd/internal/playback"
	"github.com/moosync/moosyncd/internal/providers"
	"github.com/moosync/moosyncd/internal/secure"
)

func main() {
	cfg := config.Load()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data dir")
	}
	extensionsDir := filepath.Join(cfg.DataDir, "extensions")
	if err := os.MkdirAll(extensionsDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create extensions dir")
	}

	store, err := library.Open(filepath.Join(cfg.DataDir, "songs.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open library store")
	}
	defer store.Close()

	secureKeyHex := cfg.SecureStoreKeyHex
	if secureKeyHex == "" {
		secureKeyHex = ephemeralSecureKey(log)
	}
	secureStore, err := secure.New(secureKeyHex, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secure preference store")
	}

	bus := eventbus.New()
	if cfg.NatsURL != "" {
		bus.AttachRemote(cfg.NatsURL)
		defer bus.DetachRemote()
	}

	redisCache, err := cache.NewCache(cache.Config{Enabled: cfg.RedisAddr != "", Host: redisHost(cfg.RedisAddr), Port: redisPort(cfg.RedisAddr)})
	if err != nil {
		log.Warn().Err(err).Msg("redis cache unavailable, falling back to in-memory RequestCache")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer redisCache.Close()
	requestCache := providers.NewRequestCache(redisCache)

	registry := providers.NewRegistry(bus, requestCache)
	registry.Register(providers.NewLibraryAdapter(store))
	if cfg.SpotifyClientID != "" {
		registry.Register(providers.NewSpotifyAdapter(cfg.SpotifyClientID, secureStore, openExternalURL))
	}
	registry.Register(providers.NewYouTubeAdapter(http.DefaultClient))

	oauthBroker := oauth.NewBroker(registry)
	oauthBroker.Register("spotify", "spotify")

	extRegistry := extensions.New(extensionsDir, cfg.ExtensionsManifestURL, http.DefaultClient)
	runtimes := newRuntimeSet()
	uiBridge := hostcall.NewUIBridge([]byte(cfg.UICorrelationSecret), nil)

	queue := playback.NewQueue(bus)
	var librespot *playback.LibrespotBackend
	if cfg.SpotifyClientID != "" {
		librespot = playback.NewLibrespotBackend()
	}
	local := playback.NewLocalBackend()
	stream := playback.NewStreamBackend()
	coord := playback.NewCoordinator(registry, bus, librespot, local, stream)

	router := hostcall.NewRouter(store, bus, secureStore, oauthBroker, registry, queue, coord, uiBridge)

	extRegistry.OnChange(func(installed []extensions.Installed) {
		reconcileExtensions(installed, runtimes, router, registry, extensionsDir, log)
	})

	if installed, err := extRegistry.ListInstalled(); err != nil {
		log.Warn().Err(err).Msg("failed to list installed extensions")
	} else {
		reconcileExtensions(installed, runtimes, router, registry, extensionsDir, log)
	}

	if cfg.ExtensionsManifestURL != "" {
		if err := extRegistry.StartScheduledRefresh(cfg.ExtensionRefreshCron); err != nil {
			log.Warn().Err(err).Msg("failed to start extension refresh schedule")
		}
		defer extRegistry.StopScheduledRefresh()
	}

	hub := httpapi.NewHub(bus, uiBridge)
	engine := httpapi.NewRouter(httpapi.Deps{Registry: registry, Queue: queue, Coord: coord, OAuth: oauthBroker, Hub: hub})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("moosyncd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server did not shut down cleanly")
	}

	runtimes.closeAll()
	coord.Stop()
}

// ephemeralSecureKey generates a process-lifetime-only key when none is
// configured: secrets set under it are unreadable after restart, acceptable
// for local/dev use but logged loudly so it is never mistaken for the
// persistent production path.
func ephemeralSecureKey(log *zerolog.Logger) string {
	log.Warn().Msg("MOOSYNC_SECURE_KEY not set, using an ephemeral key for this process only")
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

func redisHost(addr string) string {
	if addr == "" {
		return ""
	}
	if idx := lastColon(addr); idx >= 0 {
		return addr[:idx]
	}
	return addr
}

func redisPort(addr string) string {
	if addr == "" {
		return ""
	}
	if idx := lastColon(addr); idx >= 0 {
		return addr[idx+1:]
	}
	return "6379"
}

func lastColon(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return i
		}
	}
	return -1
}

