package main

import (
	"context"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moosync/moosyncd/internal/extensions"
	"github.com/moosync/moosyncd/internal/hostcall"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/providers"
	"github.com/moosync/moosyncd/internal/sandbox"
	"github.com/moosync/moosyncd/internal/wasmhost"
)

// runtimeSet owns every live PluginRuntime, keyed by package name, so
// ExtensionRegistry's OnChange callback can diff against what is already
// running instead of restarting every plugin on every install/remove.
type runtimeSet struct {
	mu   sync.Mutex
	live map[string]*wasmhost.Runtime
}

func newRuntimeSet() *runtimeSet {
	return &runtimeSet{live: make(map[string]*wasmhost.Runtime)}
}

func (s *runtimeSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rt := range s.live {
		rt.Close()
	}
}

// reconcileExtensions brings the live runtime set in line with the
// installed set: starts a Runtime for every newly-installed package,
// registers its ExtensionProviderAdapter, and tears down + unregisters any
// package that disappeared.
func reconcileExtensions(installed []extensions.Installed, runtimes *runtimeSet, router *hostcall.Router, registry *providers.Registry, extensionsDir string, log *zerolog.Logger) {
	runtimes.mu.Lock()
	defer runtimes.mu.Unlock()

	wanted := make(map[string]extensions.Installed, len(installed))
	for _, inst := range installed {
		wanted[inst.Manifest.PackageName] = inst
	}

	for pkg, rt := range runtimes.live {
		if _, ok := wanted[pkg]; !ok {
			rt.Close()
			delete(runtimes.live, pkg)
			registry.Unregister(pkg)
			log.Info().Str("pkg", pkg).Msg("extension removed, runtime torn down")
		}
	}

	for pkg, inst := range wanted {
		if _, ok := runtimes.live[pkg]; ok {
			continue
		}

		policy := sandbox.New(pkg, inst.Manifest.Permissions.Paths, inst.Manifest.Permissions.Hosts, extensionsDir)

		rt, err := wasmhost.New(context.Background(), pkg, inst.WasmPath,
			inst.Manifest.Permissions.Hosts, inst.Manifest.Permissions.Paths, policy, router,
			func(entryErr error) {
				if entryErr != nil {
					log.Warn().Str("pkg", pkg).Err(entryErr).Msg("extension entry() exited with error")
				}
			})
		if err != nil {
			log.Error().Str("pkg", pkg).Err(err).Msg("failed to start extension runtime")
			continue
		}

		runtimes.live[pkg] = rt
		scopes := models.ScopeFromNames(inst.Manifest.Provides)
		registry.Register(providers.NewExtensionProviderAdapter(pkg, pkg, scopes, rt))
		log.Info().Str("pkg", pkg).Str("scopes", scopes.String()).Msg("extension runtime started")
	}
}

// openExternalURL shells out to the platform opener; this is the one
// escape hatch SpotifyAdapter's Login flow uses to show its auth URL to
// the user without the host linking a GUI toolkit.
func openExternalURL(url string) error {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "rundll32"
	default:
		name = "xdg-open"
	}
	return exec.Command(name, url).Start()
}
