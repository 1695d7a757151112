// Package extensions implements ExtensionRegistry: install/remove/list
// lifecycle for on-disk plugin packages under extensions_dir/<package>/,
// grounded in original_source/core/extensions/src/extension_manager/ and in
// the teacher's internal/plugins discovery+marketplace idiom (periodic
// refresh via robfig/cron, atomic install-by-rename).
package extensions

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
)

// Installed pairs a manifest with its on-disk entry path.
type Installed struct {
	Manifest models.ExtensionManifest
	Dir      string
	WasmPath string
}

// ChangeListener is notified whenever the installed set changes, letting
// ProviderRegistry diff and create/destroy adapters without polling.
type ChangeListener func(installed []Installed)

// Registry owns extensions_dir and the cron schedule that refreshes the
// remote manifest index.
type Registry struct {
	dir           string
	manifestIndex string // well-known release index URL
	httpClient    *http.Client

	mu        sync.RWMutex
	installed map[string]Installed

	listeners []ChangeListener
	cron      *cron.Cron
}

func New(extensionsDir, manifestIndexURL string, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Registry{
		dir:           extensionsDir,
		manifestIndex: manifestIndexURL,
		httpClient:    httpClient,
		installed:     make(map[string]Installed),
	}
}

// OnChange registers a listener invoked after every install/remove.
func (r *Registry) OnChange(l ChangeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

func (r *Registry) notify() {
	r.mu.RLock()
	snapshot := make([]Installed, 0, len(r.installed))
	for _, v := range r.installed {
		snapshot = append(snapshot, v)
	}
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// StartScheduledRefresh runs fetch_manifest on the given cron spec, mirroring
// the teacher's scheduler-backed marketplace refresh.
func (r *Registry) StartScheduledRefresh(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.FetchManifest(context.Background()); err != nil {
			logger.Extension().Warn().Err(err).Msg("scheduled manifest refresh failed")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

func (r *Registry) StopScheduledRefresh() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// ListInstalled scans extensions_dir, loading each package's manifest.json.
// Called at startup to rebuild the in-memory map; Install and Remove update
// the map directly rather than calling this.
func (r *Registry) ListInstalled() ([]Installed, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, moosyncerrors.FileSystemError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.installed = make(map[string]Installed)

	var out []Installed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pkgDir := filepath.Join(r.dir, e.Name())
		manifest, err := loadManifest(filepath.Join(pkgDir, "manifest.json"))
		if err != nil {
			logger.Extension().Warn().Str("dir", e.Name()).Err(err).Msg("skipping unreadable extension directory")
			continue
		}
		inst := Installed{
			Manifest: manifest,
			Dir:      pkgDir,
			WasmPath: filepath.Join(pkgDir, manifest.Entry),
		}
		r.installed[manifest.PackageName] = inst
		out = append(out, inst)
	}
	return out, nil
}

func loadManifest(path string) (models.ExtensionManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.ExtensionManifest{}, err
	}
	var m models.ExtensionManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return models.ExtensionManifest{}, err
	}
	return m, nil
}

// Install extracts archivePath to a temp directory, validates the manifest,
// compares it against any installed copy by proper semver component
// comparison (not the original's dotted-integer concatenation, per the
// corrected behaviour), and atomically replaces the installed directory by
// rename -- a failed install never leaves a half-extracted directory
// in its final location.
func (r *Registry) Install(archivePath string) (Installed, error) {
	tmpDir, err := os.MkdirTemp(r.dir, ".install-*")
	if err != nil {
		return Installed{}, moosyncerrors.FileSystemError(err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extractZip(archivePath, tmpDir); err != nil {
		return Installed{}, moosyncerrors.ExtensionError("", "extract failed: "+err.Error())
	}

	manifest, err := loadManifest(filepath.Join(tmpDir, "manifest.json"))
	if err != nil {
		return Installed{}, moosyncerrors.ExtensionError("", "missing or invalid manifest: "+err.Error())
	}
	if !manifest.MoosyncExtension {
		return Installed{}, moosyncerrors.ExtensionError(manifest.PackageName, "archive does not declare moosync_extension")
	}

	r.mu.Lock()
	existing, exists := r.installed[manifest.PackageName]
	r.mu.Unlock()

	if exists {
		cmp, err := semverCompare(manifest.Version, existing.Manifest.Version)
		if err != nil {
			return Installed{}, moosyncerrors.ExtensionError(manifest.PackageName, "unparsable version: "+err.Error())
		}
		if cmp <= 0 {
			return Installed{}, moosyncerrors.New(moosyncerrors.KindExtension, "DuplicateExtension: "+manifest.PackageName)
		}
		if err := os.RemoveAll(existing.Dir); err != nil {
			return Installed{}, moosyncerrors.FileSystemError(err)
		}
	}

	finalDir := filepath.Join(r.dir, manifest.PackageName)
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return Installed{}, moosyncerrors.FileSystemError(err)
	}

	inst := Installed{Manifest: manifest, Dir: finalDir, WasmPath: filepath.Join(finalDir, manifest.Entry)}
	r.mu.Lock()
	r.installed[manifest.PackageName] = inst
	r.mu.Unlock()

	r.notify()
	return inst, nil
}

// Remove deletes a package's directory and drops it from the in-memory map;
// the caller (ProviderRegistry/PluginRuntime owner) is responsible for
// tearing down the running PluginRuntime before or after this call.
func (r *Registry) Remove(packageName string) error {
	r.mu.Lock()
	inst, ok := r.installed[packageName]
	if ok {
		delete(r.installed, packageName)
	}
	r.mu.Unlock()

	if !ok {
		return moosyncerrors.ExtensionError(packageName, "not installed")
	}
	if err := os.RemoveAll(inst.Dir); err != nil {
		return moosyncerrors.FileSystemError(err)
	}
	r.notify()
	return nil
}

// Download streams a release asset to a temp file, then installs it.
func (r *Registry) Download(ctx context.Context, assetURL string) (Installed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return Installed{}, moosyncerrors.NetworkError(err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Installed{}, moosyncerrors.NetworkError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Installed{}, moosyncerrors.NetworkError(fmt.Errorf("asset fetch status %d", resp.StatusCode))
	}

	tmp, err := os.CreateTemp("", "moosync-ext-*.zip")
	if err != nil {
		return Installed{}, moosyncerrors.FileSystemError(err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return Installed{}, moosyncerrors.FileSystemError(err)
	}
	tmp.Close()

	return r.Install(tmp.Name())
}

// ReleaseAsset is one entry in the well-known manifest index response.
type ReleaseAsset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// FetchManifest queries the release index and returns its decoded asset
// list as is; joining an asset to a package is done separately by
// MatchAssetToPackage.
func (r *Registry) FetchManifest(ctx context.Context) ([]ReleaseAsset, error) {
	if r.manifestIndex == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.manifestIndex, nil)
	if err != nil {
		return nil, moosyncerrors.NetworkError(err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, moosyncerrors.NetworkError(err)
	}
	defer resp.Body.Close()

	var assets []ReleaseAsset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, moosyncerrors.JSONError(err)
	}
	return assets, nil
}

// MatchAssetToPackage joins a release asset to an installed package by
// prefix match of the asset file name against the package name.
func MatchAssetToPackage(assets []ReleaseAsset, packageName string) (ReleaseAsset, bool) {
	for _, a := range assets {
		if strings.HasPrefix(a.Name, packageName) {
			return a, true
		}
	}
	return ReleaseAsset{}, false
}

// semverCompare compares two dotted-integer version strings component-wise,
// correcting the original Rust implementation's bug of concatenating
// components into one integer before comparing (which makes "2.0.0", i.e.
// 200, sort before "1.10.0", i.e. 1100). Returns -1, 0, or 1.
func semverCompare(a, b string) (int, error) {
	pa, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	pb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}
	n := len(pa)
	if len(pb) > n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x < y {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, nil
}

func parseVersion(v string) ([]int, error) {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid version component %q in %q", p, v)
		}
		out = append(out, n)
	}
	return out, nil
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
