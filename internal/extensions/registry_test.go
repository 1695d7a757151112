package extensions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/models"
)

func writeManifest(t *testing.T, extensionsDir, pkg string, m models.ExtensionManifest) {
	t.Helper()
	dir := filepath.Join(extensionsDir, pkg)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644))
}

func TestListInstalled_LoadsEveryPackage(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "example.one", models.ExtensionManifest{
		PackageName: "example.one", Entry: "main.wasm", Provides: []string{"Search"},
	})
	writeManifest(t, dir, "example.two", models.ExtensionManifest{
		PackageName: "example.two", Entry: "main.wasm",
	})

	r := New(dir, "", nil)
	installed, err := r.ListInstalled()
	require.NoError(t, err)
	require.Len(t, installed, 2)

	byName := make(map[string]Installed, len(installed))
	for _, inst := range installed {
		byName[inst.Manifest.PackageName] = inst
	}
	assert.Contains(t, byName, "example.one")
	assert.Contains(t, byName, "example.two")
	assert.Equal(t, filepath.Join(dir, "example.one", "main.wasm"), byName["example.one"].WasmPath)
}

func TestListInstalled_SkipsUnreadableDirectory(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "example.good", models.ExtensionManifest{PackageName: "example.good", Entry: "main.wasm"})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "example.broken"), 0o755))
	// no manifest.json written for example.broken

	r := New(dir, "", nil)
	installed, err := r.ListInstalled()
	require.NoError(t, err)
	require.Len(t, installed, 1)
	assert.Equal(t, "example.good", installed[0].Manifest.PackageName)
}

func TestListInstalled_MissingDirIsNotAnError(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist"), "", nil)
	installed, err := r.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, installed)
}

func TestOnChange_NotifyDeliversListedPackages(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "example.one", models.ExtensionManifest{PackageName: "example.one", Entry: "main.wasm"})

	r := New(dir, "", nil)
	var notified []Installed
	r.OnChange(func(installed []Installed) { notified = installed })

	_, err := r.ListInstalled()
	require.NoError(t, err)
	r.notify()

	require.Len(t, notified, 1)
	assert.Equal(t, "example.one", notified[0].Manifest.PackageName)
}
