// Package sandbox implements SandboxPolicy: per-plugin path/host permission
// evaluation built from an ExtensionManifest's permissions block.
package sandbox

import (
	"os"
	"sort"
	"strings"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/logger"
)

// Denied is returned by Resolve/AdmitHost when a plugin request falls
// outside its declared permissions. Callers must surface it to the plugin
// as a sentinel value rather than aborting the plugin.
var Denied = moosyncerrors.New(moosyncerrors.KindExtension, "sandbox denied request")

// pathRule is one resolved (virtual prefix -> real prefix) mapping.
type pathRule struct {
	virtualPrefix string
	realPrefix    string
}

// Policy holds one plugin's resolved prefix-rewrite table and host allow-list.
type Policy struct {
	pkg   string
	paths []pathRule
	hosts []string
}

// envLookup is overridable in tests.
var envLookup = os.Getenv

// templateVars maps {VAR} manifest templates to host directories. CACHE_DIR
// is special-cased per §6: it resolves under the plugin's own cache/ dir.
func templateVars(pkg, extensionsDir string) map[string]string {
	return map[string]string{
		"{CACHE_DIR}": extensionsDir + "/" + pkg + "/cache",
		"{HOME}":      envLookup("HOME"),
		"{DATA_DIR}":  envLookup("MOOSYNC_DATA_DIR"),
	}
}

// New builds a Policy from a manifest's declared paths/hosts. extensionsDir
// is the root extensions/ directory used to resolve {CACHE_DIR}.
func New(pkg string, paths map[string]string, hosts []string, extensionsDir string) *Policy {
	vars := templateVars(pkg, extensionsDir)

	p := &Policy{pkg: pkg, hosts: append([]string(nil), hosts...)}
	for virtualTemplate, real := range paths {
		virtual := virtualTemplate
		for tmpl, val := range vars {
			virtual = strings.ReplaceAll(virtual, tmpl, val)
			real = strings.ReplaceAll(real, tmpl, val)
		}
		p.paths = append(p.paths, pathRule{virtualPrefix: virtual, realPrefix: real})
	}

	// Longest-prefix-match wins: sort descending by virtual prefix length.
	sort.Slice(p.paths, func(i, j int) bool {
		return len(p.paths[i].virtualPrefix) > len(p.paths[j].virtualPrefix)
	})

	return p
}

// Resolve maps a plugin-requested virtual path to its real filesystem path.
// The longest matching virtual prefix wins; the tail is appended to the
// matched real prefix. Resolution fails if the real path does not exist.
func (p *Policy) Resolve(requested string) (string, error) {
	for _, rule := range p.paths {
		if strings.HasPrefix(requested, rule.virtualPrefix) {
			real := rule.realPrefix + strings.TrimPrefix(requested, rule.virtualPrefix)
			if _, err := os.Stat(real); err != nil {
				logger.Sandbox().Warn().Str("pkg", p.pkg).Str("requested", requested).Msg("resolved path does not exist")
				return "", Denied
			}
			return real, nil
		}
	}
	logger.Sandbox().Warn().Str("pkg", p.pkg).Str("requested", requested).Msg("no matching virtual prefix")
	return "", Denied
}

// AdmitHost reports whether url is covered by an allow-listed host prefix.
func (p *Policy) AdmitHost(url string) bool {
	for _, prefix := range p.hosts {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}
