// Package oauth implements OAuthBroker: deep-link registration and
// dispatch for completing OAuth flows kicked off by ProviderAdapter.Login.
package oauth

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/providers"
)

// Broker holds path_fragment -> callback_key registrations (§4.13). When
// the host receives a moosync://<path> deep link, it matches the fragment
// and dispatches to the owning adapter's Authorize(code, state). Unknown
// fragments are logged and dropped, never erroring the caller.
type Broker struct {
	registry *providers.Registry

	mu            sync.RWMutex
	registrations map[string]string           // path fragment -> provider/callback key
	endpoints     map[string]oauth2.Endpoint  // callback key -> discovered OIDC endpoint
}

func NewBroker(registry *providers.Registry) *Broker {
	return &Broker{
		registry:      registry,
		registrations: make(map[string]string),
		endpoints:     make(map[string]oauth2.Endpoint),
	}
}

// Register associates a deep-link path fragment with the key that owns it
// -- a built-in adapter's own key for built-ins, or "extension:<package>"
// for a RegisterOauth host-call from a plugin.
func (b *Broker) Register(pathFragment, callbackKey string) {
	b.mu.Lock()
	b.registrations[pathFragment] = callbackKey
	b.mu.Unlock()
}

func (b *Broker) Unregister(pathFragment string) {
	b.mu.Lock()
	delete(b.registrations, pathFragment)
	b.mu.Unlock()
}

// RegisterOIDC is RegisterOauth's path for extensions that point at a
// standards-compliant identity provider instead of a bespoke OAuth2
// endpoint: it discovers authorization/token endpoints from the issuer's
// /.well-known/openid-configuration document rather than requiring the
// plugin to hardcode them, then registers the fragment as usual.
func (b *Broker) RegisterOIDC(ctx context.Context, pathFragment, callbackKey, issuer string) error {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		logger.Provider().Warn().Str("issuer", issuer).Err(err).Msg("oidc discovery failed")
		return err
	}

	var claims struct {
		AuthURL  string `json:"authorization_endpoint"`
		TokenURL string `json:"token_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return err
	}

	b.mu.Lock()
	b.endpoints[callbackKey] = oauth2.Endpoint{AuthURL: claims.AuthURL, TokenURL: claims.TokenURL}
	b.mu.Unlock()

	b.Register(pathFragment, callbackKey)
	return nil
}

// Endpoint returns the OIDC endpoint discovered for callbackKey, if any.
func (b *Broker) Endpoint(callbackKey string) (oauth2.Endpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[callbackKey]
	return ep, ok
}

// HandleDeepLink parses a moosync://<path>?code=...&state=... URL, matches
// the path fragment against a registration, and dispatches the code and
// state to the owning adapter, which is responsible for checking state
// against the verifier it minted on Login (§7 scenario 2). OAuth callbacks
// have no timeout (§5); a stale verifier is simply overwritten by the
// adapter's next Login call.
func (b *Broker) HandleDeepLink(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		logger.Provider().Warn().Str("url", rawURL).Err(err).Msg("unparsable deep link")
		return nil
	}

	fragment := strings.Trim(parsed.Host+parsed.Path, "/")

	b.mu.RLock()
	key, ok := b.registrations[fragment]
	b.mu.RUnlock()

	if !ok {
		logger.Provider().Warn().Str("fragment", fragment).Msg("unknown deep link fragment, dropping")
		return nil
	}

	code := parsed.Query().Get("code")
	state := parsed.Query().Get("state")
	_, err = b.registry.Call(ctx, key, "authorize", func(a providers.Adapter) (any, error) {
		return nil, a.Authorize(ctx, code, state)
	})
	if err != nil {
		logger.Provider().Warn().Str("key", key).Err(err).Msg("authorize failed")
		return err
	}

	b.registry.PublishStatus(key)
	return nil
}
