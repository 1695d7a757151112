// Package hostcall implements HostCallRouter: the single plugin->host RPC
// entry point reached through PluginRuntime's send_main_command host
// function. It dispatches the MainCommand sum type (§4.3) to LibraryStore,
// EventBus, the secure preference store, OAuthBroker, ProviderRegistry, and
// the playback orchestrator.
package hostcall

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/moosync/moosyncd/internal/eventbus"
	"github.com/moosync/moosyncd/internal/library"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/oauth"
	"github.com/moosync/moosyncd/internal/playback"
	"github.com/moosync/moosyncd/internal/providers"
	"github.com/moosync/moosyncd/internal/secure"
)

// Envelope is the CBOR-encoded frame crossing the plugin boundary for every
// send_main_command call (§4.3a): Cmd names the MainCommand variant; Payload
// is that variant's CBOR-encoded argument struct.
type Envelope struct {
	Cmd     string          `cbor:"cmd"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// Response wraps every handler's result so the plugin can distinguish a
// successful (possibly empty) reply from a host-side error without a
// separate out-of-band signal.
type Response struct {
	OK      bool            `cbor:"ok"`
	Error   string          `cbor:"error,omitempty"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

// uiRoundTrip is the narrow surface Router needs to forward
// GetCurrentSong/GetPlayerState/GetVolume/GetTime/GetQueue to a connected
// UI client instead of serving them from local state, per §4.3's "forwarded
// to UI via a correlated request/response channel" -- see uibridge.go.
type uiRoundTrip interface {
	Request(ctx context.Context, kind string) (any, error)
}

// Router is constructed once per process and handed to every PluginRuntime
// as its wasmhost.HostFunctionSet.
type Router struct {
	store    *library.Store
	bus      *eventbus.Bus
	secure   *secure.Store
	oauth    *oauth.Broker
	registry *providers.Registry
	queue    *playback.Queue
	coord    *playback.Coordinator
	ui       uiRoundTrip
}

func NewRouter(store *library.Store, bus *eventbus.Bus, secureStore *secure.Store, oauthBroker *oauth.Broker, registry *providers.Registry, queue *playback.Queue, coord *playback.Coordinator, ui uiRoundTrip) *Router {
	return &Router{store: store, bus: bus, secure: secureStore, oauth: oauthBroker, registry: registry, queue: queue, coord: coord, ui: ui}
}

// SendMainCommand implements wasmhost.HostFunctionSet. It never panics out
// to the plugin boundary: any internal error is folded into a Response.
func (r *Router) SendMainCommand(pkg string, raw []byte) []byte {
	var env Envelope
	if err := cbor.Unmarshal(raw, &env); err != nil {
		return encodeErr("malformed envelope: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := r.dispatch(ctx, pkg, env.Cmd, env.Payload)
	if err != nil {
		return encodeErr(err.Error())
	}
	payload, err := cbor.Marshal(resp)
	if err != nil {
		return encodeErr("encode failed: " + err.Error())
	}
	out, _ := cbor.Marshal(Response{OK: true, Payload: payload})
	return out
}

func encodeErr(msg string) []byte {
	out, _ := cbor.Marshal(Response{OK: false, Error: msg})
	return out
}

// sanitizeID enforces §4.3's cross-plugin identity guarantee: a free-form
// string coming back from a plugin that is meant to identify an entity the
// plugin owns MUST carry its `<package>:` (or `extension:<package>`)
// prefix before it is allowed to escape into shared state.
func sanitizeID(pkg, raw string) string {
	prefix := pkg + ":"
	if strings.HasPrefix(raw, prefix) {
		return raw
	}
	return prefix + raw
}

func (r *Router) dispatch(ctx context.Context, pkg, cmd string, payload cbor.RawMessage) (any, error) {
	switch cmd {
	case "GetSong":
		var opts library.QuerySongsOptions
		if err := cbor.Unmarshal(payload, &opts); err != nil {
			return nil, err
		}
		return r.store.QuerySongs(ctx, opts)

	case "GetEntity":
		var opts struct {
			Kind       string            `cbor:"kind"`
			Pagination models.Pagination `cbor:"pagination"`
		}
		if err := cbor.Unmarshal(payload, &opts); err != nil {
			return nil, err
		}
		switch opts.Kind {
		case "playlist":
			return r.store.QueryPlaylists(ctx, opts.Pagination)
		default:
			return r.store.QuerySongs(ctx, library.QuerySongsOptions{Pagination: opts.Pagination})
		}

	case "AddSongs":
		var songs []models.Song
		if err := cbor.Unmarshal(payload, &songs); err != nil {
			return nil, err
		}
		for i := range songs {
			songs[i].ID = sanitizeID(pkg, songs[i].ID)
		}
		if err := r.store.AddSongs(ctx, songs); err != nil {
			return nil, err
		}
		r.bus.Publish(eventbus.TopicLibrarySong, songs)
		return nil, nil

	case "RemoveSong":
		var in struct {
			ID string `cbor:"id"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		if err := r.store.RemoveSong(ctx, in.ID); err != nil {
			return nil, err
		}
		r.bus.Publish(eventbus.TopicLibrarySong, in.ID)
		return nil, nil

	case "UpdateSong":
		var sg models.Song
		if err := cbor.Unmarshal(payload, &sg); err != nil {
			return nil, err
		}
		if err := r.store.UpdateSong(ctx, sg); err != nil {
			return nil, err
		}
		r.bus.Publish(eventbus.TopicLibrarySong, sg)
		return nil, nil

	case "AddPlaylist":
		var pl models.Playlist
		if err := cbor.Unmarshal(payload, &pl); err != nil {
			return nil, err
		}
		pl.Extension = pkg
		id, err := r.store.AddPlaylist(ctx, pl)
		if err != nil {
			return nil, err
		}
		r.bus.Publish(eventbus.TopicLibraryPlaylist, id)
		r.registry.InvalidateCache(ctx, providers.MethodFetchUserPlaylists)
		return struct {
			ID string `cbor:"id"`
		}{id}, nil

	case "AddToPlaylist":
		var in struct {
			PlaylistID string   `cbor:"playlist_id"`
			SongIDs    []string `cbor:"song_ids"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		if err := r.store.AddToPlaylist(ctx, in.PlaylistID, in.SongIDs); err != nil {
			return nil, err
		}
		r.bus.Publish(eventbus.TopicLibraryPlaylist, in.PlaylistID)
		r.registry.InvalidateCache(ctx, providers.MethodGetPlaylistContent)
		return nil, nil

	case "GetPreference":
		var in struct {
			Key string `cbor:"key"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		value, ok, err := r.store.GetPreference(ctx, scopedKey(pkg, in.Key))
		if err != nil {
			return nil, err
		}
		return struct {
			Value string `cbor:"value"`
			Found bool   `cbor:"found"`
		}{value, ok}, nil

	case "SetPreference":
		var in struct {
			Key   string `cbor:"key"`
			Value string `cbor:"value"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return nil, r.store.SetPreference(ctx, scopedKey(pkg, in.Key), in.Value)

	case "GetSecure":
		var in struct {
			Key string `cbor:"key"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		value, ok, err := r.secure.Get(ctx, scopedKey(pkg, in.Key))
		if err != nil {
			return nil, err
		}
		return struct {
			Value string `cbor:"value"`
			Found bool   `cbor:"found"`
		}{value, ok}, nil

	case "SetSecure":
		var in struct {
			Key   string `cbor:"key"`
			Value string `cbor:"value"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return nil, r.secure.Set(ctx, scopedKey(pkg, in.Key), in.Value)

	case "GetCurrentSong":
		return r.roundTripOrLocal(ctx, "current_song", func() (any, error) {
			song, _ := r.queue.Current()
			return song, nil
		})

	case "GetPlayerState":
		return r.roundTripOrLocal(ctx, "player_state", func() (any, error) {
			return r.coord.State(), nil
		})

	case "GetVolume":
		return r.roundTripOrLocal(ctx, "volume", func() (any, error) {
			return r.coord.GetVolume(), nil
		})

	case "GetTime":
		return r.roundTripOrLocal(ctx, "time", func() (any, error) {
			return r.coord.GetTime(), nil
		})

	case "GetQueue":
		return r.roundTripOrLocal(ctx, "queue", func() (any, error) {
			return r.queue.Snapshot(), nil
		})

	case "RegisterOauth":
		var in struct {
			URLFragment string `cbor:"url_fragment"`
			Issuer      string `cbor:"issuer"` // optional: OIDC discovery issuer URL
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		if in.Issuer != "" {
			return nil, r.oauth.RegisterOIDC(ctx, in.URLFragment, "extension:"+pkg, in.Issuer)
		}
		r.oauth.Register(in.URLFragment, "extension:"+pkg)
		return nil, nil

	case "OpenExternalUrl":
		var in struct {
			URL string `cbor:"url"`
		}
		if err := cbor.Unmarshal(payload, &in); err != nil {
			return nil, err
		}
		return nil, openExternalURL(in.URL)

	case "UpdateAccounts":
		var in struct {
			Key string `cbor:"key"`
		}
		_ = cbor.Unmarshal(payload, &in)
		if in.Key != "" {
			r.registry.PublishStatus(in.Key)
		}
		return nil, nil

	case "RegisterUserPreference", "UnregisterUserPreference":
		logger.Extension().Debug().Str("pkg", pkg).Str("cmd", cmd).Msg("preference UI surface adjustment (no-op: no UI process attached)")
		return nil, nil

	case "ExtensionsUpdated":
		logger.Extension().Info().Str("pkg", pkg).Msg("extension requested provider-scope rediscovery")
		return nil, nil

	default:
		logger.Extension().Warn().Str("pkg", pkg).Str("cmd", cmd).Msg("unknown main command")
		return nil, nil
	}
}

// roundTripOrLocal forwards to the UI bridge when one is attached; a
// plugin-facing request with no UI connected falls back to the
// coordinator/queue's own state rather than always returning null, which
// is the more useful behaviour for a headless host process.
func (r *Router) roundTripOrLocal(ctx context.Context, kind string, local func() (any, error)) (any, error) {
	if r.ui != nil {
		rtCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()
		value, err := r.ui.Request(rtCtx, kind)
		if err == nil {
			return value, nil
		}
		logger.Extension().Debug().Str("kind", kind).Err(err).Msg("ui round trip timed out, serving local state")
	}
	return local()
}

func scopedKey(pkg, key string) string {
	return "extension." + pkg + "." + key
}

// openExternalURL shells out to the platform opener, the same escape hatch
// SpotifyAdapter's opener callback uses for its auth URL.
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
