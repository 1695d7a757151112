package providers

import (
	"context"
	"sync"
	"time"

	"github.com/moosync/moosyncd/internal/cache"
	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
)

// Hot method names, cached per §4.8.
const (
	MethodFetchUserPlaylists = "fetch_user_playlists"
	MethodGetPlaylistContent = "get_playlist_content"
	MethodSearch             = "search"
	MethodSongFromURL        = "song_from_url"
	MethodPlaylistFromURL    = "playlist_from_url"
	MethodSongFromID         = "song_from_id"
	MethodGetAlbumContent    = "get_album_content"
	MethodGetArtistContent   = "get_artist_content"
	MethodGetLyrics          = "get_lyrics"
	MethodGetPlaybackURL     = "get_playback_url"
)

// ttlFor returns the TTL policy per method class: short for playback URLs
// (they expire), longer for taxonomy queries, per §4.8.
func ttlFor(method string) time.Duration {
	switch method {
	case MethodGetPlaybackURL:
		return 30 * time.Second
	case MethodSearch:
		return 1 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// negativeTTL is how long a cached error is returned to prevent stampedes.
const negativeTTL = 5 * time.Second

// entry is what RequestCache stores: either a successful payload or a
// recently-observed error (never both).
type entry struct {
	expiresAt time.Time
	payload   []byte
	errMsg    string
	isError   bool
}

// RequestCache deduplicates and memoises paged provider queries, keyed by
// (method, canonical args). It layers TTL-per-method-class and the
// InvalidatedCache drop-and-retry-once policy on top of the teacher's Redis
// cache client; when no Redis backend is configured it falls back to an
// in-process map, matching the "not persisted across restarts" decision in
// SPEC_FULL.md §9.
type RequestCache struct {
	redis *cache.Cache // nil means in-memory fallback

	mu    sync.Mutex
	local map[string]entry
}

func NewRequestCache(redisBackend *cache.Cache) *RequestCache {
	rc := &RequestCache{redis: redisBackend}
	if redisBackend == nil || !redisBackend.IsEnabled() {
		rc.local = make(map[string]entry)
	}
	return rc
}

// Call executes fn under the cache: a hit within TTL short-circuits fn; a
// cached error is replayed from the negative-TTL window instead of calling
// fn again; fn's InvalidatedCache sentinel drops the entry and retries fn
// exactly once.
func (rc *RequestCache) Call(ctx context.Context, method string, args []string, fn func() (any, error), decode func([]byte) (any, error), encode func(any) ([]byte, error)) (any, error) {
	key := cacheKeyFor(method, args)

	if cached, hit := rc.get(ctx, key); hit {
		if cached.isError {
			return nil, moosyncerrors.New(moosyncerrors.KindProvider, cached.errMsg)
		}
		if decode != nil {
			return decode(cached.payload)
		}
		return nil, nil
	}

	result, err := fn()
	if err != nil {
		if _, isSwitch := moosyncerrors.AsSwitchProviders(err); isSwitch {
			return result, err
		}
		if moosyncerrors.Is(err, moosyncerrors.KindInvalidatedCache) {
			rc.drop(ctx, key)
			result, err = fn()
			if err != nil {
				return result, err
			}
			rc.setSuccess(ctx, key, method, result, encode)
			return result, nil
		}
		rc.setError(ctx, key, err)
		return result, err
	}

	rc.setSuccess(ctx, key, method, result, encode)
	return result, nil
}

func cacheKeyFor(method string, args []string) string {
	return cache.RequestKey(method, args...)
}

func (rc *RequestCache) get(ctx context.Context, key string) (entry, bool) {
	if rc.local != nil {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		e, ok := rc.local[key]
		if !ok || time.Now().After(e.expiresAt) {
			delete(rc.local, key)
			return entry{}, false
		}
		return e, true
	}

	var e entry
	if err := rc.redis.Get(ctx, key, &e); err != nil {
		return entry{}, false
	}
	return e, true
}

func (rc *RequestCache) setSuccess(ctx context.Context, key, method string, result any, encode func(any) ([]byte, error)) {
	var payload []byte
	if encode != nil {
		payload, _ = encode(result)
	}
	e := entry{expiresAt: time.Now().Add(ttlFor(method)), payload: payload}
	rc.store(ctx, key, e, ttlFor(method))
}

func (rc *RequestCache) setError(ctx context.Context, key string, err error) {
	e := entry{expiresAt: time.Now().Add(negativeTTL), isError: true, errMsg: err.Error()}
	rc.store(ctx, key, e, negativeTTL)
}

func (rc *RequestCache) store(ctx context.Context, key string, e entry, ttl time.Duration) {
	if rc.local != nil {
		rc.mu.Lock()
		rc.local[key] = e
		rc.mu.Unlock()
		return
	}
	_ = rc.redis.Set(ctx, key, e, ttl)
}

func (rc *RequestCache) drop(ctx context.Context, key string) {
	if rc.local != nil {
		rc.mu.Lock()
		delete(rc.local, key)
		rc.mu.Unlock()
		return
	}
	_ = rc.redis.Delete(ctx, key)
}

// InvalidateMethod drops every cached entry for a method (e.g. after
// AddPlaylist invalidates fetch_user_playlists).
func (rc *RequestCache) InvalidateMethod(ctx context.Context, method string) {
	if rc.local != nil {
		rc.mu.Lock()
		defer rc.mu.Unlock()
		prefix := cache.RequestPattern(method)
		for k := range rc.local {
			if matchesPattern(k, prefix) {
				delete(rc.local, k)
			}
		}
		return
	}
	_ = rc.redis.DeletePattern(ctx, cache.RequestPattern(method))
}

func matchesPattern(key, pattern string) bool {
	// pattern is "prefix:*"
	prefix := pattern[:len(pattern)-1]
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}
