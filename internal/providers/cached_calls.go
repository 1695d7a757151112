package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moosync/moosyncd/internal/models"
)

// The methods in this file are the §4.8 "hot" queries: every one of them
// is routed through Registry.CallCached instead of the plain Call used for
// one-shot operations like Login/Signout, so repeated UI polling of the
// same paged query hits RequestCache instead of re-querying the adapter.

func jsonEncode(v any) ([]byte, error) { return json.Marshal(v) }

func jsonDecode[T any](b []byte) (any, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func paginationArg(p models.Pagination) string {
	return fmt.Sprintf("%d:%d:%s", p.Offset, p.Limit, p.Token)
}

type playlistsPage struct {
	Playlists []models.Playlist `json:"playlists"`
	Next      models.Pagination `json:"next"`
}

type songsPage struct {
	Songs []models.Song      `json:"songs"`
	Next  models.Pagination  `json:"next"`
}

// FetchUserPlaylists is the cached form of Adapter.FetchUserPlaylists.
func (r *Registry) FetchUserPlaylists(ctx context.Context, key string, p models.Pagination) ([]models.Playlist, models.Pagination, error) {
	result, err := r.CallCached(ctx, key, MethodFetchUserPlaylists, []string{paginationArg(p)}, func(a Adapter) (any, error) {
		playlists, next, err := a.FetchUserPlaylists(ctx, p)
		return playlistsPage{Playlists: playlists, Next: next}, err
	}, jsonDecode[playlistsPage], jsonEncode)
	if err != nil {
		return nil, p, err
	}
	page := result.(playlistsPage)
	return page.Playlists, page.Next, nil
}

// GetPlaylistContent is the cached form of Adapter.GetPlaylistContent.
func (r *Registry) GetPlaylistContent(ctx context.Context, key, playlist string, p models.Pagination) ([]models.Song, models.Pagination, error) {
	result, err := r.CallCached(ctx, key, MethodGetPlaylistContent, []string{playlist, paginationArg(p)}, func(a Adapter) (any, error) {
		songs, next, err := a.GetPlaylistContent(ctx, playlist, p)
		return songsPage{Songs: songs, Next: next}, err
	}, jsonDecode[songsPage], jsonEncode)
	if err != nil {
		return nil, p, err
	}
	page := result.(songsPage)
	return page.Songs, page.Next, nil
}

// Search is the cached form of Adapter.Search.
func (r *Registry) Search(ctx context.Context, key, term string) (models.SearchResult, error) {
	result, err := r.CallCached(ctx, key, MethodSearch, []string{term}, func(a Adapter) (any, error) {
		return a.Search(ctx, term)
	}, jsonDecode[models.SearchResult], jsonEncode)
	if err != nil {
		return models.SearchResult{}, err
	}
	return result.(models.SearchResult), nil
}

// SongFromURL is the cached form of Adapter.SongFromURL.
func (r *Registry) SongFromURL(ctx context.Context, key, url string) (models.Song, error) {
	result, err := r.CallCached(ctx, key, MethodSongFromURL, []string{url}, func(a Adapter) (any, error) {
		return a.SongFromURL(ctx, url)
	}, jsonDecode[models.Song], jsonEncode)
	if err != nil {
		return models.Song{}, err
	}
	return result.(models.Song), nil
}

// PlaylistFromURL is the cached form of Adapter.PlaylistFromURL.
func (r *Registry) PlaylistFromURL(ctx context.Context, key, url string) (models.Playlist, error) {
	result, err := r.CallCached(ctx, key, MethodPlaylistFromURL, []string{url}, func(a Adapter) (any, error) {
		return a.PlaylistFromURL(ctx, url)
	}, jsonDecode[models.Playlist], jsonEncode)
	if err != nil {
		return models.Playlist{}, err
	}
	return result.(models.Playlist), nil
}

// SongFromID is the cached form of Adapter.SongFromID.
func (r *Registry) SongFromID(ctx context.Context, key, id string) (models.Song, error) {
	result, err := r.CallCached(ctx, key, MethodSongFromID, []string{id}, func(a Adapter) (any, error) {
		return a.SongFromID(ctx, id)
	}, jsonDecode[models.Song], jsonEncode)
	if err != nil {
		return models.Song{}, err
	}
	return result.(models.Song), nil
}

// GetAlbumContent is the cached form of Adapter.GetAlbumContent.
func (r *Registry) GetAlbumContent(ctx context.Context, key string, album models.Album, p models.Pagination) ([]models.Song, models.Pagination, error) {
	result, err := r.CallCached(ctx, key, MethodGetAlbumContent, []string{album.ID, paginationArg(p)}, func(a Adapter) (any, error) {
		songs, next, err := a.GetAlbumContent(ctx, album, p)
		return songsPage{Songs: songs, Next: next}, err
	}, jsonDecode[songsPage], jsonEncode)
	if err != nil {
		return nil, p, err
	}
	page := result.(songsPage)
	return page.Songs, page.Next, nil
}

// GetArtistContent is the cached form of Adapter.GetArtistContent.
func (r *Registry) GetArtistContent(ctx context.Context, key string, artist models.Artist, p models.Pagination) ([]models.Song, models.Pagination, error) {
	result, err := r.CallCached(ctx, key, MethodGetArtistContent, []string{artist.ID, paginationArg(p)}, func(a Adapter) (any, error) {
		songs, next, err := a.GetArtistContent(ctx, artist, p)
		return songsPage{Songs: songs, Next: next}, err
	}, jsonDecode[songsPage], jsonEncode)
	if err != nil {
		return nil, p, err
	}
	page := result.(songsPage)
	return page.Songs, page.Next, nil
}

// GetLyrics is the cached form of Adapter.GetLyrics.
func (r *Registry) GetLyrics(ctx context.Context, key string, song models.Song) (string, error) {
	result, err := r.CallCached(ctx, key, MethodGetLyrics, []string{song.ID}, func(a Adapter) (any, error) {
		return a.GetLyrics(ctx, song)
	}, jsonDecode[string], jsonEncode)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// GetPlaybackURL is the cached form of Adapter.GetPlaybackURL. An
// `extension://` result means the adapter deferred url minting, so this
// method drops the cached entry and re-queries the adapter once itself.
func (r *Registry) GetPlaybackURL(ctx context.Context, key string, song models.Song, preferredBackend string) (string, error) {
	result, err := r.CallCached(ctx, key, MethodGetPlaybackURL, []string{song.ID, preferredBackend}, func(a Adapter) (any, error) {
		return a.GetPlaybackURL(ctx, song, preferredBackend)
	}, jsonDecode[string], jsonEncode)
	if err != nil {
		return "", err
	}
	url := result.(string)
	if strings.HasPrefix(url, "extension://") {
		r.InvalidateCache(ctx, MethodGetPlaybackURL)
		result, err = r.CallCached(ctx, key, MethodGetPlaybackURL, []string{song.ID, preferredBackend}, func(a Adapter) (any, error) {
			return a.GetPlaybackURL(ctx, song, preferredBackend)
		}, jsonDecode[string], jsonEncode)
		if err != nil {
			return "", err
		}
		url = result.(string)
	}
	return url, nil
}

// InvalidateCache drops every RequestCache entry for method, used after a
// library write that a hot query's result set depends on (e.g. AddPlaylist
// invalidating fetch_user_playlists).
func (r *Registry) InvalidateCache(ctx context.Context, method string) {
	if r.cache == nil {
		return
	}
	r.cache.InvalidateMethod(ctx, method)
}
