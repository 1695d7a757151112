package providers

import (
	"context"

	"github.com/moosync/moosyncd/internal/library"
	"github.com/moosync/moosyncd/internal/models"
)

// LibraryAdapter wraps LibraryStore behind the uniform Adapter contract,
// key = "local". It is the only adapter that is also a write target for
// HostCallRouter's AddSongs/AddPlaylist commands.
type LibraryAdapter struct {
	BaseAdapter
	store *library.Store
}

func NewLibraryAdapter(store *library.Store) *LibraryAdapter {
	return &LibraryAdapter{
		BaseAdapter: NewBaseAdapter("local", "local", models.ScopeSearch|models.ScopePlaylists|models.ScopePlaylistSongs),
		store:       store,
	}
}

func (a *LibraryAdapter) FetchUserPlaylists(ctx context.Context, p models.Pagination) ([]models.Playlist, models.Pagination, error) {
	playlists, err := a.store.QueryPlaylists(ctx, p)
	if err != nil {
		return nil, p, err
	}
	next := p
	next.Offset = p.Offset + len(playlists)
	if len(playlists) < p.Limit || p.Limit == 0 {
		next.Offset = p.Offset // end of stream: Token="" && new_offset <= old_offset
	}
	return playlists, next, nil
}

func (a *LibraryAdapter) GetPlaylistContent(ctx context.Context, playlist string, p models.Pagination) ([]models.Song, models.Pagination, error) {
	songs, err := a.store.QueryPlaylistContent(ctx, playlist, p)
	if err != nil {
		return nil, p, err
	}
	next := p
	if len(songs) == p.Limit && p.Limit > 0 {
		next.Offset = p.Offset + len(songs)
	}
	return songs, next, nil
}

func (a *LibraryAdapter) GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error) {
	if song.Type == models.SongTypeLocal {
		return "file://" + song.Path, nil
	}
	return song.PlaybackURL, nil
}

func (a *LibraryAdapter) Search(ctx context.Context, term string) (models.SearchResult, error) {
	songs, err := a.store.QuerySongs(ctx, library.QuerySongsOptions{Pagination: models.Pagination{Limit: 50}})
	if err != nil {
		return models.SearchResult{}, err
	}
	var matched []models.Song
	for _, s := range songs {
		if containsFold(s.Title, term) {
			matched = append(matched, s)
		}
	}
	return models.SearchResult{Songs: matched}, nil
}

func (a *LibraryAdapter) SongFromID(ctx context.Context, id string) (models.Song, error) {
	songs, err := a.store.QuerySongs(ctx, library.QuerySongsOptions{ID: id})
	if err != nil {
		return models.Song{}, err
	}
	if len(songs) == 0 {
		return models.Song{}, a.scopeMissing("SongFromUrl")
	}
	return songs[0], nil
}

func containsFold(haystack, needle string) bool {
	hl, nl := []rune(haystack), []rune(needle)
	lower := func(rs []rune) []rune {
		out := make([]rune, len(rs))
		for i, r := range rs {
			if r >= 'A' && r <= 'Z' {
				r += 'a' - 'A'
			}
			out[i] = r
		}
		return out
	}
	hl, nl = lower(hl), lower(nl)
	if len(nl) == 0 {
		return true
	}
	for i := 0; i+len(nl) <= len(hl); i++ {
		match := true
		for j := range nl {
			if hl[i+j] != nl[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
