package providers

import (
	"context"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/models"
)

// BaseAdapter provides ScopeMissing-returning defaults for every Adapter
// method, the way the teacher's BasePlugin lets a plugin embed and override
// only what it needs rather than implementing every hook.
type BaseAdapter struct {
	key      string
	idPrefix string
	scopes   models.PluginScope
}

func NewBaseAdapter(key, idPrefix string, scopes models.PluginScope) BaseAdapter {
	return BaseAdapter{key: key, idPrefix: idPrefix, scopes: scopes}
}

func (b *BaseAdapter) Key() string               { return b.key }
func (b *BaseAdapter) IDPrefix() string          { return b.idPrefix }
func (b *BaseAdapter) Scopes() models.PluginScope { return b.scopes }

func (b *BaseAdapter) scopeMissing(capability string) error {
	return moosyncerrors.ScopeMissing(b.key, capability)
}

func (b *BaseAdapter) Initialize(ctx context.Context) error                      { return nil }
func (b *BaseAdapter) Login(ctx context.Context, accountID string) (string, error) {
	return "", b.scopeMissing("Accounts")
}
func (b *BaseAdapter) Signout(ctx context.Context, accountID string) error { return nil }
func (b *BaseAdapter) Authorize(ctx context.Context, code, state string) error {
	return b.scopeMissing("Accounts")
}

func (b *BaseAdapter) FetchUserPlaylists(ctx context.Context, p models.Pagination) ([]models.Playlist, models.Pagination, error) {
	return nil, p, b.scopeMissing("Playlists")
}
func (b *BaseAdapter) GetPlaylistContent(ctx context.Context, playlist string, p models.Pagination) ([]models.Song, models.Pagination, error) {
	return nil, p, b.scopeMissing("PlaylistSongs")
}
func (b *BaseAdapter) GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error) {
	return "", b.scopeMissing("PlaybackDetails")
}
func (b *BaseAdapter) Search(ctx context.Context, term string) (models.SearchResult, error) {
	return models.SearchResult{}, b.scopeMissing("Search")
}

func (b *BaseAdapter) MatchURL(url string) bool { return false }
func (b *BaseAdapter) PlaylistFromURL(ctx context.Context, url string) (models.Playlist, error) {
	return models.Playlist{}, b.scopeMissing("PlaylistFromUrl")
}
func (b *BaseAdapter) SongFromURL(ctx context.Context, url string) (models.Song, error) {
	return models.Song{}, b.scopeMissing("SongFromUrl")
}
func (b *BaseAdapter) SongFromID(ctx context.Context, id string) (models.Song, error) {
	return models.Song{}, b.scopeMissing("SongFromUrl")
}

func (b *BaseAdapter) GetSuggestions(ctx context.Context) ([]models.Song, error) {
	return nil, b.scopeMissing("Recommendations")
}
func (b *BaseAdapter) GetAlbumContent(ctx context.Context, album models.Album, p models.Pagination) ([]models.Song, models.Pagination, error) {
	return nil, p, b.scopeMissing("AlbumSongs")
}
func (b *BaseAdapter) GetArtistContent(ctx context.Context, artist models.Artist, p models.Pagination) ([]models.Song, models.Pagination, error) {
	return nil, p, b.scopeMissing("ArtistSongs")
}

func (b *BaseAdapter) GetLyrics(ctx context.Context, song models.Song) (string, error) {
	return "", b.scopeMissing("Lyrics")
}
func (b *BaseAdapter) SongContextMenu(ctx context.Context, song models.Song) ([]models.ContextMenuItem, error) {
	return nil, b.scopeMissing("SongContextMenu")
}
func (b *BaseAdapter) PlaylistContextMenu(ctx context.Context, playlist models.Playlist) ([]models.ContextMenuItem, error) {
	return nil, b.scopeMissing("PlaylistContextMenu")
}
func (b *BaseAdapter) TriggerContextMenuAction(ctx context.Context, actionID string) error {
	return b.scopeMissing("SongContextMenu")
}

func (b *BaseAdapter) HandleEvent(ctx context.Context, event string, payload any) error { return nil }

func (b *BaseAdapter) Status() models.ProviderStatus {
	return models.ProviderStatus{Key: b.key, Name: b.key, LoggedIn: true}
}
