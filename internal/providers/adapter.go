// Package providers implements ProviderRegistry, the ProviderAdapter
// contract, RequestCache, and the built-in adapters (Library, Spotify,
// YouTube) plus the ExtensionProviderAdapter bridge to PluginRuntime.
package providers

import (
	"context"

	"github.com/moosync/moosyncd/internal/models"
)

// Adapter is the uniform contract every provider implements (§4.7).
// Implementations MAY fail with errors.ScopeMissing for a capability they
// do not declare.
type Adapter interface {
	Key() string
	IDPrefix() string
	Scopes() models.PluginScope

	Initialize(ctx context.Context) error
	Login(ctx context.Context, accountID string) (redirectURL string, err error)
	Signout(ctx context.Context, accountID string) error
	Authorize(ctx context.Context, code, state string) error

	FetchUserPlaylists(ctx context.Context, p models.Pagination) ([]models.Playlist, models.Pagination, error)
	GetPlaylistContent(ctx context.Context, playlist string, p models.Pagination) ([]models.Song, models.Pagination, error)
	GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error)
	Search(ctx context.Context, term string) (models.SearchResult, error)

	MatchURL(url string) bool
	PlaylistFromURL(ctx context.Context, url string) (models.Playlist, error)
	SongFromURL(ctx context.Context, url string) (models.Song, error)
	SongFromID(ctx context.Context, id string) (models.Song, error)

	GetSuggestions(ctx context.Context) ([]models.Song, error)
	GetAlbumContent(ctx context.Context, album models.Album, p models.Pagination) ([]models.Song, models.Pagination, error)
	GetArtistContent(ctx context.Context, artist models.Artist, p models.Pagination) ([]models.Song, models.Pagination, error)

	GetLyrics(ctx context.Context, song models.Song) (string, error)
	SongContextMenu(ctx context.Context, song models.Song) ([]models.ContextMenuItem, error)
	PlaylistContextMenu(ctx context.Context, playlist models.Playlist) ([]models.ContextMenuItem, error)
	TriggerContextMenuAction(ctx context.Context, actionID string) error

	HandleEvent(ctx context.Context, event string, payload any) error

	Status() models.ProviderStatus
}
