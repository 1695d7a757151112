package providers

import (
	"context"
	"strings"

	"github.com/fxamacker/cbor/v2"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/models"
)

// PluginCaller is the narrow slice of wasmhost.Runtime that
// ExtensionProviderAdapter needs, kept as an interface so providers does not
// import wasmhost directly (wasmhost already depends on sandbox/socket, and
// keeping the dependency one-directional avoids an import cycle with the
// package that wires HostCallRouter on top of both).
type PluginCaller interface {
	Call(fnName string, payload []byte) ([]byte, error)
	Available() bool
}

// ExtensionProviderAdapter delegates every Adapter operation to the
// matching exported WASM function on a PluginRuntime, using CBOR for
// entity-heavy frames per §4.3a. Every other built-in adapter talks to a Go
// API directly; this is the only one that crosses the plugin boundary.
type ExtensionProviderAdapter struct {
	BaseAdapter
	runtime PluginCaller
}

func NewExtensionProviderAdapter(key, idPrefix string, scopes models.PluginScope, runtime PluginCaller) *ExtensionProviderAdapter {
	return &ExtensionProviderAdapter{
		BaseAdapter: NewBaseAdapter(key, idPrefix, scopes),
		runtime:     runtime,
	}
}

func (a *ExtensionProviderAdapter) callCBOR(fnName string, in any, out any) error {
	if !a.runtime.Available() {
		return moosyncerrors.ExtensionError(a.Key(), "plugin runtime unavailable")
	}
	payload, err := cbor.Marshal(in)
	if err != nil {
		return moosyncerrors.JSONError(err)
	}
	resp, err := a.runtime.Call(fnName, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := cbor.Unmarshal(resp, out); err != nil {
		return moosyncerrors.JSONError(err)
	}
	return nil
}

// prefixed returns id rewritten under prefix (the adapter's key domain),
// the only cross-plugin identity guarantee callers get (§4.7): a plugin's
// own ids are opaque to it, so the host, not the plugin, owns the prefix.
// Left untouched if the plugin already returned it pre-prefixed.
func prefixed(prefix, id string) string {
	if id == "" || strings.HasPrefix(id, prefix+":") {
		return id
	}
	return prefix + ":" + id
}

func (a *ExtensionProviderAdapter) prefixSong(s models.Song) models.Song {
	s.ID = prefixed(a.IDPrefix(), s.ID)
	if s.Album != nil {
		album := *s.Album
		album.ID = prefixed(a.IDPrefix()+"-album", album.ID)
		s.Album = &album
	}
	return s
}

func (a *ExtensionProviderAdapter) prefixSongs(songs []models.Song) []models.Song {
	out := make([]models.Song, len(songs))
	for i, s := range songs {
		out[i] = a.prefixSong(s)
	}
	return out
}

func (a *ExtensionProviderAdapter) prefixPlaylist(p models.Playlist) models.Playlist {
	p.ID = prefixed(a.IDPrefix()+"-playlist", p.ID)
	return p
}

func (a *ExtensionProviderAdapter) prefixPlaylists(playlists []models.Playlist) []models.Playlist {
	out := make([]models.Playlist, len(playlists))
	for i, p := range playlists {
		out[i] = a.prefixPlaylist(p)
	}
	return out
}

func (a *ExtensionProviderAdapter) prefixAlbums(albums []models.Album) []models.Album {
	out := make([]models.Album, len(albums))
	for i, al := range albums {
		al.ID = prefixed(a.IDPrefix()+"-album", al.ID)
		out[i] = al
	}
	return out
}

func (a *ExtensionProviderAdapter) prefixArtists(artists []models.Artist) []models.Artist {
	out := make([]models.Artist, len(artists))
	for i, ar := range artists {
		ar.ID = prefixed(a.IDPrefix()+"-artist", ar.ID)
		out[i] = ar
	}
	return out
}

func (a *ExtensionProviderAdapter) Initialize(ctx context.Context) error {
	return a.callCBOR("initialize", struct{}{}, nil)
}

func (a *ExtensionProviderAdapter) Login(ctx context.Context, accountID string) (string, error) {
	var out struct {
		RedirectURL string `cbor:"redirect_url"`
	}
	if err := a.callCBOR("login", struct {
		AccountID string `cbor:"account_id"`
	}{accountID}, &out); err != nil {
		return "", err
	}
	return out.RedirectURL, nil
}

func (a *ExtensionProviderAdapter) Signout(ctx context.Context, accountID string) error {
	return a.callCBOR("signout", struct {
		AccountID string `cbor:"account_id"`
	}{accountID}, nil)
}

func (a *ExtensionProviderAdapter) Authorize(ctx context.Context, code, state string) error {
	return a.callCBOR("authorize", struct {
		Code  string `cbor:"code"`
		State string `cbor:"state"`
	}{code, state}, nil)
}

func (a *ExtensionProviderAdapter) FetchUserPlaylists(ctx context.Context, p models.Pagination) ([]models.Playlist, models.Pagination, error) {
	var out struct {
		Playlists []models.Playlist `cbor:"playlists"`
		Next      models.Pagination `cbor:"next"`
	}
	if err := a.callCBOR("fetch_user_playlists", p, &out); err != nil {
		return nil, p, err
	}
	return a.prefixPlaylists(out.Playlists), out.Next, nil
}

func (a *ExtensionProviderAdapter) GetPlaylistContent(ctx context.Context, playlist string, p models.Pagination) ([]models.Song, models.Pagination, error) {
	var out struct {
		Songs []models.Song      `cbor:"songs"`
		Next  models.Pagination  `cbor:"next"`
	}
	in := struct {
		Playlist   string            `cbor:"playlist"`
		Pagination models.Pagination `cbor:"pagination"`
	}{playlist, p}
	if err := a.callCBOR("get_playlist_content", in, &out); err != nil {
		return nil, p, err
	}
	return a.prefixSongs(out.Songs), out.Next, nil
}

func (a *ExtensionProviderAdapter) GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error) {
	var out struct {
		URL string `cbor:"url"`
	}
	in := struct {
		Song             models.Song `cbor:"song"`
		PreferredBackend string      `cbor:"preferred_backend"`
	}{song, preferredBackend}
	if err := a.callCBOR("get_playback_url", in, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (a *ExtensionProviderAdapter) Search(ctx context.Context, term string) (models.SearchResult, error) {
	var out models.SearchResult
	err := a.callCBOR("search", struct {
		Term string `cbor:"term"`
	}{term}, &out)
	out.Songs = a.prefixSongs(out.Songs)
	out.Albums = a.prefixAlbums(out.Albums)
	out.Artists = a.prefixArtists(out.Artists)
	out.Playlists = a.prefixPlaylists(out.Playlists)
	return out, err
}

func (a *ExtensionProviderAdapter) MatchURL(url string) bool {
	var out struct {
		Matched bool `cbor:"matched"`
	}
	_ = a.callCBOR("match_url", struct {
		URL string `cbor:"url"`
	}{url}, &out)
	return out.Matched
}

func (a *ExtensionProviderAdapter) PlaylistFromURL(ctx context.Context, url string) (models.Playlist, error) {
	var out models.Playlist
	err := a.callCBOR("playlist_from_url", struct {
		URL string `cbor:"url"`
	}{url}, &out)
	return a.prefixPlaylist(out), err
}

func (a *ExtensionProviderAdapter) SongFromURL(ctx context.Context, url string) (models.Song, error) {
	var out models.Song
	err := a.callCBOR("song_from_url", struct {
		URL string `cbor:"url"`
	}{url}, &out)
	return a.prefixSong(out), err
}

func (a *ExtensionProviderAdapter) SongFromID(ctx context.Context, id string) (models.Song, error) {
	var out models.Song
	err := a.callCBOR("song_from_id", struct {
		ID string `cbor:"id"`
	}{id}, &out)
	return a.prefixSong(out), err
}

func (a *ExtensionProviderAdapter) GetSuggestions(ctx context.Context) ([]models.Song, error) {
	var out struct {
		Songs []models.Song `cbor:"songs"`
	}
	err := a.callCBOR("get_suggestions", struct{}{}, &out)
	return a.prefixSongs(out.Songs), err
}

func (a *ExtensionProviderAdapter) GetAlbumContent(ctx context.Context, album models.Album, p models.Pagination) ([]models.Song, models.Pagination, error) {
	var out struct {
		Songs []models.Song     `cbor:"songs"`
		Next  models.Pagination `cbor:"next"`
	}
	in := struct {
		Album      models.Album      `cbor:"album"`
		Pagination models.Pagination `cbor:"pagination"`
	}{album, p}
	if err := a.callCBOR("get_album_content", in, &out); err != nil {
		return nil, p, err
	}
	return a.prefixSongs(out.Songs), out.Next, nil
}

func (a *ExtensionProviderAdapter) GetArtistContent(ctx context.Context, artist models.Artist, p models.Pagination) ([]models.Song, models.Pagination, error) {
	var out struct {
		Songs []models.Song     `cbor:"songs"`
		Next  models.Pagination `cbor:"next"`
	}
	in := struct {
		Artist     models.Artist     `cbor:"artist"`
		Pagination models.Pagination `cbor:"pagination"`
	}{artist, p}
	if err := a.callCBOR("get_artist_content", in, &out); err != nil {
		return nil, p, err
	}
	return a.prefixSongs(out.Songs), out.Next, nil
}

func (a *ExtensionProviderAdapter) GetLyrics(ctx context.Context, song models.Song) (string, error) {
	var out struct {
		Lyrics string `cbor:"lyrics"`
	}
	err := a.callCBOR("get_lyrics", struct {
		Song models.Song `cbor:"song"`
	}{song}, &out)
	return out.Lyrics, err
}

func (a *ExtensionProviderAdapter) SongContextMenu(ctx context.Context, song models.Song) ([]models.ContextMenuItem, error) {
	var out struct {
		Items []models.ContextMenuItem `cbor:"items"`
	}
	err := a.callCBOR("get_song_context_menu", struct {
		Song models.Song `cbor:"song"`
	}{song}, &out)
	return out.Items, err
}

func (a *ExtensionProviderAdapter) PlaylistContextMenu(ctx context.Context, playlist models.Playlist) ([]models.ContextMenuItem, error) {
	var out struct {
		Items []models.ContextMenuItem `cbor:"items"`
	}
	err := a.callCBOR("get_playlist_context_menu", struct {
		Playlist models.Playlist `cbor:"playlist"`
	}{playlist}, &out)
	return out.Items, err
}

func (a *ExtensionProviderAdapter) TriggerContextMenuAction(ctx context.Context, actionID string) error {
	return a.callCBOR("trigger_context_menu_action", struct {
		ActionID string `cbor:"action_id"`
	}{actionID}, nil)
}

func (a *ExtensionProviderAdapter) HandleEvent(ctx context.Context, event string, payload any) error {
	return a.callCBOR("handle_event", struct {
		Event   string `cbor:"event"`
		Payload any    `cbor:"payload"`
	}{event, payload}, nil)
}

func (a *ExtensionProviderAdapter) Status() models.ProviderStatus {
	var out models.ProviderStatus
	_ = a.callCBOR("status", struct{}{}, &out)
	out.Key = a.Key()
	return out
}
