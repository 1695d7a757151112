// Package library implements LibraryStore, the local SQLite-backed
// catalogue of songs, playlists, and taxonomy described in §6. It is the
// one concrete persistence backend the rest of the orchestrator is exercised
// against; the spec otherwise treats LibraryStore as a black box.
//
// Grounded in the teacher's internal/db/database.go connection-pool shape,
// retargeted from a Postgres server (lib/pq) to a single SQLite file
// (mattn/go-sqlite3, as driven by the desertthunder-ytx example repo).
package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
)

// Store wraps a pooled connection to songs.db.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and runs
// migrations. Pool sizing mirrors the teacher's Postgres tuning, scaled down
// for a single-file embedded database that does not benefit from a large
// pool (SQLite serializes writers regardless).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, moosyncerrors.DatabaseError(err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, moosyncerrors.DatabaseError(err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	logger.Database().Info().Str("path", path).Msg("library store opened")
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	duration REAL NOT NULL DEFAULT 0,
	artists TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	path TEXT,
	playback_url TEXT,
	cover_path_low TEXT,
	cover_path_high TEXT,
	provider_extension TEXT,
	library_item INTEGER NOT NULL DEFAULT 0,
	lyrics TEXT
);
CREATE TABLE IF NOT EXISTS albums (
	id TEXT PRIMARY KEY, name TEXT NOT NULL, cover_path TEXT, year INTEGER
);
CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY, name TEXT NOT NULL, cover_path TEXT
);
CREATE TABLE IF NOT EXISTS genres (
	id TEXT PRIMARY KEY, name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS playlists (
	id TEXT PRIMARY KEY, name TEXT NOT NULL, cover_path TEXT,
	library_item INTEGER NOT NULL DEFAULT 1, provider_extension TEXT
);
CREATE TABLE IF NOT EXISTS album_bridge (
	song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, entity_id)
);
CREATE TABLE IF NOT EXISTS artist_bridge (
	song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, entity_id)
);
CREATE TABLE IF NOT EXISTS genre_bridge (
	song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, entity_id)
);
CREATE TABLE IF NOT EXISTS playlist_bridge (
	song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
	PRIMARY KEY (song_id, entity_id)
);
CREATE TABLE IF NOT EXISTS analytics (
	song_id TEXT PRIMARY KEY REFERENCES songs(id) ON DELETE CASCADE,
	play_count INTEGER NOT NULL DEFAULT 0,
	play_time INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS secure_preferences (
	key TEXT PRIMARY KEY,
	nonce BLOB NOT NULL,
	ciphertext BLOB NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// QuerySongsOptions filters QuerySongs lookups.
type QuerySongsOptions struct {
	ID          string
	LibraryOnly bool
	Pagination  models.Pagination
}

// QuerySongs resolves LibraryAdapter reads and the router's GetSong command.
func (s *Store) QuerySongs(ctx context.Context, opts QuerySongsOptions) ([]models.Song, error) {
	query := `SELECT id, title, duration, artists, type, path, playback_url,
		cover_path_low, cover_path_high, provider_extension, library_item, lyrics,
		COALESCE((SELECT play_count FROM analytics WHERE analytics.song_id = songs.id), 0),
		COALESCE((SELECT play_time FROM analytics WHERE analytics.song_id = songs.id), 0)
		FROM songs WHERE 1=1`
	args := []any{}
	if opts.ID != "" {
		query += " AND id = ?"
		args = append(args, opts.ID)
	}
	if opts.LibraryOnly {
		query += " AND library_item = 1"
	}
	limit := opts.Pagination.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Pagination.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, moosyncerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		var sg models.Song
		var artists string
		var path, playbackURL, coverLow, coverHigh, ext, lyrics sql.NullString
		var libraryItem int
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.DurationSeconds, &artists, &sg.Type,
			&path, &playbackURL, &coverLow, &coverHigh, &ext, &libraryItem, &lyrics,
			&sg.PlayCount, &sg.PlayTimeSec); err != nil {
			return nil, moosyncerrors.DatabaseError(err)
		}
		sg.Path = path.String
		sg.PlaybackURL = playbackURL.String
		sg.CoverPathLow = coverLow.String
		sg.CoverPathHigh = coverHigh.String
		sg.ProviderExtension = ext.String
		sg.Lyrics = lyrics.String
		sg.LibraryItem = libraryItem != 0
		if artists != "" {
			sg.Artists = splitCSV(artists)
		}
		out = append(out, sg)
	}
	return out, nil
}

// AddSongs inserts songs and marks them library items, cascading-safe by
// construction (bridge rows reference ON DELETE CASCADE).
func (s *Store) AddSongs(ctx context.Context, songs []models.Song) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	for _, sg := range songs {
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO songs
			(id, title, duration, artists, type, path, playback_url, cover_path_low, cover_path_high, provider_extension, library_item, lyrics)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(id) DO UPDATE SET title=excluded.title, library_item=1`,
			sg.ID, sg.Title, sg.DurationSeconds, joinCSV(sg.Artists), sg.Type,
			nullable(sg.Path), nullable(sg.PlaybackURL), nullable(sg.CoverPathLow),
			nullable(sg.CoverPathHigh), nullable(sg.ProviderExtension), nullable(sg.Lyrics)); err != nil {
			return moosyncerrors.DatabaseError(err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO analytics (song_id, play_count, play_time) VALUES (?, 0, 0)`, sg.ID); err != nil {
			return moosyncerrors.DatabaseError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// RemoveSong deletes a song; bridge and analytics rows cascade.
func (s *Store) RemoveSong(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id); err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	if err := tx.Commit(); err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// UpdateSong updates the mutable fields owned by LibraryStore.
func (s *Store) UpdateSong(ctx context.Context, sg models.Song) error {
	_, err := s.db.ExecContext(ctx, `UPDATE songs SET title=?, lyrics=?, library_item=? WHERE id=?`,
		sg.Title, nullable(sg.Lyrics), boolToInt(sg.LibraryItem), sg.ID)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// RecordPlayback bumps play_count/play_time for a completed or partial play.
func (s *Store) RecordPlayback(ctx context.Context, songID string, seconds int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO analytics (song_id, play_count, play_time) VALUES (?, 1, ?)
		ON CONFLICT(song_id) DO UPDATE SET play_count = play_count + 1, play_time = play_time + excluded.play_time`,
		songID, seconds)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// AddPlaylist inserts a playlist.
func (s *Store) AddPlaylist(ctx context.Context, pl models.Playlist) (string, error) {
	if pl.ID == "" {
		pl.ID = "local-playlist:" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO playlists (id, name, cover_path, library_item, provider_extension)
		VALUES (?, ?, ?, 1, ?)`, pl.ID, pl.Name, nullable(pl.CoverPath), nullable(pl.Extension))
	if err != nil {
		return "", moosyncerrors.DatabaseError(err)
	}
	return pl.ID, nil
}

// AddToPlaylist links songs to a playlist, preserving insertion order is
// not required here (QueueManager owns ordering; library rows are a set).
func (s *Store) AddToPlaylist(ctx context.Context, playlistID string, songIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	defer tx.Rollback()

	for _, id := range songIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO playlist_bridge (song_id, entity_id) VALUES (?, ?)`, id, playlistID); err != nil {
			return moosyncerrors.DatabaseError(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// QueryPlaylists lists library-item playlists, paged.
func (s *Store) QueryPlaylists(ctx context.Context, pagination models.Pagination) ([]models.Playlist, error) {
	limit := pagination.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, cover_path, library_item, provider_extension
		FROM playlists ORDER BY id LIMIT ? OFFSET ?`, limit, pagination.Offset)
	if err != nil {
		return nil, moosyncerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []models.Playlist
	for rows.Next() {
		var pl models.Playlist
		var cover, ext sql.NullString
		var libraryItem int
		if err := rows.Scan(&pl.ID, &pl.Name, &cover, &libraryItem, &ext); err != nil {
			return nil, moosyncerrors.DatabaseError(err)
		}
		pl.CoverPath = cover.String
		pl.Extension = ext.String
		pl.LibraryItem = libraryItem != 0
		out = append(out, pl)
	}
	return out, nil
}

// QueryPlaylistContent lists the songs bridged to a playlist, paged.
func (s *Store) QueryPlaylistContent(ctx context.Context, playlistID string, pagination models.Pagination) ([]models.Song, error) {
	limit := pagination.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT songs.id, songs.title, songs.duration, songs.artists, songs.type,
		songs.path, songs.playback_url, songs.cover_path_low, songs.cover_path_high, songs.provider_extension,
		songs.library_item, songs.lyrics
		FROM songs JOIN playlist_bridge ON playlist_bridge.song_id = songs.id
		WHERE playlist_bridge.entity_id = ? ORDER BY songs.id LIMIT ? OFFSET ?`,
		playlistID, limit, pagination.Offset)
	if err != nil {
		return nil, moosyncerrors.DatabaseError(err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		var sg models.Song
		var artists string
		var path, playbackURL, coverLow, coverHigh, ext, lyrics sql.NullString
		var libraryItem int
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.DurationSeconds, &artists, &sg.Type,
			&path, &playbackURL, &coverLow, &coverHigh, &ext, &libraryItem, &lyrics); err != nil {
			return nil, moosyncerrors.DatabaseError(err)
		}
		sg.Path, sg.PlaybackURL, sg.CoverPathLow, sg.CoverPathHigh, sg.ProviderExtension, sg.Lyrics =
			path.String, playbackURL.String, coverLow.String, coverHigh.String, ext.String, lyrics.String
		sg.LibraryItem = libraryItem != 0
		if artists != "" {
			sg.Artists = splitCSV(artists)
		}
		out = append(out, sg)
	}
	return out, nil
}

// GetPreference reads a plain preference value, scoped to
// "extension.<package>.<key>" or a bare key for host preferences.
func (s *Store) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, moosyncerrors.DatabaseError(err)
	}
	return value, true, nil
}

// SetPreference writes a plain preference value.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

// GetSecurePreference satisfies secure.preferenceBackend, returning the raw
// nonce/ciphertext pair so secure.Store can do the actual decryption.
func (s *Store) GetSecurePreference(ctx context.Context, key string) ([]byte, []byte, bool, error) {
	var nonce, ciphertext []byte
	err := s.db.QueryRowContext(ctx, "SELECT nonce, ciphertext FROM secure_preferences WHERE key = ?", key).Scan(&nonce, &ciphertext)
	if err == sql.ErrNoRows {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, moosyncerrors.DatabaseError(err)
	}
	return nonce, ciphertext, true, nil
}

// SetSecurePreference satisfies secure.preferenceBackend.
func (s *Store) SetSecurePreference(ctx context.Context, key string, nonce, ciphertext []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO secure_preferences (key, nonce, ciphertext) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, ciphertext = excluded.ciphertext`, key, nonce, ciphertext)
	if err != nil {
		return moosyncerrors.DatabaseError(err)
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func joinCSV(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
