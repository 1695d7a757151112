// Package m3u implements playlist file import/export, grounded line-for-line
// in original_source/core/file_scanner/src/playlist_scanner.rs's
// scan_playlist, including its preserved quirks (see Import's doc comment).
package m3u

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/moosync/moosyncd/internal/models"
)

// Import parses an M3U/M3U8 file into a Playlist and its Songs.
//
// Preserved quirk (§9c/§6): a non-directive line that is not `file://...`,
// not `http(s)://...`, and not empty falls through to the same "treat as a
// local path" handling as a file:// line (the original's matching arm is a
// no-op "pass" rather than a skip) -- so a bare relative path line works
// exactly like one explicitly prefixed with file://. Only a genuinely empty
// line is skipped outright. An http(s) line is coerced to SongTypeStream
// (§6), not SongTypeURL. A local path that does not resolve to an existing
// file drops that one song (not the whole playlist) and resets pending
// #EXTINF/#MOOSINF state, matching the original's continue-on-stat-failure
// behaviour.
func Import(path string) (models.Playlist, []models.Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Playlist{}, nil, fmt.Errorf("m3u: open %s: %w", path, err)
	}
	defer f.Close()

	var songs []models.Song
	var songType models.SongType
	var haveType bool
	var duration float64
	var title, artists string
	var playlistTitle string

	playlistID := uuid.NewString()
	dir := filepath.Dir(path)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			meta := line[len("#EXTINF:"):]
			comma := strings.IndexByte(meta, ',')
			if comma < 0 {
				comma = 0
			}
			duration, _ = strconv.ParseFloat(meta[:comma], 64)
			rest := meta[min(comma+1, len(meta)):]
			artists, title = splitArtistsTitle(rest)
			continue

		case strings.HasPrefix(line, "#MOOSINF:"):
			songType = models.SongType(line[len("#MOOSINF:"):])
			haveType = true
			continue

		case strings.HasPrefix(line, "#PLAYLIST:"):
			playlistTitle = line[len("#PLAYLIST:"):]
			continue

		case strings.HasPrefix(line, "#"):
			continue
		}

		locator := line
		resolvedType := models.SongTypeLocal
		if haveType {
			resolvedType = songType
		}

		switch {
		case strings.HasPrefix(locator, "file://"):
			locator = locator[len("file://"):]
		case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
			resolvedType = models.SongTypeStream
		case locator == "":
			continue
		default:
			// Preserved "pass" arm: treat as a bare local path, same as file://.
		}

		song := models.Song{
			ID:              playlistID + ":" + uuid.NewString(),
			Title:           title,
			DurationSeconds: duration,
			Type:            resolvedType,
			Artists:         splitArtistList(artists),
		}

		if resolvedType == models.SongTypeLocal {
			resolved := locator
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(dir, resolved)
			}
			if _, statErr := os.Stat(resolved); statErr != nil {
				artists, duration, title, haveType = "", 0, "", false
				continue
			}
			song.Path = resolved
		} else {
			song.PlaybackURL = locator
		}

		songs = append(songs, song)
		artists, duration, title, haveType = "", 0, "", false
	}
	if err := scanner.Err(); err != nil {
		return models.Playlist{}, nil, fmt.Errorf("m3u: read %s: %w", path, err)
	}

	pl := models.Playlist{
		ID:          playlistID,
		Name:        playlistTitle,
		LibraryItem: true,
	}
	return pl, songs, nil
}

// splitArtistsTitle mirrors the original's "<artists> - <title>" split: it
// prefers a " - " (space-dash-space) separator and falls back to a bare
// "-" only when no spaced separator exists.
func splitArtistsTitle(s string) (artists, title string) {
	if idx := strings.Index(s, " - "); idx >= 0 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+3:])
	}
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		return "", strings.TrimSpace(strings.Replace(s[idx:], "-", "", 1))
	}
	return "", strings.TrimSpace(s)
}

func splitArtistList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Export writes songs as an M3U8 playlist file at path, in the same
// directive order the importer expects: one #EXTINF/#MOOSINF pair per song,
// followed by its locator line.
func Export(path, playlistName string, songs []models.Song) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("m3u: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "#EXTM3U")
	if playlistName != "" {
		fmt.Fprintf(w, "#PLAYLIST:%s\n", playlistName)
	}
	for _, s := range songs {
		fmt.Fprintf(w, "#EXTINF:%g,%s - %s\n", s.DurationSeconds, strings.Join(s.Artists, ";"), s.Title)
		fmt.Fprintf(w, "#MOOSINF:%s\n", s.Type)
		switch s.Type {
		case models.SongTypeLocal:
			fmt.Fprintf(w, "file://%s\n", s.Path)
		default:
			fmt.Fprintln(w, s.PlaybackURL)
		}
	}
	return w.Flush()
}
