package m3u

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_HTTPLocator(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "list.m3u8", "#EXTM3U\n"+
		"#PLAYLIST:My Mix\n"+
		"#EXTINF:180,Artist One - Song One\n"+
		"https://example.com/song-one.mp3\n")

	pl, got, err := Import(path)
	require.NoError(t, err)
	assert.Equal(t, "My Mix", pl.Name)
	require.Len(t, got, 1)
	assert.Equal(t, models.SongTypeStream, got[0].Type)
	assert.Equal(t, "https://example.com/song-one.mp3", got[0].PlaybackURL)
	assert.Equal(t, "Song One", got[0].Title)
	assert.Equal(t, []string{"Artist One"}, got[0].Artists)
	assert.Equal(t, 180.0, got[0].DurationSeconds)
}

func TestImport_FileURILocator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "local.flac", "fake audio bytes")
	path := writeFile(t, dir, "list.m3u8", "#EXTINF:10,- Local Track\n"+
		"file://local.flac\n")

	_, got, err := Import(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SongTypeLocal, got[0].Type)
	assert.Equal(t, filepath.Join(dir, "local.flac"), got[0].Path)
}

// TestImport_BarePathTreatedAsLocal preserves the original parser's dead-arm
// quirk: a locator that is neither file:// nor http(s):// nor empty is
// still resolved as a local path rather than skipped outright.
func TestImport_BarePathTreatedAsLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bare.mp3", "fake audio bytes")
	path := writeFile(t, dir, "list.m3u8", "#EXTINF:5,- Bare Path Track\n"+
		"bare.mp3\n")

	_, got, err := Import(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SongTypeLocal, got[0].Type)
	assert.Equal(t, filepath.Join(dir, "bare.mp3"), got[0].Path)
}

func TestImport_UnresolvableLocalPathDropsOnlyThatSong(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.mp3", "fake audio bytes")
	path := writeFile(t, dir, "list.m3u8",
		"#EXTINF:5,- Missing Track\n"+
			"missing.mp3\n"+
			"#EXTINF:5,- Real Track\n"+
			"real.mp3\n")

	_, got, err := Import(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Real Track", got[0].Title)
}

func TestExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.flac", "x")

	songsOut := []models.Song{
		{Title: "A", DurationSeconds: 12, Artists: []string{"Artist A"}, Type: models.SongTypeLocal, Path: filepath.Join(dir, "a.flac")},
		{Title: "B", DurationSeconds: 34, Artists: []string{"Artist B"}, Type: models.SongTypeURL, PlaybackURL: "https://example.com/b.mp3"},
	}

	out := filepath.Join(dir, "roundtrip.m3u8")
	require.NoError(t, Export(out, "Round Trip", songsOut))

	pl, got, err := Import(out)
	require.NoError(t, err)
	assert.Equal(t, "Round Trip", pl.Name)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Title)
	assert.Equal(t, "B", got[1].Title)
	assert.Equal(t, models.SongTypeStream, got[1].Type)
}
