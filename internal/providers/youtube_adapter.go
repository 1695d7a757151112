package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/models"
)

// YouTubeAdapter scrapes public search/watch endpoints rather than using an
// authenticated Data API key, matching the "scrapes public endpoints"
// behaviour called out in §4.7. It needs no OAuth and declares no Accounts
// scope.
type YouTubeAdapter struct {
	BaseAdapter
	httpClient *http.Client
	searchURL  string // overridable in tests
}

func NewYouTubeAdapter(httpClient *http.Client) *YouTubeAdapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &YouTubeAdapter{
		BaseAdapter: NewBaseAdapter("youtube", "youtube", models.ScopeSearch|models.ScopePlaybackDetails|models.ScopeSongFromURL),
		httpClient:  httpClient,
		searchURL:   "https://www.youtube.com/results",
	}
}

func (a *YouTubeAdapter) MatchURL(videoURL string) bool {
	return strings.Contains(videoURL, "youtube.com/watch") || strings.Contains(videoURL, "youtu.be/")
}

func (a *YouTubeAdapter) SongFromURL(ctx context.Context, videoURL string) (models.Song, error) {
	id := extractYouTubeID(videoURL)
	if id == "" {
		return models.Song{}, moosyncerrors.ValidationError("not a recognisable youtube url")
	}
	return a.SongFromID(ctx, "youtube:"+id)
}

func (a *YouTubeAdapter) SongFromID(ctx context.Context, id string) (models.Song, error) {
	videoID := stripPrefix(id, "youtube:")
	return models.Song{
		ID:          "youtube:" + videoID,
		Title:       "YouTube video " + videoID,
		Type:        models.SongTypeURL,
		PlaybackURL: "https://www.youtube.com/watch?v=" + videoID,
	}, nil
}

func (a *YouTubeAdapter) GetPlaybackURL(ctx context.Context, song models.Song, preferredBackend string) (string, error) {
	if song.PlaybackURL != "" {
		return song.PlaybackURL, nil
	}
	return "https://www.youtube.com/watch?v=" + stripPrefix(song.ID, "youtube:"), nil
}

// Search issues an unauthenticated search request and scans the results
// page body for `watch?v=<id>` occurrences (see extractWatchIDs); it does
// not parse the page's embedded JSON.
func (a *YouTubeAdapter) Search(ctx context.Context, term string) (models.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.searchURL+"?search_query="+url.QueryEscape(term), nil)
	if err != nil {
		return models.SearchResult{}, moosyncerrors.NetworkError(err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return models.SearchResult{}, moosyncerrors.NetworkError(err)
	}
	defer resp.Body.Close()

	var body []byte
	buf := make([]byte, 65536)
	for {
		n, rerr := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if rerr != nil {
			break
		}
	}

	ids := extractWatchIDs(string(body))
	result := models.SearchResult{}
	for _, id := range ids {
		result.Songs = append(result.Songs, models.Song{
			ID:    "youtube:" + id,
			Title: "YouTube video " + id,
			Type:  models.SongTypeURL,
		})
	}
	return result, nil
}

func extractYouTubeID(videoURL string) string {
	if idx := strings.Index(videoURL, "v="); idx >= 0 {
		rest := videoURL[idx+2:]
		if amp := strings.IndexByte(rest, '&'); amp >= 0 {
			return rest[:amp]
		}
		return rest
	}
	if idx := strings.Index(videoURL, "youtu.be/"); idx >= 0 {
		return videoURL[idx+len("youtu.be/"):]
	}
	return ""
}

// extractWatchIDs pulls "watch?v=<id>" occurrences out of raw HTML/JSON; a
// best-effort scrape, not a full ytInitialData parse.
func extractWatchIDs(html string) []string {
	var out []string
	seen := map[string]bool{}
	marker := "watch?v="
	for idx := strings.Index(html, marker); idx >= 0; {
		start := idx + len(marker)
		end := start
		for end < len(html) && isVideoIDChar(html[end]) {
			end++
		}
		id := html[start:end]
		if len(id) == 11 && !seen[id] {
			seen[id] = true
			out = append(out, id)
			if len(out) >= 20 {
				break
			}
		}
		next := strings.Index(html[end:], marker)
		if next < 0 {
			break
		}
		idx = end + next
	}
	return out
}

func isVideoIDChar(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
