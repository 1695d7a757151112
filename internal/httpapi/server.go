package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/oauth"
	"github.com/moosync/moosyncd/internal/playback"
	"github.com/moosync/moosyncd/internal/providers"
)

func paginationFromQuery(c *gin.Context) models.Pagination {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return models.Pagination{Offset: offset, Limit: limit, Token: c.Query("token")}
}

// Deps is everything the router needs to serve the orchestrator's HTTP
// surface (§6).
type Deps struct {
	Registry *providers.Registry
	Queue    *playback.Queue
	Coord    *playback.Coordinator
	OAuth    *oauth.Broker
	Hub      *Hub
}

// NewRouter wires the gin engine the same way the teacher's cmd/main.go
// wires its router: a gin.New() base, recovery+error-handling middleware
// from internal/errors, then route groups.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(moosyncerrors.Recovery())
	router.Use(moosyncerrors.ErrorHandler())

	router.GET("/ws", func(c *gin.Context) {
		d.Hub.ServeWS(c.Writer, c.Request)
	})

	router.GET("/providers", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Registry.Statuses())
	})

	router.POST("/providers/:key/login", func(c *gin.Context) {
		key := c.Param("key")
		var body struct {
			AccountID string `json:"account_id"`
		}
		_ = c.ShouldBindJSON(&body)

		result, err := d.Registry.Call(c.Request.Context(), key, "login", func(a providers.Adapter) (any, error) {
			return a.Login(c.Request.Context(), body.AccountID)
		})
		if err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"redirect_url": result})
	})

	router.POST("/providers/:key/signout", func(c *gin.Context) {
		key := c.Param("key")
		var body struct {
			AccountID string `json:"account_id"`
		}
		_ = c.ShouldBindJSON(&body)
		_, err := d.Registry.Call(c.Request.Context(), key, "signout", func(a providers.Adapter) (any, error) {
			return nil, a.Signout(c.Request.Context(), body.AccountID)
		})
		if err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	router.GET("/providers/:key/search", func(c *gin.Context) {
		key := c.Param("key")
		term := c.Query("term")
		result, err := d.Registry.Search(c.Request.Context(), key, term)
		if err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	router.GET("/providers/:key/playlists", func(c *gin.Context) {
		key := c.Param("key")
		playlists, next, err := d.Registry.FetchUserPlaylists(c.Request.Context(), key, paginationFromQuery(c))
		if err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"playlists": playlists, "next": next})
	})

	router.GET("/providers/:key/playlists/:id/content", func(c *gin.Context) {
		key := c.Param("key")
		playlistID := c.Param("id")
		songs, next, err := d.Registry.GetPlaylistContent(c.Request.Context(), key, playlistID, paginationFromQuery(c))
		if err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"songs": songs, "next": next})
	})

	router.GET("/deep-link", func(c *gin.Context) {
		url := c.Query("url")
		if err := d.OAuth.HandleDeepLink(c.Request.Context(), url); err != nil {
			moosyncerrors.HandleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	router.GET("/queue", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Queue.Snapshot())
	})

	router.POST("/queue/play-now", withSongsBody(func(c *gin.Context, songs []models.Song) {
		d.Queue.PlayNow(songs)
		if len(songs) > 0 {
			_ = d.Coord.Load(c.Request.Context(), songs[0], true)
		}
		c.Status(http.StatusNoContent)
	}))

	router.POST("/queue/play-next", withSongsBody(func(c *gin.Context, songs []models.Song) {
		d.Queue.PlayNext(songs)
		c.Status(http.StatusNoContent)
	}))

	router.POST("/queue/add", withSongsBody(func(c *gin.Context, songs []models.Song) {
		d.Queue.AddToQueue(songs)
		c.Status(http.StatusNoContent)
	}))

	router.POST("/queue/clear", func(c *gin.Context) {
		d.Queue.Clear()
		c.Status(http.StatusNoContent)
	})

	router.POST("/playback/next", func(c *gin.Context) {
		advance(c, d, d.Queue.Next)
	})

	router.POST("/playback/prev", func(c *gin.Context) {
		advance(c, d, d.Queue.Prev)
	})

	router.POST("/playback/play", func(c *gin.Context) {
		d.Coord.Play()
		c.Status(http.StatusNoContent)
	})

	router.POST("/playback/pause", func(c *gin.Context) {
		d.Coord.Pause()
		c.Status(http.StatusNoContent)
	})

	router.POST("/playback/stop", func(c *gin.Context) {
		d.Coord.Stop()
		c.Status(http.StatusNoContent)
	})

	router.POST("/playback/seek", func(c *gin.Context) {
		var body struct {
			Seconds float64 `json:"seconds"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			moosyncerrors.HandleError(c, moosyncerrors.ValidationError(err.Error()))
			return
		}
		d.Coord.Seek(body.Seconds)
		c.Status(http.StatusNoContent)
	})

	router.POST("/playback/volume", func(c *gin.Context) {
		var body struct {
			Volume int `json:"volume"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			moosyncerrors.HandleError(c, moosyncerrors.ValidationError(err.Error()))
			return
		}
		d.Coord.SetVolume(body.Volume)
		c.Status(http.StatusNoContent)
	})

	return router
}

func withSongsBody(fn func(c *gin.Context, songs []models.Song)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Songs []models.Song `json:"songs"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			moosyncerrors.HandleError(c, moosyncerrors.ValidationError(err.Error()))
			return
		}
		fn(c, body.Songs)
	}
}

func advance(c *gin.Context, d Deps, step func() (models.Song, bool)) {
	song, ok := step()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	if err := d.Coord.Load(c.Request.Context(), song, true); err != nil {
		moosyncerrors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, song)
}
