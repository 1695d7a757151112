package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSong_Valid(t *testing.T) {
	assert.True(t, Song{Type: SongTypeLocal, Path: "/music/a.flac"}.Valid())
	assert.False(t, Song{Type: SongTypeLocal}.Valid())
	assert.True(t, Song{Type: SongTypeURL, PlaybackURL: "https://example.com/a.mp3"}.Valid())
	assert.True(t, Song{Type: SongTypeExtension, ProviderExtension: "example.plugin"}.Valid())
	assert.False(t, Song{Type: SongTypeURL}.Valid())
}

func TestQueueState_Valid(t *testing.T) {
	assert.True(t, QueueState{}.Valid())

	idx := 0
	assert.True(t, QueueState{Songs: []Song{{ID: "a"}}, CurrentIndex: &idx}.Valid())
	assert.False(t, QueueState{Songs: []Song{{ID: "a"}}}.Valid())

	outOfRange := 5
	assert.False(t, QueueState{Songs: []Song{{ID: "a"}}, CurrentIndex: &outOfRange}.Valid())
}

func TestPagination_IsEndOfStream(t *testing.T) {
	cur := Pagination{Offset: 20, Limit: 10}

	assert.True(t, cur.IsEndOfStream(Pagination{Offset: 20, Token: ""}))
	assert.True(t, cur.IsEndOfStream(Pagination{Offset: 10, Token: ""}))
	assert.False(t, cur.IsEndOfStream(Pagination{Offset: 30, Token: ""}))
	assert.False(t, cur.IsEndOfStream(Pagination{Offset: 5, Token: "cursor-abc"}))
}
