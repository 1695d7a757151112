package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluginScope_Has(t *testing.T) {
	s := ScopeSearch | ScopeLyrics
	assert.True(t, s.Has(ScopeSearch))
	assert.True(t, s.Has(ScopeLyrics))
	assert.False(t, s.Has(ScopePlaylists))
}

func TestPluginScope_String(t *testing.T) {
	assert.Equal(t, "none", PluginScope(0).String())
	assert.Equal(t, "Search", ScopeSearch.String())
}

func TestScopeFromNames(t *testing.T) {
	got := ScopeFromNames([]string{"Search", "Lyrics", "NotARealScope"})
	assert.True(t, got.Has(ScopeSearch))
	assert.True(t, got.Has(ScopeLyrics))
	assert.False(t, got.Has(ScopePlaylists))
}

func TestScopeFromNames_Empty(t *testing.T) {
	assert.Equal(t, PluginScope(0), ScopeFromNames(nil))
}
