package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_SetsStatusCodeFromKind(t *testing.T) {
	err := New(KindValidation, "bad input")
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION: bad input", err.Error())
}

func TestWrap_FoldsUnderlyingErrorIntoDetails(t *testing.T) {
	underlying := errors.New("connection refused")
	err := Wrap(KindNetwork, "network request failed", underlying)
	assert.Equal(t, "connection refused", err.Details)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrap_NilErrorLeavesDetailsEmpty(t *testing.T) {
	err := Wrap(KindNetwork, "network request failed", nil)
	assert.Empty(t, err.Details)
}

func TestStatusForKind_CoversEveryCategory(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindParse:           http.StatusBadRequest,
		KindJSON:            http.StatusBadRequest,
		KindAuth:            http.StatusUnauthorized,
		KindExtension:       http.StatusForbidden,
		KindProvider:        http.StatusNotFound,
		KindSwitchProviders: http.StatusNotFound,
		KindNetwork:         http.StatusInternalServerError,
		KindDatabase:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").StatusCode, "kind %s", kind)
	}
}

func TestIs_MatchesOnlyMoosyncErrorsOfGivenKind(t *testing.T) {
	err := ProviderError("spotify", "rate limited")
	assert.True(t, Is(err, KindProvider))
	assert.False(t, Is(err, KindAuth))
	assert.False(t, Is(errors.New("plain error"), KindProvider))
}

func TestSwitchProviders_CarriesTargetKey(t *testing.T) {
	err := SwitchProviders("youtube")
	key, ok := AsSwitchProviders(err)
	assert.True(t, ok)
	assert.Equal(t, "youtube", key)

	_, ok = AsSwitchProviders(ProviderError("spotify", "x"))
	assert.False(t, ok)
}

func TestScopeMissing_IsExtensionKind(t *testing.T) {
	err := ScopeMissing("spotify", "Lyrics")
	assert.True(t, Is(err, KindExtension))
	assert.Contains(t, err.Message, "Lyrics")
}

func TestToResponse_MirrorsErrorFields(t *testing.T) {
	err := NewWithDetails(KindDatabase, "query failed", "syntax error")
	resp := err.ToResponse()
	assert.Equal(t, "DATABASE", resp.Error)
	assert.Equal(t, "query failed", resp.Message)
	assert.Equal(t, "syntax error", resp.Details)
}
