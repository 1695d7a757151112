package hostcall

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueTestToken(secret []byte) (string, error) {
	claims := correlationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Second)),
		},
		Kind: "test",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func TestUIBridge_RequestResolvesWithMatchingToken(t *testing.T) {
	var capturedToken string
	sender := func(token, kind string) error {
		capturedToken = token
		return nil
	}
	bridge := NewUIBridge([]byte("test-secret"), sender)

	go func() {
		for capturedToken == "" {
			time.Sleep(time.Millisecond)
		}
		require.NoError(t, bridge.Resolve(capturedToken, "now playing"))
	}()

	value, err := bridge.Request(context.Background(), "get_current_song")
	require.NoError(t, err)
	assert.Equal(t, "now playing", value)
}

func TestUIBridge_Request_NoSenderFailsFast(t *testing.T) {
	bridge := NewUIBridge([]byte("test-secret"), nil)
	_, err := bridge.Request(context.Background(), "get_volume")
	assert.Error(t, err)
}

func TestUIBridge_Request_TimesOutWithNoReply(t *testing.T) {
	sender := func(token, kind string) error { return nil }
	bridge := NewUIBridge([]byte("test-secret"), sender)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := bridge.Request(ctx, "get_player_state")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUIBridge_Resolve_UnknownTokenIsNotAnError(t *testing.T) {
	bridge := NewUIBridge([]byte("test-secret"), nil)
	forged, err := issueTestToken([]byte("test-secret"))
	require.NoError(t, err)

	assert.NoError(t, bridge.Resolve(forged, "stale reply"))
}

func TestUIBridge_Resolve_WrongSecretIsRejected(t *testing.T) {
	bridge := NewUIBridge([]byte("real-secret"), nil)
	forged, err := issueTestToken([]byte("wrong-secret"))
	require.NoError(t, err)

	assert.Error(t, bridge.Resolve(forged, "forged reply"))
}
