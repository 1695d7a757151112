package hostcall

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// correlationClaims rides inside the short-lived token handed to a UI
// client alongside a round-trip request, binding the reply it eventually
// sends back to the pending call waiting on it.
type correlationClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// Sender pushes an outbound {token, kind} request frame to whatever UI
// client is currently connected. The websocket layer supplies this.
type Sender func(token, kind string) error

// UIBridge implements the correlated UI request/response channel used by
// GetCurrentSong/GetPlayerState/GetVolume/GetTime/GetQueue (§5): a plugin's
// request is handed to the UI tagged with a signed, one-second-lived
// correlation token; the UI's later reply is matched back to the waiting
// caller by that token. A round trip with no reply inside the deadline
// times out and the caller falls back to local state.
type UIBridge struct {
	secret []byte
	send   Sender

	mu      sync.Mutex
	pending map[string]chan any
}

func NewUIBridge(secret []byte, send Sender) *UIBridge {
	return &UIBridge{secret: secret, send: send, pending: make(map[string]chan any)}
}

// SetSender attaches (or replaces) the outbound sender once a UI client is
// connected. A nil sender makes Request fail fast instead of timing out.
func (b *UIBridge) SetSender(send Sender) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Request issues a correlation token, registers a waiter, asks the sender
// to deliver it to the UI, and blocks until Resolve is called with a
// matching token or ctx is done.
func (b *UIBridge) Request(ctx context.Context, kind string) (any, error) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		return nil, fmt.Errorf("hostcall: no ui client connected")
	}

	now := time.Now()
	claims := correlationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(1 * time.Second)),
		},
		Kind: kind,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return nil, err
	}

	ch := make(chan any, 1)
	b.mu.Lock()
	b.pending[token] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, token)
		b.mu.Unlock()
	}()

	if err := send(token, kind); err != nil {
		return nil, err
	}

	select {
	case value := <-ch:
		return value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve is called by the websocket layer when a UI reply arrives. The
// token is verified before its payload is handed to the waiting caller, so
// a forged or expired token cannot inject a stale answer into a round trip.
func (b *UIBridge) Resolve(token string, value any) error {
	_, err := jwt.ParseWithClaims(token, &correlationClaims{}, func(t *jwt.Token) (any, error) {
		return b.secret, nil
	})
	if err != nil {
		return fmt.Errorf("hostcall: invalid correlation token: %w", err)
	}

	b.mu.Lock()
	ch, ok := b.pending[token]
	b.mu.Unlock()
	if !ok {
		return nil // reply arrived after the caller already timed out
	}

	select {
	case ch <- value:
	default:
	}
	return nil
}
