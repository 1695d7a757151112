// Package errors provides the tagged error type shared by every subsystem
// of the extension host and provider/playback orchestrator.
//
// This package implements a single error kind taxonomy instead of Go's usual
// sentinel-per-package convention, because several call sites (ProviderRegistry,
// RequestCache) need to pattern-match on the kind to decide a retry policy
// rather than just log-and-propagate.
//
// Error Categories:
//   - Client-shaped (Validation, Auth, NotFound-ish Provider/Extension failures)
//   - Server-shaped (IO, Database, Network, Media, Cache, Config)
//   - Sentinels (InvalidatedCache, SwitchProviders) that callers must special-case
package errors

import (
	"fmt"
	"net/http"
)

// Kind identifies the category of a MoosyncError.
type Kind string

const (
	KindIO               Kind = "IO"
	KindJSON             Kind = "JSON"
	KindNetwork          Kind = "NETWORK"
	KindAuth             Kind = "AUTH"
	KindFileSystem       Kind = "FILESYSTEM"
	KindMedia            Kind = "MEDIA"
	KindDatabase         Kind = "DATABASE"
	KindParse            Kind = "PARSE"
	KindValidation       Kind = "VALIDATION"
	KindProvider         Kind = "PROVIDER"
	KindExtension        Kind = "EXTENSION"
	KindCache            Kind = "CACHE"
	KindConfig           Kind = "CONFIG"
	KindInvalidatedCache Kind = "INVALIDATED_CACHE"
	KindSwitchProviders  Kind = "SWITCH_PROVIDERS"
)

// MoosyncError is the standardized error type returned across the
// extension host and provider/playback orchestrator.
type MoosyncError struct {
	Kind Kind `json:"kind"`

	// Message is human-readable and safe to surface to a UI toast.
	Message string `json:"message"`

	// Details carries wrapped-error context; not always shown to end users.
	Details string `json:"details,omitempty"`

	// SwitchKey is only populated when Kind == KindSwitchProviders: the
	// provider key the caller should retry the operation against.
	SwitchKey string `json:"switch_key,omitempty"`

	StatusCode int `json:"-"`
}

func (e *MoosyncError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorResponse is the JSON shape returned by the HTTP surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

func (e *MoosyncError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   string(e.Kind),
		Message: e.Message,
		Kind:    string(e.Kind),
		Details: e.Details,
	}
}

func New(kind Kind, message string) *MoosyncError {
	return &MoosyncError{Kind: kind, Message: message, StatusCode: statusForKind(kind)}
}

func NewWithDetails(kind Kind, message, details string) *MoosyncError {
	return &MoosyncError{Kind: kind, Message: message, Details: details, StatusCode: statusForKind(kind)}
}

// Wrap folds an underlying error into Details.
func Wrap(kind Kind, message string, err error) *MoosyncError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewWithDetails(kind, message, details)
}

func statusForKind(kind Kind) int {
	switch kind {
	case KindValidation, KindParse, KindJSON:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindExtension:
		return http.StatusForbidden
	case KindProvider, KindSwitchProviders:
		return http.StatusNotFound
	case KindNetwork, KindMedia, KindIO, KindFileSystem, KindDatabase, KindCache, KindConfig, KindInvalidatedCache:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Convenience constructors, grounded in the teacher's per-kind helper pattern.

func IOError(err error) *MoosyncError         { return Wrap(KindIO, "I/O operation failed", err) }
func JSONError(err error) *MoosyncError       { return Wrap(KindJSON, "serialisation failed", err) }
func NetworkError(err error) *MoosyncError    { return Wrap(KindNetwork, "network request failed", err) }
func AuthError(message string) *MoosyncError  { return New(KindAuth, message) }
func FileSystemError(err error) *MoosyncError { return Wrap(KindFileSystem, "filesystem operation failed", err) }
func MediaError(message string) *MoosyncError { return New(KindMedia, message) }
func DatabaseError(err error) *MoosyncError   { return Wrap(KindDatabase, "database operation failed", err) }
func ParseError(err error) *MoosyncError      { return Wrap(KindParse, "parse failed", err) }
func ValidationError(message string) *MoosyncError { return New(KindValidation, message) }
func CacheError(err error) *MoosyncError      { return Wrap(KindCache, "cache operation failed", err) }
func ConfigError(message string) *MoosyncError { return New(KindConfig, message) }

func ProviderError(key, message string) *MoosyncError {
	return New(KindProvider, fmt.Sprintf("provider %q: %s", key, message))
}

func ExtensionError(pkg, message string) *MoosyncError {
	return New(KindExtension, fmt.Sprintf("extension %q: %s", pkg, message))
}

// ScopeMissing is the Extension-kind error an adapter returns when asked
// for a capability it did not declare in its manifest.
func ScopeMissing(key, scope string) *MoosyncError {
	return New(KindExtension, fmt.Sprintf("provider %q does not declare scope %q", key, scope))
}

// InvalidatedCacheSentinel signals RequestCache to drop the entry and retry once.
func InvalidatedCacheSentinel() *MoosyncError {
	return New(KindInvalidatedCache, "cache entry invalidated")
}

// SwitchProviders is the sentinel an adapter returns to ask the registry to
// retry the same operation against a different provider key.
func SwitchProviders(key string) *MoosyncError {
	return &MoosyncError{
		Kind:       KindSwitchProviders,
		Message:    fmt.Sprintf("switch to provider %q", key),
		SwitchKey:  key,
		StatusCode: statusForKind(KindSwitchProviders),
	}
}

// Is reports whether err is a MoosyncError of the given kind.
func Is(err error, kind Kind) bool {
	me, ok := err.(*MoosyncError)
	return ok && me.Kind == kind
}

// AsSwitchProviders extracts the target key if err is a SwitchProviders sentinel.
func AsSwitchProviders(err error) (string, bool) {
	me, ok := err.(*MoosyncError)
	if !ok || me.Kind != KindSwitchProviders {
		return "", false
	}
	return me.SwitchKey, true
}
