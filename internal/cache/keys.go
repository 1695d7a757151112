// Package cache: canonical key construction for RequestCache entries.
//
// Keys are built from (method, positional-args-serialised-canonically) as
// required by spec: `RequestKey("search", "spotify", "hello")` produces a
// stable key regardless of call site, so repeated calls within TTL hit the
// same entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const requestPrefix = "reqcache"

// RequestKey builds the canonical RequestCache key for a provider method call.
func RequestKey(method string, args ...string) string {
	joined := strings.Join(args, "\x1f")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%s:%s:%s", requestPrefix, method, hex.EncodeToString(hash[:]))
}

// RequestPattern returns the invalidation pattern for all cached calls to a method.
func RequestPattern(method string) string {
	return fmt.Sprintf("%s:%s:*", requestPrefix, method)
}

// AllRequestsPattern returns the invalidation pattern for every cached request.
func AllRequestsPattern() string {
	return fmt.Sprintf("%s:*", requestPrefix)
}
