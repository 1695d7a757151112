package wasmhost

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBytes_SHA256(t *testing.T) {
	want := sha256.Sum256([]byte("hello"))
	assert.Equal(t, want[:], hashBytes("sha256", []byte("hello")))
	assert.Equal(t, want[:], hashBytes("SHA-256", []byte("hello")))
}

func TestHashBytes_SHA512(t *testing.T) {
	want := sha512.Sum512([]byte("hello"))
	assert.Equal(t, want[:], hashBytes("sha512", []byte("hello")))
	assert.Equal(t, want[:], hashBytes("SHA-512", []byte("hello")))
}

func TestHashBytes_UnknownAlgoFallsBackToSHA1(t *testing.T) {
	want := sha1.Sum([]byte("hello"))
	assert.Equal(t, want[:], hashBytes("md5", []byte("hello")))
	assert.Equal(t, want[:], hashBytes("", []byte("hello")))
}
