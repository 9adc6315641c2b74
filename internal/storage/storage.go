package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// ErrCacheMiss is returned by Match when no entry is stored for the URL
var ErrCacheMiss = errors.New("cache miss")

// Entry is a stored response keyed by request URL inside a named cache
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// Clone returns a deep copy of e
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Header = e.Header.Clone()
	if e.Body != nil {
		c.Body = make([]byte, len(e.Body))
		copy(c.Body, e.Body)
	}
	return &c
}

// CacheStorage holds named caches of responses
type CacheStorage interface {
	// Match returns the entry stored for url in cache, or ErrCacheMiss
	Match(ctx context.Context, cache, url string) (*Entry, error)
	// Put stores or replaces one entry
	Put(ctx context.Context, cache string, entry *Entry) error
	// PutAll stores every entry or none of them
	PutAll(ctx context.Context, cache string, entries []*Entry) error
	// Keys lists the names of existing caches
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a cache and all of its entries
	Delete(ctx context.Context, cache string) error
	Close() error
}

// entryID is the backend key of a URL. URLs may be long and contain
// characters that are not valid in blob names or readable in redis.
// entryIDLength is the length of an entryID: hex-encoded SHA-256
const entryIDLength = sha256.Size * 2

func entryID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
