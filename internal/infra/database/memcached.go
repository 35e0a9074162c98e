package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached builds the client backing the descriptor cache. A cache miss
// just re-renders the descriptor, so a slow node gets a short leash.
func NewMemcached(servers ...string) *memcache.Client {
	client := memcache.New(servers...)
	client.Timeout = 250 * time.Millisecond
	return client
}
