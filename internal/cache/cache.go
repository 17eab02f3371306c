// Package cache provides TTL-based caching of validated price series so that
// repeated runs against the same symbol and range do not refetch from the
// upstream provider.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/pwelter/hindcast/internal/core"
)

// ErrMiss is returned by stores when the key is absent.
var ErrMiss = errors.New("cache miss")

// Key identifies one cached series.
type Key struct {
	Symbol   string
	Period   core.Period
	Interval core.Interval
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Symbol, k.Period, k.Interval)
}

// Entry is a cached series with its fetch time, used for TTL checks.
type Entry struct {
	Series    *core.ValidatedSeries
	FetchedAt time.Time
}

// Store is the persistence interface behind the manager. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(key Key) (Entry, error)
	// Put replaces any existing entry for the key. Stale entries are
	// never merged with fresh data.
	Put(key Key, entry Entry) error
	Delete(key Key) error
	Len() (int, error)
}
