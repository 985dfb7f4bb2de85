package infrastructure

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a lexically sortable run identifier stamped with the
// process clock.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(Now()), entropy).String())
}

// RunIDTime extracts the creation time of a run id in Unix milliseconds.
func RunIDTime(id string) (unixMilli int64, ok bool) {
	parsed, err := ulid.ParseStrict(strings.ToUpper(id))
	if err != nil {
		return 0, false
	}
	return int64(parsed.Time()), true
}
