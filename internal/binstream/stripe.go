// Package binstream implements the client's own binary database format:
// ring-buffered reads, ULEB128 varints, length-prefixed strings and hash
// digests, and atomic temp-file-then-rename writes. It is not a general
// serializer — it is tuned to the on-disk layout used by collections,
// scores, and caches.
package binstream

import (
	"hash/fnv"
	"sync"
)

// numLockStripes is the number of shared-mutex slots path locks hash into.
// Sixteen is a simple, adequate scheme for this workload; sharding further
// isn't worth the complexity (spec Design Notes §9).
const numLockStripes = 16

var stripes [numLockStripes]sync.RWMutex

func stripeFor(path string) *sync.RWMutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(path))
	return &stripes[h.Sum32()%numLockStripes]
}
