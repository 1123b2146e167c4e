package hash

import (
	"sync"

	pair "github.com/notEpsilon/go-pair"
	"github.com/sasha-s/go-deadlock"

	"github.com/kohga/ayudb/common"
)

func depthMask(depth uint32) uint32 {
	return (uint32(1) << depth) - 1
}

// hashTableBucket holds up to bucketSize entries. localIndex is the directory
// bit pattern the bucket is bound to: every slot i with
// i & depthMask(localDepth) == localIndex points at this bucket. Both fields
// change only while the bucket latch is held, so a reader holding the bucket
// latch can detect a concurrent split by re-checking its key against them.
type hashTableBucket[K comparable, V any] struct {
	entries    []pair.Pair[K, V]
	localDepth uint32
	localIndex uint32
	latch      sync.Mutex
}

func newHashTableBucket[K comparable, V any](bucketSize uint32, localDepth uint32, localIndex uint32) *hashTableBucket[K, V] {
	return &hashTableBucket[K, V]{
		entries:    make([]pair.Pair[K, V], 0, bucketSize),
		localDepth: localDepth,
		localIndex: localIndex,
	}
}

func (b *hashTableBucket[K, V]) findEntry(key K) (int, bool) {
	for i := range b.entries {
		if b.entries[i].First == key {
			return i, true
		}
	}
	return -1, false
}

/**
 * ExtendibleHashTable maps keys to values with a directory of 2^globalDepth
 * bucket pointers. Buckets split on overflow, the directory doubles when a
 * splitting bucket is already at global depth, and nothing is ever rehashed
 * wholesale.
 *
 * The directory latch only guards the directory slice and globalDepth. Key
 * lookups hold it just long enough to read one slot, then operate under the
 * bucket latch alone, re-validating the bucket's binding afterwards. Splits
 * take the directory latch first and the bucket latch second.
 */
type ExtendibleHashTable[K comparable, V any] struct {
	globalDepth uint32
	bucketSize  uint32
	dir         []*hashTableBucket[K, V]
	dirLatch    deadlock.Mutex
	hashFn      func(K) uint32
}

// NewExtendibleHashTable creates a table with a single empty bucket. bucketSize
// is the number of entries one bucket holds before it splits.
func NewExtendibleHashTable[K comparable, V any](bucketSize uint32, hashFn func(K) uint32) *ExtendibleHashTable[K, V] {
	common.SH_Assert(bucketSize > 0, "ExtendibleHashTable: bucketSize must be positive")
	ht := &ExtendibleHashTable[K, V]{
		globalDepth: 0,
		bucketSize:  bucketSize,
		dir:         make([]*hashTableBucket[K, V], 1),
		hashFn:      hashFn,
	}
	ht.dir[0] = newHashTableBucket[K, V](bucketSize, 0, 0)
	return ht
}

// lockBucketForKey returns the bucket currently bound to key with its latch
// held. When a split rebinds the key between the directory read and the
// bucket lock the stale bucket is unlocked and the lookup retried.
func (ht *ExtendibleHashTable[K, V]) lockBucketForKey(hashVal uint32) *hashTableBucket[K, V] {
	for {
		ht.dirLatch.Lock()
		bucket := ht.dir[hashVal&depthMask(ht.globalDepth)]
		ht.dirLatch.Unlock()

		bucket.latch.Lock()
		if hashVal&depthMask(bucket.localDepth) == bucket.localIndex {
			return bucket
		}
		bucket.latch.Unlock()
	}
}

// Find returns the value bound to key, or the zero value and false when the
// key is absent.
func (ht *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	hashVal := ht.hashFn(key)
	bucket := ht.lockBucketForKey(hashVal)
	defer bucket.latch.Unlock()

	if idx, ok := bucket.findEntry(key); ok {
		return bucket.entries[idx].Second, true
	}
	var zero V
	return zero, false
}

// Insert binds key to value, overwriting any existing binding. A full bucket
// splits, doubling the directory when needed, and the insert retries. A split
// can leave every entry on one side, in which case the retry splits again.
func (ht *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	hashVal := ht.hashFn(key)
	for {
		bucket := ht.lockBucketForKey(hashVal)

		if idx, ok := bucket.findEntry(key); ok {
			bucket.entries[idx].Second = value
			bucket.latch.Unlock()
			return
		}
		if uint32(len(bucket.entries)) < ht.bucketSize {
			bucket.entries = append(bucket.entries, pair.Pair[K, V]{First: key, Second: value})
			bucket.latch.Unlock()
			return
		}

		bucket.latch.Unlock()
		ht.splitBucketForKey(hashVal)
	}
}

// splitBucketForKey splits the bucket currently bound to the hash value. It
// re-checks the bucket's state under both latches since another goroutine may
// have split it already.
func (ht *ExtendibleHashTable[K, V]) splitBucketForKey(hashVal uint32) {
	ht.dirLatch.Lock()
	defer ht.dirLatch.Unlock()

	bucket := ht.dir[hashVal&depthMask(ht.globalDepth)]
	bucket.latch.Lock()
	defer bucket.latch.Unlock()

	if uint32(len(bucket.entries)) < ht.bucketSize {
		// someone else split it first
		return
	}

	if bucket.localDepth == ht.globalDepth {
		// double the directory, mirroring the existing half
		ht.dir = append(ht.dir, ht.dir...)
		ht.globalDepth++
	}

	depth := bucket.localDepth
	sibling := newHashTableBucket[K, V](ht.bucketSize, depth+1, bucket.localIndex|(uint32(1)<<depth))
	bucket.localDepth = depth + 1

	for i := range ht.dir {
		if uint32(i)&depthMask(depth+1) == sibling.localIndex {
			ht.dir[i] = sibling
		}
	}

	kept := bucket.entries[:0]
	for _, entry := range bucket.entries {
		if ht.hashFn(entry.First)&depthMask(depth+1) == sibling.localIndex {
			sibling.entries = append(sibling.entries, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	bucket.entries = kept
}

// Remove drops the binding for key. Returns true when a binding was removed.
func (ht *ExtendibleHashTable[K, V]) Remove(key K) bool {
	hashVal := ht.hashFn(key)
	bucket := ht.lockBucketForKey(hashVal)
	defer bucket.latch.Unlock()

	idx, ok := bucket.findEntry(key)
	if !ok {
		return false
	}
	last := len(bucket.entries) - 1
	bucket.entries[idx] = bucket.entries[last]
	bucket.entries = bucket.entries[:last]
	return true
}

// GetGlobalDepth returns the current directory depth
func (ht *ExtendibleHashTable[K, V]) GetGlobalDepth() uint32 {
	ht.dirLatch.Lock()
	defer ht.dirLatch.Unlock()
	return ht.globalDepth
}

// GetLocalDepth returns the local depth of the bucket bound to dirIndex
func (ht *ExtendibleHashTable[K, V]) GetLocalDepth(dirIndex uint32) uint32 {
	ht.dirLatch.Lock()
	bucket := ht.dir[dirIndex&depthMask(ht.globalDepth)]
	ht.dirLatch.Unlock()

	bucket.latch.Lock()
	defer bucket.latch.Unlock()
	return bucket.localDepth
}

// GetNumBuckets returns the number of distinct buckets in the directory
func (ht *ExtendibleHashTable[K, V]) GetNumBuckets() uint32 {
	ht.dirLatch.Lock()
	defer ht.dirLatch.Unlock()

	seen := make(map[*hashTableBucket[K, V]]bool)
	for _, bucket := range ht.dir {
		seen[bucket] = true
	}
	return uint32(len(seen))
}
