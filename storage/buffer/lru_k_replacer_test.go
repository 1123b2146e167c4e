package buffer

import (
	"sync"
	"testing"

	testingpkg "github.com/kohga/ayudb/testing/testing_assert"
)

func TestLRUKReplacerSample(t *testing.T) {
	replacer := NewLRUKReplacer(7, 2)

	// Scenario: add six frames. Frame 6 stays pinned.
	replacer.RecordAccess(1)
	replacer.RecordAccess(2)
	replacer.RecordAccess(3)
	replacer.RecordAccess(4)
	replacer.RecordAccess(1)
	replacer.RecordAccess(5)
	replacer.RecordAccess(6)

	replacer.SetEvictable(1, true)
	replacer.SetEvictable(2, true)
	replacer.SetEvictable(3, true)
	replacer.SetEvictable(4, true)
	replacer.SetEvictable(5, true)
	replacer.SetEvictable(6, false)
	testingpkg.Equals(t, uint32(5), replacer.Size())

	// Scenario: frames with fewer than two recorded accesses go first,
	// ordered by their first access.
	victim := replacer.Evict()
	testingpkg.SimpleAssert(t, victim != nil)
	testingpkg.Equals(t, FrameID(2), *victim)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(3), *victim)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(4), *victim)
	testingpkg.Equals(t, uint32(2), replacer.Size())

	// Scenario: frame 5 gets a second access and joins the full-history side.
	// Frame 1's second-most-recent access is older, so it goes first.
	replacer.RecordAccess(5)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(5), *victim)
	testingpkg.Equals(t, uint32(0), replacer.Size())

	// Scenario: nothing is evictable anymore.
	testingpkg.SimpleAssert(t, replacer.Evict() == nil)

	// Scenario: unpinning frame 6 makes it the only candidate.
	replacer.SetEvictable(6, true)
	testingpkg.Equals(t, uint32(1), replacer.Size())
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(6), *victim)
	testingpkg.SimpleAssert(t, replacer.Evict() == nil)
}

func TestLRUKReplacerKthMostRecentOrdering(t *testing.T) {
	replacer := NewLRUKReplacer(4, 2)

	// Scenario: frame 0 is accessed first but keeps getting re-accessed, so
	// its second-most-recent access is newer than frame 1's.
	replacer.RecordAccess(0)
	replacer.RecordAccess(1)
	replacer.RecordAccess(1)
	replacer.RecordAccess(0)
	replacer.RecordAccess(0)
	replacer.SetEvictable(0, true)
	replacer.SetEvictable(1, true)

	victim := replacer.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(0), *victim)
}

func TestLRUKReplacerEvictedFrameStartsFresh(t *testing.T) {
	replacer := NewLRUKReplacer(4, 2)

	replacer.RecordAccess(0)
	replacer.RecordAccess(0)
	replacer.RecordAccess(1)
	replacer.SetEvictable(0, true)
	replacer.SetEvictable(1, true)

	// Scenario: frame 1 has a single access and is evicted before frame 0.
	victim := replacer.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)

	// Scenario: the evicted frame comes back with an empty history, so it
	// loses to frame 0 again despite frame 0's older accesses.
	replacer.RecordAccess(1)
	replacer.SetEvictable(1, true)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
	victim = replacer.Evict()
	testingpkg.Equals(t, FrameID(0), *victim)
}

func TestLRUKReplacerSetEvictableIdempotent(t *testing.T) {
	replacer := NewLRUKReplacer(4, 2)

	replacer.RecordAccess(0)
	replacer.SetEvictable(0, true)
	replacer.SetEvictable(0, true)
	testingpkg.Equals(t, uint32(1), replacer.Size())
	replacer.SetEvictable(0, false)
	replacer.SetEvictable(0, false)
	testingpkg.Equals(t, uint32(0), replacer.Size())
	testingpkg.SimpleAssert(t, replacer.Evict() == nil)
}

func TestLRUKReplacerRemove(t *testing.T) {
	replacer := NewLRUKReplacer(4, 2)

	replacer.RecordAccess(0)
	replacer.RecordAccess(1)
	replacer.SetEvictable(0, true)
	replacer.SetEvictable(1, true)
	testingpkg.Equals(t, uint32(2), replacer.Size())

	replacer.Remove(0)
	testingpkg.Equals(t, uint32(1), replacer.Size())
	testingpkg.SimpleAssert(t, !replacer.isContain(0))

	// removing a frame that was never recorded is a no-op
	replacer.Remove(3)
	testingpkg.Equals(t, uint32(1), replacer.Size())

	victim := replacer.Evict()
	testingpkg.Equals(t, FrameID(1), *victim)
}

func TestLRUKReplacerConcurrentAccess(t *testing.T) {
	const numFrames = 64
	replacer := NewLRUKReplacer(numFrames, 3)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < numFrames; i++ {
				frameID := FrameID((seed + i) % numFrames)
				replacer.RecordAccess(frameID)
				replacer.SetEvictable(frameID, true)
			}
		}(g * 7)
	}
	wg.Wait()

	testingpkg.Equals(t, uint32(numFrames), replacer.Size())

	evicted := 0
	for replacer.Evict() != nil {
		evicted++
	}
	testingpkg.Equals(t, numFrames, evicted)
	testingpkg.Equals(t, uint32(0), replacer.Size())
}
