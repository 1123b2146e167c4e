package buffer

import (
	"fmt"
	"sync"

	"github.com/kohga/ayudb/common"
)

// FrameID is the type for frame id
type FrameID int32

// InvalidFrameID marks a page table entry whose page is no longer resident
const InvalidFrameID = FrameID(-1)

// lruKNode records the access history of one frame. Nodes are linked into a
// sentinel-headed circular list: the history list while the frame has fewer
// than k recorded accesses, the cache list once it has k.
type lruKNode struct {
	frameID FrameID
	// at most the last k access timestamps, oldest first
	history   []uint64
	evictable bool
	prev      *lruKNode
	next      *lruKNode
}

// accessTime is the ordering key of the node: the earliest retained access.
// With the history capped at k entries this is the k-th most recent access
// for cache list members and the first access for history list members.
func (n *lruKNode) accessTime() uint64 {
	return n.history[0]
}

func (n *lruKNode) recordAccess(ts uint64, k uint32) {
	n.history = append(n.history, ts)
	if uint32(len(n.history)) > k {
		n.history = n.history[1:]
	}
}

func (n *lruKNode) unlink() {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = n
	n.next = n
}

// linkAfter links node right after pre
func linkAfter(pre *lruKNode, node *lruKNode) {
	node.prev = pre
	node.next = pre.next
	pre.next.prev = node
	pre.next = node
}

// insertNodeToList inserts node into the sentinel-headed list keeping it
// ordered by accessTime, oldest next to the sentinel
func insertNodeToList(head *lruKNode, node *lruKNode) {
	pre := head
	for pre.next != head && pre.next.accessTime() < node.accessTime() {
		pre = pre.next
	}
	linkAfter(pre, node)
}

func newSentinel() *lruKNode {
	s := new(lruKNode)
	s.prev = s
	s.next = s
	return s
}

/**
 * LRUKReplacer picks the victim frame with the LRU-K policy: among evictable
 * frames the one whose k-th most recent access is oldest goes first, and
 * frames with fewer than k accesses beat frames with k regardless of
 * timestamps. Timestamps come from an internal monotonic counter.
 */
type LRUKReplacer struct {
	accessMap map[FrameID]*lruKNode
	// frames with fewer than k recorded accesses, ordered by first access
	historyList *lruKNode
	// frames with k recorded accesses, ordered by k-th most recent access
	cacheList        *lruKNode
	currentTimestamp uint64
	currSize         uint32
	replacerSize     uint32
	k                uint32
	latch            *sync.Mutex
}

// NewLRUKReplacer instantiates a replacer over numFrames frames keeping a
// k-deep access history per frame
func NewLRUKReplacer(numFrames uint32, k uint32) *LRUKReplacer {
	common.SH_Assert(k > 0, "LRUKReplacer: k must be positive")
	return &LRUKReplacer{
		accessMap:    make(map[FrameID]*lruKNode),
		historyList:  newSentinel(),
		cacheList:    newSentinel(),
		replacerSize: numFrames,
		k:            k,
		latch:        new(sync.Mutex),
	}
}

func (r *LRUKReplacer) getCurrentTime() uint64 {
	ts := r.currentTimestamp
	r.currentTimestamp++
	return ts
}

// RecordAccess appends the current timestamp to the frame's history,
// creating the record on first access. An evictable frame whose history just
// reached k migrates from the history list to the cache list.
func (r *LRUKReplacer) RecordAccess(frameID FrameID) {
	common.SH_Assert(uint32(frameID) < r.replacerSize,
		fmt.Sprintf("LRUKReplacer::RecordAccess frame id %d is out of range", frameID))
	r.latch.Lock()
	defer r.latch.Unlock()

	ts := r.getCurrentTime()
	node, ok := r.accessMap[frameID]
	if !ok {
		// first access
		node = &lruKNode{frameID: frameID, history: make([]uint64, 0, r.k)}
		node.prev = node
		node.next = node
		r.accessMap[frameID] = node
	}
	node.recordAccess(ts, r.k)
	if node.evictable && uint32(len(node.history)) == r.k {
		node.unlink()
		insertNodeToList(r.cacheList, node)
	}
}

// SetEvictable toggles whether the frame may be victimized. Idempotent
// transitions are no-ops.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, setEvictable bool) {
	r.latch.Lock()
	defer r.latch.Unlock()

	node, ok := r.accessMap[frameID]
	common.SH_Assert(ok,
		fmt.Sprintf("LRUKReplacer::SetEvictable frame %d has no recorded access", frameID))

	lastState := node.evictable
	node.evictable = setEvictable
	if lastState && !setEvictable {
		node.unlink()
		r.currSize--
	} else if !lastState && setEvictable {
		r.addNodeToList(node)
		r.currSize++
	}
}

func (r *LRUKReplacer) addNodeToList(node *lruKNode) {
	if uint32(len(node.history)) >= r.k {
		insertNodeToList(r.cacheList, node)
	} else {
		insertNodeToList(r.historyList, node)
	}
}

// Evict removes and returns the frame at the head of the history list, or of
// the cache list when no frame has fewer than k accesses. Returns nil when
// no frame is evictable.
func (r *LRUKReplacer) Evict() *FrameID {
	r.latch.Lock()
	defer r.latch.Unlock()

	if r.currSize == 0 {
		return nil
	}

	node := r.historyList.next
	if node == r.historyList {
		node = r.cacheList.next
	}
	if node == r.cacheList {
		return nil
	}

	node.unlink()
	delete(r.accessMap, node.frameID)
	r.currSize--

	frameID := node.frameID
	return &frameID
}

// Remove forcibly drops the frame's access history. The caller must ensure
// the frame is evictable. Removing an unknown frame is a no-op.
func (r *LRUKReplacer) Remove(frameID FrameID) {
	r.latch.Lock()
	defer r.latch.Unlock()

	node, ok := r.accessMap[frameID]
	if !ok {
		return
	}
	common.SH_Assert(node.evictable,
		fmt.Sprintf("LRUKReplacer::Remove frame %d is not evictable", frameID))

	node.unlink()
	delete(r.accessMap, frameID)
	r.currSize--
}

// Size returns the number of evictable frames
func (r *LRUKReplacer) Size() uint32 {
	r.latch.Lock()
	defer r.latch.Unlock()

	return r.currSize
}

func (r *LRUKReplacer) isContain(frameID FrameID) bool {
	r.latch.Lock()
	defer r.latch.Unlock()

	node, ok := r.accessMap[frameID]
	return ok && node.evictable
}

func (r *LRUKReplacer) PrintList() {
	r.latch.Lock()
	defer r.latch.Unlock()

	printStr := fmt.Sprintf("LRUKReplacer size:%d |", r.currSize)
	for _, head := range []*lruKNode{r.historyList, r.cacheList} {
		for ptr := head.next; ptr != head; ptr = ptr.next {
			printStr += fmt.Sprintf("-%v,%v,%v-", ptr.frameID, ptr.evictable, ptr.history)
		}
		printStr += "|"
	}
	fmt.Println(printStr)
}
