package buffer

import (
	"fmt"

	"github.com/golang-collections/collections/queue"
	"github.com/ncw/directio"
	"github.com/sasha-s/go-deadlock"

	"github.com/kohga/ayudb/common"
	"github.com/kohga/ayudb/container/hash"
	"github.com/kohga/ayudb/recovery"
	"github.com/kohga/ayudb/storage/disk"
	"github.com/kohga/ayudb/storage/page"
	"github.com/kohga/ayudb/types"
)

/**
 * BufferPoolManager caches disk pages in a fixed pool of frames. Free frames
 * come from the free list first and from the LRU-K replacer after that. The
 * page table keeps an entry for every page it has ever seen until DeletePage:
 * an evicted page's entry stays behind bound to InvalidFrameID so that a later
 * fetch reuses it.
 */
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page
	replacer    *LRUKReplacer
	freeList    *queue.Queue
	// page id -> frame id, InvalidFrameID for pages that were evicted
	pageTable *hash.ExtendibleHashTable[types.PageID, FrameID]
	// page ids are handed out in order and never reused within a run
	nextPageID  types.PageID
	latch       deadlock.Mutex
	log_manager *recovery.LogManager
}

// NewBufferPoolManager returns an empty pool of poolSize frames backed by the
// given disk manager. replacerK is the access history depth of the eviction
// policy. log_manager may be nil when logging is disabled.
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, replacerK uint32, log_manager *recovery.LogManager) *BufferPoolManager {
	common.SH_Assert(poolSize > 0, "BufferPoolManager: pool size must be positive")

	freeList := queue.New()
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList.Enqueue(FrameID(i))
		pages[i] = page.NewFrame()
	}

	return &BufferPoolManager{
		diskManager: diskManager,
		pages:       pages,
		replacer:    NewLRUKReplacer(poolSize, replacerK),
		freeList:    freeList,
		pageTable:   hash.NewExtendibleHashTable[types.PageID, FrameID](common.BucketSize, hash.HashPageID),
		log_manager: log_manager,
	}
}

// getReplacementFrame hands out a frame for a new resident page: a free frame
// when one exists, otherwise the replacer's victim with its old contents
// written back. Returns InvalidFrameID and false when every frame is pinned.
// Caller holds the latch.
func (b *BufferPoolManager) getReplacementFrame() (FrameID, bool) {
	if b.freeList.Len() > 0 {
		return b.freeList.Dequeue().(FrameID), true
	}

	victim := b.replacer.Evict()
	if victim == nil {
		return InvalidFrameID, false
	}
	frameID := *victim

	victimPage := b.pages[frameID]
	if victimPage.GetPageId() != types.InvalidPageID {
		if victimPage.IsDirty() {
			b.flushLogForWriteBack()
			victimPage.WLatch()
			b.diskManager.WritePage(victimPage.GetPageId(), victimPage.Data()[:])
			victimPage.SetIsDirty(false)
			victimPage.WUnlatch()
		}
		common.ShPrintf(common.CACHE_OUT_IN_INFO, "cache out page %d from frame %d\n", victimPage.GetPageId(), frameID)
		// the page stays known to the table so a refetch reuses the entry
		b.pageTable.Insert(victimPage.GetPageId(), InvalidFrameID)
	}

	return frameID, true
}

// allocatePageId draws the next page id from the pool's counter. Caller holds
// the latch.
func (b *BufferPoolManager) allocatePageId() types.PageID {
	pageID := b.nextPageID
	b.nextPageID++
	return pageID
}

// flushLogForWriteBack makes the log durable up to the newest record before a
// dirty page goes to disk
func (b *BufferPoolManager) flushLogForWriteBack() {
	if b.log_manager == nil {
		return
	}
	if b.log_manager.GetPersistentLSN() < b.log_manager.GetNextLSN()-1 {
		b.log_manager.Flush()
	}
}

// NewPage allocates a page id, places the zero-filled page in a frame pinned
// once, and returns it. Returns nil when every frame is pinned.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.latch.Lock()
	defer b.latch.Unlock()

	frameID, ok := b.getReplacementFrame()
	if !ok {
		return nil
	}

	pageID := b.allocatePageId()
	pg := b.pages[frameID]
	pg.Reset()
	pg.SetPageId(pageID)
	pg.IncPinCount()
	b.pageTable.Insert(pageID, frameID)
	b.replacer.RecordAccess(frameID)
	b.replacer.SetEvictable(frameID, false)

	if b.log_manager != nil {
		record := recovery.NewLogRecordNewPage(pageID)
		b.log_manager.AppendLogRecord(record)
	}

	return pg
}

// FetchPage pins the page and returns it, reading it from disk when it is not
// resident. Returns nil when the page was deallocated or when no frame can be
// freed for it.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.latch.Lock()
	defer b.latch.Unlock()

	if frameID, ok := b.pageTable.Find(pageID); ok && frameID != InvalidFrameID {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.RecordAccess(frameID)
		b.replacer.SetEvictable(frameID, false)
		common.ShPrintf(common.DEBUG_INFO_DETAIL, "FetchPage: page %d hit in frame %d pin %d\n", pageID, frameID, pg.PinCount())
		return pg
	}

	frameID, ok := b.getReplacementFrame()
	if !ok {
		return nil
	}

	data := directio.AlignedBlock(common.PageSize)
	err := b.diskManager.ReadPage(pageID, data)
	if err != nil {
		if err == types.DeallocatedPageErr {
			b.freeList.Enqueue(frameID)
			return nil
		}
		common.ShPrintf(common.ERROR, "FetchPage: read of page %d failed: %v\n", pageID, err)
		b.freeList.Enqueue(frameID)
		return nil
	}

	pg := b.pages[frameID]
	pg.Reset()
	pg.SetPageId(pageID)
	pg.Copy(0, data)
	pg.IncPinCount()
	b.pageTable.Insert(pageID, frameID)
	b.replacer.RecordAccess(frameID)
	b.replacer.SetEvictable(frameID, false)
	common.ShPrintf(common.CACHE_OUT_IN_INFO, "cache in page %d to frame %d\n", pageID, frameID)

	return pg
}

// UnpinPage drops one pin from the page and ORs isDirty into its dirty bit.
// The frame becomes evictable when the pin count reaches zero. Returns false
// when the page is not resident or its pin count is already zero.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	b.latch.Lock()
	defer b.latch.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if !ok || frameID == InvalidFrameID {
		return false
	}

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		common.ShPrintf(common.PIN_COUNT_ASSERT, "UnpinPage: page %d pin count is already zero\n", pageID)
		return false
	}

	pg.DecPinCount()
	if isDirty {
		pg.SetIsDirty(true)
	}
	if pg.PinCount() == 0 {
		b.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the page to disk and clears its dirty bit without touching
// the pin count. Returns false when the page is not resident.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.latch.Lock()
	defer b.latch.Unlock()

	return b.flushPageNoLatch(pageID)
}

func (b *BufferPoolManager) flushPageNoLatch(pageID types.PageID) bool {
	frameID, ok := b.pageTable.Find(pageID)
	if !ok || frameID == InvalidFrameID {
		return false
	}

	pg := b.pages[frameID]
	b.flushLogForWriteBack()
	pg.WLatch()
	b.diskManager.WritePage(pageID, pg.Data()[:])
	pg.SetIsDirty(false)
	pg.WUnlatch()
	return true
}

// FlushAllPages writes every resident page to disk
func (b *BufferPoolManager) FlushAllPages() {
	b.latch.Lock()
	defer b.latch.Unlock()

	for _, pg := range b.pages {
		if pg.GetPageId() != types.InvalidPageID {
			b.flushPageNoLatch(pg.GetPageId())
		}
	}
}

// DeletePage frees the page's frame and deallocates the page on disk. Deleting
// a page that is not resident only deallocates it. Returns false when the page
// is resident and pinned.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	b.latch.Lock()
	defer b.latch.Unlock()

	frameID, ok := b.pageTable.Find(pageID)
	if ok && frameID != InvalidFrameID {
		pg := b.pages[frameID]
		if pg.PinCount() > 0 {
			common.ShPrintf(common.DEBUG_INFO, "DeletePage: page %d is pinned (%d)\n", pageID, pg.PinCount())
			return false
		}
		if pg.IsDirty() {
			b.flushPageNoLatch(pageID)
		}
		b.replacer.Remove(frameID)
		pg.Reset()
		b.freeList.Enqueue(frameID)
	}

	b.pageTable.Remove(pageID)
	b.diskManager.DeallocatePage(pageID)

	if b.log_manager != nil {
		record := recovery.NewLogRecordDeallocatePage(pageID)
		b.log_manager.AppendLogRecord(record)
	}

	return true
}

// GetPoolSize returns the number of frames in the pool
func (b *BufferPoolManager) GetPoolSize() uint32 {
	return uint32(len(b.pages))
}

// FlushAllDirtyPages is FlushAllPages restricted to dirty pages
func (b *BufferPoolManager) FlushAllDirtyPages() bool {
	b.latch.Lock()
	defer b.latch.Unlock()

	for _, pg := range b.pages {
		if pg.GetPageId() != types.InvalidPageID && pg.IsDirty() {
			b.flushPageNoLatch(pg.GetPageId())
		}
	}
	return true
}

func (b *BufferPoolManager) PrintBufferUsageState(callerAdditionalInfo string) {
	b.latch.Lock()
	defer b.latch.Unlock()

	printStr := fmt.Sprintf("BPM Usage State (%s): ", callerAdditionalInfo)
	for idx, pg := range b.pages {
		if pg.GetPageId() != types.InvalidPageID {
			printStr += fmt.Sprintf("(%d:%d:%d)-", idx, pg.GetPageId(), pg.PinCount())
		}
	}
	common.ShPrintf(common.DEBUG_INFO, printStr+"\n")
}
