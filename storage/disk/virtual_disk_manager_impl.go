package disk

import (
	"errors"
	"strings"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/kohga/ayudb/common"
	"github.com/kohga/ayudb/types"
)

// VirtualDiskManagerImpl keeps the whole database and log on in-memory
// files. Unit tests use it so that they never touch the real filesystem.
type VirtualDiskManagerImpl struct {
	db             *memfile.File
	fileName       string
	log            *memfile.File
	fileName_log   string
	nextPageID     types.PageID
	numWrites      uint64
	size           int64
	flush_log      bool
	numFlushes     uint64
	dbFileMutex    *sync.Mutex
	logFileMutex   *sync.Mutex
	deallocedIDMap map[types.PageID]bool
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))

	period_idx := strings.LastIndex(dbFilename, ".")
	logfname_base := dbFilename[:period_idx]
	logfname := logfname_base + "." + "log"

	file_1 := memfile.New(make([]byte, 0))

	return &VirtualDiskManagerImpl{file, dbFilename, file_1, logfname, types.PageID(0), 0, int64(0), false, 0, new(sync.Mutex), new(sync.Mutex), make(map[types.PageID]bool)}
}

// ShutDown does nothing: the in-memory files need no closing
func (d *VirtualDiskManagerImpl) ShutDown() {
	// do nothing
}

// WritePage writes a page to the in-memory database file
func (d *VirtualDiskManagerImpl) WritePage(pageId types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageId) * int64(common.PageSize)
	d.db.WriteAt(pageData, offset)

	if offset >= d.size {
		d.size = offset + int64(len(pageData))
	}

	d.numWrites += 1
	return nil
}

// ReadPage reads a page from the in-memory database file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if _, exist := d.deallocedIDMap[pageID]; exist {
		return types.DeallocatedPageErr
	}

	offset := int64(pageID) * int64(common.PageSize)

	if offset > d.size || offset+int64(len(pageData)) > d.size {
		return errors.New("I/O error past end of file")
	}

	_, err := d.db.ReadAt(pageData, offset)
	if err != nil {
		panic("file read error!")
	}
	return err
}

// AllocatePage allocates a new page
func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage marks the page id as deallocated. Reads of such pages fail
// with types.DeallocatedPageErr afterwards.
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	d.deallocedIDMap[pageID] = true
}

// GetNumWrites returns the number of disk writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the in-memory file
func (d *VirtualDiskManagerImpl) Size() int64 {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	return d.size
}

func (d *VirtualDiskManagerImpl) RemoveDBFile() {
	// do nothing
}

func (d *VirtualDiskManagerImpl) RemoveLogFile() {
	// do nothing
}

/**
 * Write the contents of the log into the in-memory log file
 */
func (d *VirtualDiskManagerImpl) WriteLog(log_data []byte) {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.flush_log = true
	d.numFlushes += 1

	// sequence write
	offset := int64(len(d.log.Bytes()))
	d.log.WriteAt(log_data, offset)

	d.flush_log = false
}

/**
* Read the contents of the log into the given memory area
* @return: false means already reach the end
 */
func (d *VirtualDiskManagerImpl) ReadLog(log_data []byte, offset int32) bool {
	if int64(offset) >= d.GetLogFileSize() {
		return false
	}

	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.log.ReadAt(log_data, int64(offset))

	return true
}

func (d *VirtualDiskManagerImpl) GetLogFileSize() int64 {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	return int64(len(d.log.Bytes()))
}
