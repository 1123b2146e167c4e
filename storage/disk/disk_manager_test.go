package disk

import (
	"bytes"
	"testing"

	"github.com/kohga/ayudb/common"
	testingpkg "github.com/kohga/ayudb/testing/testing_assert"
	"github.com/kohga/ayudb/types"
)

func TestReadWritePage(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	data := make([]byte, common.PageSize)
	buf := make([]byte, common.PageSize)
	copy(data, "A test string.")

	testingpkg.Ok(t, dm.WritePage(types.PageID(0), data))
	testingpkg.Ok(t, dm.ReadPage(types.PageID(0), buf))
	testingpkg.SimpleAssert(t, bytes.Equal(data, buf))

	// a page beyond the current tail extends the file
	testingpkg.Ok(t, dm.WritePage(types.PageID(5), data))
	buf = make([]byte, common.PageSize)
	testingpkg.Ok(t, dm.ReadPage(types.PageID(5), buf))
	testingpkg.SimpleAssert(t, bytes.Equal(data, buf))

	testingpkg.Equals(t, uint64(2), dm.GetNumWrites())
	testingpkg.Equals(t, int64(6*common.PageSize), dm.Size())
}

func TestReadWriteLog(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	data := []byte("A test string.")
	dm.WriteLog(data)

	buf := make([]byte, len(data))
	testingpkg.SimpleAssert(t, dm.ReadLog(buf, 0))
	testingpkg.SimpleAssert(t, bytes.Equal(data, buf))

	// reading past the end of the log reports exhaustion
	testingpkg.SimpleAssert(t, !dm.ReadLog(buf, int32(len(data))))
}

func TestAllocatePage(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	testingpkg.Equals(t, types.PageID(0), dm.AllocatePage())
	testingpkg.Equals(t, types.PageID(1), dm.AllocatePage())
	testingpkg.Equals(t, types.PageID(2), dm.AllocatePage())
}

func TestVirtualDiskManager(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("virtual_test.db")

	data := make([]byte, common.PageSize)
	buf := make([]byte, common.PageSize)
	copy(data, "in memory only")

	testingpkg.Ok(t, dm.WritePage(types.PageID(0), data))
	testingpkg.Ok(t, dm.ReadPage(types.PageID(0), buf))
	testingpkg.SimpleAssert(t, bytes.Equal(data, buf))

	testingpkg.Equals(t, types.PageID(0), dm.AllocatePage())
	testingpkg.Equals(t, types.PageID(1), dm.AllocatePage())

	// deallocated pages refuse reads afterwards
	dm.DeallocatePage(types.PageID(0))
	err := dm.ReadPage(types.PageID(0), buf)
	testingpkg.Equals(t, types.DeallocatedPageErr, err)

	dm.WriteLog([]byte("log entry"))
	testingpkg.Equals(t, int64(9), dm.GetLogFileSize())
}
