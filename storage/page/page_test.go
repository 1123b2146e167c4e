package page

import (
	"bytes"
	"testing"

	"github.com/kohga/ayudb/common"
	testingpkg "github.com/kohga/ayudb/testing/testing_assert"
	"github.com/kohga/ayudb/types"
)

func TestNewEmptyPage(t *testing.T) {
	pg := NewEmpty(types.PageID(3))

	testingpkg.Equals(t, types.PageID(3), pg.GetPageId())
	testingpkg.Equals(t, int32(1), pg.PinCount())
	testingpkg.SimpleAssert(t, !pg.IsDirty())
	testingpkg.SimpleAssert(t, bytes.Equal(make([]byte, common.PageSize), pg.Data()[:]))
}

func TestPagePinCount(t *testing.T) {
	pg := NewFrame()
	testingpkg.Equals(t, int32(0), pg.PinCount())

	pg.IncPinCount()
	pg.IncPinCount()
	testingpkg.Equals(t, int32(2), pg.PinCount())

	pg.DecPinCount()
	testingpkg.Equals(t, int32(1), pg.PinCount())
}

func TestPageCopyAndReset(t *testing.T) {
	pg := NewEmpty(types.PageID(0))
	pg.Copy(16, []byte("payload"))
	pg.SetIsDirty(true)

	testingpkg.Equals(t, "payload", string(pg.Data()[16:23]))

	pg.Reset()
	testingpkg.Equals(t, types.InvalidPageID, pg.GetPageId())
	testingpkg.Equals(t, int32(0), pg.PinCount())
	testingpkg.SimpleAssert(t, !pg.IsDirty())
	testingpkg.SimpleAssert(t, bytes.Equal(make([]byte, common.PageSize), pg.Data()[:]))
}

func TestPageLSNRoundTrip(t *testing.T) {
	pg := NewEmpty(types.PageID(0))

	pg.SetLSN(types.LSN(7))
	testingpkg.Equals(t, types.LSN(7), pg.GetLSN())
}
