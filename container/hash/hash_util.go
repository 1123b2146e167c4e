package hash

import (
	"bytes"
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/kohga/ayudb/types"
)

// GenHashMurMur hashes the given bytes with 128-bit murmur3 and returns the low
// 32 bits of the result
func GenHashMurMur(key []byte) uint32 {
	h := murmur3.New128()
	h.Write(key)

	hval1, _ := h.Sum128()

	return uint32(hval1)
}

// HashPageID is the hash function the buffer pool manager's page table uses
func HashPageID(pageID types.PageID) uint32 {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, pageID)
	return GenHashMurMur(buf.Bytes())
}

// HashInt32 hashes an int32 key
func HashInt32(value int32) uint32 {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, value)
	return GenHashMurMur(buf.Bytes())
}

// HashString hashes a string key
func HashString(value string) uint32 {
	return GenHashMurMur([]byte(value))
}
