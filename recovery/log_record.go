package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/kohga/ayudb/types"
)

type LogRecordType int32

const (
	INVALID LogRecordType = iota
	// page lifecycle records emitted by the buffer pool manager
	NEWPAGE
	DEALLOCATE_PAGE
	REUSE_PAGE
)

// header: | size (4) | LSN (4) | type (4) | page id (4) |
const HEADER_SIZE uint32 = 16

// LogRecord describes a page lifecycle event. The storage front-end only
// journals page allocation state; tuple level records belong to the access
// methods above it.
type LogRecord struct {
	Size            uint32
	Lsn             types.LSN
	Log_record_type LogRecordType
	Page_id         types.PageID
}

func NewLogRecordNewPage(pageID types.PageID) *LogRecord {
	return &LogRecord{HEADER_SIZE, types.LSN(-1), NEWPAGE, pageID}
}

func NewLogRecordDeallocatePage(pageID types.PageID) *LogRecord {
	return &LogRecord{HEADER_SIZE, types.LSN(-1), DEALLOCATE_PAGE, pageID}
}

func NewLogRecordReusePage(pageID types.PageID) *LogRecord {
	return &LogRecord{HEADER_SIZE, types.LSN(-1), REUSE_PAGE, pageID}
}

func (record *LogRecord) GetLogRecordType() LogRecordType { return record.Log_record_type }
func (record *LogRecord) GetSize() uint32                 { return record.Size }
func (record *LogRecord) GetLSN() types.LSN               { return record.Lsn }
func (record *LogRecord) GetPageId() types.PageID         { return record.Page_id }

// GetLogHeaderData serializes the record into its on-disk form
func (record *LogRecord) GetLogHeaderData() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, record.Size)
	binary.Write(buf, binary.LittleEndian, record.Lsn)
	binary.Write(buf, binary.LittleEndian, record.Log_record_type)
	binary.Write(buf, binary.LittleEndian, record.Page_id)
	return buf.Bytes()
}

// NewLogRecordFromBytes deserializes a record header read back from the log
func NewLogRecordFromBytes(data []byte) *LogRecord {
	record := new(LogRecord)
	buf := bytes.NewBuffer(data)
	binary.Read(buf, binary.LittleEndian, &record.Size)
	binary.Read(buf, binary.LittleEndian, &record.Lsn)
	binary.Read(buf, binary.LittleEndian, &record.Log_record_type)
	binary.Read(buf, binary.LittleEndian, &record.Page_id)
	return record
}
