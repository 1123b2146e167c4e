package recovery

import (
	"github.com/kohga/ayudb/common"
	"github.com/kohga/ayudb/storage/disk"
	"github.com/kohga/ayudb/types"
)

/**
 * LogManager buffers log records in memory and writes them out through the
 * disk manager. Flush swaps the append buffer for the flush buffer so that
 * appends from other goroutines are not blocked during the disk write.
 */
type LogManager struct {
	offset         uint32
	log_buffer_lsn types.LSN
	/** records the next log sequence number. */
	next_lsn types.LSN
	/** records before and including the persistent lsn have been written to disk. */
	persistent_lsn types.LSN
	log_buffer     []byte
	flush_buffer   []byte
	latch          common.ReaderWriterLatch
	disk_manager   *disk.DiskManager
}

func NewLogManager(disk_manager *disk.DiskManager) *LogManager {
	ret := new(LogManager)
	ret.next_lsn = 0
	ret.persistent_lsn = common.InvalidLSN
	ret.disk_manager = disk_manager
	ret.log_buffer = make([]byte, common.LogBufferSize)
	ret.flush_buffer = make([]byte, common.LogBufferSize)
	ret.latch = common.NewRWLatch()
	ret.offset = 0
	return ret
}

func (log_manager *LogManager) GetNextLSN() types.LSN       { return log_manager.next_lsn }
func (log_manager *LogManager) GetPersistentLSN() types.LSN { return log_manager.persistent_lsn }

func (log_manager *LogManager) Flush() {
	log_manager.latch.WLock()

	lsn := log_manager.log_buffer_lsn
	offset := log_manager.offset
	log_manager.offset = 0

	// swap address of two buffers
	tmp_p := log_manager.flush_buffer
	log_manager.flush_buffer = log_manager.log_buffer
	log_manager.log_buffer = tmp_p

	log_manager.latch.WUnlock()

	if offset > 0 {
		(*log_manager.disk_manager).WriteLog(log_manager.flush_buffer[:offset])
	}
	log_manager.persistent_lsn = lsn
}

/*
* append a log record into log buffer
* the log record's lsn is assigned within this method
* @return: lsn that is assigned to this log record
 */
func (log_manager *LogManager) AppendLogRecord(log_record *LogRecord) types.LSN {
	if common.LogBufferSize-log_manager.offset < log_record.Size {
		log_manager.Flush()
	}

	log_manager.latch.WLock()
	log_record.Lsn = log_manager.next_lsn
	log_manager.next_lsn += 1
	log_manager.log_buffer_lsn = log_record.Lsn
	copy(log_manager.log_buffer[log_manager.offset:], log_record.GetLogHeaderData())
	log_manager.offset += log_record.Size
	log_manager.latch.WUnlock()

	return log_record.Lsn
}
