package common

import (
	"time"
)

var LogTimeout time.Duration

const EnableDebug bool = false

const (
	// invalid page id
	InvalidPageID = -1
	// invalid log sequence number
	InvalidLSN = -1
	// size of a data page in byte
	PageSize = 4096
	// number for calculate log buffer size (number of page size)
	LogBufferSizeBase = 32
	// size of a log buffer in byte
	LogBufferSize = (LogBufferSizeBase + 1) * PageSize
	// capacity of an extendible hash table bucket
	BucketSize = 50
	// default depth of access history the replacer keeps per frame
	DefaultReplacerK = 2
)
