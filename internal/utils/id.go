package utils

import (
	"strconv"
	"sync/atomic"
	"time"
)

var messageSeq atomic.Uint64

// MessageID returns a process-unique message id derived from the owning
// connection id and the creation timestamp. The sequence suffix covers two
// messages landing in the same nanosecond.
func MessageID(connID string) string {
	seq := messageSeq.Add(1)
	return connID + "-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(seq, 36)
}
