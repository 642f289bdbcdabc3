package utils

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idSeq atomic.Int64

// GenerateID 生成基于时间戳的ID，同一纳秒内通过序号保证唯一，仅用于日志关联
func GenerateID() int64 {
	now := time.Now().UnixNano()
	for {
		last := idSeq.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if idSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

// GenerateSessionID 返回随机 UUIDv4，会话ID是访问会话的唯一凭据，不能由时间推出
func GenerateSessionID() string {
	return uuid.NewString()
}
