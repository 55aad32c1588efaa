package ids

import (
	"strconv"
	"sync"
	"time"
)

// 41 bit 时间戳 | 10 bit 节点 | 12 bit 序列
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type generator struct {
	mu     sync.Mutex
	nodeID int64
	seq    int64
	lastMS int64
}

var gen = &generator{nodeID: 1}

// SetNodeID 在 main() 初始化时调用，越界时回落到 1
func SetNodeID(nodeID int64) {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	gen.mu.Lock()
	gen.nodeID = nodeID
	gen.mu.Unlock()
}

// Generate 生成一个新的雪花 ID，同一进程内严格递增
func Generate() int64 { return gen.next() }

// GenerateString 记录主键使用的字符串形式
func GenerateString() string { return strconv.FormatInt(Generate(), 10) }

// Time 还原 ID 中携带的毫秒时间戳
func Time(id int64) time.Time {
	return epoch.Add(time.Duration(id>>(nodeBits+seqBits)) * time.Millisecond)
}

func (g *generator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli() - epoch.UnixMilli()
	if now < g.lastMS {
		// 时钟回拨：沿用上次时间戳继续发号
		now = g.lastMS
	}
	if now == g.lastMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			for now <= g.lastMS {
				now = time.Now().UnixMilli() - epoch.UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMS = now
	return (now&(1<<41-1))<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}
