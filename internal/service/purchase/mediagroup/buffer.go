// internal/service/purchase/mediagroup/buffer.go
package mediagroup

import (
	"sync"
	"time"

	"lekker/internal/service/purchase/domain"
)

// Key 标识一个凭证批次：会话加上传输层给出的相册分组 ID。
type Key struct {
	SessionID string
	GroupID   string
}

// Burst 是一个判定完整的凭证批次。
// Images 保持 Offer 的先后顺序；Meta 取同一 key 上最后一次
// Offer 的值；PaymentID 在首次 Offer 时捕获。
type Burst struct {
	Key       Key
	PaymentID uint
	Images    []domain.ProofImage
	Meta      domain.ProofMeta
}

// FlushFunc 在批次完整时被调用，每个批次恰好一次。
type FlushFunc func(burst Burst)

type entry struct {
	paymentID uint
	images    []domain.ProofImage
	meta      domain.ProofMeta
	timer     *time.Timer
	// seq 在每次 Offer 时递增；触发的计时器用它验证
	// 自己仍然是该 key 的权威计时器
	seq uint64
}

// Buffer 把同一相册里陆续到达、没有结束标记的图片聚合成
// 一次逻辑提交：每来一张图就重置该 key 的静默计时器，
// 计时器安然到期即认为批次完整。
//
// 同一 key 任何时刻至多一个有效计时器。被取代的计时器的
// Stop 只是尽力而为——已经触发的旧计时器会在锁内发现自己的
// seq 已过期，然后安静退出，不会吃掉新计时器的缓冲。
type Buffer struct {
	mu      sync.Mutex
	window  time.Duration
	flush   FlushFunc
	entries map[Key]*entry
	closed  bool
}

// New 创建一个聚合缓冲。window 是静默窗口，flush 收下完整批次。
func New(window time.Duration, flush FlushFunc) *Buffer {
	return &Buffer{
		window:  window,
		flush:   flush,
		entries: make(map[Key]*entry),
	}
}

// Offer 追加一张凭证图片。
// GroupID 为空的单图提交没有后续可等，绕过去抖直接作为
// 长度为 1 的完整批次同步投递。
func (b *Buffer) Offer(key Key, paymentID uint, img domain.ProofImage, meta domain.ProofMeta) {
	if key.GroupID == "" {
		b.flush(Burst{Key: key, PaymentID: paymentID, Images: []domain.ProofImage{img}, Meta: meta})
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	e, ok := b.entries[key]
	if !ok {
		e = &entry{paymentID: paymentID}
		b.entries[key] = e
	}
	e.images = append(e.images, img)
	e.meta = meta
	e.seq++
	seq := e.seq
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(b.window, func() { b.fire(key, seq) })
	b.mu.Unlock()
}

// fire 是计时器到期的回调。
func (b *Buffer) fire(key Key, seq uint64) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.seq != seq {
		// key 已被取消，或者本计时器已被更新的 Offer 取代
		b.mu.Unlock()
		return
	}
	delete(b.entries, key)
	burst := Burst{Key: key, PaymentID: e.paymentID, Images: e.images, Meta: e.meta}
	b.mu.Unlock()

	b.flush(burst)
}

// Cancel 丢弃一个 key 上累积的图片并停掉它的计时器。
func (b *Buffer) Cancel(key Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocked(key)
}

// CancelSession 丢弃某个会话名下的所有批次。
// 会话被放弃后不能再有迟到的 flush 打进一个已不存在的流程。
func (b *Buffer) CancelSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		if key.SessionID == sessionID {
			b.evictLocked(key)
		}
	}
}

// Close 停掉所有计时器并丢弃全部缓冲，用于进程关停。
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for key := range b.entries {
		b.evictLocked(key)
	}
}

func (b *Buffer) evictLocked(key Key) {
	e, ok := b.entries[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(b.entries, key)
}

// Pending 返回当前在缓冲中的批次数，只用于观测。
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
