package session

import (
	"time"

	"github.com/John-Robertt/photiso/internal/domain"
)

// Ledger 是已完成复制/移动动作的账本，按时间倒序（最新在前）。
// Key 在账本内唯一：同一毫秒内的多次记录会顺延到下一毫秒。
type Ledger struct {
	items   []domain.ActionHistoryItem
	lastKey int64
	now     func() time.Time
}

// NewLedger 以已持久化的记录（最新在前）初始化账本。
func NewLedger(items []domain.ActionHistoryItem) *Ledger {
	l := &Ledger{now: time.Now}
	l.Load(items)
	return l
}

// Load 替换全部记录。
func (l *Ledger) Load(items []domain.ActionHistoryItem) {
	l.items = append([]domain.ActionHistoryItem(nil), items...)
	l.lastKey = 0
	for _, it := range l.items {
		if it.Key > l.lastKey {
			l.lastKey = it.Key
		}
	}
}

// Record 追加一条记录到最前面，并返回它。
func (l *Ledger) Record(kind domain.ActionKind, from, to string, outcome domain.Outcome) domain.ActionHistoryItem {
	ts := l.now()
	key := ts.UnixMilli()
	if key <= l.lastKey {
		key = l.lastKey + 1
	}
	l.lastKey = key

	it := domain.ActionHistoryItem{
		Key:       key,
		Kind:      kind,
		Timestamp: ts,
		From:      from,
		To:        to,
		Outcome:   outcome,
	}
	l.items = append([]domain.ActionHistoryItem{it}, l.items...)
	return it
}

// Add 把一条已有记录（例如另一个账本产生的）放到最前面，保留其 Key。
// Key 已存在时替换旧记录。
func (l *Ledger) Add(it domain.ActionHistoryItem) {
	l.Remove(it.Key)
	if it.Key > l.lastKey {
		l.lastKey = it.Key
	}
	l.items = append([]domain.ActionHistoryItem{it}, l.items...)
}

// Truncate 只保留最新的 n 条记录。
func (l *Ledger) Truncate(n int) {
	if n >= 0 && len(l.items) > n {
		l.items = l.items[:n:n]
	}
}

// FindMostRecent 返回最新的一条记录。
func (l *Ledger) FindMostRecent() (domain.ActionHistoryItem, bool) {
	if len(l.items) == 0 {
		return domain.ActionHistoryItem{}, false
	}
	return l.items[0], true
}

// FindByKey 按 Key 查找记录。
func (l *Ledger) FindByKey(key int64) (domain.ActionHistoryItem, bool) {
	for _, it := range l.items {
		if it.Key == key {
			return it, true
		}
	}
	return domain.ActionHistoryItem{}, false
}

// Remove 删除 Key 对应的记录；不存在时返回 false。
func (l *Ledger) Remove(key int64) bool {
	for i, it := range l.items {
		if it.Key == key {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items 返回记录快照（最新在前）。
func (l *Ledger) Items() []domain.ActionHistoryItem {
	return append([]domain.ActionHistoryItem(nil), l.items...)
}

func (l *Ledger) Len() int { return len(l.items) }

// Clear 清空账本（lastKey 保留，保证之后的 Key 仍单调）。
func (l *Ledger) Clear() { l.items = nil }
