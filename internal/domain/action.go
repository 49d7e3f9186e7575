package domain

import "time"

// ActionKind 是一次已完成放置动作的类型。
type ActionKind string

const (
	ActionCopy ActionKind = "copy"
	ActionMove ActionKind = "move"
)

// ParseActionKind 只接受 copy/move。
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionCopy, ActionMove:
		return ActionKind(s), true
	default:
		return "", false
	}
}

// ActionHistoryItem 是动作账本中的一条不可变记录。
//
// Key 是创建时间的 UnixMilli，在单个账本内唯一（账本负责去重）。
// Outcome 用于在撤销时拒绝 duplicate_moved 这类无法还原的放置。
type ActionHistoryItem struct {
	Key       int64      `json:"key"`
	Kind      ActionKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Outcome   Outcome    `json:"outcome,omitempty"`
}
