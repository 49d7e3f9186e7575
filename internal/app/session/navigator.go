package session

import "context"

// Source 是导航器拉取新路径的来源（通常是 *scan.Scanner）。
// 返回 "" 表示已耗尽。
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Entry 是本次会话中出现过的一个文件。
//
// Path 创建后不变；MovedTo 在文件被移走时设置，撤销后清空。
type Entry struct {
	Path    string `json:"path"`
	MovedTo string `json:"moved_to,omitempty"`
}

// Navigator 维护会话中已访问文件的有序列表与游标。
//
// 条目只追加不删除（被移走的条目保留为墓碑），因此下标在会话内稳定，
// 前进/后退/撤销后的重访都基于同一组下标。
type Navigator struct {
	src     Source
	entries []Entry
	index   map[string]int
	cursor  int // -1 表示尚无条目
}

func NewNavigator(src Source) *Navigator {
	return &Navigator{src: src, index: map[string]int{}, cursor: -1}
}

// Next 前进到下一个未移走的条目；已访问列表走完后从 Source 拉取新路径。
// Source 耗尽时游标不动，返回当前条目；当前条目已被移走时返回 ""（见 Current）。
func (n *Navigator) Next(ctx context.Context) (string, error) {
	for i := n.cursor + 1; i < len(n.entries); i++ {
		if n.entries[i].MovedTo == "" {
			n.cursor = i
			return n.entries[i].Path, nil
		}
	}

	for n.src != nil {
		p, err := n.src.Next(ctx)
		if err != nil {
			return "", err
		}
		if p == "" {
			break
		}
		if _, seen := n.index[p]; seen {
			continue
		}
		n.entries = append(n.entries, Entry{Path: p})
		n.cursor = len(n.entries) - 1
		n.index[p] = n.cursor
		return p, nil
	}
	return n.Current(), nil
}

// Previous 后退到上一个未移走的条目；不会从 Source 拉取。
// 没有更早的未移走条目时游标不动，返回当前条目（已被移走时为 ""）。
func (n *Navigator) Previous() string {
	for i := n.cursor - 1; i >= 0; i-- {
		if n.entries[i].MovedTo == "" {
			n.cursor = i
			return n.entries[i].Path
		}
	}
	return n.Current()
}

// GoTo 直接跳到 path 对应的条目（不论是否已移走）；未访问过的路径返回 ""。
func (n *Navigator) GoTo(path string) string {
	i, ok := n.index[path]
	if !ok {
		return ""
	}
	n.cursor = i
	return path
}

// Current 返回游标处条目的路径。
// 条目已被移走时返回 ""：已移走的文件不再作为“当前文件”出现。
func (n *Navigator) Current() string {
	if n.cursor < 0 || n.cursor >= len(n.entries) {
		return ""
	}
	e := n.entries[n.cursor]
	if e.MovedTo != "" {
		return ""
	}
	return e.Path
}

// MarkMoved 记录 from 已被移动到 to；from 不在列表中时什么也不做。
func (n *Navigator) MarkMoved(from, to string) {
	if i, ok := n.index[from]; ok {
		n.entries[i].MovedTo = to
	}
}

// MarkRestored 清除 path 的移动标记（撤销时使用）。
func (n *Navigator) MarkRestored(path string) {
	if i, ok := n.index[path]; ok {
		n.entries[i].MovedTo = ""
	}
}

// Clear 丢弃所有条目并重置游标；src 非 nil 时替换来源。
func (n *Navigator) Clear(src Source) {
	if src != nil {
		n.src = src
	}
	n.entries = nil
	n.index = map[string]int{}
	n.cursor = -1
}

// Entries 返回条目快照。
func (n *Navigator) Entries() []Entry {
	return append([]Entry(nil), n.entries...)
}

// Cursor 返回游标下标（-1 表示无条目）。
func (n *Navigator) Cursor() int { return n.cursor }
