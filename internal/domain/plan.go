package domain

import (
	"fmt"
	"path/filepath"
)

// Outcome 是放置状态机的终态分类。
type Outcome string

const (
	OutcomeNoOp           Outcome = "noop"
	OutcomeMoved          Outcome = "moved"
	OutcomeDuplicateMoved Outcome = "duplicate_moved"
)

// Destination 是目标位置的“未加后缀”形态：目录 + 基础文件名 + 扩展名。
//
// 冲突修订号 rev>0 时，文件名为 BaseName + "_NNN" + Ext。
type Destination struct {
	Dir      string
	BaseName string
	Ext      string // ".jpg"（已小写）
}

// Path 返回修订号 rev 对应的绝对路径（rev=0 表示不加后缀）。
func (d Destination) Path(rev int) string {
	return filepath.Join(d.Dir, d.BaseName+ConflictSuffix(rev)+d.Ext)
}

// ConflictSuffix 返回修订号对应的后缀："_001"、"_002"…；rev<=0 返回空串。
func ConflictSuffix(rev int) string {
	if rev <= 0 {
		return ""
	}
	return fmt.Sprintf("_%03d", rev)
}

// Placement 是一次放置的结果（只描述发生了什么，不含会话状态）。
type Placement struct {
	Source   string
	To       string // 最终落点；NoOp 时等于 Source
	Outcome  Outcome
	Revision int    // 使用的冲突修订号（0 表示无后缀）
	Digest   string // 仅当发生过内容比较时非空

	// Discarded：重复区已有同内容文件，源文件被删除（copy 模式下源文件保持不动）。
	Discarded bool
}

// DestinationFromPath 把完整目标路径拆为 Destination（扩展名保持原样）。
func DestinationFromPath(p string) Destination {
	p = filepath.Clean(p)
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	return Destination{
		Dir:      filepath.Dir(p),
		BaseName: base[:len(base)-len(ext)],
		Ext:      ext,
	}
}
