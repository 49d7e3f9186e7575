package domain

// WorkItem 是扫描队列的快照：尚未展开的目录 + 最近展开目录中的待处理照片。
//
// 不变量：PendingFiles 必须先于下一个目录的展开被取尽（逐目录遍历，而非全局排序）。
type WorkItem struct {
	PendingDirectories []string
	PendingFiles       []string
}

// Empty 表示队列已耗尽。
func (w WorkItem) Empty() bool {
	return len(w.PendingDirectories) == 0 && len(w.PendingFiles) == 0
}
