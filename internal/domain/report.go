package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusMoved          = "moved"
	StatusDuplicateMoved = "duplicate_moved"
	StatusNoOp           = "noop"
	StatusSkipped        = "skipped"
	StatusFailed         = "failed"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Duplicates string `json:"duplicates"`
	Mode       string `json:"mode"`
	DryRun     bool   `json:"dry_run"`
	Canceled   bool   `json:"canceled"`

	// NonPhotos 是扫描时跳过的非照片文件数（不含 OS 伪文件），不出现在 items 中。
	NonPhotos int `json:"non_photos"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Moved          int `json:"moved"`
	DuplicateMoved int `json:"duplicate_moved"`
	NoOp           int `json:"noop"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// ItemResult 是单个源文件的处理结果。
type ItemResult struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Status string `json:"status"`
	Digest string `json:"digest,omitempty"`

	// Discarded 仅对 duplicate_moved 有意义：重复区已有同内容，源文件被删除。
	Discarded bool `json:"discarded,omitempty"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// StatusForOutcome 把放置终态映射为 report 状态。
func StatusForOutcome(o Outcome) string {
	switch o {
	case OutcomeMoved:
		return StatusMoved
	case OutcomeDuplicateMoved:
		return StatusDuplicateMoved
	default:
		return StatusNoOp
	}
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 src 字典序；src=="" 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Src
		b := r.Items[j].Src
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusMoved:
			s.Moved++
		case StatusDuplicateMoved:
			s.DuplicateMoved++
		case StatusNoOp:
			s.NoOp++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
