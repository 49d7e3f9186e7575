package run

import (
	"time"

	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 可能在自己的 goroutine 中刷新进度。
type Observer interface {
	// OnStart 在 Execute 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnFileDone 在单个文件处理完成时调用；idx 从 1 开始。
	OnFileDone(idx int, res domain.ItemResult, dur time.Duration)
	// OnFinish 在 report 定稿后调用（包括取消与致命错误）。
	OnFinish(rr domain.RunReport)
}
