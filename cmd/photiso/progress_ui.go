package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/photiso/internal/app/run"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的整理进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 文件总数事先未知：进度条以 spinner + 计数的形式展示
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
	bar       *progressbar.ProgressBar

	counts map[string]int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w, counts: map[string]int{}}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.startedAt = now

	mode := "dry-run"
	modeHint := " (不写入/不移动)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] photiso organize (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  from: %s\n", eff.From)
	fmt.Fprintf(p.w, "  to: %s\n", eff.To)
	fmt.Fprintf(p.w, "  duplicates: %s\n", eff.Duplicates)
	fmt.Fprintf(p.w, "  mode: %s, %s%s\n", eff.Mode, mode, modeHint)
	fmt.Fprintf(p.w, "  pattern: %s\n", formatPattern(eff))
	fmt.Fprintf(p.w, "  fold_case: %s\n", onOff(eff.FoldCase))
	fmt.Fprintln(p.w)

	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("整理中"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressUI) OnFileDone(idx int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[res.Status]++
	if p.bar == nil {
		return
	}

	// 失败与重复需要用户关注：打印一行；其他只推进进度条。
	switch res.Status {
	case domain.StatusFailed:
		_ = p.bar.Clear()
		fmt.Fprintf(p.w, "[%d] FAIL %s %s: %s\n", idx, res.Src, res.ErrorCode, truncate(res.ErrorMsg, 160))
	case domain.StatusDuplicateMoved:
		_ = p.bar.Clear()
		note := ""
		if res.Discarded {
			note = " (已有相同副本，源文件已丢弃)"
		}
		fmt.Fprintf(p.w, "[%d] DUP  %s -> %s%s\n", idx, res.Src, res.Dst, note)
	}
	p.bar.Describe(truncate(filepath.Base(res.Src), 40))
	_ = p.bar.Add(1)
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
	total := len(rr.Items)
	fmt.Fprintf(p.w, "处理 %s 个文件，耗时 %s\n", humanize.Comma(int64(total)), formatElapsed(time.Since(p.startedAt)))
}

func formatPattern(eff config.EffectiveConfig) string {
	dir := "off"
	if eff.EnableDirectoryPattern {
		dir = eff.DirectoryPattern
	}
	name := "off（保留原文件名）"
	if eff.EnableFileNamePattern {
		name = eff.FileNamePattern
	}
	return "dir=" + dir + " name=" + name
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
