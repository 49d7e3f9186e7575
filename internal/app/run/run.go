package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/photiso/internal/app/place"
	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/logx"
	"github.com/John-Robertt/photiso/internal/meta"
	"github.com/John-Robertt/photiso/internal/scan"
)

// KeepMarker 出现在文件名（不含扩展名）中时，整理时跳过该文件（“保持原位”）。
const KeepMarker = "!"

// ReportDirName 是 apply 时 report.json 所在的目录（位于 to 之下）。
const ReportDirName = ".photiso"

// ReportPath 返回 apply 时 report.json 的落盘位置。
func ReportPath(eff config.EffectiveConfig) string {
	return filepath.Join(eff.To, ReportDirName, "report.json")
}

// Options 是批量整理的可选依赖（测试用；零值即可）。
type Options struct {
	Logger   logrus.FieldLogger
	Observer Observer
	// Location 是没有时区信息的 EXIF 时间所用的时区；nil 表示 time.Local。
	Location *time.Location
}

// Execute 对 eff.From 下的所有照片执行一次整理（dry-run/apply），返回对外稳定的 RunReport。
//
// 单个文件的失败只记录为一条 failed item，不影响后续文件；
// 只有 from 不存在（DirectoryNotFound）会终止整个运行。
// ctx 取消后在文件边界停止，report 标记 canceled。
func Execute(ctx context.Context, eff config.EffectiveConfig, opts Options) domain.RunReport {
	log := logx.OrDiscard(opts.Logger)
	obs := opts.Observer
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		From:       eff.From,
		To:         eff.To,
		Duplicates: eff.Duplicates,
		Mode:       string(eff.Mode),
		DryRun:     !eff.Apply,
		StartedAt:  time.Now().UTC(),
		Items:      make([]domain.ItemResult, 0, 128),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		if obs != nil {
			obs.OnFinish(rr)
		}
		return rr
	}

	pattern, err := eff.DestinationPattern()
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(config.ErrCodeInvalid, err.Error()))
		return finish()
	}

	resolver, err := meta.New(meta.Options{Logger: log, Location: opts.Location, Exiftool: eff.Exiftool})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(string(domain.KindIOError), fmt.Sprintf("初始化元数据解析失败：%v", err)))
		return finish()
	}
	defer func() { _ = resolver.Close() }()

	sc := scan.New(scan.Options{
		DuplicatesDir: eff.Duplicates,
		FoldCase:      eff.FoldCase,
		Logger:        log,
	})
	if err := sc.Start(eff.From); err != nil {
		rr.Items = append(rr.Items, syntheticFailed(string(kindOr(err, domain.KindDirectoryNotFound)), err.Error()))
		return finish()
	}

	placer := place.New(place.Options{
		DuplicatesDir: eff.Duplicates,
		FoldCase:      eff.FoldCase,
		MaxConflicts:  eff.MaxConflicts,
		DryRun:        !eff.Apply,
		Logger:        log,
	})

	idx := 0
	for {
		if ctx.Err() != nil {
			rr.Canceled = true
			break
		}
		src, err := sc.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				rr.Canceled = true
				break
			}
			// 扫描器只在取消时返回错误；其他情况按合成失败记录并结束。
			rr.Items = append(rr.Items, syntheticFailed(string(kindOr(err, domain.KindIOError)), err.Error()))
			break
		}
		if src == "" {
			break
		}

		idx++
		started := time.Now()
		res, canceled := organizeOne(ctx, src, eff, pattern, resolver, placer)
		if canceled {
			rr.Canceled = true
			break
		}
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnFileDone(idx, res, time.Since(started))
		}
	}

	rr.NonPhotos = sc.Skipped()
	if rr.Canceled {
		log.WithField("done", idx).Warn("整理已取消")
	}
	return finish()
}

// organizeOne 处理单个文件：元数据 → 目标位置 → 放置。
// 第二个返回值为 true 表示放置过程中 ctx 被取消（该文件不计入 report）。
func organizeOne(ctx context.Context, src string, eff config.EffectiveConfig, pattern planner.DestinationPattern, resolver *meta.Resolver, placer *place.Placer) (domain.ItemResult, bool) {
	item := domain.ItemResult{Src: src}

	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if strings.Contains(stem, KeepMarker) {
		item.Status = domain.StatusSkipped
		item.ErrorMsg = "文件名包含 '!'，保持原位"
		return item, false
	}

	rec, err := resolver.Resolve(src)
	if err != nil {
		fail(&item, err)
		return item, false
	}
	dest := planner.ResolveDestination(rec, pattern, eff.To, "")

	pl, err := placer.Place(ctx, src, dest, eff.Mode)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.ItemResult{}, true
		}
		item.Dst = dest.Path(0)
		fail(&item, err)
		return item, false
	}

	item.Dst = pl.To
	item.Status = domain.StatusForOutcome(pl.Outcome)
	item.Digest = pl.Digest
	item.Discarded = pl.Discarded
	return item, false
}

func fail(item *domain.ItemResult, err error) {
	item.Status = domain.StatusFailed
	item.ErrorCode = string(kindOr(err, domain.KindIOError))
	item.ErrorMsg = err.Error()
}

func kindOr(err error, def domain.Kind) domain.Kind {
	if k := domain.KindOf(err); k != "" {
		return k
	}
	return def
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Src:       "",
		Dst:       "",
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
