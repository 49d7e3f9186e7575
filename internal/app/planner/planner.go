package planner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/fsx"
)

// 默认模式（与配置默认值一致）。
const (
	DefaultDirectoryPattern = "yyyy/MM"
	DefaultFileNamePattern  = "'IMG_'yyyy-MM-dd_HH-mm-ss-SSS"
)

// MaxConflictSuffix 是冲突后缀的上限：_001 … _999。
const MaxConflictSuffix = 999

// DestinationPattern 是两个可独立开关的日期模式：目录 + 文件名。
// nil 表示该项未启用。
type DestinationPattern struct {
	Directory *Pattern
	FileName  *Pattern
}

// NewDestinationPattern 编译启用的模式；未启用的模式不做校验。
func NewDestinationPattern(dirPattern string, enableDir bool, namePattern string, enableName bool) (DestinationPattern, error) {
	var dp DestinationPattern
	if enableDir {
		p, err := Compile(dirPattern)
		if err != nil {
			return DestinationPattern{}, err
		}
		dp.Directory = &p
	}
	if enableName {
		p, err := Compile(namePattern)
		if err != nil {
			return DestinationPattern{}, err
		}
		dp.FileName = &p
	}
	return dp, nil
}

// ResolveDestination 计算照片的规范目标位置（不访问文件系统）。
//
//   - 目录：organizedRoot + 目录模式(BestTime)；目录模式未启用时使用 fallbackRel（可为空）
//   - 文件名：文件名模式(BestTime)；未启用时保留原文件名（不含扩展名）
//   - 没有任何可用时间（BestTime 为零）时：目录退化为 organizedRoot，文件名保留原名
//   - 扩展名统一小写
func ResolveDestination(rec domain.PhotoRecord, p DestinationPattern, organizedRoot, fallbackRel string) domain.Destination {
	t := rec.BestTime()
	srcBase := filepath.Base(rec.Path)
	ext := filepath.Ext(srcBase)

	dir := organizedRoot
	switch {
	case p.Directory != nil && !t.IsZero():
		dir = filepath.Join(organizedRoot, filepath.FromSlash(p.Directory.Format(t)))
	case p.Directory == nil && fallbackRel != "":
		dir = filepath.Join(organizedRoot, filepath.FromSlash(fallbackRel))
	}

	base := strings.TrimSuffix(srcBase, ext)
	if p.FileName != nil && !t.IsZero() {
		base = p.FileName.Format(t)
	}

	return domain.Destination{
		Dir:      filepath.Clean(dir),
		BaseName: base,
		Ext:      strings.ToLower(ext),
	}
}

// FindNonConflictingSuffix 返回让 candidate 不与现有文件冲突的后缀。
//
//   - candidate 不存在：返回 ""（不需要后缀）
//   - 否则依次探测 "{name}_001{ext}"、"{name}_002{ext}"…，返回第一个不存在的后缀
//   - 探测 max 次仍全部存在：TooManyConflicts
func FindNonConflictingSuffix(candidate string, max int) (string, error) {
	if max <= 0 || max > MaxConflictSuffix {
		max = MaxConflictSuffix
	}

	ok, err := fsx.Exists(candidate)
	if err != nil {
		return "", domain.E(domain.KindIOError, candidate, err)
	}
	if !ok {
		return "", nil
	}

	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for rev := 1; rev <= max; rev++ {
		suffix := domain.ConflictSuffix(rev)
		p := stem + suffix + ext
		ok, err := fsx.Exists(p)
		if err != nil {
			return "", domain.E(domain.KindIOError, p, err)
		}
		if !ok {
			return suffix, nil
		}
	}
	return "", domain.E(domain.KindTooManyConflicts, candidate, fmt.Errorf("已尝试 %d 个后缀", max))
}
