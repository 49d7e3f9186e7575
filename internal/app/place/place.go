package place

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/fsx"
	"github.com/John-Robertt/photiso/internal/infra/hashx"
	"github.com/John-Robertt/photiso/internal/infra/logx"
)

// DefaultMaxConflicts 是冲突修订号的默认上限（_001 … _999）。
const DefaultMaxConflicts = 999

// 通过可替换的函数指针，让测试能稳定模拟“检查之后目标被并发创建”的竞争。
var (
	moveFunc = fsx.MoveNoOverwrite
	copyFunc = fsx.CopyNoOverwrite
)

// Options 是放置状态机的配置。
type Options struct {
	// DuplicatesDir 是重复照片根目录：<DuplicatesDir>/<digest>/<name>。
	DuplicatesDir string
	// FoldCase：路径相等判断是否大小写不敏感。
	FoldCase bool
	// MaxConflicts 是冲突修订号上限；<=0 使用 DefaultMaxConflicts。
	MaxConflicts int
	// DryRun：只分类，不做任何文件系统写入。
	DryRun bool
	Logger logrus.FieldLogger
}

// Placer 执行单个文件的放置：NoOp / Moved / DuplicateMoved / 冲突重试。
//
// Placer 不持有会话状态：账本与导航器由调用方在成功后更新。
type Placer struct {
	dupRoot  string
	foldCase bool
	max      int
	dryRun   bool
	log      logrus.FieldLogger
}

func New(opts Options) *Placer {
	max := opts.MaxConflicts
	if max <= 0 || max > DefaultMaxConflicts {
		max = DefaultMaxConflicts
	}
	dup := opts.DuplicatesDir
	if dup != "" {
		dup = filepath.Clean(dup)
	}
	return &Placer{
		dupRoot:  dup,
		foldCase: opts.FoldCase,
		max:      max,
		dryRun:   opts.DryRun,
		log:      logx.OrDiscard(opts.Logger),
	}
}

// DryRun 报告本 Placer 是否只做分类。
func (p *Placer) DryRun() bool { return p.dryRun }

// Place 把 source 放到 dest（必要时加冲突后缀），按 mode 复制或移动。
//
// 状态转换：
//  1. 目标路径与 source 相同：NoOp，不做任何写入
//  2. 目标不存在：创建父目录后不覆盖地复制/移动：Moved
//  3. 目标存在且内容相同：转入重复区 <dup>/<digest>/：DuplicateMoved
//  4. 目标存在但内容不同：修订号 +1 后回到 1；超过上限：TooManyConflicts
//
// 内容哈希只在第 3/4 步（发生命名冲突时）才计算。
func (p *Placer) Place(ctx context.Context, source string, dest domain.Destination, mode domain.ActionKind) (domain.Placement, error) {
	src := filepath.Clean(source)
	log := p.log.WithFields(logrus.Fields{"src": src, "mode": mode})

	for rev := 0; rev <= p.max; rev++ {
		if err := ctx.Err(); err != nil {
			return domain.Placement{}, err
		}
		target := dest.Path(rev)
		if p.samePath(src, target) {
			log.WithField("dst", target).Debug("已在目标位置")
			return domain.Placement{Source: src, To: src, Outcome: domain.OutcomeNoOp, Revision: rev}, nil
		}

		st, err := stat(target)
		if err != nil {
			return domain.Placement{}, domain.E(domain.KindIOError, target, err)
		}
		switch st {
		case targetMissing:
			if err := p.transfer(src, target, mode); err != nil {
				return domain.Placement{}, err
			}
			log.WithField("dst", target).Debug("已放置")
			return domain.Placement{Source: src, To: target, Outcome: domain.OutcomeMoved, Revision: rev}, nil
		case targetOther:
			// 目录/符号链接占用了文件名：按冲突处理。
			continue
		}

		digest, same, err := hashx.SameContent(src, target)
		if err != nil {
			return domain.Placement{}, domain.E(domain.KindIOError, src, err)
		}
		if same {
			pl, err := p.placeDuplicate(src, dest, digest, mode)
			if err != nil {
				return domain.Placement{}, err
			}
			log.WithFields(logrus.Fields{"dst": pl.To, "digest": digest, "discarded": pl.Discarded}).Debug("内容重复，转入重复区")
			return pl, nil
		}
		log.WithField("dst", target).Debug("目标名冲突，尝试下一个后缀")
	}

	return domain.Placement{}, domain.E(domain.KindTooManyConflicts, src, fmt.Errorf("已尝试 %d 个后缀", p.max))
}

// placeDuplicate 把 src 放进 <dup>/<digest>/，同样不覆盖并按需加后缀。
// 该目录下已有同内容文件时，源文件被丢弃（move 模式删除源；copy 模式不动）。
func (p *Placer) placeDuplicate(src string, dest domain.Destination, digest string, mode domain.ActionKind) (domain.Placement, error) {
	if p.dupRoot == "" {
		return domain.Placement{}, domain.E(domain.KindIOError, src, errors.New("未配置重复照片目录"))
	}
	d := domain.Destination{
		Dir:      filepath.Join(p.dupRoot, digest),
		BaseName: dest.BaseName,
		Ext:      dest.Ext,
	}

	for rev := 0; rev <= p.max; rev++ {
		target := d.Path(rev)
		out := domain.Placement{
			Source:   src,
			To:       target,
			Outcome:  domain.OutcomeDuplicateMoved,
			Revision: rev,
			Digest:   digest,
		}
		if p.samePath(src, target) {
			out.Outcome = domain.OutcomeNoOp
			out.To = src
			return out, nil
		}

		st, err := stat(target)
		if err != nil {
			return domain.Placement{}, domain.E(domain.KindIOError, target, err)
		}
		switch st {
		case targetMissing:
			if err := p.transfer(src, target, mode); err != nil {
				return domain.Placement{}, err
			}
			return out, nil
		case targetOther:
			continue
		}

		_, same, err := hashx.SameContent(src, target)
		if err != nil {
			return domain.Placement{}, domain.E(domain.KindIOError, src, err)
		}
		if !same {
			continue
		}
		out.Discarded = true
		if mode == domain.ActionMove && !p.dryRun {
			if err := os.Remove(src); err != nil {
				return domain.Placement{}, domain.E(domain.KindIOError, src, err)
			}
		}
		return out, nil
	}
	return domain.Placement{}, domain.E(domain.KindTooManyConflicts, src, fmt.Errorf("重复区已尝试 %d 个后缀", p.max))
}

func (p *Placer) transfer(src, dst string, mode domain.ActionKind) error {
	if p.dryRun {
		return nil
	}
	var err error
	switch mode {
	case domain.ActionCopy:
		err = copyFunc(src, dst)
	case domain.ActionMove:
		err = moveFunc(src, dst)
	default:
		return fmt.Errorf("未知放置方式：%q", mode)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrExist):
		return domain.E(domain.KindDestinationExists, dst, err)
	default:
		return domain.E(domain.KindIOError, dst, err)
	}
}

func (p *Placer) samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if p.foldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

type targetState int

const (
	targetMissing targetState = iota
	targetFile
	targetOther
)

func stat(path string) (targetState, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return targetMissing, nil
		}
		return 0, err
	}
	if fi.Mode().IsRegular() {
		return targetFile, nil
	}
	return targetOther, nil
}
