package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/logx"
)

// ignoredNames 是操作系统生成的伪文件：完全忽略，不计入 skipped。
var ignoredNames = map[string]struct{}{
	"thumbs.db":   {},
	"desktop.ini": {},
	".ds_store":   {},
}

// Options 是扫描器的配置。
type Options struct {
	// Fs 为 nil 时使用真实文件系统。
	Fs afero.Fs
	// DuplicatesDir 是重复照片输出根目录：该目录永不展开。
	DuplicatesDir string
	// FoldCase：目录比较是否大小写不敏感。
	FoldCase bool
	Logger   logrus.FieldLogger
}

// Scanner 按目录惰性枚举照片文件（工作队列）。
//
// 顺序规则（硬约束）：
// - 逐目录展开：当前目录的照片取尽后，才展开下一个目录
// - 同一目录内文件、子目录各自按名字升序
// - 子目录插到待展开队列最前面（先深入，再回到兄弟目录）
//
// Scanner 不是并发安全的：同一会话内由调用方串行驱动。
type Scanner struct {
	fs       afero.Fs
	log      logrus.FieldLogger
	dupDir   string
	foldCase bool

	root    string
	work    domain.WorkItem
	skipped int
}

type expansion struct {
	files []string
	dirs  []string
	// nonPhotos 只在 Next 真正展开时计入 skipped。
	nonPhotos int
}

func New(opts Options) *Scanner {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dup := strings.TrimSpace(opts.DuplicatesDir)
	if dup != "" {
		dup = filepath.Clean(dup)
	}
	return &Scanner{
		fs:       fs,
		log:      logx.OrDiscard(opts.Logger),
		dupDir:   dup,
		foldCase: opts.FoldCase,
	}
}

// Start 重置队列并以 root 作为唯一待展开目录。
// root 不存在（或不是目录）时返回 DirectoryNotFound。
func (s *Scanner) Start(root string) error {
	root = filepath.Clean(root)
	fi, err := s.fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.E(domain.KindDirectoryNotFound, root, err)
		}
		return domain.E(domain.KindIOError, root, err)
	}
	if !fi.IsDir() {
		return domain.E(domain.KindDirectoryNotFound, root, nil)
	}

	s.root = root
	s.work = domain.WorkItem{PendingDirectories: []string{root}}
	s.skipped = 0
	return nil
}

// Root 返回当前会话的根目录（未 Start 时为空）。
func (s *Scanner) Root() string { return s.root }

// Skipped 返回已被跳过的非照片文件数（不含 OS 伪文件）。
func (s *Scanner) Skipped() int { return s.skipped }

// State 返回队列快照（拷贝，调用方可随意修改）。
func (s *Scanner) State() domain.WorkItem {
	return domain.WorkItem{
		PendingDirectories: append([]string(nil), s.work.PendingDirectories...),
		PendingFiles:       append([]string(nil), s.work.PendingFiles...),
	}
}

// Next 取出下一张照片的路径；队列耗尽时返回 ""。
//
// 取消只在目录边界检查：单个目录的展开不可中断。
func (s *Scanner) Next(ctx context.Context) (string, error) {
	for len(s.work.PendingFiles) == 0 && len(s.work.PendingDirectories) > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		dir := s.work.PendingDirectories[0]
		s.work.PendingDirectories = s.work.PendingDirectories[1:]

		exp := s.take(dir)
		s.work.PendingFiles = exp.files
		s.work.PendingDirectories = append(append([]string(nil), exp.dirs...), s.work.PendingDirectories...)
	}

	if len(s.work.PendingFiles) == 0 {
		return "", nil
	}
	p := s.work.PendingFiles[0]
	s.work.PendingFiles = s.work.PendingFiles[1:]
	return p, nil
}

// Peek 返回至多 n 个即将由 Next 产出的路径，不消费队列。
// 它只用于预取：Peek 不保留任何展开结果，Next 到达某个目录时总是重新读取，
// 因此 Peek 之后目录发生的变化对 Next 可见。
func (s *Scanner) Peek(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for _, f := range s.work.PendingFiles {
		if len(out) == n {
			return out, nil
		}
		out = append(out, f)
	}

	// 在队列副本上模拟展开。
	dirs := append([]string(nil), s.work.PendingDirectories...)
	for len(out) < n && len(dirs) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		dir := dirs[0]
		dirs = dirs[1:]

		exp := s.expand(dir)
		for _, f := range exp.files {
			if len(out) == n {
				break
			}
			out = append(out, f)
		}
		dirs = append(append([]string(nil), exp.dirs...), dirs...)
	}
	return out, nil
}

func (s *Scanner) take(dir string) expansion {
	exp := s.expand(dir)
	s.skipped += exp.nonPhotos
	return exp
}

// expand 读取 dir 的直接子项，划分为照片文件与子目录（各自升序）。
// 读取失败只记日志：单个目录的错误不终止遍历。
func (s *Scanner) expand(dir string) expansion {
	if s.isExcluded(dir) {
		s.log.WithField("dir", dir).Debug("跳过重复照片目录")
		return expansion{}
	}

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		s.log.WithField("dir", dir).WithError(err).Warn("读取目录失败，已跳过")
		return expansion{}
	}

	var exp expansion
	for _, fi := range infos {
		name := fi.Name()
		full := filepath.Join(dir, name)
		mode := fi.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			// 符号链接既不跟随，也不当作普通文件。
			s.log.WithField("path", full).Debug("跳过符号链接")
		case fi.IsDir():
			if s.isExcluded(full) {
				s.log.WithField("dir", full).Debug("跳过重复照片目录")
				continue
			}
			exp.dirs = append(exp.dirs, full)
		case !mode.IsRegular():
			// 设备、管道等：忽略。
		case isIgnored(name):
		case domain.IsPhotoFile(name):
			exp.files = append(exp.files, full)
		default:
			exp.nonPhotos++
			s.log.WithField("path", full).Debug("跳过非照片文件")
		}
	}

	sort.Strings(exp.files)
	sort.Strings(exp.dirs)
	return exp
}

func (s *Scanner) isExcluded(dir string) bool {
	if s.dupDir == "" {
		return false
	}
	dir = filepath.Clean(dir)
	if s.foldCase {
		return strings.EqualFold(dir, s.dupDir)
	}
	return dir == s.dupDir
}

func isIgnored(name string) bool {
	_, ok := ignoredNames[strings.ToLower(name)]
	return ok
}
