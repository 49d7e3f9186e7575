package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/John-Robertt/photiso/internal/app/place"
	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/imgx"
	"github.com/John-Robertt/photiso/internal/infra/logx"
	"github.com/John-Robertt/photiso/internal/scan"
)

const (
	defaultPrefetchDepth  = 3
	defaultThumbnailWidth = 400
)

// MetadataResolver 是元数据来源（通常是 *meta.Resolver）。必须可并发调用。
type MetadataResolver interface {
	Resolve(path string) (domain.PhotoRecord, error)
}

// Config 是一次整理会话的配置。
type Config struct {
	OrganizedRoot string
	DuplicatesDir string
	Pattern       planner.DestinationPattern
	FoldCase      bool
	MaxConflicts  int

	ThumbnailWidth int
	// PrefetchDepth 是预取元数据的文件数；<0 关闭预取。
	PrefetchDepth int

	// Fs 供扫描器使用；nil 表示真实文件系统。
	Fs     afero.Fs
	Logger logrus.FieldLogger
}

// Session 是面向 UI 的整理会话：扫描、导航、放置、撤销。
//
// 所有导航/放置方法串行执行（内部互斥）；Info/DisplaySrc/ThumbnailSrc 可并发调用。
// 唯一的后台工作是元数据预取，它只写缓存，从不阻塞导航。
type Session struct {
	id       string
	cfg      Config
	log      logrus.FieldLogger
	resolver MetadataResolver

	mu        sync.Mutex
	scanner   *scan.Scanner
	nav       *Navigator
	ledger    *Ledger
	placer    *place.Placer
	recentRel string

	cacheMu sync.Mutex
	cache   map[string]domain.PhotoRecord

	gen atomic.Uint64
	wg  sync.WaitGroup
}

func New(cfg Config, resolver MetadataResolver) *Session {
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = defaultThumbnailWidth
	}
	if cfg.PrefetchDepth == 0 {
		cfg.PrefetchDepth = defaultPrefetchDepth
	}
	log := logx.OrDiscard(cfg.Logger)
	id := uuid.NewString()
	log = log.WithField("session", id)

	sc := scan.New(scan.Options{
		Fs:            cfg.Fs,
		DuplicatesDir: cfg.DuplicatesDir,
		FoldCase:      cfg.FoldCase,
		Logger:        log,
	})
	return &Session{
		id:       id,
		cfg:      cfg,
		log:      log,
		resolver: resolver,
		scanner:  sc,
		nav:      NewNavigator(sc),
		ledger:   NewLedger(nil),
		placer: place.New(place.Options{
			DuplicatesDir: cfg.DuplicatesDir,
			FoldCase:      cfg.FoldCase,
			MaxConflicts:  cfg.MaxConflicts,
			Logger:        log,
		}),
		cache: map[string]domain.PhotoRecord{},
	}
}

func (s *Session) ID() string { return s.id }

// Start 以 root 开始新会话：重置扫描器、导航器与账本。
// root 不存在时返回 DirectoryNotFound，原会话状态保持不变。
func (s *Session) Start(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return domain.E(domain.KindDirectoryNotFound, root, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scanner.Start(abs); err != nil {
		return err
	}
	s.gen.Add(1)
	s.nav.Clear(nil)
	s.ledger.Clear()
	s.recentRel = ""
	s.cacheMu.Lock()
	s.cache = map[string]domain.PhotoRecord{}
	s.cacheMu.Unlock()

	s.log.WithField("root", abs).Info("开始整理")
	return nil
}

// Close 停止预取并等待其退出。
func (s *Session) Close() {
	s.gen.Add(1)
	s.wg.Wait()
}

// Next 前进到下一张未移走的照片；耗尽时返回当前照片（或 ""）。
func (s *Session) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.nav.Next(ctx)
	if err != nil {
		return "", err
	}
	s.prefetchLocked(ctx)
	return p, nil
}

// Previous 后退到上一张未移走的照片。
func (s *Session) Previous() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Previous()
}

// GoTo 跳到会话中出现过的 path；未出现过返回 ""。
func (s *Session) GoTo(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.GoTo(path)
}

// Current 返回当前照片路径。
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Current()
}

// Entries 返回会话条目快照。
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Entries()
}

// Skipped 返回扫描器已跳过的非照片文件数。
func (s *Session) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanner.Skipped()
}

// Info 返回 path 的元数据（按路径缓存；文件被移走后缓存失效）。
func (s *Session) Info(path string) (domain.PhotoRecord, error) {
	s.cacheMu.Lock()
	rec, ok := s.cache[path]
	s.cacheMu.Unlock()
	if ok {
		return rec, nil
	}

	rec, err := s.resolver.Resolve(path)
	if err != nil {
		return domain.PhotoRecord{}, err
	}
	s.cacheMu.Lock()
	s.cache[path] = rec
	s.cacheMu.Unlock()
	return rec, nil
}

// DefaultDestination 计算 path 的默认目标位置（未加冲突后缀）。
func (s *Session) DefaultDestination(path string) (domain.Destination, error) {
	rec, err := s.Info(path)
	if err != nil {
		return domain.Destination{}, err
	}
	s.mu.Lock()
	rel := s.recentRel
	s.mu.Unlock()
	return planner.ResolveDestination(rec, s.cfg.Pattern, s.cfg.OrganizedRoot, rel), nil
}

// DisplaySrc 返回方向校正后的全尺寸 JPEG。
func (s *Session) DisplaySrc(path string) ([]byte, error) {
	rec, err := s.Info(path)
	if err != nil {
		return nil, err
	}
	return imgx.Display(path, rec.Orientation)
}

// ThumbnailSrc 返回方向校正后的缩略图 JPEG。
func (s *Session) ThumbnailSrc(path string) ([]byte, error) {
	rec, err := s.Info(path)
	if err != nil {
		return nil, err
	}
	return imgx.Thumbnail(path, s.cfg.ThumbnailWidth, rec.Orientation)
}

// NoConflictSuffix 返回让 destPath 不冲突的后缀（不需要时为 ""）。
func (s *Session) NoConflictSuffix(destPath string) (string, error) {
	return planner.FindNonConflictingSuffix(destPath, s.cfg.MaxConflicts)
}

// Copy 把 source 不覆盖地复制到 destPath（冲突时按规则加后缀或转入重复区）。
func (s *Session) Copy(ctx context.Context, source, destPath string) (domain.Placement, error) {
	return s.placeAndRecord(ctx, source, domain.DestinationFromPath(destPath), domain.ActionCopy)
}

// Move 把 source 不覆盖地移动到 destPath。
func (s *Session) Move(ctx context.Context, source, destPath string) (domain.Placement, error) {
	return s.placeAndRecord(ctx, source, domain.DestinationFromPath(destPath), domain.ActionMove)
}

func (s *Session) placeAndRecord(ctx context.Context, source string, dest domain.Destination, kind domain.ActionKind) (domain.Placement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pl, err := s.placer.Place(ctx, source, dest, kind)
	if err != nil {
		s.log.WithField("src", source).WithError(err).Warn("放置失败")
		return domain.Placement{}, err
	}
	if pl.Outcome == domain.OutcomeNoOp {
		return pl, nil
	}
	if kind == domain.ActionCopy && pl.Discarded {
		// 重复区已有同内容：复制模式下什么也没发生。
		return pl, nil
	}

	s.ledger.Record(kind, pl.Source, pl.To, pl.Outcome)
	if kind == domain.ActionMove {
		s.nav.MarkMoved(pl.Source, pl.To)
	}
	s.invalidate(pl.Source, pl.To)
	if pl.Outcome == domain.OutcomeMoved {
		s.noteRecentLocked(dest.Dir)
	}

	s.log.WithFields(logrus.Fields{"src": pl.Source, "dst": pl.To, "outcome": pl.Outcome}).Info("已放置")
	return pl, nil
}

// Undo 撤销 key 对应的动作（key==0 表示最近一次），成功后游标回到被恢复的文件。
//
// 不可撤销的记录（转入重复区）返回 ErrUnsupportedUndo 并从账本移除，
// 此时返回的 item 就是被移除的那条，下一次 Undo(0) 会落到更早的动作上。
func (s *Session) Undo(key int64) (domain.ActionHistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		item domain.ActionHistoryItem
		ok   bool
	)
	if key == 0 {
		item, ok = s.ledger.FindMostRecent()
	} else {
		item, ok = s.ledger.FindByKey(key)
	}
	if !ok {
		return domain.ActionHistoryItem{}, ErrNoSuchAction
	}

	if err := Revert(item); err != nil {
		if errors.Is(err, domain.ErrUnsupportedUndo) {
			s.ledger.Remove(item.Key)
			s.log.WithFields(logrus.Fields{"from": item.From, "to": item.To}).Info("不可撤销的记录已移出账本")
			return item, err
		}
		return domain.ActionHistoryItem{}, err
	}
	s.ledger.Remove(item.Key)
	s.nav.MarkRestored(item.From)
	s.nav.GoTo(item.From)
	s.invalidate(item.From, item.To)

	s.log.WithFields(logrus.Fields{"from": item.From, "to": item.To, "kind": item.Kind}).Info("已撤销")
	return item, nil
}

// History 返回本会话的动作账本（最新在前）。
func (s *Session) History() []domain.ActionHistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Items()
}

// RecentRelativeDir 返回最近一次放置所用的目录（相对 OrganizedRoot）。
func (s *Session) RecentRelativeDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentRel
}

func (s *Session) noteRecentLocked(dir string) {
	if s.cfg.OrganizedRoot == "" {
		return
	}
	rel, err := filepath.Rel(s.cfg.OrganizedRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if rel == "." {
		rel = ""
	}
	s.recentRel = filepath.ToSlash(rel)
}

func (s *Session) invalidate(paths ...string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for _, p := range paths {
		delete(s.cache, p)
	}
}

// prefetchLocked 在后台为即将出现的文件预取元数据。
// 会话重置（或关闭）后，旧一代的预取结果被丢弃。
func (s *Session) prefetchLocked(ctx context.Context) {
	if s.cfg.PrefetchDepth < 0 || s.resolver == nil {
		return
	}
	paths, err := s.scanner.Peek(ctx, s.cfg.PrefetchDepth)
	if err != nil || len(paths) == 0 {
		return
	}

	gen := s.gen.Load()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, p := range paths {
			if s.gen.Load() != gen {
				return
			}
			s.cacheMu.Lock()
			_, ok := s.cache[p]
			s.cacheMu.Unlock()
			if ok {
				continue
			}

			rec, err := s.resolver.Resolve(p)
			if err != nil {
				s.log.WithField("path", p).WithError(err).Debug("预取元数据失败")
				continue
			}
			s.cacheMu.Lock()
			if s.gen.Load() == gen {
				s.cache[p] = rec
			}
			s.cacheMu.Unlock()
		}
	}()
}
