package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/hashx"
	"github.com/John-Robertt/photiso/internal/meta"
	"github.com/John-Robertt/photiso/internal/meta/metatest"
)

type fixture struct {
	in, out, dup string
	s            *Session
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		in:  filepath.Join(root, "in"),
		out: filepath.Join(root, "out"),
		dup: filepath.Join(root, "out", "Duplicates"),
	}
	if err := os.MkdirAll(f.in, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	r, err := meta.New(meta.Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("meta.New 失败：%v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	dp, err := planner.NewDestinationPattern(planner.DefaultDirectoryPattern, true, planner.DefaultFileNamePattern, true)
	if err != nil {
		t.Fatalf("NewDestinationPattern 失败：%v", err)
	}
	f.s = New(Config{
		OrganizedRoot: f.out,
		DuplicatesDir: f.dup,
		Pattern:       dp,
		FoldCase:      true,
	}, r)
	t.Cleanup(f.s.Close)
	return f
}

func TestSession_EndToEndMoveAndDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := metatest.EXIF{DateTimeOriginal: "2023:06:01 10:00:00"}
	metatest.WriteJPEG(t, filepath.Join(f.in, "IMG1.jpg"), 8, 8, 50, x)
	metatest.WriteJPEG(t, filepath.Join(f.in, "IMG1_copy.jpg"), 8, 8, 50, x)

	if err := f.s.Start(f.in); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}

	first, err := f.s.Next(ctx)
	if err != nil || first != filepath.Join(f.in, "IMG1.jpg") {
		t.Fatalf("第一张应为 IMG1.jpg：%q %v", first, err)
	}
	dest, err := f.s.DefaultDestination(first)
	if err != nil {
		t.Fatalf("DefaultDestination 失败：%v", err)
	}
	want := filepath.Join(f.out, "2023", "06", "IMG_2023-06-01_10-00-00-000.jpg")
	if dest.Path(0) != want {
		t.Fatalf("默认目标不符合预期：%q", dest.Path(0))
	}
	pl, err := f.s.Move(ctx, first, dest.Path(0))
	if err != nil || pl.Outcome != domain.OutcomeMoved {
		t.Fatalf("Move 失败：%+v %v", pl, err)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("目标文件应存在：%v", err)
	}

	second, err := f.s.Next(ctx)
	if err != nil || second != filepath.Join(f.in, "IMG1_copy.jpg") {
		t.Fatalf("第二张应为 IMG1_copy.jpg：%q %v", second, err)
	}
	dest2, err := f.s.DefaultDestination(second)
	if err != nil || dest2.Path(0) != want {
		t.Fatalf("同内容文件应解析到相同名字：%q %v", dest2.Path(0), err)
	}
	pl, err = f.s.Move(ctx, second, dest2.Path(0))
	if err != nil {
		t.Fatalf("Move 失败：%v", err)
	}
	digest, _ := hashx.File(want)
	if pl.Outcome != domain.OutcomeDuplicateMoved || pl.To != filepath.Join(f.dup, digest, "IMG_2023-06-01_10-00-00-000.jpg") {
		t.Fatalf("应转入重复区：%+v", pl)
	}

	// 两张都被移走：没有可显示的当前文件。
	if got := f.s.Previous(); got != "" {
		t.Fatalf("已移走的文件不应再出现：%q", got)
	}
	if len(f.s.History()) != 2 {
		t.Fatalf("账本应有两条记录：%d", len(f.s.History()))
	}

	// 重复照片的放置不可撤销。
	if _, err := f.s.Undo(0); !errors.Is(err, domain.ErrUnsupportedUndo) {
		t.Fatalf("期望 UnsupportedUndo，实际：%v", err)
	}
}

func TestSession_UndoSkipsPastDuplicateToEarlierMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := metatest.EXIF{DateTimeOriginal: "2023:06:01 10:00:00"}
	img := filepath.Join(f.in, "IMG1.jpg")
	cp := filepath.Join(f.in, "IMG1_copy.jpg")
	metatest.WriteJPEG(t, img, 8, 8, 50, x)
	metatest.WriteJPEG(t, cp, 8, 8, 50, x)

	if err := f.s.Start(f.in); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}
	want := filepath.Join(f.out, "2023", "06", "IMG_2023-06-01_10-00-00-000.jpg")
	for _, src := range []string{img, cp} {
		if _, err := f.s.Next(ctx); err != nil {
			t.Fatalf("Next 失败：%v", err)
		}
		if _, err := f.s.Move(ctx, src, want); err != nil {
			t.Fatalf("Move 失败：%v", err)
		}
	}

	item, err := f.s.Undo(0)
	if !errors.Is(err, domain.ErrUnsupportedUndo) || item.From != cp {
		t.Fatalf("第一次撤销应报告不可撤销的重复记录：%+v %v", item, err)
	}
	if len(f.s.History()) != 1 {
		t.Fatalf("不可撤销的记录应移出账本：%+v", f.s.History())
	}

	item, err = f.s.Undo(0)
	if err != nil || item.From != img {
		t.Fatalf("第二次撤销应恢复更早的移动：%+v %v", item, err)
	}
	if _, err := os.Stat(img); err != nil {
		t.Fatalf("IMG1.jpg 应已恢复：%v", err)
	}
	if len(f.s.History()) != 0 {
		t.Fatalf("账本应为空：%+v", f.s.History())
	}
}

func TestSession_UndoMoveRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := filepath.Join(f.in, "a.jpg")
	metatest.WriteJPEG(t, src, 4, 4, 1, metatest.EXIF{DateTimeOriginal: "2021:12:31 23:59:59"})

	if err := f.s.Start(f.in); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}
	if _, err := f.s.Next(ctx); err != nil {
		t.Fatalf("Next 失败：%v", err)
	}
	dst := filepath.Join(f.out, "manual", "b.jpg")
	if _, err := f.s.Move(ctx, src, dst); err != nil {
		t.Fatalf("Move 失败：%v", err)
	}
	if f.s.Current() != "" {
		t.Fatalf("移走后当前文件应为空")
	}
	if f.s.RecentRelativeDir() != "manual" {
		t.Fatalf("最近目录应为 manual：%q", f.s.RecentRelativeDir())
	}

	item, err := f.s.Undo(0)
	if err != nil {
		t.Fatalf("Undo 失败：%v", err)
	}
	if item.From != src || item.To != dst {
		t.Fatalf("撤销记录不符合预期：%+v", item)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("源文件应已恢复：%v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("目标文件应已移除：%v", err)
	}
	if len(f.s.History()) != 0 {
		t.Fatalf("撤销后账本记录应被移除")
	}
	if f.s.Current() != src {
		t.Fatalf("撤销后游标应回到恢复的文件：%q", f.s.Current())
	}
	if _, err := f.s.Undo(0); !errors.Is(err, ErrNoSuchAction) {
		t.Fatalf("期望 ErrNoSuchAction，实际：%v", err)
	}
}

func TestSession_UndoCopyRemovesCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := filepath.Join(f.in, "a.jpg")
	metatest.WriteJPEG(t, src, 4, 4, 1, metatest.EXIF{})

	if err := f.s.Start(f.in); err != nil {
		t.Fatalf("Start 失败：%v", err)
	}
	if _, err := f.s.Next(ctx); err != nil {
		t.Fatalf("Next 失败：%v", err)
	}
	dst := filepath.Join(f.out, "a.jpg")
	pl, err := f.s.Copy(ctx, src, dst)
	if err != nil || pl.Outcome != domain.OutcomeMoved {
		t.Fatalf("Copy 失败：%+v %v", pl, err)
	}
	if f.s.Current() != src {
		t.Fatalf("复制不应把源标记为已移走")
	}

	if _, err := f.s.Undo(0); err != nil {
		t.Fatalf("Undo 失败：%v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("副本应被删除：%v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("源文件应保留：%v", err)
	}
}

func TestSession_StartMissingDirectory(t *testing.T) {
	f := newFixture(t)
	if err := f.s.Start(filepath.Join(f.in, "nope")); !errors.Is(err, domain.ErrDirectoryNotFound) {
		t.Fatalf("期望 DirectoryNotFound，实际：%v", err)
	}
}

func TestSession_NoConflictSuffixAndDisplay(t *testing.T) {
	f := newFixture(t)
	p := filepath.Join(f.in, "a.jpg")
	metatest.WriteJPEG(t, p, 20, 10, 1, metatest.EXIF{Orientation: 6})

	s, err := f.s.NoConflictSuffix(p)
	if err != nil || s != "_001" {
		t.Fatalf("已存在的路径应返回 _001：%q %v", s, err)
	}
	if s, _ := f.s.NoConflictSuffix(filepath.Join(f.in, "b.jpg")); s != "" {
		t.Fatalf("不存在的路径不需要后缀：%q", s)
	}

	if _, err := f.s.DisplaySrc(p); err != nil {
		t.Fatalf("DisplaySrc 失败：%v", err)
	}
	thumb, err := f.s.ThumbnailSrc(p)
	if err != nil || len(thumb) == 0 {
		t.Fatalf("ThumbnailSrc 失败：%v", err)
	}
}
