package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/photiso/internal/app/planner"
	"github.com/John-Robertt/photiso/internal/config"
	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/infra/hashx"
	"github.com/John-Robertt/photiso/internal/meta/metatest"
)

const taken = "2023:06:01 10:00:00"

func testConfig(root string) config.EffectiveConfig {
	return config.EffectiveConfig{
		From:                   filepath.Join(root, "in"),
		To:                     filepath.Join(root, "out"),
		Duplicates:             filepath.Join(root, "out", "Duplicates"),
		DirectoryPattern:       planner.DefaultDirectoryPattern,
		FileNamePattern:        planner.DefaultFileNamePattern,
		EnableDirectoryPattern: true,
		EnableFileNamePattern:  true,
		Mode:                   domain.ActionMove,
		FoldCase:               true,
		MaxConflicts:           config.DefaultMaxConflicts,
	}
}

func execute(t *testing.T, ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	t.Helper()
	return Execute(ctx, eff, Options{Observer: obs, Location: time.UTC})
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	eff.EnableFileNamePattern = false

	in := filepath.Join(eff.From, "IMG1.jpg")
	metatest.WriteJPEG(t, in, 8, 8, 10, metatest.EXIF{DateTimeOriginal: taken})
	metatest.WriteJPEG(t, filepath.Join(eff.From, "keep!.jpg"), 8, 8, 10, metatest.EXIF{})
	if err := os.WriteFile(filepath.Join(eff.From, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	rr := execute(t, context.Background(), eff, nil)

	if _, err := os.Stat(eff.To); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 out/，但 Stat err=%v", err)
	}
	if _, err := os.Stat(in); err != nil {
		t.Fatalf("dry-run 不应移动照片，但源文件不存在：%v", err)
	}
	if !rr.DryRun || rr.Canceled {
		t.Fatalf("report 标志不符合预期：%+v", rr)
	}
	if rr.Summary.Moved != 1 || rr.Summary.Skipped != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}
	if rr.NonPhotos != 1 {
		t.Fatalf("应统计 1 个非照片文件：%d", rr.NonPhotos)
	}

	want := filepath.Join(eff.To, "2023", "06", "IMG1.jpg")
	for _, it := range rr.Items {
		if it.Src == in && it.Dst != want {
			t.Fatalf("目标路径不符合预期：%q", it.Dst)
		}
	}
}

func TestExecute_Apply_DuplicatesAndSuffix(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	eff.Apply = true

	x := metatest.EXIF{DateTimeOriginal: taken}
	a := filepath.Join(eff.From, "a.jpg")
	b := filepath.Join(eff.From, "b.jpg")
	c := filepath.Join(eff.From, "sub", "c.JPG")
	metatest.WriteJPEG(t, a, 8, 8, 10, x)
	metatest.WriteJPEG(t, b, 8, 8, 10, x)  // 与 a 同内容
	metatest.WriteJPEG(t, c, 8, 8, 200, x) // 同名不同内容

	rr := execute(t, context.Background(), eff, nil)
	if rr.Summary.Moved != 2 || rr.Summary.DuplicateMoved != 1 || rr.Summary.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v items=%+v", rr.Summary, rr.Items)
	}

	dst := filepath.Join(eff.To, "2023", "06", "IMG_2023-06-01_10-00-00-000.jpg")
	digest, err := hashx.File(dst)
	if err != nil {
		t.Fatalf("目标文件应存在：%v", err)
	}
	byName := map[string]domain.ItemResult{}
	for _, it := range rr.Items {
		byName[filepath.Base(it.Src)] = it
	}

	if got := byName["a.jpg"]; got.Status != domain.StatusMoved || got.Dst != dst {
		t.Fatalf("a.jpg 结果不符合预期：%+v", got)
	}
	wantDup := filepath.Join(eff.Duplicates, digest, "IMG_2023-06-01_10-00-00-000.jpg")
	if got := byName["b.jpg"]; got.Status != domain.StatusDuplicateMoved || got.Dst != wantDup || got.Digest != digest {
		t.Fatalf("b.jpg 应转入重复区：%+v", got)
	}
	wantSuffix := filepath.Join(eff.To, "2023", "06", "IMG_2023-06-01_10-00-00-000_001.jpg")
	if got := byName["c.JPG"]; got.Status != domain.StatusMoved || got.Dst != wantSuffix {
		t.Fatalf("c.JPG 应加后缀且扩展名小写：%+v", got)
	}

	for _, p := range []string{a, b, c} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("move 模式下源文件应被移走：%q err=%v", p, err)
		}
	}
}

func TestExecute_SecondRunIsNoOpForOrganizedTree(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	eff.Apply = true
	metatest.WriteJPEG(t, filepath.Join(eff.From, "a.jpg"), 8, 8, 10, metatest.EXIF{DateTimeOriginal: taken})

	if rr := execute(t, context.Background(), eff, nil); rr.Summary.Moved != 1 {
		t.Fatalf("第一次运行应移动 1 个文件：%+v", rr.Summary)
	}

	// 以已整理的 to 作为 from 再跑一次：每个文件都已在目标位置。
	eff.From = eff.To
	rr := execute(t, context.Background(), eff, nil)
	if rr.Summary.NoOp != 1 || rr.Summary.Moved != 0 {
		t.Fatalf("已整理的文件应为 noop：%+v items=%+v", rr.Summary, rr.Items)
	}
}

func TestExecute_CopyKeepsSource(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	eff.Apply = true
	eff.Mode = domain.ActionCopy

	src := filepath.Join(eff.From, "a.jpg")
	metatest.WriteJPEG(t, src, 8, 8, 10, metatest.EXIF{DateTimeOriginal: taken})

	rr := execute(t, context.Background(), eff, nil)
	if rr.Mode != "copy" || rr.Summary.Moved != 1 {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("copy 模式下源文件应保留：%v", err)
	}
	if _, err := os.Stat(rr.Items[0].Dst); err != nil {
		t.Fatalf("副本应存在：%v", err)
	}
}

func TestExecute_MissingFromIsFatal(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)

	rr := execute(t, context.Background(), eff, nil)
	if len(rr.Items) != 1 || rr.Items[0].Src != "" {
		t.Fatalf("期望 1 条合成失败条目：%+v", rr.Items)
	}
	if rr.Items[0].ErrorCode != string(domain.KindDirectoryNotFound) {
		t.Fatalf("期望 %q，实际 %q", domain.KindDirectoryNotFound, rr.Items[0].ErrorCode)
	}
}

func TestExecute_CanceledBeforeFirstFile(t *testing.T) {
	root := t.TempDir()
	eff := testConfig(root)
	eff.Apply = true
	src := filepath.Join(eff.From, "a.jpg")
	metatest.WriteJPEG(t, src, 8, 8, 10, metatest.EXIF{DateTimeOriginal: taken})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr := execute(t, ctx, eff, nil)
	if !rr.Canceled || len(rr.Items) != 0 {
		t.Fatalf("取消后不应处理任何文件：%+v", rr)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("取消后源文件应保持不动：%v", err)
	}
}

func TestExecute_ReadErrorDoesNotAbort(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户可以读取无权限文件")
	}
	root := t.TempDir()
	eff := testConfig(root)
	eff.Apply = true

	bad := filepath.Join(eff.From, "a.jpg")
	metatest.WriteJPEG(t, bad, 8, 8, 10, metatest.EXIF{DateTimeOriginal: taken})
	if err := os.Chmod(bad, 0o000); err != nil {
		t.Fatalf("chmod 失败：%v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(bad, 0o644) })
	metatest.WriteJPEG(t, filepath.Join(eff.From, "b.jpg"), 8, 8, 20, metatest.EXIF{DateTimeOriginal: taken})

	rr := execute(t, context.Background(), eff, nil)
	if rr.Summary.Failed != 1 || rr.Summary.Moved != 1 {
		t.Fatalf("单个文件失败不应中断整理：%+v items=%+v", rr.Summary, rr.Items)
	}
	for _, it := range rr.Items {
		if it.Src == bad && it.ErrorCode != string(domain.KindReadError) {
			t.Fatalf("期望 %q，实际 %+v", domain.KindReadError, it)
		}
	}
}
