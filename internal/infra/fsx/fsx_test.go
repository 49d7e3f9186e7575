package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomic(dir, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 覆盖写。
	if err := WriteFileAtomic(dir, "a.txt", []byte("world")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "world" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	assertNoTemp(t, dir, "a.txt")
}

func TestWriteFileAtomic_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(dir, "a.txt", []byte("hello")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	assertNoTemp(t, dir, "a.txt")
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("不应写出最终文件：%v", err)
	}
}

func TestMoveNoOverwrite_MovesAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "in", "a.jpg"), "A")
	dst := filepath.Join(dir, "out", "2023", "06", "a.jpg")

	if err := MoveNoOverwrite(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应已被移走：%v", err)
	}
	assertContent(t, dst, "A")
}

func TestMoveNoOverwrite_TargetExists(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dst := writeFile(t, filepath.Join(dir, "b.jpg"), "B")

	err := MoveNoOverwrite(src, dst)
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际：%v", err)
	}
	assertContent(t, src, "A")
	assertContent(t, dst, "B")
}

func TestMoveNoOverwrite_LinkRaceLostIsErrExist(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dst := filepath.Join(dir, "b.jpg")

	// 模拟：检查通过后、link 之前目标被其他写入者创建。
	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		writeFile(t, newname, "RACE")
		return old(oldname, newname)
	}
	defer func() { linkFunc = old }()

	if err := MoveNoOverwrite(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("期望 os.ErrExist，实际：%v", err)
	}
	assertContent(t, src, "A")
	assertContent(t, dst, "RACE")
}

func TestMoveNoOverwrite_FallbackToCopyWhenLinkUnsupported(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dst := filepath.Join(dir, "x", "b.jpg")

	old := linkFunc
	linkFunc = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: errors.ErrUnsupported}
	}
	defer func() { linkFunc = old }()

	if err := MoveNoOverwrite(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("源文件应已被删除：%v", err)
	}
	assertContent(t, dst, "A")
}

func TestMoveNoOverwrite_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dst := filepath.Join(dir, "b.jpg")
	if err := os.Mkdir(dst, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	if err := MoveNoOverwrite(src, dst); !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestCopyNoOverwrite_KeepsSourceAndModTime(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	mt := time.Date(2019, 5, 4, 3, 2, 1, 0, time.UTC)
	if err := os.Chtimes(src, mt, mt); err != nil {
		t.Fatalf("Chtimes 失败：%v", err)
	}
	dst := filepath.Join(dir, "o", "a.jpg")

	if err := CopyNoOverwrite(src, dst); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	assertContent(t, src, "A")
	assertContent(t, dst, "A")

	fi, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat 失败：%v", err)
	}
	if !fi.ModTime().Equal(mt) {
		t.Fatalf("修改时间未保留：%v", fi.ModTime())
	}

	if err := CopyNoOverwrite(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("第二次复制期望 os.ErrExist，实际：%v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, filepath.Join(dir, "a"), "x")

	ok, err := Exists(p)
	if err != nil || !ok {
		t.Fatalf("期望存在：ok=%v err=%v", ok, err)
	}
	ok, err = Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Fatalf("期望不存在：ok=%v err=%v", ok, err)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	return path
}

func assertContent(t *testing.T, path, want string) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取 %q 失败：%v", path, err)
	}
	if string(b) != want {
		t.Fatalf("%q 内容不一致：%q", path, string(b))
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
