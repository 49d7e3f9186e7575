package hashx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFile_KnownDigest(t *testing.T) {
	p := write(t, t.TempDir(), "a", "abc")

	got, err := File(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("摘要不一致：%s", got)
	}

	r, err := Reader(strings.NewReader("abc"))
	if err != nil || r != want {
		t.Fatalf("Reader 摘要不一致：%s err=%v", r, err)
	}
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := write(t, dir, "a", "same-bytes")
	b := write(t, dir, "b", "same-bytes")
	c := write(t, dir, "c", "diff-bytes") // 同长度，不同内容
	d := write(t, dir, "d", "short")

	digest, same, err := SameContent(a, b)
	if err != nil || !same || digest == "" {
		t.Fatalf("期望相同：digest=%q same=%v err=%v", digest, same, err)
	}

	digest, same, err = SameContent(a, c)
	if err != nil || same || digest != "" {
		t.Fatalf("期望不同：digest=%q same=%v err=%v", digest, same, err)
	}

	if _, same, err = SameContent(a, d); err != nil || same {
		t.Fatalf("大小不同应直接判定不同：same=%v err=%v", same, err)
	}

	if _, _, err = SameContent(a, filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("缺失文件应返回错误")
	}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	return p
}
