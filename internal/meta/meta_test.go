package meta

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/photiso/internal/domain"
	"github.com/John-Robertt/photiso/internal/meta/metatest"
)

func newResolver(t *testing.T, loc *time.Location) *Resolver {
	t.Helper()
	r, err := New(Options{Location: loc})
	if err != nil {
		t.Fatalf("New 失败：%v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestResolve_ExifDateSubSecAndOrientation(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	path := filepath.Join(t.TempDir(), "IMG1.jpg")
	metatest.WriteJPEG(t, path, 16, 8, 10, metatest.EXIF{
		DateTimeOriginal:   "2023:06:01 10:00:00",
		SubSecTimeOriginal: "123",
		Orientation:        6,
		Make:               "Canon",
	})

	rec, err := newResolver(t, loc).Resolve(path)
	if err != nil {
		t.Fatalf("Resolve 失败：%v", err)
	}
	want := time.Date(2023, 6, 1, 10, 0, 0, 123_000_000, loc)
	if rec.Taken == nil || !rec.Taken.Equal(want) {
		t.Fatalf("拍摄时间不符合预期：got=%v want=%v", rec.Taken, want)
	}
	if rec.Orientation == nil || rec.Orientation.Rotation != 270 || rec.Orientation.Mirrored {
		t.Fatalf("方向不符合预期：%+v", rec.Orientation)
	}
	if rec.Make != "Canon" {
		t.Fatalf("Make 不符合预期：%q", rec.Make)
	}
	if rec.Width != 16 || rec.Height != 8 {
		t.Fatalf("宽高应由图片头补齐：%dx%d", rec.Width, rec.Height)
	}
	if len(rec.Raw) == 0 {
		t.Fatalf("Raw 不应为空")
	}
	if !rec.BestTime().Equal(want) {
		t.Fatalf("BestTime 应优先使用拍摄时间")
	}
}

func TestResolve_EarliestOfOriginalAndDigitized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	metatest.WriteJPEG(t, path, 4, 4, 1, metatest.EXIF{
		DateTimeOriginal:  "2023:06:01 10:00:00",
		DateTimeDigitized: "2022:01:01 08:00:00",
	})

	rec, err := newResolver(t, time.UTC).Resolve(path)
	if err != nil {
		t.Fatalf("Resolve 失败：%v", err)
	}
	want := time.Date(2022, 1, 1, 8, 0, 0, 0, time.UTC)
	if rec.Taken == nil || !rec.Taken.Equal(want) {
		t.Fatalf("应取较早者：%v", rec.Taken)
	}
}

func TestResolve_OffsetTimeOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	metatest.WriteJPEG(t, path, 4, 4, 1, metatest.EXIF{
		DateTimeOriginal:   "2023:06:01 10:00:00",
		OffsetTimeOriginal: "+08:00",
	})

	rec, err := newResolver(t, time.UTC).Resolve(path)
	if err != nil {
		t.Fatalf("Resolve 失败：%v", err)
	}
	want := time.Date(2023, 6, 1, 2, 0, 0, 0, time.UTC)
	if rec.Taken == nil || !rec.Taken.Equal(want) {
		t.Fatalf("时区偏移未生效：%v", rec.Taken)
	}
	if _, off := rec.Taken.Zone(); off != 8*3600 {
		t.Fatalf("应保留原始时区偏移：%d", off)
	}
}

func TestResolve_InvalidDateFallsBackToFileTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	metatest.WriteJPEG(t, path, 4, 4, 1, metatest.EXIF{
		DateTimeOriginal: "0000:00:00 00:00:00",
		Orientation:      42,
	})
	mod := time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("Chtimes 失败：%v", err)
	}

	rec, err := newResolver(t, time.UTC).Resolve(path)
	if err != nil {
		t.Fatalf("无效日期不应导致失败：%v", err)
	}
	if rec.Taken != nil {
		t.Fatalf("无效日期应被丢弃：%v", rec.Taken)
	}
	if rec.Orientation != nil {
		t.Fatalf("1..8 以外的方向码应为空：%+v", rec.Orientation)
	}
	// 创建时间（若平台提供）不会早于刚写入文件的时刻，修改时间被改到 2020，因此较早者是修改时间。
	if !rec.BestTime().Equal(mod) {
		t.Fatalf("应退化为较早的文件时间：%v", rec.BestTime())
	}
}

func TestResolve_NoExifIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	metatest.WriteJPEG(t, path, 5, 3, 1, metatest.EXIF{})

	rec, err := newResolver(t, nil).Resolve(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.Taken != nil || rec.Width != 5 || rec.Height != 3 {
		t.Fatalf("结果不符合预期：%+v", rec)
	}
	if rec.SizeBytes <= 0 {
		t.Fatalf("SizeBytes 应为正数")
	}
}

func TestResolve_Errors(t *testing.T) {
	dir := t.TempDir()
	r := newResolver(t, nil)

	txt := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, err := r.Resolve(txt); !errors.Is(err, domain.ErrNotAPhoto) {
		t.Fatalf("期望 NotAPhoto，实际：%v", err)
	}
	if _, err := r.Resolve(filepath.Join(dir, "missing.jpg")); !errors.Is(err, domain.ErrReadError) {
		t.Fatalf("期望 ReadError，实际：%v", err)
	}
}

func TestParseCaptureTime(t *testing.T) {
	loc := time.FixedZone("x", -5*3600)

	got, err := ParseCaptureTime("2023:06:01 10:00:00\x00", "5", "", loc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if want := time.Date(2023, 6, 1, 10, 0, 0, 500_000_000, loc); !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}

	got, err = ParseCaptureTime("2023:06:01 10:00:00", "12345678901", "Z", loc)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got.Nanosecond() != 123456789 || got.Location() != time.UTC {
		t.Fatalf("小数秒应截断到纳秒且使用 UTC：%v", got)
	}

	if _, err := ParseCaptureTime("garbage", "", "", loc); err == nil {
		t.Fatalf("期望解析失败")
	}
	if _, err := ParseCaptureTime("", "", "", loc); err == nil {
		t.Fatalf("期望空串解析失败")
	}
}
